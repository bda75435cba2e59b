package bridge

// Protocol constants from libretro.h, wasm32 values.

// apiVersion is the only core API version the bridge accepts.
const apiVersion = 1

// Environment command codes. The experimental bit is masked off before
// dispatch, so experimental commands appear here without it.
const (
	envSetRotation                = 1
	envGetOverscan                = 2
	envGetCanDupe                 = 3
	envSetMessage                 = 6
	envShutdown                   = 7
	envSetPerformanceLevel        = 8
	envGetSystemDirectory         = 9
	envSetPixelFormat             = 10
	envSetInputDescriptors        = 11
	envGetVariable                = 15
	envSetVariables               = 16
	envGetVariableUpdate          = 17
	envSetSupportNoGame           = 18
	envGetLibretroPath            = 19
	envSetFrameTimeCallback       = 21
	envSetAudioCallback           = 22
	envGetRumbleInterface         = 23
	envGetInputDeviceCapabilities = 24
	envGetLogInterface            = 27
	envGetPerfInterface           = 28
	envGetCoreAssetsDirectory     = 30
	envGetSaveDirectory           = 31
	envSetSystemAVInfo            = 32
	envSetSubsystemInfo           = 34
	envSetControllerInfo          = 35
	envSetMemoryMaps              = 36
	envSetGeometry                = 37
	envGetUsername                = 38
	envGetLanguage                = 39
	envSetSupportAchievements     = 42
	envSetSerializationQuirks     = 44
	envGetVFSInterface            = 45
	envGetAudioVideoEnable        = 47
	envGetFastForwarding          = 49
	envGetTargetRefreshRate       = 50
	envGetInputBitmasks           = 51
	envGetCoreOptionsVersion      = 52
	envGetInputMaxUsers           = 61

	envExperimental = 0x10000
)

// Input device classes. Only the joypad is served.
const (
	deviceNone   = 0
	deviceJoypad = 1
)

// maxPorts is the player count reported to GET_INPUT_MAX_USERS and the
// snapshot width input sources carry.
const maxPorts = 4

// Joypad button IDs, also the bit positions in the bitmask query.
const (
	joypadIDMax = 16
	// joypadIDMask asks for all sixteen buttons as one bitmask.
	joypadIDMask = 256
)

// languageEnglish is reported for GET_LANGUAGE.
const languageEnglish = 0

// Memory region kinds for MemoryRegion.
const (
	MemorySaveRAM   uint32 = 0
	MemoryRTC       uint32 = 1
	MemorySystemRAM uint32 = 2
	MemoryVideoRAM  uint32 = 3
)

// Function-table slots the glue shim reserves for the host callbacks.
// These values are what retro_set_* receive as C function pointers.
const (
	tokenEnvironment      = 1
	tokenVideoRefresh     = 2
	tokenAudioSample      = 3
	tokenAudioSampleBatch = 4
	tokenInputPoll        = 5
	tokenInputState       = 6
)

// Import names the glue shim binds under module "env".
const (
	importEnvironment      = "retroemu_environment"
	importVideoRefresh     = "retroemu_video_refresh"
	importAudioSample      = "retroemu_audio_sample"
	importAudioSampleBatch = "retroemu_audio_sample_batch"
	importInputPoll        = "retroemu_input_poll"
	importInputState       = "retroemu_input_state"
)

// envName returns a readable name for diagnostics.
func envName(cmd uint32) string {
	switch cmd {
	case envSetRotation:
		return "SET_ROTATION"
	case envGetOverscan:
		return "GET_OVERSCAN"
	case envGetCanDupe:
		return "GET_CAN_DUPE"
	case envSetMessage:
		return "SET_MESSAGE"
	case envShutdown:
		return "SHUTDOWN"
	case envSetPerformanceLevel:
		return "SET_PERFORMANCE_LEVEL"
	case envGetSystemDirectory:
		return "GET_SYSTEM_DIRECTORY"
	case envSetPixelFormat:
		return "SET_PIXEL_FORMAT"
	case envSetInputDescriptors:
		return "SET_INPUT_DESCRIPTORS"
	case envGetVariable:
		return "GET_VARIABLE"
	case envSetVariables:
		return "SET_VARIABLES"
	case envGetVariableUpdate:
		return "GET_VARIABLE_UPDATE"
	case envSetSupportNoGame:
		return "SET_SUPPORT_NO_GAME"
	case envGetLibretroPath:
		return "GET_LIBRETRO_PATH"
	case envSetFrameTimeCallback:
		return "SET_FRAME_TIME_CALLBACK"
	case envSetAudioCallback:
		return "SET_AUDIO_CALLBACK"
	case envGetRumbleInterface:
		return "GET_RUMBLE_INTERFACE"
	case envGetInputDeviceCapabilities:
		return "GET_INPUT_DEVICE_CAPABILITIES"
	case envGetLogInterface:
		return "GET_LOG_INTERFACE"
	case envGetPerfInterface:
		return "GET_PERF_INTERFACE"
	case envGetCoreAssetsDirectory:
		return "GET_CORE_ASSETS_DIRECTORY"
	case envGetSaveDirectory:
		return "GET_SAVE_DIRECTORY"
	case envSetSystemAVInfo:
		return "SET_SYSTEM_AV_INFO"
	case envSetSubsystemInfo:
		return "SET_SUBSYSTEM_INFO"
	case envSetControllerInfo:
		return "SET_CONTROLLER_INFO"
	case envSetMemoryMaps:
		return "SET_MEMORY_MAPS"
	case envSetGeometry:
		return "SET_GEOMETRY"
	case envGetUsername:
		return "GET_USERNAME"
	case envGetLanguage:
		return "GET_LANGUAGE"
	case envSetSupportAchievements:
		return "SET_SUPPORT_ACHIEVEMENTS"
	case envSetSerializationQuirks:
		return "SET_SERIALIZATION_QUIRKS"
	case envGetVFSInterface:
		return "GET_VFS_INTERFACE"
	case envGetAudioVideoEnable:
		return "GET_AUDIO_VIDEO_ENABLE"
	case envGetFastForwarding:
		return "GET_FASTFORWARDING"
	case envGetTargetRefreshRate:
		return "GET_TARGET_REFRESH_RATE"
	case envGetInputBitmasks:
		return "GET_INPUT_BITMASKS"
	case envGetCoreOptionsVersion:
		return "GET_CORE_OPTIONS_VERSION"
	case envGetInputMaxUsers:
		return "GET_INPUT_MAX_USERS"
	}
	return "UNKNOWN"
}
