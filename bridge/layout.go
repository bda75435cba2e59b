package bridge

import "fmt"

// wasm32 C ABI record layouts. The offsets below are the single source of
// truth; each record shape has exactly one encode or decode function.

const (
	gameInfoSize = 16
	gameInfoPath = 0
	gameInfoData = 4
	gameInfoLen  = 8
	gameInfoMeta = 12

	// retro_system_av_info: a 20-byte geometry record, 4 bytes of
	// padding, then two doubles that must start 8-aligned.
	avInfoSize       = 40
	avInfoBaseWidth  = 0
	avInfoBaseHeight = 4
	avInfoMaxWidth   = 8
	avInfoMaxHeight  = 12
	avInfoAspect     = 16
	avInfoFPS        = 24
	avInfoSampleRate = 32

	geometrySize = 20

	systemInfoSize         = 16
	systemInfoName         = 0
	systemInfoVersion      = 4
	systemInfoExtensions   = 8
	systemInfoNeedFullpath = 12
	systemInfoBlockExtract = 13

	variableSize  = 8
	variableKey   = 0
	variableValue = 4

	messageText   = 0
	messageFrames = 4
)

// AVInfo is the core's declared geometry and timing, read once after game
// load and changed only by SET_SYSTEM_AV_INFO or SET_GEOMETRY.
type AVInfo struct {
	BaseWidth   uint32
	BaseHeight  uint32
	MaxWidth    uint32
	MaxHeight   uint32
	AspectRatio float32
	FPS         float64
	SampleRate  float64
}

// Aspect returns the display aspect ratio, defaulting to 4:3 when the
// core declares none.
func (a AVInfo) Aspect() float64 {
	if a.AspectRatio > 0 {
		return float64(a.AspectRatio)
	}
	return 4.0 / 3.0
}

// SystemInfo describes the core module itself.
type SystemInfo struct {
	Name         string
	Version      string
	Extensions   string
	NeedFullpath bool
	BlockExtract bool
}

func encodeGameInfo(mem guestMemory, addr, pathPtr, dataPtr, size, metaPtr uint32) error {
	ok := mem.WriteUint32(addr+gameInfoPath, pathPtr) &&
		mem.WriteUint32(addr+gameInfoData, dataPtr) &&
		mem.WriteUint32(addr+gameInfoLen, size) &&
		mem.WriteUint32(addr+gameInfoMeta, metaPtr)
	if !ok {
		return fmt.Errorf("game info write at %#x failed", addr)
	}
	return nil
}

func decodeAVInfo(mem guestMemory, addr uint32) (AVInfo, error) {
	var av AVInfo
	ok := true
	read32 := func(off uint32) uint32 {
		v, o := mem.ReadUint32(addr + off)
		ok = ok && o
		return v
	}
	av.BaseWidth = read32(avInfoBaseWidth)
	av.BaseHeight = read32(avInfoBaseHeight)
	av.MaxWidth = read32(avInfoMaxWidth)
	av.MaxHeight = read32(avInfoMaxHeight)
	if v, o := mem.ReadFloat32(addr + avInfoAspect); o {
		av.AspectRatio = v
	} else {
		ok = false
	}
	if v, o := mem.ReadFloat64(addr + avInfoFPS); o {
		av.FPS = v
	} else {
		ok = false
	}
	if v, o := mem.ReadFloat64(addr + avInfoSampleRate); o {
		av.SampleRate = v
	} else {
		ok = false
	}
	if !ok {
		return AVInfo{}, fmt.Errorf("av info read at %#x failed", addr)
	}
	return av, nil
}

// decodeGeometry reads a bare retro_game_geometry record into av's
// geometry fields, leaving timing untouched.
func decodeGeometry(mem guestMemory, addr uint32, av *AVInfo) error {
	ok := true
	read32 := func(off uint32) uint32 {
		v, o := mem.ReadUint32(addr + off)
		ok = ok && o
		return v
	}
	w := read32(avInfoBaseWidth)
	h := read32(avInfoBaseHeight)
	mw := read32(avInfoMaxWidth)
	mh := read32(avInfoMaxHeight)
	aspect, o := mem.ReadFloat32(addr + avInfoAspect)
	if !ok || !o {
		return fmt.Errorf("geometry read at %#x failed", addr)
	}
	av.BaseWidth, av.BaseHeight = w, h
	av.MaxWidth, av.MaxHeight = mw, mh
	av.AspectRatio = aspect
	return nil
}

func decodeSystemInfo(mem guestMemory, addr uint32) (SystemInfo, error) {
	var info SystemInfo
	readStr := func(off uint32) (string, error) {
		ptr, ok := mem.ReadUint32(addr + off)
		if !ok {
			return "", fmt.Errorf("system info read at %#x failed", addr+off)
		}
		if ptr == 0 {
			return "", nil
		}
		return readCString(mem, ptr)
	}
	var err error
	if info.Name, err = readStr(systemInfoName); err != nil {
		return SystemInfo{}, err
	}
	if info.Version, err = readStr(systemInfoVersion); err != nil {
		return SystemInfo{}, err
	}
	if info.Extensions, err = readStr(systemInfoExtensions); err != nil {
		return SystemInfo{}, err
	}
	fullpath, ok1 := mem.ReadByte(addr + systemInfoNeedFullpath)
	block, ok2 := mem.ReadByte(addr + systemInfoBlockExtract)
	if !ok1 || !ok2 {
		return SystemInfo{}, fmt.Errorf("system info read at %#x failed", addr)
	}
	info.NeedFullpath = fullpath != 0
	info.BlockExtract = block != 0
	return info, nil
}

// decodeVariable reads one retro_variable record's pointer pair.
func decodeVariable(mem guestMemory, addr uint32) (keyPtr, valuePtr uint32, err error) {
	k, ok1 := mem.ReadUint32(addr + variableKey)
	v, ok2 := mem.ReadUint32(addr + variableValue)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("variable read at %#x failed", addr)
	}
	return k, v, nil
}

func decodeMessage(mem guestMemory, addr uint32) (text string, frames uint32, err error) {
	ptr, ok1 := mem.ReadUint32(addr + messageText)
	frames, ok2 := mem.ReadUint32(addr + messageFrames)
	if !ok1 || !ok2 {
		return "", 0, fmt.Errorf("message read at %#x failed", addr)
	}
	if ptr == 0 {
		return "", frames, nil
	}
	text, err = readCString(mem, ptr)
	return text, frames, err
}
