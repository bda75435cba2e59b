package bridge

import (
	"context"

	"github.com/monteslu/retroemu/pixel"
)

// environment answers one negotiation command. Refused and unknown
// commands return false; each command code logs at most once.
func (b *Bridge) environment(ctx context.Context, cmd, data uint32) bool {
	cmd &^= uint32(envExperimental)
	switch cmd {
	case envSetRotation:
		b.logOnce(cmd, "rotation ignored, character cells cannot rotate")
		return true
	case envGetOverscan:
		return b.mem.WriteByte(data, 0)
	case envGetCanDupe:
		return b.mem.WriteByte(data, 1)
	case envSetMessage:
		return b.setMessage(data)
	case envShutdown:
		b.log.Info("core requested shutdown")
		b.Stop()
		return true
	case envSetPerformanceLevel:
		return true
	case envGetSystemDirectory:
		return b.writeString(ctx, data, b.opts.SystemDir)
	case envSetPixelFormat:
		return b.setPixelFormat(data)
	case envSetInputDescriptors:
		return true
	case envGetVariable:
		return b.getVariable(ctx, data)
	case envSetVariables:
		return b.setVariables(data)
	case envGetVariableUpdate:
		return b.mem.WriteByte(data, boolByte(b.vars.consumeDirty()))
	case envSetSupportNoGame:
		if v, ok := b.mem.ReadByte(data); ok {
			b.supportsNoGame = v != 0
		}
		return true
	case envGetLibretroPath:
		return b.writeString(ctx, data, b.opts.CorePath)
	case envSetFrameTimeCallback, envSetAudioCallback, envGetRumbleInterface,
		envGetLogInterface, envGetPerfInterface, envGetVFSInterface:
		b.logOnce(cmd, "interface not provided")
		return false
	case envGetInputDeviceCapabilities:
		return b.mem.WriteUint64(data, 1<<deviceJoypad)
	case envGetCoreAssetsDirectory:
		return b.writeString(ctx, data, b.opts.AssetsDir)
	case envGetSaveDirectory:
		return b.writeString(ctx, data, b.opts.SaveDir)
	case envSetSystemAVInfo:
		return b.setSystemAVInfo(data)
	case envSetSubsystemInfo, envSetControllerInfo, envSetMemoryMaps,
		envSetSupportAchievements, envSetSerializationQuirks:
		return true
	case envSetGeometry:
		return b.setGeometry(data)
	case envGetUsername:
		if b.opts.Username == "" {
			b.logOnce(cmd, "no username configured")
			return false
		}
		return b.writeString(ctx, data, b.opts.Username)
	case envGetLanguage:
		return b.mem.WriteUint32(data, languageEnglish)
	case envGetAudioVideoEnable:
		// bit 0 video, bit 1 audio
		return b.mem.WriteUint32(data, 0b11)
	case envGetFastForwarding:
		return b.mem.WriteByte(data, boolByte(b.turbo.Load()))
	case envGetTargetRefreshRate:
		fps := b.av.FPS
		if fps <= 0 {
			fps = 60
		}
		return b.mem.WriteFloat32(data, float32(fps))
	case envGetInputBitmasks:
		return true
	case envGetCoreOptionsVersion:
		// Reporting 0 keeps cores on the legacy SET_VARIABLES path.
		return b.mem.WriteUint32(data, 0)
	case envGetInputMaxUsers:
		return b.mem.WriteUint32(data, maxPorts)
	}
	b.logOnce(cmd, "unknown environment command")
	return false
}

// logOnce records a diagnostic for a command code the first time it is
// seen.
func (b *Bridge) logOnce(cmd uint32, msg string) {
	if b.logged[cmd] {
		return
	}
	b.logged[cmd] = true
	b.log.Debug(msg, "cmd", cmd, "name", envName(cmd))
}

func (b *Bridge) setMessage(data uint32) bool {
	text, frames, err := decodeMessage(b.mem, data)
	if err != nil {
		b.log.Warn("unreadable core message", "err", err)
		return false
	}
	b.log.Info("core message", "text", text, "frames", frames)
	if b.opts.OnMessage != nil {
		b.opts.OnMessage(text, frames)
	}
	return true
}

// setPixelFormat validates and records the framebuffer encoding. It takes
// effect when the next video refresh is interpreted.
func (b *Bridge) setPixelFormat(data uint32) bool {
	v, ok := b.mem.ReadUint32(data)
	if !ok {
		return false
	}
	f := pixel.Format(v)
	if !pixel.Supported(f) {
		b.log.Warn("core requested unsupported pixel format", "format", v)
		return false
	}
	b.format = f
	b.log.Debug("pixel format set", "format", f)
	return true
}

// writeString interns s in guest memory and stores the pointer at out.
func (b *Bridge) writeString(ctx context.Context, out uint32, s string) bool {
	if s == "" {
		return false
	}
	ptr, err := b.strings.intern(ctx, b.core, b.mem, s)
	if err != nil {
		b.log.Warn("allocating reply string failed", "err", err)
		return false
	}
	return b.mem.WriteUint32(out, ptr)
}

func (b *Bridge) getVariable(ctx context.Context, data uint32) bool {
	keyPtr, _, err := decodeVariable(b.mem, data)
	if err != nil || keyPtr == 0 {
		return false
	}
	key, err := readCString(b.mem, keyPtr)
	if err != nil {
		b.log.Warn("unreadable variable key", "err", err)
		return false
	}
	value, ok := b.vars.get(key)
	if !ok {
		b.mem.WriteUint32(data+variableValue, 0)
		b.log.Debug("variable not declared", "key", key)
		return false
	}
	ptr, err := b.strings.intern(ctx, b.core, b.mem, value)
	if err != nil {
		b.log.Warn("allocating variable value failed", "key", key, "err", err)
		return false
	}
	return b.mem.WriteUint32(data+variableValue, ptr)
}

// setVariables installs the core's declared option table, terminated by a
// record with a null key.
func (b *Bridge) setVariables(data uint32) bool {
	if data == 0 {
		return true
	}
	count := 0
	for addr := data; ; addr += variableSize {
		keyPtr, valPtr, err := decodeVariable(b.mem, addr)
		if err != nil {
			b.log.Warn("unreadable variable table", "err", err)
			return false
		}
		if keyPtr == 0 {
			break
		}
		key, err := readCString(b.mem, keyPtr)
		if err != nil {
			b.log.Warn("unreadable variable key", "err", err)
			return false
		}
		if valPtr == 0 {
			continue
		}
		decl, err := readCString(b.mem, valPtr)
		if err != nil {
			b.log.Warn("unreadable variable declaration", "key", key, "err", err)
			return false
		}
		v, err := parseVariable(key, decl)
		if err != nil {
			b.log.Warn("skipping malformed variable", "key", key, "err", err)
			continue
		}
		b.vars.declare(v)
		count++
	}
	b.log.Debug("core declared variables", "count", count)
	return true
}

func (b *Bridge) setSystemAVInfo(data uint32) bool {
	av, err := decodeAVInfo(b.mem, data)
	if err != nil {
		b.log.Warn("unreadable av info", "err", err)
		return false
	}
	b.av = av
	b.audio.SetSampleRate(int(av.SampleRate))
	if b.opts.OnAVChange != nil {
		b.opts.OnAVChange(av)
	}
	b.log.Info("core replaced av info",
		"width", av.BaseWidth, "height", av.BaseHeight, "fps", av.FPS)
	return true
}

func (b *Bridge) setGeometry(data uint32) bool {
	av := b.av
	if err := decodeGeometry(b.mem, data, &av); err != nil {
		b.log.Warn("unreadable geometry", "err", err)
		return false
	}
	b.av = av
	if b.opts.OnAVChange != nil {
		b.opts.OnAVChange(av)
	}
	b.log.Debug("core updated geometry",
		"width", av.BaseWidth, "height", av.BaseHeight, "aspect", av.AspectRatio)
	return true
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
