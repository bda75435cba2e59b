package bridge

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

var i32 = api.ValueTypeI32

// registerHostModule exports the six callbacks the glue shim imports
// under module "env". Must run before the core module is instantiated.
func (b *Bridge) registerHostModule(ctx context.Context) error {
	builder := b.runtime.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostEnvironment),
			[]api.ValueType{i32, i32}, []api.ValueType{i32}).
		Export(importEnvironment)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostVideoRefresh),
			[]api.ValueType{i32, i32, i32, i32}, nil).
		Export(importVideoRefresh)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostAudioSample),
			[]api.ValueType{i32, i32}, nil).
		Export(importAudioSample)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostAudioSampleBatch),
			[]api.ValueType{i32, i32}, []api.ValueType{i32}).
		Export(importAudioSampleBatch)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostInputPoll),
			nil, nil).
		Export(importInputPoll)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostInputState),
			[]api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}).
		Export(importInputState)

	_, err := builder.Instantiate(ctx)
	return err
}

// guard stops a panic at the callback boundary so it cannot unwind into
// the core's call stack. onFault installs the safe default return.
func (b *Bridge) guard(name string, onFault func()) {
	if r := recover(); r != nil {
		b.log.Error("callback fault", "callback", name, "panic", r)
		if onFault != nil {
			onFault()
		}
	}
}

func (b *Bridge) hostEnvironment(ctx context.Context, _ api.Module, stack []uint64) {
	defer b.guard("environment", func() { stack[0] = 0 })
	cmd := api.DecodeU32(stack[0])
	data := api.DecodeU32(stack[1])
	if b.environment(ctx, cmd, data) {
		stack[0] = 1
	} else {
		stack[0] = 0
	}
}

func (b *Bridge) hostVideoRefresh(_ context.Context, _ api.Module, stack []uint64) {
	defer b.guard("video_refresh", nil)
	b.videoRefresh(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
		api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
}

// videoRefresh converts the core's framebuffer and forwards it. A null
// data pointer means "duplicate the previous frame": the sinks keep
// showing what they have, so nothing is forwarded.
func (b *Bridge) videoRefresh(data, width, height, pitch uint32) {
	if data == 0 || width == 0 || height == 0 {
		return
	}
	bpp := uint32(b.format.BytesPerPixel())
	n := pitch*(height-1) + width*bpp
	src, ok := b.mem.Read(data, n)
	if !ok {
		b.log.Warn("frame outside linear memory", "addr", data, "bytes", n)
		return
	}
	buf, err := b.conv.Convert(b.format, src, int(width), int(height), int(pitch))
	if err != nil {
		b.log.Warn("frame conversion failed", "err", err)
		return
	}
	if b.video.OnFrame(buf, int(width), int(height)) {
		b.conv.Detach()
	}
}

func (b *Bridge) hostAudioSample(_ context.Context, _ api.Module, stack []uint64) {
	defer b.guard("audio_sample", nil)
	b.samplePair[0] = int16(api.DecodeI32(stack[0]))
	b.samplePair[1] = int16(api.DecodeI32(stack[1]))
	b.audio.QueueSamples(b.samplePair[:])
}

func (b *Bridge) hostAudioSampleBatch(_ context.Context, _ api.Module, stack []uint64) {
	defer b.guard("audio_sample_batch", func() { stack[0] = 0 })
	stack[0] = uint64(b.audioBatch(api.DecodeU32(stack[0]), api.DecodeU32(stack[1])))
}

// audioBatch decodes frames interleaved stereo s16le samples and queues
// them, returning the frame count consumed.
func (b *Bridge) audioBatch(data, frames uint32) uint32 {
	if data == 0 || frames == 0 {
		return 0
	}
	raw, ok := b.mem.Read(data, frames*4)
	if !ok {
		b.log.Warn("audio batch outside linear memory", "addr", data, "frames", frames)
		return 0
	}
	n := int(frames) * 2
	if cap(b.audioBuf) < n {
		b.audioBuf = make([]int16, n)
	}
	b.audioBuf = b.audioBuf[:n]
	for i := 0; i < n; i++ {
		b.audioBuf[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
	b.audio.QueueSamples(b.audioBuf)
	return frames
}

func (b *Bridge) hostInputPoll(_ context.Context, _ api.Module, _ []uint64) {
	defer b.guard("input_poll", nil)
	b.input.Poll()
}

func (b *Bridge) hostInputState(_ context.Context, _ api.Module, stack []uint64) {
	defer b.guard("input_state", func() { stack[0] = 0 })
	v := b.input.State(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
		api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
	stack[0] = api.EncodeI32(int32(v))
}
