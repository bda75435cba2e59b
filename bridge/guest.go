package bridge

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// guestMemory is the slice of core linear-memory access the bridge needs.
// wasmMemory adapts wazero's api.Memory to it; tests use an in-memory fake.
type guestMemory interface {
	Read(addr, n uint32) ([]byte, bool)
	Write(addr uint32, data []byte) bool
	ReadByte(addr uint32) (byte, bool)
	WriteByte(addr uint32, v byte) bool
	ReadUint32(addr uint32) (uint32, bool)
	WriteUint32(addr uint32, v uint32) bool
	WriteUint64(addr uint32, v uint64) bool
	ReadFloat32(addr uint32) (float32, bool)
	WriteFloat32(addr uint32, v float32) bool
	ReadFloat64(addr uint32) (float64, bool)
}

type wasmMemory struct{ m api.Memory }

var _ guestMemory = wasmMemory{}

func (w wasmMemory) Read(addr, n uint32) ([]byte, bool)        { return w.m.Read(addr, n) }
func (w wasmMemory) Write(addr uint32, data []byte) bool       { return w.m.Write(addr, data) }
func (w wasmMemory) ReadByte(addr uint32) (byte, bool)         { return w.m.ReadByte(addr) }
func (w wasmMemory) WriteByte(addr uint32, v byte) bool        { return w.m.WriteByte(addr, v) }
func (w wasmMemory) ReadUint32(addr uint32) (uint32, bool)     { return w.m.ReadUint32Le(addr) }
func (w wasmMemory) WriteUint32(addr uint32, v uint32) bool    { return w.m.WriteUint32Le(addr, v) }
func (w wasmMemory) WriteUint64(addr uint32, v uint64) bool    { return w.m.WriteUint64Le(addr, v) }
func (w wasmMemory) ReadFloat32(addr uint32) (float32, bool)   { return w.m.ReadFloat32Le(addr) }
func (w wasmMemory) WriteFloat32(addr uint32, v float32) bool  { return w.m.WriteFloat32Le(addr, v) }
func (w wasmMemory) ReadFloat64(addr uint32) (float64, bool)   { return w.m.ReadFloat64Le(addr) }

// maxCString bounds string reads so a missing terminator cannot walk the
// whole linear memory.
const maxCString = 4096

// readCString reads a NUL-terminated string from guest memory.
func readCString(mem guestMemory, addr uint32) (string, error) {
	if addr == 0 {
		return "", fmt.Errorf("nil string pointer")
	}
	buf := make([]byte, 0, 32)
	for i := addr; ; i++ {
		b, ok := mem.ReadByte(i)
		if !ok {
			return "", fmt.Errorf("string at %#x runs past linear memory", addr)
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
		if len(buf) > maxCString {
			return "", fmt.Errorf("string at %#x has no terminator within %d bytes", addr, maxCString)
		}
	}
}

// coreCalls is every core entry point the bridge invokes, including the
// guest heap. wazeroCore implements it over a live module; protocol tests
// substitute a fake so no wasm runtime is needed.
type coreCalls interface {
	APIVersion(ctx context.Context) (uint32, error)
	SetCallbacks(ctx context.Context) error
	Init(ctx context.Context) error
	Deinit(ctx context.Context) error
	GetSystemInfo(ctx context.Context, ptr uint32) error
	GetSystemAVInfo(ctx context.Context, ptr uint32) error
	LoadGame(ctx context.Context, infoPtr uint32) (bool, error)
	UnloadGame(ctx context.Context) error
	Run(ctx context.Context) error
	Reset(ctx context.Context) error
	SerializeSize(ctx context.Context) (uint32, error)
	Serialize(ctx context.Context, ptr, size uint32) (bool, error)
	Unserialize(ctx context.Context, ptr, size uint32) (bool, error)
	MemoryData(ctx context.Context, id uint32) (uint32, error)
	MemorySize(ctx context.Context, id uint32) (uint32, error)
	SetControllerPortDevice(ctx context.Context, port, device uint32) error
	Alloc(ctx context.Context, size uint32) (uint32, error)
	Free(ctx context.Context, ptr uint32) error
}

// requiredExports must all be present or the core is refused.
var requiredExports = []string{
	"retro_api_version",
	"retro_init",
	"retro_deinit",
	"retro_set_environment",
	"retro_set_video_refresh",
	"retro_set_audio_sample",
	"retro_set_audio_sample_batch",
	"retro_set_input_poll",
	"retro_set_input_state",
	"retro_get_system_info",
	"retro_get_system_av_info",
	"retro_load_game",
	"retro_unload_game",
	"retro_run",
	"retro_reset",
	"retro_serialize_size",
	"retro_serialize",
	"retro_unserialize",
	"retro_get_memory_data",
	"retro_get_memory_size",
	"retro_set_controller_port_device",
	"malloc",
	"free",
}

type wazeroCore struct {
	fns map[string]api.Function
}

var _ coreCalls = (*wazeroCore)(nil)

func newWazeroCore(mod api.Module) (*wazeroCore, error) {
	fns := make(map[string]api.Function, len(requiredExports))
	for _, name := range requiredExports {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingExport, name)
		}
		fns[name] = fn
	}
	return &wazeroCore{fns: fns}, nil
}

func (c *wazeroCore) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	res, err := c.fns[name].Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

func (c *wazeroCore) APIVersion(ctx context.Context) (uint32, error) {
	res, err := c.call(ctx, "retro_api_version")
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

// SetCallbacks hands the core the six glue-table slots in the order
// libretro requires: environment first, before retro_init.
func (c *wazeroCore) SetCallbacks(ctx context.Context) error {
	regs := []struct {
		name  string
		token uint64
	}{
		{"retro_set_environment", tokenEnvironment},
		{"retro_set_video_refresh", tokenVideoRefresh},
		{"retro_set_audio_sample", tokenAudioSample},
		{"retro_set_audio_sample_batch", tokenAudioSampleBatch},
		{"retro_set_input_poll", tokenInputPoll},
		{"retro_set_input_state", tokenInputState},
	}
	for _, reg := range regs {
		if _, err := c.call(ctx, reg.name, reg.token); err != nil {
			return err
		}
	}
	return nil
}

func (c *wazeroCore) Init(ctx context.Context) error {
	_, err := c.call(ctx, "retro_init")
	return err
}

func (c *wazeroCore) Deinit(ctx context.Context) error {
	_, err := c.call(ctx, "retro_deinit")
	return err
}

func (c *wazeroCore) GetSystemInfo(ctx context.Context, ptr uint32) error {
	_, err := c.call(ctx, "retro_get_system_info", uint64(ptr))
	return err
}

func (c *wazeroCore) GetSystemAVInfo(ctx context.Context, ptr uint32) error {
	_, err := c.call(ctx, "retro_get_system_av_info", uint64(ptr))
	return err
}

func (c *wazeroCore) LoadGame(ctx context.Context, infoPtr uint32) (bool, error) {
	res, err := c.call(ctx, "retro_load_game", uint64(infoPtr))
	if err != nil {
		return false, err
	}
	return uint32(res[0]) != 0, nil
}

func (c *wazeroCore) UnloadGame(ctx context.Context) error {
	_, err := c.call(ctx, "retro_unload_game")
	return err
}

func (c *wazeroCore) Run(ctx context.Context) error {
	_, err := c.call(ctx, "retro_run")
	return err
}

func (c *wazeroCore) Reset(ctx context.Context) error {
	_, err := c.call(ctx, "retro_reset")
	return err
}

func (c *wazeroCore) SerializeSize(ctx context.Context) (uint32, error) {
	res, err := c.call(ctx, "retro_serialize_size")
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (c *wazeroCore) Serialize(ctx context.Context, ptr, size uint32) (bool, error) {
	res, err := c.call(ctx, "retro_serialize", uint64(ptr), uint64(size))
	if err != nil {
		return false, err
	}
	return uint32(res[0]) != 0, nil
}

func (c *wazeroCore) Unserialize(ctx context.Context, ptr, size uint32) (bool, error) {
	res, err := c.call(ctx, "retro_unserialize", uint64(ptr), uint64(size))
	if err != nil {
		return false, err
	}
	return uint32(res[0]) != 0, nil
}

func (c *wazeroCore) MemoryData(ctx context.Context, id uint32) (uint32, error) {
	res, err := c.call(ctx, "retro_get_memory_data", uint64(id))
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (c *wazeroCore) MemorySize(ctx context.Context, id uint32) (uint32, error) {
	res, err := c.call(ctx, "retro_get_memory_size", uint64(id))
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (c *wazeroCore) SetControllerPortDevice(ctx context.Context, port, device uint32) error {
	_, err := c.call(ctx, "retro_set_controller_port_device", uint64(port), uint64(device))
	return err
}

func (c *wazeroCore) Alloc(ctx context.Context, size uint32) (uint32, error) {
	res, err := c.call(ctx, "malloc", uint64(size))
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (c *wazeroCore) Free(ctx context.Context, ptr uint32) error {
	_, err := c.call(ctx, "free", uint64(ptr))
	return err
}

// stringRegistry tracks guest strings allocated for environment replies.
// Cores may cache the returned pointers for the whole session, so nothing
// is freed individually; releaseAll runs once at shutdown.
type stringRegistry struct {
	ptrs  []uint32
	cache map[string]uint32
}

func newStringRegistry() *stringRegistry {
	return &stringRegistry{cache: make(map[string]uint32)}
}

// intern returns a guest pointer to a NUL-terminated copy of s,
// allocating at most once per distinct value.
func (r *stringRegistry) intern(ctx context.Context, core coreCalls, mem guestMemory, s string) (uint32, error) {
	if ptr, ok := r.cache[s]; ok {
		return ptr, nil
	}
	ptr, err := core.Alloc(ctx, uint32(len(s)+1))
	if err != nil {
		return 0, err
	}
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocator returned nil for %d bytes", len(s)+1)
	}
	if !mem.Write(ptr, append([]byte(s), 0)) {
		return 0, fmt.Errorf("writing %d bytes at %#x failed", len(s)+1, ptr)
	}
	r.ptrs = append(r.ptrs, ptr)
	r.cache[s] = ptr
	return ptr, nil
}

// releaseAll frees every tracked string, best effort; runtime teardown
// reclaims the heap regardless. The registry must not be used afterward.
func (r *stringRegistry) releaseAll(ctx context.Context, core coreCalls) {
	for _, ptr := range r.ptrs {
		_ = core.Free(ctx, ptr)
	}
	r.ptrs = nil
	r.cache = nil
}

func (r *stringRegistry) released() bool { return r.cache == nil }
