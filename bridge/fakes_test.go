package bridge

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/monteslu/retroemu/pixel"
)

// fakeMemory is a flat in-memory guest address space.
type fakeMemory struct {
	data []byte
}

var _ guestMemory = (*fakeMemory)(nil)

func newFakeMemory(size int) *fakeMemory {
	return &fakeMemory{data: make([]byte, size)}
}

func (m *fakeMemory) in(addr, n uint32) bool {
	return uint64(addr)+uint64(n) <= uint64(len(m.data))
}

func (m *fakeMemory) Read(addr, n uint32) ([]byte, bool) {
	if !m.in(addr, n) {
		return nil, false
	}
	return m.data[addr : addr+n], true
}

func (m *fakeMemory) Write(addr uint32, b []byte) bool {
	if !m.in(addr, uint32(len(b))) {
		return false
	}
	copy(m.data[addr:], b)
	return true
}

func (m *fakeMemory) ReadByte(addr uint32) (byte, bool) {
	if !m.in(addr, 1) {
		return 0, false
	}
	return m.data[addr], true
}

func (m *fakeMemory) WriteByte(addr uint32, v byte) bool {
	if !m.in(addr, 1) {
		return false
	}
	m.data[addr] = v
	return true
}

func (m *fakeMemory) ReadUint32(addr uint32) (uint32, bool) {
	if !m.in(addr, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.data[addr:]), true
}

func (m *fakeMemory) WriteUint32(addr uint32, v uint32) bool {
	if !m.in(addr, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.data[addr:], v)
	return true
}

func (m *fakeMemory) WriteUint64(addr uint32, v uint64) bool {
	if !m.in(addr, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.data[addr:], v)
	return true
}

func (m *fakeMemory) ReadFloat32(addr uint32) (float32, bool) {
	v, ok := m.ReadUint32(addr)
	return math.Float32frombits(v), ok
}

func (m *fakeMemory) WriteFloat32(addr uint32, v float32) bool {
	return m.WriteUint32(addr, math.Float32bits(v))
}

func (m *fakeMemory) ReadFloat64(addr uint32) (float64, bool) {
	if !m.in(addr, 8) {
		return 0, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(m.data[addr:])), true
}

// putCString writes a NUL-terminated string for test setup.
func (m *fakeMemory) putCString(addr uint32, s string) {
	copy(m.data[addr:], s)
	m.data[addr+uint32(len(s))] = 0
}

// fakeCore scripts the core side of the protocol and records the calls
// the bridge makes, in order.
type fakeCore struct {
	mem   *fakeMemory
	next  uint32
	calls []string

	apiVersion uint32
	loadOK     bool
	gotGame    struct {
		infoPtr  uint32
		pathPtr  uint32
		dataPtr  uint32
		size     uint32
		metaPtr  uint32
	}

	sysName, sysVersion, sysExt string
	av                          AVInfo

	serializeOK bool
	stateData   []byte
	restored    []byte

	// regions maps kind to {ptr, size}.
	regions map[uint32][2]uint32

	runFn  func()
	runErr error
}

var _ coreCalls = (*fakeCore)(nil)

func newFakeCore(mem *fakeMemory) *fakeCore {
	return &fakeCore{
		mem:        mem,
		next:       0x1000,
		apiVersion: 1,
		loadOK:     true,
		sysName:    "testcore",
		sysVersion: "1.0",
		sysExt:     "bin|rom",
		av: AVInfo{
			BaseWidth: 256, BaseHeight: 224,
			MaxWidth: 512, MaxHeight: 448,
			AspectRatio: 1.333, FPS: 60.0, SampleRate: 48000,
		},
		serializeOK: true,
		stateData:   []byte{0xde, 0xad, 0xbe, 0xef},
		regions:     make(map[uint32][2]uint32),
	}
}

func (c *fakeCore) record(name string) { c.calls = append(c.calls, name) }

// indexOf returns the position of the first occurrence of name at or
// after from, or -1.
func (c *fakeCore) indexOf(name string, from int) int {
	for i := from; i < len(c.calls); i++ {
		if c.calls[i] == name {
			return i
		}
	}
	return -1
}

func (c *fakeCore) Alloc(_ context.Context, size uint32) (uint32, error) {
	c.record("malloc")
	ptr := c.next
	c.next += (size + 7) &^ 7
	if !c.mem.in(ptr, size) {
		return 0, fmt.Errorf("fake heap exhausted")
	}
	return ptr, nil
}

func (c *fakeCore) Free(_ context.Context, _ uint32) error {
	c.record("free")
	return nil
}

func (c *fakeCore) APIVersion(_ context.Context) (uint32, error) {
	c.record("retro_api_version")
	return c.apiVersion, nil
}

func (c *fakeCore) SetCallbacks(_ context.Context) error {
	c.record("set_callbacks")
	return nil
}

func (c *fakeCore) Init(_ context.Context) error {
	c.record("retro_init")
	return nil
}

func (c *fakeCore) Deinit(_ context.Context) error {
	c.record("retro_deinit")
	return nil
}

func (c *fakeCore) GetSystemInfo(ctx context.Context, ptr uint32) error {
	c.record("retro_get_system_info")
	strs := c.next
	c.next += 256
	write := func(off uint32, s string) uint32 {
		c.mem.putCString(strs+off, s)
		return strs + off
	}
	c.mem.WriteUint32(ptr+systemInfoName, write(0, c.sysName))
	c.mem.WriteUint32(ptr+systemInfoVersion, write(64, c.sysVersion))
	c.mem.WriteUint32(ptr+systemInfoExtensions, write(128, c.sysExt))
	c.mem.WriteByte(ptr+systemInfoNeedFullpath, 0)
	c.mem.WriteByte(ptr+systemInfoBlockExtract, 0)
	return nil
}

func (c *fakeCore) GetSystemAVInfo(_ context.Context, ptr uint32) error {
	c.record("retro_get_system_av_info")
	c.mem.WriteUint32(ptr+avInfoBaseWidth, c.av.BaseWidth)
	c.mem.WriteUint32(ptr+avInfoBaseHeight, c.av.BaseHeight)
	c.mem.WriteUint32(ptr+avInfoMaxWidth, c.av.MaxWidth)
	c.mem.WriteUint32(ptr+avInfoMaxHeight, c.av.MaxHeight)
	c.mem.WriteFloat32(ptr+avInfoAspect, c.av.AspectRatio)
	binary.LittleEndian.PutUint64(c.mem.data[ptr+avInfoFPS:], math.Float64bits(c.av.FPS))
	binary.LittleEndian.PutUint64(c.mem.data[ptr+avInfoSampleRate:], math.Float64bits(c.av.SampleRate))
	return nil
}

func (c *fakeCore) LoadGame(_ context.Context, infoPtr uint32) (bool, error) {
	c.record("retro_load_game")
	c.gotGame.infoPtr = infoPtr
	if infoPtr != 0 {
		c.gotGame.pathPtr, _ = c.mem.ReadUint32(infoPtr + gameInfoPath)
		c.gotGame.dataPtr, _ = c.mem.ReadUint32(infoPtr + gameInfoData)
		c.gotGame.size, _ = c.mem.ReadUint32(infoPtr + gameInfoLen)
		c.gotGame.metaPtr, _ = c.mem.ReadUint32(infoPtr + gameInfoMeta)
	}
	return c.loadOK, nil
}

func (c *fakeCore) UnloadGame(_ context.Context) error {
	c.record("retro_unload_game")
	return nil
}

func (c *fakeCore) Run(_ context.Context) error {
	c.record("retro_run")
	if c.runFn != nil {
		c.runFn()
	}
	return c.runErr
}

func (c *fakeCore) Reset(_ context.Context) error {
	c.record("retro_reset")
	return nil
}

func (c *fakeCore) SerializeSize(_ context.Context) (uint32, error) {
	c.record("retro_serialize_size")
	return uint32(len(c.stateData)), nil
}

func (c *fakeCore) Serialize(_ context.Context, ptr, size uint32) (bool, error) {
	c.record("retro_serialize")
	if !c.serializeOK {
		return false, nil
	}
	if int(size) != len(c.stateData) {
		return false, nil
	}
	c.mem.Write(ptr, c.stateData)
	return true, nil
}

func (c *fakeCore) Unserialize(_ context.Context, ptr, size uint32) (bool, error) {
	c.record("retro_unserialize")
	if !c.serializeOK {
		return false, nil
	}
	data, ok := c.mem.Read(ptr, size)
	if !ok {
		return false, nil
	}
	c.restored = append([]byte(nil), data...)
	return true, nil
}

func (c *fakeCore) MemoryData(_ context.Context, kind uint32) (uint32, error) {
	c.record("retro_get_memory_data")
	return c.regions[kind][0], nil
}

func (c *fakeCore) MemorySize(_ context.Context, kind uint32) (uint32, error) {
	c.record("retro_get_memory_size")
	return c.regions[kind][1], nil
}

func (c *fakeCore) SetControllerPortDevice(_ context.Context, _, _ uint32) error {
	c.record("retro_set_controller_port_device")
	return nil
}

// recordingAudio captures QueueSamples calls.
type recordingAudio struct {
	rate    int
	samples []int16
}

func (a *recordingAudio) SetSampleRate(hz int) { a.rate = hz }
func (a *recordingAudio) QueueSamples(s []int16) {
	a.samples = append(a.samples, s...)
}

// recordingVideo captures frames; take controls ownership transfer.
type recordingVideo struct {
	frames int
	lastW  int
	lastH  int
	last   []byte
	take   bool
}

func (v *recordingVideo) OnFrame(buf []byte, w, h int) bool {
	v.frames++
	v.lastW, v.lastH = w, h
	v.last = buf
	return v.take
}

func newTestBridge(t *testing.T) (*Bridge, *fakeCore, *fakeMemory) {
	t.Helper()
	mem := newFakeMemory(1 << 20)
	core := newFakeCore(mem)
	b := &Bridge{
		log: log.New(io.Discard),
		opts: Options{
			CorePath:  "/cores/test.wasm",
			SystemDir: "/system",
			SaveDir:   "/saves",
			AssetsDir: "/assets",
			Username:  "player",
		},
		format:  pixel.Format0RGB1555,
		vars:    newVariableTable(),
		strings: newStringRegistry(),
		logged:  make(map[uint32]bool),
		video:   nopVideo{},
		audio:   nopAudio{},
		input:   nopInput{},
		core:    core,
		mem:     mem,
	}
	return b, core, mem
}
