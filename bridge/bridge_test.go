package bridge

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/tetratelabs/wazero/api"
)

func TestInitCoreRejectsWrongVersion(t *testing.T) {
	b, core, _ := newTestBridge(t)
	core.apiVersion = 2
	err := b.initCore(context.Background())
	if !errors.Is(err, ErrAPIVersion) {
		t.Fatalf("expected ErrAPIVersion, got %v", err)
	}
}

func TestInitCoreSequence(t *testing.T) {
	b, core, _ := newTestBridge(t)
	if err := b.initCore(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if b.State() != StateInitialized {
		t.Fatalf("expected initialized, got %s", b.State())
	}
	if b.sysInfo.Name != "testcore" || b.sysInfo.Version != "1.0" || b.sysInfo.Extensions != "bin|rom" {
		t.Fatalf("unexpected system info %+v", b.sysInfo)
	}

	// Callbacks must be registered before retro_init.
	version := core.indexOf("retro_api_version", 0)
	callbacks := core.indexOf("set_callbacks", 0)
	init := core.indexOf("retro_init", 0)
	info := core.indexOf("retro_get_system_info", 0)
	if version == -1 || callbacks == -1 || init == -1 || info == -1 {
		t.Fatalf("missing calls: %v", core.calls)
	}
	if !(version < callbacks && callbacks < init && init < info) {
		t.Fatalf("wrong bring-up order: %v", core.calls)
	}
}

func loadTestGame(t *testing.T, b *Bridge, rom []byte, path string) {
	t.Helper()
	ctx := context.Background()
	if err := b.initCore(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := b.LoadGame(ctx, rom, path, ""); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoadGame(t *testing.T) {
	b, core, mem := newTestBridge(t)
	audio := &recordingAudio{}
	b.audio = audio
	var notified AVInfo
	b.opts.OnAVChange = func(av AVInfo) { notified = av }

	rom := []byte{0x4e, 0x45, 0x53, 0x1a, 0x01}
	loadTestGame(t, b, rom, "/roms/game.bin")

	if b.State() != StateGameLoaded {
		t.Fatalf("expected game loaded, got %s", b.State())
	}
	if core.gotGame.infoPtr == 0 {
		t.Fatal("expected a game info record")
	}
	if core.gotGame.size != uint32(len(rom)) {
		t.Fatalf("expected size %d, got %d", len(rom), core.gotGame.size)
	}
	data, ok := mem.Read(core.gotGame.dataPtr, core.gotGame.size)
	if !ok || !bytes.Equal(data, rom) {
		t.Fatalf("rom bytes not in guest memory: %v", data)
	}
	path, err := readCString(mem, core.gotGame.pathPtr)
	if err != nil || path != "/roms/game.bin" {
		t.Fatalf("expected game path, got %q (%v)", path, err)
	}
	if core.gotGame.metaPtr != 0 {
		t.Fatal("expected null meta pointer")
	}

	if b.av.BaseWidth != 256 || b.av.FPS != 60 {
		t.Fatalf("av info not read: %+v", b.av)
	}
	if audio.rate != 48000 {
		t.Fatalf("expected audio tuned to 48000, got %d", audio.rate)
	}
	if notified.BaseWidth != 256 {
		t.Fatalf("av change not announced: %+v", notified)
	}
	if core.indexOf("retro_set_controller_port_device", 0) == -1 {
		t.Fatal("port 0 joypad not configured")
	}
}

func TestLoadGameWithoutContent(t *testing.T) {
	b, core, _ := newTestBridge(t)
	loadTestGame(t, b, nil, "")
	if core.gotGame.infoPtr != 0 {
		t.Fatalf("expected null info pointer, got %#x", core.gotGame.infoPtr)
	}
	if b.State() != StateGameLoaded {
		t.Fatalf("expected game loaded, got %s", b.State())
	}
}

func TestLoadGameRejected(t *testing.T) {
	b, core, _ := newTestBridge(t)
	ctx := context.Background()
	core.loadOK = false
	if err := b.initCore(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	err := b.LoadGame(ctx, []byte{1}, "/roms/bad.bin", "")
	if !errors.Is(err, ErrGameRejected) {
		t.Fatalf("expected ErrGameRejected, got %v", err)
	}
	if b.State() != StateFailed {
		t.Fatalf("expected failed, got %s", b.State())
	}
}

func TestLoadGameBadState(t *testing.T) {
	b, _, _ := newTestBridge(t)
	err := b.LoadGame(context.Background(), []byte{1}, "x", "")
	if !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState before init, got %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	b, core, _ := newTestBridge(t)
	ctx := context.Background()

	if err := b.Start(); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected start refusal before load, got %v", err)
	}
	loadTestGame(t, b, []byte{1}, "/roms/game.bin")

	if err := b.StepFrame(ctx); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning before start, got %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := b.StepFrame(ctx); err != nil {
		t.Fatalf("step: %v", err)
	}
	if core.indexOf("retro_run", 0) == -1 {
		t.Fatal("retro_run not invoked")
	}

	b.Stop()
	if err := b.StepFrame(ctx); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("resume from stopped: %v", err)
	}
}

func TestStepFrameCoreFailure(t *testing.T) {
	b, core, _ := newTestBridge(t)
	ctx := context.Background()
	loadTestGame(t, b, []byte{1}, "/roms/game.bin")
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	core.runErr = fmt.Errorf("guest trapped")
	if err := b.StepFrame(ctx); err == nil {
		t.Fatal("expected step failure")
	}
	if b.State() != StateFailed {
		t.Fatalf("expected failed, got %s", b.State())
	}
}

func TestReset(t *testing.T) {
	b, core, _ := newTestBridge(t)
	ctx := context.Background()
	if err := b.initCore(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := b.Reset(ctx); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected reset refusal without game, got %v", err)
	}
	if err := b.LoadGame(ctx, []byte{1}, "/roms/game.bin", ""); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := b.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if core.indexOf("retro_reset", 0) == -1 {
		t.Fatal("retro_reset not invoked")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	b, core, _ := newTestBridge(t)
	ctx := context.Background()
	loadTestGame(t, b, []byte{1}, "/roms/game.bin")

	size, err := b.SerializeSize(ctx)
	if err != nil || size != len(core.stateData) {
		t.Fatalf("expected size %d, got %d (%v)", len(core.stateData), size, err)
	}
	state, err := b.Serialize(ctx)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !bytes.Equal(state, core.stateData) {
		t.Fatalf("expected %x, got %x", core.stateData, state)
	}
	if err := b.Unserialize(ctx, state); err != nil {
		t.Fatalf("unserialize: %v", err)
	}
	if !bytes.Equal(core.restored, state) {
		t.Fatalf("core restored %x, want %x", core.restored, state)
	}
}

func TestSerializeRefused(t *testing.T) {
	b, core, _ := newTestBridge(t)
	ctx := context.Background()
	loadTestGame(t, b, []byte{1}, "/roms/game.bin")
	core.serializeOK = false
	if _, err := b.Serialize(ctx); !errors.Is(err, ErrSerializeFailed) {
		t.Fatalf("expected ErrSerializeFailed, got %v", err)
	}
	if err := b.Unserialize(ctx, []byte{1, 2}); !errors.Is(err, ErrSerializeFailed) {
		t.Fatalf("expected ErrSerializeFailed, got %v", err)
	}
}

func TestSerializeZeroSize(t *testing.T) {
	b, core, _ := newTestBridge(t)
	ctx := context.Background()
	loadTestGame(t, b, []byte{1}, "/roms/game.bin")
	core.stateData = nil
	if _, err := b.Serialize(ctx); !errors.Is(err, ErrSerializeFailed) {
		t.Fatalf("expected ErrSerializeFailed for zero size, got %v", err)
	}
}

func TestMemoryRegion(t *testing.T) {
	b, core, mem := newTestBridge(t)
	ctx := context.Background()
	core.regions[MemorySaveRAM] = [2]uint32{0x5000, 4}
	loadTestGame(t, b, []byte{1}, "/roms/game.bin")
	mem.Write(0x5000, []byte{9, 8, 7, 6})

	region, err := b.MemoryRegion(ctx, MemorySaveRAM)
	if err != nil {
		t.Fatalf("region: %v", err)
	}
	if region.Size() != 4 {
		t.Fatalf("expected size 4, got %d", region.Size())
	}
	data, err := region.Bytes()
	if err != nil || !bytes.Equal(data, []byte{9, 8, 7, 6}) {
		t.Fatalf("expected snapshot, got %v (%v)", data, err)
	}
	// Bytes is a copy, not a view.
	mem.data[0x5000] = 0
	if data[0] != 9 {
		t.Fatal("snapshot aliases guest memory")
	}

	if err := region.Load([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if err := region.Load([]byte{4, 3, 2, 1}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, _ := mem.Read(0x5000, 4); !bytes.Equal(got, []byte{4, 3, 2, 1}) {
		t.Fatalf("region not written: %v", got)
	}

	if _, err := b.MemoryRegion(ctx, MemoryRTC); !errors.Is(err, ErrNoRegion) {
		t.Fatalf("expected ErrNoRegion, got %v", err)
	}
}

func TestShutdownOrderAndLockout(t *testing.T) {
	b, core, _ := newTestBridge(t)
	ctx := context.Background()
	loadTestGame(t, b, []byte{1, 2, 3}, "/roms/game.bin")
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := b.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if b.State() != StateShutDown {
		t.Fatalf("expected shut down, got %s", b.State())
	}

	unload := core.indexOf("retro_unload_game", 0)
	deinit := core.indexOf("retro_deinit", 0)
	if unload == -1 || deinit == -1 || unload > deinit {
		t.Fatalf("teardown out of order: %v", core.calls)
	}
	// The ROM copy is freed between unload and deinit.
	romFree := core.indexOf("free", unload)
	if romFree == -1 || romFree > deinit {
		t.Fatalf("rom copy not freed in order: %v", core.calls)
	}
	if !b.strings.released() {
		t.Fatal("string registry not released")
	}

	// Persistence is locked out once teardown has begun.
	if _, err := b.Serialize(ctx); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected serialize lockout, got %v", err)
	}
	if _, err := b.MemoryRegion(ctx, MemorySaveRAM); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected region lockout, got %v", err)
	}

	// Shutdown is idempotent.
	if err := b.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if core.indexOf("retro_deinit", deinit+1) != -1 {
		t.Fatal("retro_deinit ran twice")
	}
}

func TestShutdownWithoutGame(t *testing.T) {
	b, core, _ := newTestBridge(t)
	ctx := context.Background()
	if err := b.initCore(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := b.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if core.indexOf("retro_unload_game", 0) != -1 {
		t.Fatal("unload must not run without a game")
	}
	if core.indexOf("retro_deinit", 0) == -1 {
		t.Fatal("deinit missing")
	}
}

func TestVideoRefreshForwardsFrame(t *testing.T) {
	b, _, mem := newTestBridge(t)
	video := &recordingVideo{}
	b.video = video

	// 2x2 white frame, 0RGB1555, pitch == row bytes.
	const addr = 0x2000
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint16(mem.data[addr+2*i:], 0x7fff)
	}
	b.videoRefresh(addr, 2, 2, 4)

	if video.frames != 1 || video.lastW != 2 || video.lastH != 2 {
		t.Fatalf("frame not forwarded: %+v", video)
	}
	if len(video.last) != 2*2*4 {
		t.Fatalf("expected 16 RGBA bytes, got %d", len(video.last))
	}
	for i, v := range video.last {
		if v != 0xff {
			t.Fatalf("expected white, byte %d is %#x", i, v)
		}
	}
}

func TestVideoRefreshDuplicateFrame(t *testing.T) {
	b, _, _ := newTestBridge(t)
	video := &recordingVideo{}
	b.video = video
	b.videoRefresh(0, 2, 2, 4)
	if video.frames != 0 {
		t.Fatal("null data must not reach the sink")
	}
}

func TestVideoRefreshOwnershipTransfer(t *testing.T) {
	b, _, mem := newTestBridge(t)
	video := &recordingVideo{take: true}
	b.video = video

	const addr = 0x2000
	binary.LittleEndian.PutUint16(mem.data[addr:], 0x7fff)
	b.videoRefresh(addr, 1, 1, 2)
	first := video.last
	b.videoRefresh(addr, 1, 1, 2)
	second := video.last
	if &first[0] == &second[0] {
		t.Fatal("taken buffer was reused")
	}

	video.take = false
	b.videoRefresh(addr, 1, 1, 2)
	third := video.last
	b.videoRefresh(addr, 1, 1, 2)
	fourth := video.last
	if &third[0] != &fourth[0] {
		t.Fatal("declined buffer was not reused")
	}
}

func TestHostAudioSamplePair(t *testing.T) {
	b, _, _ := newTestBridge(t)
	audio := &recordingAudio{}
	b.audio = audio

	stack := []uint64{api.EncodeI32(-100), api.EncodeI32(200)}
	b.hostAudioSample(context.Background(), nil, stack)

	if len(audio.samples) != 2 || audio.samples[0] != -100 || audio.samples[1] != 200 {
		t.Fatalf("unexpected samples %v", audio.samples)
	}
}

func TestAudioBatch(t *testing.T) {
	b, _, mem := newTestBridge(t)
	audio := &recordingAudio{}
	b.audio = audio

	const addr = 0x3000
	want := []int16{1000, -1000, 2000, -2000, 3000, -3000}
	for i, s := range want {
		binary.LittleEndian.PutUint16(mem.data[addr+2*i:], uint16(s))
	}

	if n := b.audioBatch(addr, 3); n != 3 {
		t.Fatalf("expected 3 frames consumed, got %d", n)
	}
	if len(audio.samples) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(audio.samples))
	}
	for i, s := range want {
		if audio.samples[i] != s {
			t.Fatalf("sample %d: expected %d, got %d", i, s, audio.samples[i])
		}
	}
	if b.audioBatch(0, 3) != 0 {
		t.Fatal("null batch must consume nothing")
	}
}

type panicVideo struct{}

func (panicVideo) OnFrame([]byte, int, int) bool { panic("sink exploded") }

type panicInput struct{}

func (panicInput) Poll()                         {}
func (panicInput) State(_, _, _, _ uint32) int16 { panic("input exploded") }

type scriptedInput struct{ v int16 }

func (s scriptedInput) Poll()                         {}
func (s scriptedInput) State(_, _, _, _ uint32) int16 { return s.v }

func TestCallbackGuardVideo(t *testing.T) {
	b, _, mem := newTestBridge(t)
	b.video = panicVideo{}

	const addr = 0x2000
	binary.LittleEndian.PutUint16(mem.data[addr:], 0x7fff)
	stack := []uint64{addr, 1, 1, 2}
	// Must not unwind into the caller.
	b.hostVideoRefresh(context.Background(), nil, stack)
}

func TestCallbackGuardInputState(t *testing.T) {
	b, _, _ := newTestBridge(t)
	b.input = panicInput{}
	stack := []uint64{0, deviceJoypad, 0, 0}
	b.hostInputState(context.Background(), nil, stack)
	if stack[0] != 0 {
		t.Fatalf("fault must report released input, got %d", stack[0])
	}
}

func TestHostInputState(t *testing.T) {
	b, _, _ := newTestBridge(t)
	b.input = scriptedInput{v: 3}
	stack := []uint64{1, deviceJoypad, 0, joypadIDMask}
	b.hostInputState(context.Background(), nil, stack)
	if api.DecodeI32(stack[0]) != 3 {
		t.Fatalf("expected 3, got %d", api.DecodeI32(stack[0]))
	}
}

func TestHostEnvironment(t *testing.T) {
	b, _, mem := newTestBridge(t)
	stack := []uint64{envGetCanDupe, 0x100}
	b.hostEnvironment(context.Background(), nil, stack)
	if stack[0] != 1 {
		t.Fatal("expected environment success")
	}
	if mem.data[0x100] != 1 {
		t.Fatal("dupe flag not written")
	}
}
