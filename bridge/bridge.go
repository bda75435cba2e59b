package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/monteslu/retroemu/pixel"
)

// State is the bridge lifecycle position.
type State int32

const (
	StateUnloaded State = iota
	StateInitialized
	StateGameLoaded
	StateRunning
	StateStopped
	StateShutDown
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateInitialized:
		return "initialized"
	case StateGameLoaded:
		return "game loaded"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateShutDown:
		return "shut down"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Options configures a Bridge.
type Options struct {
	// CorePath is the wasm core module on disk.
	CorePath string

	// SystemDir, SaveDir, and AssetsDir are served to the core on
	// request. The caller creates them.
	SystemDir string
	SaveDir   string
	AssetsDir string

	// Username answers GET_USERNAME; empty refuses the query.
	Username string

	// RomDir, when set, is mounted read-only into the guest so cores
	// that want full paths can open content themselves.
	RomDir string

	Logger *log.Logger
	Video  VideoSink
	Audio  AudioSink
	Input  InputSource

	// OnMessage receives SET_MESSAGE texts; frames is the display
	// duration the core asked for. Optional.
	OnMessage func(text string, frames uint32)

	// OnAVChange fires after game load and whenever the core replaces
	// its AV info or geometry mid-session. Optional.
	OnAVChange func(av AVInfo)
}

// Bridge drives one loaded core. All methods must be called from the
// stepping goroutine, except State and SetTurbo which are safe anywhere.
type Bridge struct {
	log  *log.Logger
	opts Options

	runtime wazero.Runtime
	core    coreCalls
	mem     guestMemory

	state atomic.Int32
	turbo atomic.Bool

	sysInfo SystemInfo
	av      AVInfo
	format  pixel.Format
	conv    pixel.Converter

	vars    *variableTable
	strings *stringRegistry
	logged  map[uint32]bool

	video VideoSink
	audio AudioSink
	input InputSource

	supportsNoGame bool
	gamePtr        uint32

	audioBuf   []int16
	samplePair [2]int16
}

// New loads, verifies, and initializes a core. On success the bridge is
// in StateInitialized with all six callbacks registered and retro_init
// already run.
func New(ctx context.Context, opts Options) (*Bridge, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	wasmBytes, err := os.ReadFile(opts.CorePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCoreNotFound, opts.CorePath)
	}

	b := &Bridge{
		log:  logger,
		opts: opts,
		// Protocol default until the core sends SET_PIXEL_FORMAT.
		format:  pixel.Format0RGB1555,
		vars:    newVariableTable(),
		strings: newStringRegistry(),
		logged:  make(map[uint32]bool),
		video:   opts.Video,
		audio:   opts.Audio,
		input:   opts.Input,
	}
	if b.video == nil {
		b.video = nopVideo{}
	}
	if b.audio == nil {
		b.audio = nopAudio{}
	}
	if b.input == nil {
		b.input = nopInput{}
	}

	b.runtime = wazero.NewRuntime(ctx)
	ok := false
	defer func() {
		if !ok {
			_ = b.runtime.Close(ctx)
		}
	}()

	wasi_snapshot_preview1.MustInstantiate(ctx, b.runtime)
	if err := b.registerHostModule(ctx); err != nil {
		return nil, fmt.Errorf("host callbacks: %w", err)
	}

	compiled, err := b.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", filepath.Base(opts.CorePath), err)
	}

	cfg := wazero.NewModuleConfig().
		WithName("core").
		WithStartFunctions(). // reactor: _initialize is called explicitly
		WithStderr(os.Stderr)
	if opts.RomDir != "" {
		cfg = cfg.WithFSConfig(
			wazero.NewFSConfig().WithReadOnlyDirMount(opts.RomDir, opts.RomDir))
	}

	mod, err := b.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiating core: %w", err)
	}
	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			return nil, fmt.Errorf("core _initialize: %w", err)
		}
	}
	if mod.Memory() == nil {
		return nil, fmt.Errorf("%w: memory", ErrMissingExport)
	}

	core, err := newWazeroCore(mod)
	if err != nil {
		return nil, err
	}
	b.core = core
	b.mem = wasmMemory{mod.Memory()}

	if err := b.initCore(ctx); err != nil {
		return nil, err
	}
	ok = true
	return b, nil
}

// initCore verifies the protocol version, registers callbacks, brings the
// core up, and reads its self-description. Split from New so protocol
// tests can drive it against a fake core.
func (b *Bridge) initCore(ctx context.Context) error {
	v, err := b.core.APIVersion(ctx)
	if err != nil {
		return err
	}
	if v != apiVersion {
		return fmt.Errorf("%w: core declares %d, host speaks %d", ErrAPIVersion, v, apiVersion)
	}
	if err := b.core.SetCallbacks(ctx); err != nil {
		return err
	}
	if err := b.core.Init(ctx); err != nil {
		return err
	}
	info, err := b.readSystemInfo(ctx)
	if err != nil {
		return err
	}
	b.sysInfo = info
	b.setState(StateInitialized)
	b.log.Debug("core initialized",
		"name", info.Name, "version", info.Version, "extensions", info.Extensions)
	return nil
}

func (b *Bridge) readSystemInfo(ctx context.Context) (SystemInfo, error) {
	ptr, err := b.scratch(ctx, systemInfoSize)
	if err != nil {
		return SystemInfo{}, err
	}
	defer b.core.Free(ctx, ptr)
	if err := b.core.GetSystemInfo(ctx, ptr); err != nil {
		return SystemInfo{}, err
	}
	return decodeSystemInfo(b.mem, ptr)
}

// scratch allocates zeroed guest memory for a single foreign call.
func (b *Bridge) scratch(ctx context.Context, size uint32) (uint32, error) {
	ptr, err := b.core.Alloc(ctx, size)
	if err != nil {
		return 0, err
	}
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocator returned nil for %d bytes", size)
	}
	if !b.mem.Write(ptr, make([]byte, size)) {
		_ = b.core.Free(ctx, ptr)
		return 0, fmt.Errorf("zeroing %d bytes at %#x failed", size, ptr)
	}
	return ptr, nil
}

// LoadGame copies rom into the guest, invokes the core's load entry, and
// configures collaborators from the AV descriptor. Empty rom and path
// loads no content, for cores that declared SET_SUPPORT_NO_GAME.
func (b *Bridge) LoadGame(ctx context.Context, rom []byte, path, meta string) error {
	if b.State() != StateInitialized {
		return fmt.Errorf("%w: load in state %s", ErrBadState, b.State())
	}

	infoPtr := uint32(0)
	if len(rom) > 0 || path != "" {
		var pathPtr, dataPtr, metaPtr uint32
		var err error
		if path != "" {
			if pathPtr, err = b.strings.intern(ctx, b.core, b.mem, path); err != nil {
				return fmt.Errorf("interning game path: %w", err)
			}
		}
		if meta != "" {
			if metaPtr, err = b.strings.intern(ctx, b.core, b.mem, meta); err != nil {
				return fmt.Errorf("interning game meta: %w", err)
			}
		}
		if len(rom) > 0 {
			dataPtr, err = b.core.Alloc(ctx, uint32(len(rom)))
			if err != nil {
				return fmt.Errorf("allocating %d rom bytes: %w", len(rom), err)
			}
			if dataPtr == 0 || !b.mem.Write(dataPtr, rom) {
				return fmt.Errorf("copying rom into guest memory failed")
			}
			b.gamePtr = dataPtr
		}
		if infoPtr, err = b.scratch(ctx, gameInfoSize); err != nil {
			return err
		}
		if err = encodeGameInfo(b.mem, infoPtr, pathPtr, dataPtr, uint32(len(rom)), metaPtr); err != nil {
			return err
		}
	}

	loaded, err := b.core.LoadGame(ctx, infoPtr)
	if infoPtr != 0 {
		_ = b.core.Free(ctx, infoPtr)
	}
	if err != nil {
		b.setState(StateFailed)
		return err
	}
	if !loaded {
		b.setState(StateFailed)
		return fmt.Errorf("%w: %s", ErrGameRejected, filepath.Base(path))
	}

	av, err := b.readAVInfo(ctx)
	if err != nil {
		b.setState(StateFailed)
		return err
	}
	b.av = av
	b.audio.SetSampleRate(int(av.SampleRate))
	if b.opts.OnAVChange != nil {
		b.opts.OnAVChange(av)
	}
	if err := b.core.SetControllerPortDevice(ctx, 0, deviceJoypad); err != nil {
		b.setState(StateFailed)
		return err
	}
	b.setState(StateGameLoaded)
	b.log.Info("game loaded",
		"width", av.BaseWidth, "height", av.BaseHeight,
		"fps", av.FPS, "sample_rate", av.SampleRate)
	return nil
}

func (b *Bridge) readAVInfo(ctx context.Context) (AVInfo, error) {
	ptr, err := b.scratch(ctx, avInfoSize)
	if err != nil {
		return AVInfo{}, err
	}
	defer b.core.Free(ctx, ptr)
	if err := b.core.GetSystemAVInfo(ctx, ptr); err != nil {
		return AVInfo{}, err
	}
	return decodeAVInfo(b.mem, ptr)
}

// Start moves a loaded game into Running; the pacer then drives
// StepFrame. Start also resumes after Stop.
func (b *Bridge) Start() error {
	st := b.State()
	if st != StateGameLoaded && st != StateStopped {
		return fmt.Errorf("%w: start in state %s", ErrBadState, st)
	}
	b.setState(StateRunning)
	return nil
}

// Stop leaves Running without releasing anything. The core's SHUTDOWN
// environment command lands here too.
func (b *Bridge) Stop() {
	if b.State() == StateRunning {
		b.setState(StateStopped)
	}
}

// StepFrame advances the core one frame. It returns ErrNotRunning once
// the session has stopped, which the pacer treats as a clean exit.
func (b *Bridge) StepFrame(ctx context.Context) error {
	if b.State() != StateRunning {
		return ErrNotRunning
	}
	if err := b.core.Run(ctx); err != nil {
		b.setState(StateFailed)
		return fmt.Errorf("core run: %w", err)
	}
	return nil
}

// Reset restarts the loaded game. Lifecycle state is unchanged.
func (b *Bridge) Reset(ctx context.Context) error {
	switch b.State() {
	case StateGameLoaded, StateRunning, StateStopped:
		return b.core.Reset(ctx)
	}
	return fmt.Errorf("%w: reset in state %s", ErrBadState, b.State())
}

// State is safe to read from any goroutine.
func (b *Bridge) State() State { return State(b.state.Load()) }

func (b *Bridge) setState(s State) { b.state.Store(int32(s)) }

// AVInfo returns the current descriptor.
func (b *Bridge) AVInfo() AVInfo { return b.av }

// SystemInfo returns the core's self-description.
func (b *Bridge) SystemInfo() SystemInfo { return b.sysInfo }

// PixelFormat returns the active framebuffer encoding.
func (b *Bridge) PixelFormat() pixel.Format { return b.format }

// Variables lists core options in declaration order.
func (b *Bridge) Variables() []Variable { return b.vars.list() }

// SetVariable updates a core option. The core picks the change up through
// GET_VARIABLE_UPDATE.
func (b *Bridge) SetVariable(key, value string) error { return b.vars.set(key, value) }

// SupportsNoGame reports whether the core declared it runs without
// content.
func (b *Bridge) SupportsNoGame() bool { return b.supportsNoGame }

// SetTurbo flags fast-forward for GET_FASTFORWARDING queries.
func (b *Bridge) SetTurbo(on bool) { b.turbo.Store(on) }

// Region is a window into one core memory region.
type Region struct {
	b    *Bridge
	ptr  uint32
	size uint32
}

// Size returns the region length in bytes.
func (r Region) Size() int { return int(r.size) }

// Bytes copies the region out of guest memory.
func (r Region) Bytes() ([]byte, error) {
	if err := r.b.regionState(); err != nil {
		return nil, err
	}
	data, ok := r.b.mem.Read(r.ptr, r.size)
	if !ok {
		return nil, fmt.Errorf("region read at %#x+%d failed", r.ptr, r.size)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Load copies data into the region. The length must match exactly.
func (r Region) Load(data []byte) error {
	if err := r.b.regionState(); err != nil {
		return err
	}
	if len(data) != int(r.size) {
		return fmt.Errorf("region is %d bytes, data is %d", r.size, len(data))
	}
	if !r.b.mem.Write(r.ptr, data) {
		return fmt.Errorf("region write at %#x+%d failed", r.ptr, len(data))
	}
	return nil
}

func (b *Bridge) regionState() error {
	switch b.State() {
	case StateGameLoaded, StateRunning, StateStopped:
		return nil
	}
	return fmt.Errorf("%w: region access in state %s", ErrBadState, b.State())
}

// MemoryRegion exposes one of the core's memory regions (MemorySaveRAM,
// MemoryRTC, MemorySystemRAM, MemoryVideoRAM) for the save manager.
// Returns ErrNoRegion when the core has none of that kind.
func (b *Bridge) MemoryRegion(ctx context.Context, kind uint32) (Region, error) {
	if err := b.regionState(); err != nil {
		return Region{}, err
	}
	ptr, err := b.core.MemoryData(ctx, kind)
	if err != nil {
		return Region{}, err
	}
	size, err := b.core.MemorySize(ctx, kind)
	if err != nil {
		return Region{}, err
	}
	if ptr == 0 || size == 0 {
		return Region{}, fmt.Errorf("%w: kind %d", ErrNoRegion, kind)
	}
	return Region{b: b, ptr: ptr, size: size}, nil
}

// SerializeSize reports the save-state buffer size the core wants, or 0
// when the core cannot serialize.
func (b *Bridge) SerializeSize(ctx context.Context) (int, error) {
	if err := b.regionState(); err != nil {
		return 0, err
	}
	size, err := b.core.SerializeSize(ctx)
	return int(size), err
}

// Serialize captures the core's full state.
func (b *Bridge) Serialize(ctx context.Context) ([]byte, error) {
	if err := b.regionState(); err != nil {
		return nil, err
	}
	size, err := b.core.SerializeSize(ctx)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: core reports zero state size", ErrSerializeFailed)
	}
	ptr, err := b.scratch(ctx, size)
	if err != nil {
		return nil, err
	}
	defer b.core.Free(ctx, ptr)
	ok, err := b.core.Serialize(ctx, ptr, size)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: serialize returned false", ErrSerializeFailed)
	}
	data, okRead := b.mem.Read(ptr, size)
	if !okRead {
		return nil, fmt.Errorf("state read at %#x+%d failed", ptr, size)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Unserialize restores a previously captured state.
func (b *Bridge) Unserialize(ctx context.Context, data []byte) error {
	if err := b.regionState(); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty state", ErrSerializeFailed)
	}
	ptr, err := b.core.Alloc(ctx, uint32(len(data)))
	if err != nil {
		return err
	}
	if ptr == 0 || !b.mem.Write(ptr, data) {
		return fmt.Errorf("state write of %d bytes failed", len(data))
	}
	defer b.core.Free(ctx, ptr)
	ok, err := b.core.Unserialize(ctx, ptr, uint32(len(data)))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: unserialize returned false", ErrSerializeFailed)
	}
	return nil
}

// Shutdown releases everything in dependency order: unload the game,
// free the ROM copy, deinit the core, release the string registry, close
// the runtime. The caller must have stopped the pacer and flushed battery
// RAM first; once Shutdown begins no persistence access is possible.
func (b *Bridge) Shutdown(ctx context.Context) error {
	st := b.State()
	if st == StateShutDown {
		return nil
	}
	b.setState(StateShutDown)

	var errs []error
	switch st {
	case StateGameLoaded, StateRunning, StateStopped:
		if err := b.core.UnloadGame(ctx); err != nil {
			errs = append(errs, err)
		}
		if b.gamePtr != 0 {
			if err := b.core.Free(ctx, b.gamePtr); err != nil {
				errs = append(errs, err)
			}
			b.gamePtr = 0
		}
	}
	if st != StateUnloaded {
		if err := b.core.Deinit(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	b.strings.releaseAll(ctx, b.core)
	if b.runtime != nil {
		if err := b.runtime.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
