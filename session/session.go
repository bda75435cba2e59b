// Package session wires a ROM, a core, and the configured outputs into
// one running emulation and owns its lifecycle from load to teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/monteslu/retroemu/audio"
	"github.com/monteslu/retroemu/bridge"
	"github.com/monteslu/retroemu/config"
	"github.com/monteslu/retroemu/coredb"
	"github.com/monteslu/retroemu/input"
	"github.com/monteslu/retroemu/library"
	"github.com/monteslu/retroemu/render"
	"github.com/monteslu/retroemu/romloader"
	"github.com/monteslu/retroemu/saves"
	"github.com/monteslu/retroemu/window"
)

// batteryFlushInterval paces background save-RAM writes while playing.
const batteryFlushInterval = 30 * time.Second

// flashDuration keeps transient status messages visible long enough to
// read.
const flashDuration = 2 * time.Second

// Options selects what to run and which outputs to attach.
type Options struct {
	// ROMPath is the game to load, raw or archived.
	ROMPath string

	// CorePath forces a core module, bypassing the system registry.
	CorePath string

	// Terminal renders frames as character art on stdout and reads raw
	// stdin. Window opens an ebiten window. Both may be on at once.
	Terminal bool
	Window   bool

	NoAudio bool

	// Resume restores the automatic exit snapshot before starting.
	Resume bool

	// Turbo is the fast-forward multiplier; values at or below 1 fall
	// back to 2.
	Turbo float64
}

// session carries the moving parts between setup and the step loop.
type session struct {
	log  *log.Logger
	cfg  config.Config
	opts Options

	rom *romloader.ROM
	sys coredb.System

	br      *bridge.Bridge
	pacer   *bridge.Pacer
	sched   *render.Scheduler
	mgr     *saves.Manager
	battery bridge.Region

	hasBattery bool
	loaded     bool
	turbo      bool
	lastFlush  time.Time

	termCtrl <-chan input.Control
	winCtrl  <-chan input.Control

	gameName string
	message  string
	msgUntil time.Time
}

// Run plays one game until the user quits or ctx is canceled. In window
// mode it must be called on the main goroutine, which ebiten takes over.
func Run(ctx context.Context, logger *log.Logger, cfg config.Config, opts Options) error {
	if opts.Turbo <= 1 {
		opts.Turbo = 2
	}

	exts := coredb.Extensions()
	if opts.CorePath != "" {
		// An explicit core accepts whatever it is handed.
		exts = nil
	}
	rom, err := romloader.Load(opts.ROMPath, exts)
	if err != nil {
		return err
	}

	resolver := coredb.Resolver{
		CoresDir:  cfg.Dirs.Cores,
		CorePath:  opts.CorePath,
		Overrides: cfg.Cores,
	}
	sys, corePath, err := resolver.Resolve(rom.Name)
	if err != nil {
		return err
	}
	logger.Info("game resolved",
		"rom", rom.Name,
		"system", sys.ID,
		"core", filepath.Base(corePath),
		"crc", fmt.Sprintf("%08x", rom.CRC))

	s := &session{
		log:      logger,
		cfg:      cfg,
		opts:     opts,
		rom:      rom,
		sys:      sys,
		gameName: library.DisplayName(rom.Name),
	}
	return s.run(ctx, corePath)
}

func (s *session) run(ctx context.Context, corePath string) error {
	// Everything that can fail on bad config fails here, before any
	// device or goroutine is claimed.
	renderOpts, err := renderOptions(s.cfg.Display)
	if err != nil {
		return err
	}
	keymap, err := input.KeymapFromConfig(s.cfg.Keymap)
	if err != nil {
		return err
	}
	saveDir := saves.Dir(s.cfg.Dirs.Saves, s.sys.ID, s.rom.CRC)
	mgr, err := saves.New(s.log, saveDir)
	if err != nil {
		return err
	}
	s.mgr = mgr

	src := input.NewSource()

	var player *audio.Player
	if !s.opts.NoAudio {
		p, err := audio.NewPlayer(s.log, s.cfg.Audio.Volume)
		if err != nil {
			s.log.Warn("audio unavailable, continuing silent", "err", err)
		} else {
			player = p
			if s.cfg.Audio.Muted {
				player.SetVolume(0)
			}
		}
	}

	var win *window.Window
	if s.opts.Window {
		// Geometry is unknown until the game loads; the AV callback
		// resizes once the core reports it.
		win = window.New(s.log, s.gameName+" · retroemu", 0, 0, 0)
		win.SetInput(src)
	}
	var worker *render.Worker
	if s.opts.Terminal {
		worker = render.NewWorker(s.log, os.Stdout)
	}
	s.sched = newScheduler(s.log, renderOpts, worker, win)

	s.pacer = bridge.NewPacer(60)

	bopts := bridge.Options{
		CorePath:  corePath,
		SystemDir: s.cfg.Dirs.System,
		SaveDir:   saveDir,
		Username:  s.cfg.Username,
		RomDir:    filepath.Dir(s.rom.Path),
		Logger:    s.log,
		Video:     s.sched,
		Input:     src,
		OnMessage: s.onMessage,
		OnAVChange: func(av bridge.AVInfo) {
			s.pacer.SetFPS(av.FPS)
			s.sched.SetAspect(av.Aspect())
			if win != nil {
				win.Resize(int(av.BaseWidth), int(av.BaseHeight), av.Aspect())
			}
		},
	}
	if player != nil {
		bopts.Audio = player
	}

	br, err := bridge.New(ctx, bopts)
	if err != nil {
		if player != nil {
			player.Close()
		}
		if worker != nil {
			worker.Close()
		}
		return err
	}
	s.br = br

	var term *input.Terminal
	var restore func()
	defer func() {
		s.teardown(ctx, worker, term, restore, player)
	}()

	if err := br.LoadGame(ctx, s.rom.Data, s.rom.Path, ""); err != nil {
		return err
	}
	s.loaded = true

	region, err := br.MemoryRegion(ctx, bridge.MemorySaveRAM)
	switch {
	case err == nil:
		s.battery = region
		s.hasBattery = true
		s.mgr.LoadBattery(s.battery)
	case errors.Is(err, bridge.ErrNoRegion):
		s.log.Debug("core exposes no save ram")
	default:
		s.log.Warn("save ram unavailable", "err", err)
	}

	if s.opts.Resume {
		if err := s.mgr.LoadResume(ctx, br); err != nil {
			s.log.Warn("resume skipped", "err", err)
		}
	}

	if s.opts.Terminal {
		term = input.NewTerminal(s.log, src, keymap)
		if err := term.Start(); err != nil {
			s.log.Warn("raw terminal input unavailable", "err", err)
			term = nil
		} else {
			s.termCtrl = term.Controls()
		}
		restore = render.PrepareTerminal(os.Stdout)
	}

	started := time.Now()
	runErr := s.runLoop(ctx, win)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	s.recordPlay(started, time.Since(started))
	return runErr
}

// runLoop drives the pacer until the session ends. Without a window it
// steps on the calling goroutine; with one, ebiten owns the caller and
// stepping moves to a second goroutine.
func (s *session) runLoop(ctx context.Context, win *window.Window) error {
	if err := s.br.Start(); err != nil {
		return err
	}
	s.lastFlush = time.Now()
	s.refreshStatus()

	if win == nil {
		return s.pacer.Run(ctx, func() error { return s.step(ctx) })
	}

	s.winCtrl = win.Controls()
	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- s.pacer.Run(stepCtx, func() error { return s.step(stepCtx) })
		win.RequestClose()
	}()

	winErr := win.Run()
	cancel()
	stepErr := <-errc
	if stepErr != nil && !errors.Is(stepErr, context.Canceled) {
		return stepErr
	}
	return winErr
}

// step is one paced frame: drain pending control keys, keep the status
// line and battery file fresh, then advance the core.
func (s *session) step(ctx context.Context) error {
	// Nil channels never deliver, so absent inputs fall to default.
	select {
	case c := <-s.termCtrl:
		s.handleControl(ctx, c)
	case c := <-s.winCtrl:
		s.handleControl(ctx, c)
	default:
	}

	if s.hasBattery && time.Since(s.lastFlush) >= batteryFlushInterval {
		s.mgr.FlushBattery(s.battery)
		s.lastFlush = time.Now()
	}
	if !s.msgUntil.IsZero() && time.Now().After(s.msgUntil) {
		s.msgUntil = time.Time{}
		s.message = ""
		s.refreshStatus()
	}
	return s.br.StepFrame(ctx)
}

func (s *session) handleControl(ctx context.Context, c input.Control) {
	switch c {
	case input.ControlQuit:
		s.log.Info("quit requested")
		s.br.Stop()
	case input.ControlSaveState:
		if err := s.mgr.SaveState(ctx, s.br); err != nil {
			s.log.Warn("save state failed", "err", err)
			s.flash("save failed")
			return
		}
		s.flash(fmt.Sprintf("saved slot %d", s.mgr.Slot()))
	case input.ControlLoadState:
		if err := s.mgr.LoadState(ctx, s.br); err != nil {
			s.log.Warn("load state failed", "err", err)
			s.flash("load failed")
			return
		}
		s.flash(fmt.Sprintf("loaded slot %d", s.mgr.Slot()))
	case input.ControlNextSlot:
		s.flash(fmt.Sprintf("slot %d", s.mgr.NextSlot()))
	case input.ControlTurbo:
		s.turbo = !s.turbo
		mult := 1.0
		if s.turbo {
			mult = s.opts.Turbo
		}
		s.pacer.SetSpeed(mult)
		s.br.SetTurbo(s.turbo)
		s.refreshStatus()
	}
}

// onMessage surfaces core SET_MESSAGE texts on the status line for the
// frame count the core asked for.
func (s *session) onMessage(text string, frames uint32) {
	s.log.Info("core message", "text", text)
	s.message = text
	s.msgUntil = time.Now().Add(time.Duration(frames) * s.pacer.Interval())
	s.refreshStatus()
}

func (s *session) flash(text string) {
	s.message = text
	s.msgUntil = time.Now().Add(flashDuration)
	s.refreshStatus()
}

func (s *session) refreshStatus() { s.sched.SetStatus(s.statusText()) }

func (s *session) statusText() string {
	status := fmt.Sprintf("%s · %s · slot %d", s.gameName, s.sys.ID, s.mgr.Slot())
	if s.turbo {
		status += fmt.Sprintf(" · turbo x%g", s.opts.Turbo)
	}
	if s.message != "" {
		status += " · " + s.message
	}
	return status
}

// teardown unwinds in dependency order: persist core state while the
// bridge is still alive, shut the bridge so no new frames arrive, drain
// the render worker, then give the terminal and audio device back.
func (s *session) teardown(ctx context.Context, worker *render.Worker, term *input.Terminal, restore func(), player *audio.Player) {
	// A canceled ctx (signal exit) must not abort the final snapshot.
	ctx = context.WithoutCancel(ctx)
	if s.loaded {
		if s.hasBattery {
			s.mgr.FlushBattery(s.battery)
		}
		if err := s.mgr.SaveResume(ctx, s.br); err != nil {
			s.log.Warn("resume snapshot failed", "err", err)
		}
	}
	if err := s.br.Shutdown(ctx); err != nil {
		s.log.Warn("core shutdown failed", "err", err)
	}
	if worker != nil {
		worker.Close()
	}
	if restore != nil {
		restore()
	}
	if term != nil {
		term.Close()
	}
	if player != nil {
		player.Close()
	}
}

// recordPlay files the finished session in the library so the shelf
// shows play counts and last-played times. Library trouble never fails
// a play session.
func (s *session) recordPlay(started time.Time, played time.Duration) {
	store, err := library.Open(filepath.Join(s.cfg.Dirs.Data, "library.db"))
	if err != nil {
		s.log.Warn("library unavailable", "err", err)
		return
	}
	defer store.Close()

	crc := fmt.Sprintf("%08x", s.rom.CRC)
	game := library.Game{
		CRC:    crc,
		Path:   s.rom.Path,
		System: s.sys.ID,
		Name:   s.gameName,
	}
	if err := store.SaveGame(game); err != nil {
		s.log.Warn("library update failed", "err", err)
		return
	}
	if err := store.RecordSession(crc, started, played); err != nil {
		s.log.Warn("play record failed", "err", err)
	}
}

// renderOptions maps display config onto the renderer.
func renderOptions(d config.Display) (render.Options, error) {
	opts := render.DefaultOptions()
	mode, err := render.ParseColorMode(d.Colors)
	if err != nil {
		return opts, err
	}
	opts.Colors = mode
	opts.Symbols = d.Symbols
	opts.FgOnly = d.FgOnly
	opts.Dither = d.Dither
	opts.Contrast = d.Contrast
	if d.Frameskip > 0 {
		opts.Frameskip = d.Frameskip
	}
	return opts, nil
}

// newScheduler builds the scheduler without smuggling typed nils into
// its sink interfaces.
func newScheduler(logger *log.Logger, opts render.Options, worker *render.Worker, win *window.Window) *render.Scheduler {
	switch {
	case worker != nil && win != nil:
		return render.NewScheduler(logger, opts, worker, win)
	case worker != nil:
		return render.NewScheduler(logger, opts, worker, nil)
	case win != nil:
		return render.NewScheduler(logger, opts, nil, win)
	default:
		return render.NewScheduler(logger, opts, nil, nil)
	}
}
