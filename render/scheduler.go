package render

import (
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

// WindowSink mirrors frames into a graphical window. Frame is called on
// the stepping goroutine for every frame, never decimated, and must copy
// buf before returning.
type WindowSink interface {
	Frame(buf []byte, width, height int)
}

// Scheduler fans converted frames out to the terminal worker and the
// optional window mirror. It implements the bridge's video sink.
//
// The terminal path is decimated by frameskip and bounded to one frame
// in flight: the busy flag is set before a frame is handed to the worker
// and cleared by the worker when it finishes. A frame arriving while the
// flag is set is dropped, never queued. All methods run on the stepping
// goroutine; only the busy flag is shared with the worker.
type Scheduler struct {
	log    *log.Logger
	target frameSink
	window WindowSink

	busy   atomic.Bool
	opts   Options
	aspect float64
	status string
	frame  uint64

	size     func() (int, int, error)
	lastCols int
	lastRows int

	scratch []byte
}

// NewScheduler wires the sinks. Either may be nil; with both nil every
// frame is dropped, which keeps headless runs cheap.
func NewScheduler(logger *log.Logger, opts Options, target frameSink, window WindowSink) *Scheduler {
	if opts.Frameskip < 1 {
		opts.Frameskip = 1
	}
	return &Scheduler{
		log:      logger,
		target:   target,
		window:   window,
		opts:     opts,
		size:     stdoutSize,
		lastCols: 80,
		lastRows: 24,
	}
}

func stdoutSize() (int, int, error) {
	return term.GetSize(int(os.Stdout.Fd()))
}

// SetAspect records the core's display aspect ratio. Called when the
// core loads and again on geometry changes.
func (s *Scheduler) SetAspect(aspect float64) { s.aspect = aspect }

// SetStatus replaces the status line shown under the frame.
func (s *Scheduler) SetStatus(status string) { s.status = status }

// OnFrame forwards one frame. The window mirror sees every frame
// synchronously; the terminal worker sees every Nth frame, and only when
// idle. Returns true when ownership of buf transfers to the worker,
// which happens only when no window needs the buffer afterwards.
func (s *Scheduler) OnFrame(buf []byte, width, height int) bool {
	if s.window != nil {
		s.window.Frame(buf, width, height)
	}
	if s.target == nil {
		return false
	}
	s.frame++
	if s.frame%uint64(s.opts.Frameskip) != 0 {
		return false
	}
	if !s.busy.CompareAndSwap(false, true) {
		return false
	}

	cols, rows := s.grid()
	req := frameRequest{
		buf:    buf,
		width:  width,
		height: height,
		cols:   cols,
		rows:   rows,
		opts:   s.opts,
		status: s.status,
		done:   s.release,
	}
	taken := true
	if s.window != nil {
		// The duplicate is reused across dispatches; the busy flag
		// guarantees the worker is finished with the previous one.
		s.scratch = append(s.scratch[:0], buf...)
		req.buf = s.scratch
		taken = false
	}
	s.target.submit(req)
	return taken
}

func (s *Scheduler) release() { s.busy.Store(false) }

// grid refits the character grid to the current terminal, reserving one
// row for the status line. A failed size query keeps the last known
// capacity.
func (s *Scheduler) grid() (int, int) {
	cols, rows, err := s.size()
	if err != nil || cols < 1 || rows < 2 {
		cols, rows = s.lastCols, s.lastRows
	} else {
		s.lastCols, s.lastRows = cols, rows
	}
	return FitGrid(cols, rows-1, s.aspect)
}
