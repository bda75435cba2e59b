package render

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/monteslu/retroemu/pixel"
)

// frameRequest is one frame handed to the rendering worker, along with
// the display settings and grid it should be drawn with. The worker must
// be finished with buf before calling done; the scheduler reuses the
// backing storage afterwards.
type frameRequest struct {
	buf    []byte
	width  int
	height int
	cols   int
	rows   int
	opts   Options
	status string
	done   func()
}

type frameSink interface {
	submit(req frameRequest)
}

// Worker converts frames into styled character grids on its own
// goroutine and writes each grid to the terminal in a single Write.
// Conversion failures drop the frame and nothing else; the next frame
// starts clean. Submit only while the scheduler's busy flag is held, and
// Close only after stepping has stopped.
type Worker struct {
	log *log.Logger
	out io.Writer

	ch chan frameRequest
	wg sync.WaitGroup

	engine *engine
	buf    bytes.Buffer
}

// NewWorker starts the rendering goroutine writing to out.
func NewWorker(logger *log.Logger, out io.Writer) *Worker {
	w := &Worker{
		log: logger,
		out: out,
		ch:  make(chan frameRequest, 1),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Worker) submit(req frameRequest) { w.ch <- req }

// Close waits for the in-flight frame, if any, to finish.
func (w *Worker) Close() {
	close(w.ch)
	w.wg.Wait()
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for req := range w.ch {
		w.renderSafe(req)
		req.done()
	}
}

// renderSafe keeps a conversion panic from killing the process; the
// frame is dropped like any other render failure.
func (w *Worker) renderSafe(req frameRequest) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("render fault", "panic", r)
		}
	}()
	w.render(req)
}

func (w *Worker) render(req frameRequest) {
	eng, err := w.engineFor(req)
	if err != nil {
		w.log.Warn("render engine rebuild failed", "err", err)
		return
	}
	grid := eng.convert(pixel.Image(req.buf, req.width, req.height))
	w.compose(eng, grid, req)
	if _, err := w.out.Write(w.buf.Bytes()); err != nil {
		w.log.Warn("terminal write failed", "err", err)
	}
}

// engineFor returns the current engine, rebuilding it only when the
// grid or a display setting changed since the previous frame.
func (w *Worker) engineFor(req frameRequest) (*engine, error) {
	cfg := configFor(req)
	if w.engine != nil && w.engine.cfg == cfg {
		return w.engine, nil
	}
	eng, err := newEngine(cfg, w.out)
	if err != nil {
		return nil, err
	}
	w.log.Debug("render engine rebuilt",
		"grid", fmt.Sprintf("%dx%d", cfg.cols, cfg.rows),
		"colors", cfg.colors, "dither", cfg.dither)
	w.engine = eng
	return eng, nil
}

// compose assembles the full escape-sequence payload for one frame:
// cursor home, the styled rows, then the status line. Rows batch
// consecutive same-color cells into a single styled run and erase to the
// end of the line so stale content from a larger grid cannot linger.
// Line endings are \r\n because the terminal is in raw mode.
func (w *Worker) compose(eng *engine, grid [][]cell, req frameRequest) {
	w.buf.Reset()
	w.buf.WriteString(termenv.CSI + "H")
	for _, row := range grid {
		styled := false
		last := ""
		for _, c := range row {
			seq := eng.cellSeq(c)
			if seq != last {
				if styled {
					w.buf.WriteString(termenv.CSI + termenv.ResetSeq + "m")
					styled = false
				}
				if seq != "" {
					w.buf.WriteString(termenv.CSI + seq + "m")
					styled = true
				}
				last = seq
			}
			w.buf.WriteByte(eng.glyph(c))
		}
		if styled {
			w.buf.WriteString(termenv.CSI + termenv.ResetSeq + "m")
		}
		w.buf.WriteString(termenv.CSI + "K\r\n")
	}
	// No trailing newline: the status line may sit on the terminal's
	// last row and a newline there would scroll the frame.
	w.buf.WriteString(eng.statusLine(req.status))
	w.buf.WriteString(termenv.CSI + "K")
}

// PrepareTerminal switches out to the alternate screen and hides the
// cursor, returning the matching restore function.
func PrepareTerminal(out io.Writer) func() {
	o := termenv.NewOutput(out)
	o.AltScreen()
	o.HideCursor()
	return func() {
		o.ShowCursor()
		o.ExitAltScreen()
	}
}
