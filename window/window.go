package window

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/monteslu/retroemu/input"
)

// Window is an ebiten mirror of the core's video output. The stepping
// goroutine feeds it through Frame; Run drives the ebiten loop and must
// own the main goroutine.
type Window struct {
	log    *log.Logger
	fb     framebuffer
	input  *input.Source
	ctrl   chan input.Control
	closed atomic.Bool

	offscreen *ebiten.Image
	scratch   []byte
	offW      int
	offH      int
	pads      []ebiten.GamepadID
}

// New prepares a window for a core with the given geometry. Nothing
// opens until Run.
func New(logger *log.Logger, title string, width, height int, aspect float64) *Window {
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(60)

	w := &Window{
		log:  logger,
		ctrl: make(chan input.Control, 8),
	}
	w.Resize(width, height, aspect)
	return w
}

// Resize scales the window to a new core geometry. Cores change
// geometry mid-session, so this is safe from any goroutine.
func (w *Window) Resize(width, height int, aspect float64) {
	if width < 1 {
		width = 320
	}
	if height < 1 {
		height = 240
	}
	if aspect <= 0 {
		aspect = float64(width) / float64(height)
	}

	winW := width * 3
	winH := int(float64(winW) / aspect)
	minW := width * 2
	minH := int(float64(minW) / aspect)
	ebiten.SetWindowSize(winW, winH)
	ebiten.SetWindowSizeLimits(minW, minH, -1, -1)
}

// SetInput attaches the source fed by Update's device polling.
func (w *Window) SetInput(src *input.Source) { w.input = src }

// Controls delivers save, slot, and turbo keys pressed in the window.
func (w *Window) Controls() <-chan input.Control { return w.ctrl }

// Frame implements the render scheduler's window sink. buf is only
// valid during the call and is copied.
func (w *Window) Frame(buf []byte, width, height int) {
	w.fb.write(buf, width, height)
}

// RequestClose ends the window loop on its next tick. Safe from any
// goroutine.
func (w *Window) RequestClose() { w.closed.Store(true) }

// Run blocks driving the window until it closes. Must run on the main
// goroutine.
func (w *Window) Run() error {
	err := ebiten.RunGame(w)
	if err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

// controlKeys mirrors the terminal's function-key bindings.
var controlKeys = map[ebiten.Key]input.Control{
	ebiten.KeyF1: input.ControlSaveState,
	ebiten.KeyF2: input.ControlNextSlot,
	ebiten.KeyF3: input.ControlLoadState,
	ebiten.KeyF4: input.ControlTurbo,
}

// Update implements ebiten.Game: it polls devices into held masks and
// decodes control keys. Escape closes the window.
func (w *Window) Update() error {
	if w.closed.Load() {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	for key, c := range controlKeys {
		if inpututil.IsKeyJustPressed(key) {
			select {
			case w.ctrl <- c:
			default:
			}
		}
	}

	if w.input == nil {
		return nil
	}
	w.pads = ebiten.AppendGamepadIDs(w.pads[:0])
	for port := 0; port < input.MaxPorts; port++ {
		var mask uint32
		if port == 0 {
			mask = keyboardMask()
			if len(w.pads) > 0 {
				mask |= gamepadMask(w.pads[0])
			}
		} else if port < len(w.pads) {
			mask = gamepadMask(w.pads[port])
		}
		w.input.SetHeld(port, mask)
	}
	return nil
}

// Draw implements ebiten.Game: the latest frame is scaled to fit,
// centered, with nearest-neighbor sampling so pixels stay crisp.
func (w *Window) Draw(screen *ebiten.Image) {
	var fw, fh int
	w.scratch, fw, fh, _ = w.fb.read(w.scratch)
	if fw == 0 || fh == 0 {
		return
	}

	if w.offscreen == nil || fw != w.offW || fh != w.offH {
		if w.offscreen != nil {
			w.offscreen.Deallocate()
		}
		w.offscreen = ebiten.NewImage(fw, fh)
		w.offW, w.offH = fw, fh
	}
	w.offscreen.WritePixels(w.scratch)

	bounds := screen.Bounds()
	scale := math.Min(
		float64(bounds.Dx())/float64(fw),
		float64(bounds.Dy())/float64(fh),
	)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(
		(float64(bounds.Dx())-float64(fw)*scale)/2,
		(float64(bounds.Dy())-float64(fh)*scale)/2,
	)
	op.Filter = ebiten.FilterNearest
	screen.DrawImage(w.offscreen, op)
}

// Layout implements ebiten.Game.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	s := 1.0
	if m := ebiten.Monitor(); m != nil {
		s = m.DeviceScaleFactor()
	}
	return int(float64(outsideWidth) * s), int(float64(outsideHeight) * s)
}
