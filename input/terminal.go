package input

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Control is a session-level command decoded from the terminal.
type Control int

const (
	ControlQuit Control = iota
	ControlSaveState
	ControlLoadState
	ControlNextSlot
	ControlTurbo
)

func (c Control) String() string {
	switch c {
	case ControlQuit:
		return "quit"
	case ControlSaveState:
		return "save state"
	case ControlLoadState:
		return "load state"
	case ControlNextSlot:
		return "next slot"
	case ControlTurbo:
		return "turbo"
	}
	return "unknown"
}

// Terminal feeds port 0 from raw-mode stdin. Game keys go to the Source;
// control keys (Ctrl+C, bare Esc, q, F1-F4) go to the Controls channel,
// which the session drains between frames.
type Terminal struct {
	log    *log.Logger
	src    *Source
	keymap Keymap
	ctrl   chan Control

	fd      int
	restore *term.State
}

// NewTerminal wires a decoder to src without touching terminal modes;
// Start switches stdin to raw mode and begins reading.
func NewTerminal(logger *log.Logger, src *Source, keymap Keymap) *Terminal {
	return &Terminal{
		log:    logger,
		src:    src,
		keymap: keymap,
		ctrl:   make(chan Control, 8),
		fd:     -1,
	}
}

// Controls delivers decoded session commands.
func (t *Terminal) Controls() <-chan Control { return t.ctrl }

// Start puts stdin into raw mode and reads it on a new goroutine until
// Close or stdin ends.
func (t *Terminal) Start() error {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	t.fd = fd
	t.restore = state
	go t.run(os.Stdin)
	return nil
}

// Close restores the terminal mode. The read goroutine exits with the
// next stdin read.
func (t *Terminal) Close() error {
	if t.restore == nil {
		return nil
	}
	err := term.Restore(t.fd, t.restore)
	t.restore = nil
	return err
}

// run decodes the byte stream until r ends. Split from Start so tests
// can drive it with a scripted reader.
func (t *Terminal) run(r io.Reader) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, k := range decodeKeys(buf[:n]) {
				t.handle(k)
			}
		}
		if err != nil {
			if err != io.EOF {
				t.log.Debug("stdin closed", "err", err)
			}
			return
		}
	}
}

func (t *Terminal) handle(k key) {
	if c, ok := controlFor(k); ok {
		select {
		case t.ctrl <- c:
		default:
			// Session is busy; dropping a repeat beats blocking input.
		}
		return
	}
	if button, ok := t.keymap.button(k); ok {
		t.src.Press(0, button)
	}
}

func controlFor(k key) (Control, bool) {
	if k.r == 'q' {
		return ControlQuit, true
	}
	switch k.name {
	case keyCtrlC, keyEsc:
		return ControlQuit, true
	case keyF1:
		return ControlSaveState, true
	case keyF2:
		return ControlNextSlot, true
	case keyF3:
		return ControlLoadState, true
	case keyF4:
		return ControlTurbo, true
	}
	return 0, false
}

// decodeKeys turns one raw-mode read into logical keys. An ESC that ends
// the chunk is a bare Escape; ESC [ and ESC O sequences decode arrows and
// F1-F4, and unrecognized CSI sequences are consumed and dropped.
func decodeKeys(b []byte) []key {
	var out []key
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c != 0x1b {
			if k, ok := keyFromByte(c); ok {
				out = append(out, k)
			}
			continue
		}
		if i+1 >= len(b) {
			out = append(out, key{name: keyEsc})
			break
		}
		switch b[i+1] {
		case '[':
			n, k, ok := decodeCSI(b[i+2:])
			i += 1 + n
			if ok {
				out = append(out, k)
			}
		case 'O':
			if i+2 < len(b) {
				if k, ok := decodeSS3(b[i+2]); ok {
					out = append(out, k)
				}
				i += 2
			} else {
				i++
			}
		default:
			// ESC followed by an ordinary key: treat the ESC alone and
			// let the next byte decode on its own.
			out = append(out, key{name: keyEsc})
		}
	}
	return out
}

func keyFromByte(c byte) (key, bool) {
	switch c {
	case 0x03:
		return key{name: keyCtrlC}, true
	case '\r', '\n':
		return key{name: keyEnter}, true
	case '\t':
		return key{name: keyTab}, true
	case ' ':
		return key{name: keySpace}, true
	}
	if c >= 0x20 && c < 0x7f {
		return key{r: rune(c)}, true
	}
	return key{}, false
}

// decodeCSI reads one CSI sequence body (after "ESC ["), returning the
// bytes consumed and the decoded key for the sequences we understand.
func decodeCSI(b []byte) (int, key, bool) {
	for i := 0; i < len(b); i++ {
		c := b[i]
		// Parameter and intermediate bytes accumulate until a final byte.
		if c >= 0x30 && c <= 0x3f || c >= 0x20 && c <= 0x2f {
			continue
		}
		var k key
		switch c {
		case 'A':
			k = key{name: keyUp}
		case 'B':
			k = key{name: keyDown}
		case 'C':
			k = key{name: keyRight}
		case 'D':
			k = key{name: keyLeft}
		default:
			return i + 1, key{}, false
		}
		// Arrows with parameter bytes carry modifiers; ignore those.
		if i > 0 {
			return i + 1, key{}, false
		}
		return i + 1, k, true
	}
	return len(b), key{}, false
}

func decodeSS3(c byte) (key, bool) {
	switch c {
	case 'P':
		return key{name: keyF1}, true
	case 'Q':
		return key{name: keyF2}, true
	case 'R':
		return key{name: keyF3}, true
	case 'S':
		return key{name: keyF4}, true
	}
	return key{}, false
}
