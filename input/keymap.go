package input

import (
	"fmt"
	"unicode/utf8"
)

// key is one decoded terminal key: either a printable rune or a named
// non-printable.
type key struct {
	r    rune
	name string
}

// Named keys the decoder can produce and configs can bind.
const (
	keyUp    = "up"
	keyDown  = "down"
	keyLeft  = "left"
	keyRight = "right"
	keyEnter = "enter"
	keyTab   = "tab"
	keySpace = "space"
	keyEsc   = "esc"
	keyCtrlC = "ctrl-c"
	keyF1    = "f1"
	keyF2    = "f2"
	keyF3    = "f3"
	keyF4    = "f4"
)

// reservedNames are control keys that cannot be rebound to buttons.
var reservedNames = map[string]bool{
	keyEsc:   true, // quit
	keyCtrlC: true, // quit
	keyF1:    true, // save state
	keyF2:    true, // next slot
	keyF3:    true, // load state
	keyF4:    true, // turbo
}

// Keymap resolves decoded keys to joypad buttons.
type Keymap struct {
	runes map[rune]int
	named map[string]int
}

// DefaultKeymap binds arrows to the d-pad, z/x/a/s to B/A/Y/X, brackets
// to the shoulders, enter to start, and tab to select.
func DefaultKeymap() Keymap {
	return Keymap{
		runes: map[rune]int{
			'z': ButtonB,
			'x': ButtonA,
			'a': ButtonY,
			's': ButtonX,
			'[': ButtonL,
			']': ButtonR,
		},
		named: map[string]int{
			keyUp:    ButtonUp,
			keyDown:  ButtonDown,
			keyLeft:  ButtonLeft,
			keyRight: ButtonRight,
			keyEnter: ButtonStart,
			keyTab:   ButtonSelect,
		},
	}
}

// KeymapFromConfig applies config overrides to the defaults. Overrides
// map button names to key tokens: a single character, or a named key
// (up, down, left, right, enter, tab, space). A button named in the
// overrides loses its default binding first.
func KeymapFromConfig(overrides map[string]string) (Keymap, error) {
	km := DefaultKeymap()
	for name, token := range overrides {
		button, ok := ButtonByName(name)
		if !ok {
			return Keymap{}, fmt.Errorf("keymap: unknown button %q", name)
		}
		km.unbind(button)
		if utf8.RuneCountInString(token) == 1 {
			r, _ := utf8.DecodeRuneInString(token)
			if r == 'q' {
				return Keymap{}, fmt.Errorf("keymap: %q is reserved for quit", token)
			}
			km.runes[r] = button
			continue
		}
		if reservedNames[token] {
			return Keymap{}, fmt.Errorf("keymap: %q is reserved for %s", token, name)
		}
		if !namedBindable[token] {
			return Keymap{}, fmt.Errorf("keymap: unknown key %q for %s", token, name)
		}
		km.named[token] = button
	}
	return km, nil
}

// namedBindable are multi-character tokens accepted in configs.
var namedBindable = map[string]bool{
	keyUp:    true,
	keyDown:  true,
	keyLeft:  true,
	keyRight: true,
	keyEnter: true,
	keyTab:   true,
	keySpace: true,
}

func (km Keymap) unbind(button int) {
	for r, b := range km.runes {
		if b == button {
			delete(km.runes, r)
		}
	}
	for n, b := range km.named {
		if b == button {
			delete(km.named, n)
		}
	}
}

// button resolves a decoded key, reporting false for unbound keys.
func (km Keymap) button(k key) (int, bool) {
	if k.name != "" {
		b, ok := km.named[k.name]
		return b, ok
	}
	b, ok := km.runes[k.r]
	return b, ok
}
