package input

// Joypad button bit positions in the per-port bitmask, matching the wire
// order the core queries by id.
const (
	ButtonB      = 0
	ButtonY      = 1
	ButtonSelect = 2
	ButtonStart  = 3
	ButtonUp     = 4
	ButtonDown   = 5
	ButtonLeft   = 6
	ButtonRight  = 7
	ButtonA      = 8
	ButtonX      = 9
	ButtonL      = 10
	ButtonR      = 11
	ButtonL2     = 12
	ButtonR2     = 13
	ButtonL3     = 14
	ButtonR3     = 15

	buttonCount = 16
)

// MaxPorts is the number of controller ports served.
const MaxPorts = 4

// Core-side query constants: the joypad device class and the id that
// requests all sixteen buttons as one bitmask.
const (
	deviceJoypad = 1
	maskID       = 256
)

// buttonNames maps config names to bit IDs.
var buttonNames = map[string]int{
	"b":      ButtonB,
	"y":      ButtonY,
	"select": ButtonSelect,
	"start":  ButtonStart,
	"up":     ButtonUp,
	"down":   ButtonDown,
	"left":   ButtonLeft,
	"right":  ButtonRight,
	"a":      ButtonA,
	"x":      ButtonX,
	"l":      ButtonL,
	"r":      ButtonR,
	"l2":     ButtonL2,
	"r2":     ButtonR2,
	"l3":     ButtonL3,
	"r3":     ButtonR3,
}

// ButtonByName resolves a config button name to its bit ID.
func ButtonByName(name string) (int, bool) {
	id, ok := buttonNames[name]
	return id, ok
}
