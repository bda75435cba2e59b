package window

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/monteslu/retroemu/input"
)

// axisThreshold is the stick deflection treated as a d-pad press.
const axisThreshold = 0.25

// keyboardKeys binds keys to joypad bits, mirroring the terminal
// defaults so muscle memory carries between the two frontends.
var keyboardKeys = map[ebiten.Key]int{
	ebiten.KeyArrowUp:      input.ButtonUp,
	ebiten.KeyArrowDown:    input.ButtonDown,
	ebiten.KeyArrowLeft:    input.ButtonLeft,
	ebiten.KeyArrowRight:   input.ButtonRight,
	ebiten.KeyZ:            input.ButtonB,
	ebiten.KeyX:            input.ButtonA,
	ebiten.KeyA:            input.ButtonY,
	ebiten.KeyS:            input.ButtonX,
	ebiten.KeyLeftBracket:  input.ButtonL,
	ebiten.KeyRightBracket: input.ButtonR,
	ebiten.KeyEnter:        input.ButtonStart,
	ebiten.KeyTab:          input.ButtonSelect,
}

// padButtons binds standard gamepad buttons to joypad bits. The layout
// is positional: right cluster bottom/right/left/top map to B/A/Y/X.
var padButtons = map[ebiten.StandardGamepadButton]int{
	ebiten.StandardGamepadButtonRightBottom:      input.ButtonB,
	ebiten.StandardGamepadButtonRightRight:       input.ButtonA,
	ebiten.StandardGamepadButtonRightLeft:        input.ButtonY,
	ebiten.StandardGamepadButtonRightTop:         input.ButtonX,
	ebiten.StandardGamepadButtonFrontTopLeft:     input.ButtonL,
	ebiten.StandardGamepadButtonFrontTopRight:    input.ButtonR,
	ebiten.StandardGamepadButtonFrontBottomLeft:  input.ButtonL2,
	ebiten.StandardGamepadButtonFrontBottomRight: input.ButtonR2,
	ebiten.StandardGamepadButtonCenterLeft:       input.ButtonSelect,
	ebiten.StandardGamepadButtonCenterRight:      input.ButtonStart,
	ebiten.StandardGamepadButtonLeftStick:        input.ButtonL3,
	ebiten.StandardGamepadButtonRightStick:       input.ButtonR3,
	ebiten.StandardGamepadButtonLeftTop:          input.ButtonUp,
	ebiten.StandardGamepadButtonLeftBottom:       input.ButtonDown,
	ebiten.StandardGamepadButtonLeftLeft:         input.ButtonLeft,
	ebiten.StandardGamepadButtonLeftRight:        input.ButtonRight,
}

// keyboardMask reads the bound keyboard keys into a joypad bitmask.
func keyboardMask() uint32 {
	var mask uint32
	for key, bit := range keyboardKeys {
		if ebiten.IsKeyPressed(key) {
			mask |= 1 << uint(bit)
		}
	}
	return mask
}

// gamepadMask reads one gamepad into a joypad bitmask. The left stick
// doubles as the d-pad past the deflection threshold.
func gamepadMask(id ebiten.GamepadID) uint32 {
	var mask uint32
	for btn, bit := range padButtons {
		if ebiten.IsStandardGamepadButtonPressed(id, btn) {
			mask |= 1 << uint(bit)
		}
	}

	x := ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickHorizontal)
	y := ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickVertical)
	if x < -axisThreshold {
		mask |= 1 << uint(input.ButtonLeft)
	}
	if x > axisThreshold {
		mask |= 1 << uint(input.ButtonRight)
	}
	if y < -axisThreshold {
		mask |= 1 << uint(input.ButtonUp)
	}
	if y > axisThreshold {
		mask |= 1 << uint(input.ButtonDown)
	}
	return mask
}
