package render

import (
	"image/color"

	"github.com/muesli/termenv"
)

// ansi256Palette is the xterm color cube and grayscale ramp as a stdlib
// palette, the quantization target for Floyd-Steinberg dithering. The
// first 16 ANSI entries are left out because their RGB values depend on
// the user's terminal theme.
func ansi256Palette() color.Palette {
	p := make(color.Palette, 0, 240)
	for i := 16; i < 256; i++ {
		p = append(p, termenv.ConvertToRGB(termenv.ANSI256Color(i)))
	}
	return p
}
