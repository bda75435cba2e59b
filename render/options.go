package render

import (
	"fmt"

	"github.com/muesli/termenv"
)

// ColorMode selects the terminal color depth.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorTrue
	Color256
	Color16
	ColorMono
)

// ParseColorMode resolves a config/flag value.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "", "auto":
		return ColorAuto, nil
	case "true", "truecolor", "24bit":
		return ColorTrue, nil
	case "256":
		return Color256, nil
	case "16", "ansi":
		return Color16, nil
	case "mono", "none":
		return ColorMono, nil
	}
	return 0, fmt.Errorf("unknown color mode %q", s)
}

func (m ColorMode) String() string {
	switch m {
	case ColorAuto:
		return "auto"
	case ColorTrue:
		return "truecolor"
	case Color256:
		return "256"
	case Color16:
		return "16"
	case ColorMono:
		return "mono"
	}
	return "unknown"
}

// profile maps the mode to a termenv profile; auto defers to the
// environment.
func (m ColorMode) profile() termenv.Profile {
	switch m {
	case ColorTrue:
		return termenv.TrueColor
	case Color256:
		return termenv.ANSI256
	case Color16:
		return termenv.ANSI
	case ColorMono:
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// Options are the display settings for terminal rendering. They travel
// with every frame request; the worker rebuilds its engine only when
// they differ from the previous frame's.
type Options struct {
	// Frameskip considers every Nth frame for terminal output.
	Frameskip int

	// Symbols is the glyph ramp, darkest to brightest. Empty keeps the
	// conversion engine's default ramp.
	Symbols string

	Colors ColorMode

	// FgOnly colors only the glyphs; otherwise cell backgrounds are
	// painted too, which reads as solid blocks.
	FgOnly bool

	// Dither quantizes frames to the 256-color palette with error
	// diffusion before glyph conversion.
	Dither bool

	// Contrast is a preprocessing adjustment in percent, -100 to 100.
	Contrast float64
}

// DefaultOptions render every second frame with the engine's glyph
// ramp, colors from the environment, and painted backgrounds.
func DefaultOptions() Options {
	return Options{Frameskip: 2}
}
