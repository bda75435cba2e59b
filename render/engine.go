package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/gift"
	"github.com/muesli/termenv"
	"github.com/qeesung/image2ascii/convert"
)

// cell is one character cell of a converted frame.
type cell struct {
	ch      byte
	r, g, b uint8
}

// engineConfig holds everything a frame's appearance depends on. The
// worker compares configs by value to decide whether the engine must be
// rebuilt.
type engineConfig struct {
	cols     int
	rows     int
	symbols  string
	colors   ColorMode
	fgOnly   bool
	dither   bool
	contrast float64
}

func configFor(req frameRequest) engineConfig {
	return engineConfig{
		cols:     req.cols,
		rows:     req.rows,
		symbols:  req.opts.Symbols,
		colors:   req.opts.Colors,
		fgOnly:   req.opts.FgOnly,
		dither:   req.opts.Dither,
		contrast: req.opts.Contrast,
	}
}

const seqCacheLimit = 4096

// engine owns the per-configuration conversion state: the glyph
// converter, the preprocessing filters, the dither palette, and the
// escape-sequence cache.
type engine struct {
	cfg     engineConfig
	profile termenv.Profile

	converter *convert.ImageConverter
	convOpts  convert.Options

	filters   *gift.GIFT
	filterDst *image.RGBA

	palette  color.Palette
	cellImg  *image.RGBA
	dithered *image.Paletted

	ramp []byte

	seqCache map[uint32]string
	status   lipgloss.Style
}

func newEngine(cfg engineConfig, out io.Writer) (*engine, error) {
	e := &engine{
		cfg:      cfg,
		profile:  cfg.colors.profile(),
		seqCache: make(map[uint32]string),
	}

	opts := convert.DefaultOptions
	opts.FixedWidth = cfg.cols
	opts.FixedHeight = cfg.rows
	opts.FitScreen = false
	opts.Colored = false
	e.convOpts = opts
	e.converter = convert.NewImageConverter()

	if cfg.symbols != "" {
		if len(cfg.symbols) < 2 {
			return nil, fmt.Errorf("render: symbol ramp %q needs at least two glyphs", cfg.symbols)
		}
		for i := 0; i < len(cfg.symbols); i++ {
			if cfg.symbols[i] < 0x20 || cfg.symbols[i] > 0x7e {
				return nil, fmt.Errorf("render: symbol ramp contains non-printable byte %#x", cfg.symbols[i])
			}
		}
		e.ramp = []byte(cfg.symbols)
	}

	var filters []gift.Filter
	if cfg.contrast != 0 {
		filters = append(filters, gift.Contrast(float32(cfg.contrast)))
	}
	if e.profile == termenv.Ascii {
		filters = append(filters, gift.Grayscale())
	}
	if len(filters) > 0 {
		e.filters = gift.New(filters...)
	}

	// Error diffusion only pays off when output is quantized to the
	// 256-color cube; truecolor needs none and mono has no colors.
	if cfg.dither && e.profile == termenv.ANSI256 {
		e.palette = ansi256Palette()
	}

	r := lipgloss.NewRenderer(out)
	r.SetColorProfile(e.profile)
	e.status = r.NewStyle().Faint(true).Width(cfg.cols).MaxWidth(cfg.cols)
	return e, nil
}

// convert runs the frame through preprocessing and glyph conversion,
// then dithers the resulting cell grid. Diffusion happens at output
// resolution: quantizing before the scale would only be blended away by
// the resampler.
func (e *engine) convert(img image.Image) [][]cell {
	src := img
	if e.filters != nil {
		b := e.filters.Bounds(src.Bounds())
		if e.filterDst == nil || e.filterDst.Bounds() != b {
			e.filterDst = image.NewRGBA(b)
		}
		e.filters.Draw(e.filterDst, src)
		src = e.filterDst
	}

	matrix := e.converter.Image2CharPixelMatrix(src, &e.convOpts)
	grid := make([][]cell, len(matrix))
	for y, row := range matrix {
		cells := make([]cell, len(row))
		for x, p := range row {
			cells[x] = cell{ch: p.Char, r: p.R, g: p.G, b: p.B}
		}
		grid[y] = cells
	}
	e.ditherCells(grid)
	return grid
}

// ditherCells replaces cell colors with their error-diffused palette
// matches. Glyphs are untouched; they were already chosen from the
// smooth image.
func (e *engine) ditherCells(grid [][]cell) {
	if e.palette == nil || len(grid) == 0 || len(grid[0]) == 0 {
		return
	}
	w, h := len(grid[0]), len(grid)
	b := image.Rect(0, 0, w, h)
	if e.cellImg == nil || e.cellImg.Bounds() != b {
		e.cellImg = image.NewRGBA(b)
		e.dithered = image.NewPaletted(b, e.palette)
	}
	for y, row := range grid {
		for x, c := range row {
			i := e.cellImg.PixOffset(x, y)
			e.cellImg.Pix[i] = c.r
			e.cellImg.Pix[i+1] = c.g
			e.cellImg.Pix[i+2] = c.b
			e.cellImg.Pix[i+3] = 0xff
		}
	}
	draw.FloydSteinberg.Draw(e.dithered, b, e.cellImg, image.Point{})
	for y, row := range grid {
		for x := range row {
			cr, cg, cb, _ := e.dithered.At(x, y).RGBA()
			row[x].r = uint8(cr >> 8)
			row[x].g = uint8(cg >> 8)
			row[x].b = uint8(cb >> 8)
		}
	}
}

// glyph picks the character for a cell: the converter's own choice, or
// a luminance lookup into the configured ramp.
func (e *engine) glyph(c cell) byte {
	if e.ramp == nil {
		return c.ch
	}
	lum := (299*int(c.r) + 587*int(c.g) + 114*int(c.b)) / 1000
	return e.ramp[lum*(len(e.ramp)-1)/255]
}

// cellSeq returns the SGR parameter sequence for a cell, without the CSI
// prefix or the trailing m. Empty means unstyled. Sequences are cached
// per RGB value; retro sources cycle through small palettes, so the
// cache almost always hits.
func (e *engine) cellSeq(c cell) string {
	if e.profile == termenv.Ascii {
		return ""
	}
	key := uint32(c.r)<<16 | uint32(c.g)<<8 | uint32(c.b)
	if seq, ok := e.seqCache[key]; ok {
		return seq
	}

	var seq string
	if e.cfg.fgOnly {
		seq = e.sequence(c.r, c.g, c.b, false)
	} else {
		// Painted backgrounds carry the image; the glyph is tinted
		// lighter so the ramp stays visible inside solid runs.
		fg := e.sequence(lighten(c.r), lighten(c.g), lighten(c.b), false)
		bg := e.sequence(c.r, c.g, c.b, true)
		switch {
		case fg == "":
			seq = bg
		case bg == "":
			seq = fg
		default:
			seq = fg + ";" + bg
		}
	}

	if len(e.seqCache) >= seqCacheLimit {
		e.seqCache = make(map[uint32]string)
	}
	e.seqCache[key] = seq
	return seq
}

func (e *engine) sequence(r, g, b uint8, bg bool) string {
	c := e.profile.Convert(termenv.RGBColor(fmt.Sprintf("#%02x%02x%02x", r, g, b)))
	if c == nil {
		return ""
	}
	return c.Sequence(bg)
}

func lighten(v uint8) uint8 { return v + (255-v)/3 }

func (e *engine) statusLine(text string) string {
	return e.status.Render(text)
}
