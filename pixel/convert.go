// Package pixel normalizes core framebuffer encodings into a canonical
// RGBA buffer. Cores hand the host one of three fixed-point encodings;
// everything downstream of the bridge works in RGBA only.
package pixel

import (
	"fmt"
	"image"
)

// Format identifies a framebuffer encoding declared by a core.
type Format int

const (
	// Format0RGB1555 is 16 bits per pixel, 5 bits per channel, top bit unused.
	Format0RGB1555 Format = 0
	// FormatXRGB8888 is 32 bits per pixel, 8 bits per channel, high byte unused.
	FormatXRGB8888 Format = 1
	// FormatRGB565 is 16 bits per pixel, 5-6-5 bits per channel.
	FormatRGB565 Format = 2
)

func (f Format) String() string {
	switch f {
	case Format0RGB1555:
		return "0RGB1555"
	case FormatXRGB8888:
		return "XRGB8888"
	case FormatRGB565:
		return "RGB565"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Supported reports whether f is an encoding the converter can decode.
func Supported(f Format) bool {
	switch f {
	case Format0RGB1555, FormatXRGB8888, FormatRGB565:
		return true
	}
	return false
}

// BytesPerPixel returns the source stride of one pixel, or 0 for an
// unsupported format.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatXRGB8888:
		return 4
	case Format0RGB1555, FormatRGB565:
		return 2
	}
	return 0
}

// table5 and table6 expand 5- and 6-bit channel values to 8 bits with
// correct rounding. All per-pixel scaling is table lookup.
var (
	table5 = buildTable(31)
	table6 = buildTable(63)
)

func buildTable(max int) [64]uint8 {
	var t [64]uint8
	for i := 0; i <= max; i++ {
		t[i] = uint8((i*255 + max/2) / max)
	}
	return t
}

// Converter decodes framebuffers into a reusable RGBA buffer. The buffer
// is reallocated only when the pixel count changes. Not safe for
// concurrent use; the stepping goroutine owns it.
type Converter struct {
	buf []byte
}

// Convert decodes src into the canonical RGBA buffer. pitch is the source
// row stride in bytes and may exceed width*bpp. The returned slice is
// owned by the Converter and stays valid until the next Convert or Detach.
// Alpha is always 255.
func (c *Converter) Convert(format Format, src []byte, width, height, pitch int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pixel: invalid dimensions %dx%d", width, height)
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("pixel: unsupported format %s", format)
	}
	if pitch < width*bpp {
		return nil, fmt.Errorf("pixel: pitch %d shorter than row width %d", pitch, width*bpp)
	}
	if min := pitch*(height-1) + width*bpp; len(src) < min {
		return nil, fmt.Errorf("pixel: source %d bytes, need %d", len(src), min)
	}

	need := width * height * 4
	if cap(c.buf) < need {
		c.buf = make([]byte, need)
	}
	c.buf = c.buf[:need]

	switch format {
	case FormatXRGB8888:
		c.fromXRGB8888(src, width, height, pitch)
	case FormatRGB565:
		c.fromRGB565(src, width, height, pitch)
	case Format0RGB1555:
		c.from0RGB1555(src, width, height, pitch)
	}
	return c.buf, nil
}

// Detach hands the current canonical buffer to the caller and forgets it.
// The next Convert allocates fresh storage. Used when the render worker
// takes ownership instead of copying.
func (c *Converter) Detach() []byte {
	buf := c.buf
	c.buf = nil
	return buf
}

// XRGB8888 is little-endian 0xXXRRGGBB, so bytes run B, G, R, X.
func (c *Converter) fromXRGB8888(src []byte, width, height, pitch int) {
	o := 0
	for y := 0; y < height; y++ {
		row := src[y*pitch:]
		for x := 0; x < width; x++ {
			i := x * 4
			c.buf[o] = row[i+2]
			c.buf[o+1] = row[i+1]
			c.buf[o+2] = row[i]
			c.buf[o+3] = 0xff
			o += 4
		}
	}
}

func (c *Converter) fromRGB565(src []byte, width, height, pitch int) {
	o := 0
	for y := 0; y < height; y++ {
		row := src[y*pitch:]
		for x := 0; x < width; x++ {
			v := uint16(row[2*x]) | uint16(row[2*x+1])<<8
			c.buf[o] = table5[v>>11]
			c.buf[o+1] = table6[(v>>5)&0x3f]
			c.buf[o+2] = table5[v&0x1f]
			c.buf[o+3] = 0xff
			o += 4
		}
	}
}

func (c *Converter) from0RGB1555(src []byte, width, height, pitch int) {
	o := 0
	for y := 0; y < height; y++ {
		row := src[y*pitch:]
		for x := 0; x < width; x++ {
			v := uint16(row[2*x]) | uint16(row[2*x+1])<<8
			c.buf[o] = table5[(v>>10)&0x1f]
			c.buf[o+1] = table5[(v>>5)&0x1f]
			c.buf[o+2] = table5[v&0x1f]
			c.buf[o+3] = 0xff
			o += 4
		}
	}
}

// Image wraps a canonical buffer as an image.RGBA without copying.
func Image(buf []byte, width, height int) *image.RGBA {
	return &image.RGBA{
		Pix:    buf,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
}
