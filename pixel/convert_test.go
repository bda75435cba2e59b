package pixel

import (
	"testing"
)

func TestLookupTableEndpoints(t *testing.T) {
	if table5[0] != 0 {
		t.Fatalf("expected table5[0] = 0, got %d", table5[0])
	}
	if table5[31] != 255 {
		t.Fatalf("expected table5[31] = 255, got %d", table5[31])
	}
	if table6[0] != 0 {
		t.Fatalf("expected table6[0] = 0, got %d", table6[0])
	}
	if table6[63] != 255 {
		t.Fatalf("expected table6[63] = 255, got %d", table6[63])
	}
}

func TestLookupTableMonotonic(t *testing.T) {
	for i := 1; i <= 31; i++ {
		if table5[i] < table5[i-1] {
			t.Fatalf("table5 decreases at %d: %d < %d", i, table5[i], table5[i-1])
		}
	}
	for i := 1; i <= 63; i++ {
		if table6[i] < table6[i-1] {
			t.Fatalf("table6 decreases at %d: %d < %d", i, table6[i], table6[i-1])
		}
	}
}

func TestLookupTableRounding(t *testing.T) {
	// round(16*255/31) = round(131.61) = 132
	if table5[16] != 132 {
		t.Fatalf("expected table5[16] = 132, got %d", table5[16])
	}
	// round(32*255/63) = round(129.52) = 130
	if table6[32] != 130 {
		t.Fatalf("expected table6[32] = 130, got %d", table6[32])
	}
}

func TestConvertWhiteAndBlack(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		white  []byte
		black  []byte
	}{
		{"XRGB8888", FormatXRGB8888, []byte{0xff, 0xff, 0xff, 0x00}, []byte{0x00, 0x00, 0x00, 0x00}},
		{"RGB565", FormatRGB565, []byte{0xff, 0xff}, []byte{0x00, 0x00}},
		{"0RGB1555", Format0RGB1555, []byte{0xff, 0x7f}, []byte{0x00, 0x00}},
		// Top bit must be ignored for 1555.
		{"0RGB1555 top bit set", Format0RGB1555, []byte{0xff, 0xff}, []byte{0x00, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Converter
			out, err := c.Convert(tt.format, tt.white, 1, 1, len(tt.white))
			if err != nil {
				t.Fatalf("convert white: %v", err)
			}
			for i := 0; i < 4; i++ {
				if out[i] != 255 {
					t.Fatalf("white channel %d: expected 255, got %d", i, out[i])
				}
			}
			out, err = c.Convert(tt.format, tt.black, 1, 1, len(tt.black))
			if err != nil {
				t.Fatalf("convert black: %v", err)
			}
			for i := 0; i < 3; i++ {
				if out[i] != 0 {
					t.Fatalf("black channel %d: expected 0, got %d", i, out[i])
				}
			}
			if out[3] != 255 {
				t.Fatalf("expected opaque alpha, got %d", out[3])
			}
		})
	}
}

func TestConvertRGB565Channels(t *testing.T) {
	tests := []struct {
		name    string
		pixel   uint16
		r, g, b uint8
	}{
		{"red", 0xf800, 255, 0, 0},
		{"green", 0x07e0, 0, 255, 0},
		{"blue", 0x001f, 0, 0, 255},
	}
	var c Converter
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := []byte{byte(tt.pixel), byte(tt.pixel >> 8)}
			out, err := c.Convert(FormatRGB565, src, 1, 1, 2)
			if err != nil {
				t.Fatalf("convert: %v", err)
			}
			if out[0] != tt.r || out[1] != tt.g || out[2] != tt.b {
				t.Fatalf("expected (%d,%d,%d), got (%d,%d,%d)",
					tt.r, tt.g, tt.b, out[0], out[1], out[2])
			}
		})
	}
}

func TestConvertXRGB8888ByteOrder(t *testing.T) {
	// Little-endian 0x00RRGGBB: memory holds B, G, R, X.
	src := []byte{0x30, 0x20, 0x10, 0x00}
	var c Converter
	out, err := c.Convert(FormatXRGB8888, src, 1, 1, 4)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out[0] != 0x10 || out[1] != 0x20 || out[2] != 0x30 {
		t.Fatalf("expected (16,32,48), got (%d,%d,%d)", out[0], out[1], out[2])
	}
}

func TestConvertHonorsPitch(t *testing.T) {
	// 2x2 RGB565 with 4 padding bytes per row.
	src := make([]byte, 2*8)
	for _, i := range []int{0, 2, 8, 10} {
		src[i] = 0xff
		src[i+1] = 0xff
	}
	var c Converter
	out, err := c.Convert(FormatRGB565, src, 2, 2, 8)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	for p := 0; p < 4; p++ {
		if out[p*4] != 255 || out[p*4+1] != 255 || out[p*4+2] != 255 {
			t.Fatalf("pixel %d not white: %v", p, out[p*4:p*4+4])
		}
	}
}

func TestConvertReusesBuffer(t *testing.T) {
	src := make([]byte, 4*4*2)
	var c Converter
	a, err := c.Convert(FormatRGB565, src, 4, 4, 8)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	b, err := c.Convert(FormatRGB565, src, 4, 4, 8)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if &a[0] != &b[0] {
		t.Fatal("expected same backing buffer for same-size frames")
	}

	detached := c.Detach()
	if &detached[0] != &b[0] {
		t.Fatal("detach returned a different buffer")
	}
	d, err := c.Convert(FormatRGB565, src, 4, 4, 8)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if &d[0] == &detached[0] {
		t.Fatal("expected fresh buffer after detach")
	}
}

func TestConvertRejectsBadInput(t *testing.T) {
	var c Converter
	if _, err := c.Convert(Format(99), make([]byte, 16), 2, 2, 4); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if _, err := c.Convert(FormatRGB565, make([]byte, 2), 2, 2, 4); err == nil {
		t.Fatal("expected error for short source")
	}
	if _, err := c.Convert(FormatRGB565, nil, 0, 0, 0); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
	if _, err := c.Convert(FormatRGB565, make([]byte, 16), 4, 1, 2); err == nil {
		t.Fatal("expected error for pitch shorter than row")
	}
}

func TestImageWrapsWithoutCopy(t *testing.T) {
	buf := []byte{1, 2, 3, 255, 4, 5, 6, 255}
	img := Image(buf, 2, 1)
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 1 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	r, g, b, _ := img.At(1, 0).RGBA()
	if uint8(r>>8) != 4 || uint8(g>>8) != 5 || uint8(b>>8) != 6 {
		t.Fatalf("expected (4,5,6), got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
	buf[0] = 9
	if img.Pix[0] != 9 {
		t.Fatal("expected shared backing storage")
	}
}
