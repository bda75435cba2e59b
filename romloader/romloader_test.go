package romloader

import (
	"bytes"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
)

var smsOnly = []string{".sms"}

func writeROM(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRaw(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	path := writeROM(t, "sonic.sms", data)

	rom, err := Load(path, smsOnly)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(rom.Data, data) {
		t.Fatalf("data = %v, want %v", rom.Data, data)
	}
	if rom.Name != "sonic.sms" {
		t.Fatalf("name = %q", rom.Name)
	}
	if rom.Path != path {
		t.Fatalf("path = %q", rom.Path)
	}
	if rom.CRC != crc32.ChecksumIEEE(data) {
		t.Fatalf("crc = %08x", rom.CRC)
	}
}

func TestLoadRawCaseInsensitiveExtension(t *testing.T) {
	path := writeROM(t, "SONIC.SMS", []byte{0xff})
	rom, err := Load(path, smsOnly)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rom.Name != "SONIC.SMS" {
		t.Fatalf("name = %q", rom.Name)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeROM(t, "notes.txt", []byte("hello"))
	_, err := Load(path, smsOnly)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestLoadEmptyAcceptListTakesAnything(t *testing.T) {
	data := []byte{0xde, 0xad}
	path := writeROM(t, "game.xyz", data)
	rom, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(rom.Data, data) {
		t.Fatal("data mismatch")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "gone.sms"), smsOnly); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDetectMagic(t *testing.T) {
	cases := []struct {
		header []byte
		want   format
	}{
		{[]byte{0x50, 0x4b, 0x03, 0x04}, formatZip},
		{[]byte{0x50, 0x4b, 0x05, 0x06}, formatZip},
		{[]byte{0x37, 0x7a, 0xbc, 0xaf, 0x27, 0x1c}, formatSevenZip},
		{[]byte{0x1f, 0x8b}, formatGzip},
		{[]byte{0x52, 0x61, 0x72, 0x21}, formatRar},
		{[]byte{0x00, 0x01}, formatUnknown},
	}
	for _, tc := range cases {
		// A neutral name keeps extension detection out of the way.
		if got := detect(tc.header, "file.dat", smsOnly); got != tc.want {
			t.Fatalf("detect(%v) = %d, want %d", tc.header, got, tc.want)
		}
	}
}

func TestDetectExtensionFallback(t *testing.T) {
	cases := []struct {
		path string
		want format
	}{
		{"game.sms", formatRaw},
		{"game.SMS", formatRaw},
		{"game.zip", formatZip},
		{"game.7z", formatSevenZip},
		{"game.gz", formatGzip},
		{"game.tgz", formatGzip},
		{"game.tar.gz", formatGzip},
		{"game.rar", formatRar},
		{"game.md", formatUnknown},
	}
	for _, tc := range cases {
		if got := detect(nil, tc.path, smsOnly); got != tc.want {
			t.Fatalf("detect(%s) = %d, want %d", tc.path, got, tc.want)
		}
	}
}

func TestAccepted(t *testing.T) {
	if !accepted(".sms", smsOnly) || accepted(".md", smsOnly) {
		t.Fatal("accept list not honored")
	}
	if !accepted(".anything", nil) {
		t.Fatal("empty list must accept everything")
	}
}

func TestReadCapped(t *testing.T) {
	small := bytes.Repeat([]byte{0xaa}, 32)
	got, err := readCapped(bytes.NewReader(small))
	if err != nil {
		t.Fatalf("readCapped: %v", err)
	}
	if !bytes.Equal(got, small) {
		t.Fatal("data mismatch")
	}
}
