// Package romloader reads game images from plain files or from zip, 7z,
// gzip/tar.gz, and rar archives.
package romloader

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxSize caps an extracted image so a hostile archive cannot balloon
// memory. Larger than any cartridge image in practice.
const maxSize = 64 << 20

var (
	// ErrNoROM reports an archive holding no entry with an accepted
	// extension.
	ErrNoROM = errors.New("romloader: no rom entry in archive")

	// ErrUnsupported reports a file that is neither a known archive nor
	// an accepted ROM extension.
	ErrUnsupported = errors.New("romloader: unsupported file format")

	// ErrTooLarge reports an image beyond the size cap.
	ErrTooLarge = errors.New("romloader: image exceeds size limit")
)

// ROM is one loaded game image.
type ROM struct {
	// Data is the raw image.
	Data []byte

	// Name is the image's own file name: the entry name for archives,
	// the base name otherwise. Its extension identifies the system.
	Name string

	// Path is where the image was loaded from.
	Path string

	// CRC is the IEEE CRC32 of Data, the library identity of the game.
	CRC uint32
}

type format int

const (
	formatUnknown format = iota
	formatRaw
	formatZip
	formatSevenZip
	formatGzip
	formatRar
)

// magics maps archive signatures to formats. Magic wins over extension
// so misnamed archives still open.
var magics = []struct {
	prefix []byte
	format format
}{
	{[]byte{0x50, 0x4b, 0x03, 0x04}, formatZip},
	{[]byte{0x50, 0x4b, 0x05, 0x06}, formatZip},
	{[]byte{0x37, 0x7a, 0xbc, 0xaf, 0x27, 0x1c}, formatSevenZip},
	{[]byte{0x1f, 0x8b}, formatGzip},
	{[]byte{0x52, 0x61, 0x72, 0x21}, formatRar},
}

// Load reads the game image at path. Archives yield their first entry
// with an accepted extension. An empty accept list takes any file, which
// is how explicitly chosen cores run ROMs the registry does not know.
func Load(path string, exts []string) (*ROM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rom: %w", err)
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind: %w", err)
	}

	var data []byte
	name := filepath.Base(path)
	switch detect(header[:n], path, exts) {
	case formatRaw:
		data, err = readCapped(f)
	case formatZip:
		data, name, err = extractZip(path, exts)
	case formatSevenZip:
		data, name, err = extractSevenZip(path, exts)
	case formatGzip:
		data, name, err = extractGzip(f, path, exts)
	case formatRar:
		data, name, err = extractRar(path, exts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	if err != nil {
		return nil, err
	}
	return &ROM{
		Data: data,
		Name: name,
		Path: path,
		CRC:  crc32.ChecksumIEEE(data),
	}, nil
}

// detect classifies a file by magic bytes first, then by extension.
func detect(header []byte, path string, exts []string) format {
	for _, m := range magics {
		if bytes.HasPrefix(header, m.prefix) {
			return m.format
		}
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".zip":
		return formatZip
	case ".7z":
		return formatSevenZip
	case ".gz", ".tgz":
		return formatGzip
	case ".rar":
		return formatRar
	default:
		if accepted(ext, exts) {
			return formatRaw
		}
	}
	return formatUnknown
}

// accepted reports whether ext is in the accept list. An empty list
// accepts everything.
func accepted(ext string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// readCapped drains r, failing once the size cap is crossed.
func readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
