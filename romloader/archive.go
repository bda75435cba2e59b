package romloader

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

// extractZip returns the first zip entry with an accepted extension.
func extractZip(path string, exts []string) ([]byte, string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !accepted(strings.ToLower(filepath.Ext(f.Name)), exts) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		data, err := readCapped(rc)
		rc.Close()
		if err != nil {
			return nil, "", err
		}
		return data, filepath.Base(f.Name), nil
	}
	return nil, "", ErrNoROM
}

// extractSevenZip returns the first 7z entry with an accepted extension.
func extractSevenZip(path string, exts []string) ([]byte, string, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("open 7z: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !accepted(strings.ToLower(filepath.Ext(f.Name)), exts) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		data, err := readCapped(rc)
		rc.Close()
		if err != nil {
			return nil, "", err
		}
		return data, filepath.Base(f.Name), nil
	}
	return nil, "", ErrNoROM
}

// extractGzip decompresses a gzip stream. A .tar.gz or .tgz is searched
// like any other archive; a plain .gz is taken whole, named after the
// stream header when one is present.
func extractGzip(f *os.File, path string, exts []string) ([]byte, string, error) {
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, "", fmt.Errorf("open gzip: %w", err)
	}
	defer zr.Close()

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return extractTar(zr, exts)
	}

	data, err := readCapped(zr)
	if err != nil {
		return nil, "", err
	}
	name := zr.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return data, filepath.Base(name), nil
}

func extractTar(r io.Reader, exts []string) ([]byte, string, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, "", ErrNoROM
		}
		if err != nil {
			return nil, "", fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || !accepted(strings.ToLower(filepath.Ext(hdr.Name)), exts) {
			continue
		}
		data, err := readCapped(tr)
		if err != nil {
			return nil, "", err
		}
		return data, filepath.Base(hdr.Name), nil
	}
}

// extractRar returns the first rar entry with an accepted extension.
func extractRar(path string, exts []string) ([]byte, string, error) {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("open rar: %w", err)
	}
	defer r.Close()

	for {
		hdr, err := r.Next()
		if err == io.EOF {
			return nil, "", ErrNoROM
		}
		if err != nil {
			return nil, "", fmt.Errorf("read rar: %w", err)
		}
		if hdr.IsDir || !accepted(strings.ToLower(filepath.Ext(hdr.Name)), exts) {
			continue
		}
		data, err := readCapped(r)
		if err != nil {
			return nil, "", err
		}
		return data, filepath.Base(hdr.Name), nil
	}
}
