package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/monteslu/retroemu/coredb"
	"github.com/monteslu/retroemu/romloader"
)

// Scanner walks directories and records every recognized game.
type Scanner struct {
	log   *log.Logger
	store *Store
}

// Result summarizes one scan run.
type Result struct {
	Scanned int // candidate files visited
	Added   int // rows written
	Skipped int // unreadable or unrecognized files
}

// NewScanner returns a scanner writing into store.
func NewScanner(logger *log.Logger, store *Store) *Scanner {
	return &Scanner{log: logger, store: store}
}

// Scan walks each directory and upserts every ROM it can identify.
// Unreadable files are skipped with a warning; store failures abort.
func (s *Scanner) Scan(dirs []string) (Result, error) {
	var res Result
	exts := coredb.Extensions()
	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || info.Mode()&os.ModeSymlink != 0 || !candidate(path) {
				return nil
			}
			res.Scanned++

			rom, err := romloader.Load(path, exts)
			if err != nil {
				s.log.Warn("skipping file", "path", path, "err", err)
				res.Skipped++
				return nil
			}
			sys, ok := coredb.ByExtension(filepath.Ext(rom.Name))
			if !ok {
				s.log.Warn("skipping file", "path", path, "err", "no system for entry "+rom.Name)
				res.Skipped++
				return nil
			}

			g := Game{
				CRC:    fmt.Sprintf("%08x", rom.CRC),
				Path:   path,
				System: sys.ID,
				Name:   DisplayName(rom.Name),
			}
			if err := s.store.SaveGame(g); err != nil {
				return err
			}
			res.Added++
			s.log.Debug("added game", "name", g.Name, "system", g.System, "crc", g.CRC)
			return nil
		})
		if err != nil {
			return res, fmt.Errorf("scan %s: %w", dir, err)
		}
	}
	return res, nil
}

// candidate reports whether a path could hold a ROM: a registered
// extension or any supported archive format.
func candidate(path string) bool {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".zip", ".7z", ".gz", ".tgz", ".rar":
		return true
	default:
		_, ok := coredb.ByExtension(ext)
		return ok
	}
}

// DisplayName derives a title from a ROM file name. The extension and
// trailing region or dump annotations in parentheses or brackets are
// stripped: "Super Game (USA) [!].sfc" becomes "Super Game".
func DisplayName(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	for _, sep := range []string{" (", " ["} {
		if i := strings.Index(name, sep); i > 0 {
			name = name[:i]
		}
	}
	return strings.TrimSpace(name)
}
