// Package coredb maps ROM file extensions to emulated systems and
// resolves the core module that runs each of them.
package coredb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// System describes one emulated machine.
type System struct {
	// ID keys save directories, library records, and config overrides.
	ID string

	// Name is the human-readable title.
	Name string

	// Extensions are the ROM extensions the system claims, with dot,
	// lower case.
	Extensions []string

	// Core is the bundled default core module filename.
	Core string
}

var (
	// ErrUnknownSystem reports a ROM extension no system claims.
	ErrUnknownSystem = errors.New("coredb: no system for extension")

	// ErrCoreMissing reports a resolved core module absent from disk.
	ErrCoreMissing = errors.New("coredb: core module not found")
)

// systems is the bundled registry. Ambiguous extensions such as .bin are
// deliberately left out; those ROMs need an explicit core.
var systems = []System{
	{ID: "nes", Name: "Nintendo Entertainment System", Extensions: []string{".nes", ".fds"}, Core: "fceumm.wasm"},
	{ID: "snes", Name: "Super Nintendo", Extensions: []string{".sfc", ".smc"}, Core: "snes9x.wasm"},
	{ID: "gb", Name: "Game Boy", Extensions: []string{".gb"}, Core: "gambatte.wasm"},
	{ID: "gbc", Name: "Game Boy Color", Extensions: []string{".gbc"}, Core: "gambatte.wasm"},
	{ID: "gba", Name: "Game Boy Advance", Extensions: []string{".gba"}, Core: "mgba.wasm"},
	{ID: "sms", Name: "Sega Master System", Extensions: []string{".sms"}, Core: "genesis_plus_gx.wasm"},
	{ID: "gg", Name: "Sega Game Gear", Extensions: []string{".gg"}, Core: "genesis_plus_gx.wasm"},
	{ID: "genesis", Name: "Sega Genesis", Extensions: []string{".md", ".gen", ".smd"}, Core: "genesis_plus_gx.wasm"},
	{ID: "a2600", Name: "Atari 2600", Extensions: []string{".a26"}, Core: "stella2014.wasm"},
	{ID: "a7800", Name: "Atari 7800", Extensions: []string{".a78"}, Core: "prosystem.wasm"},
	{ID: "lynx", Name: "Atari Lynx", Extensions: []string{".lnx"}, Core: "handy.wasm"},
	{ID: "pce", Name: "PC Engine", Extensions: []string{".pce"}, Core: "mednafen_pce_fast.wasm"},
}

// Systems returns the registry in declaration order.
func Systems() []System {
	out := make([]System, len(systems))
	copy(out, systems)
	return out
}

// ByID looks a system up by its identifier.
func ByID(id string) (System, bool) {
	for _, s := range systems {
		if s.ID == id {
			return s, true
		}
	}
	return System{}, false
}

// ByExtension finds the system claiming ext. The dot is optional and
// case does not matter.
func ByExtension(ext string) (System, bool) {
	ext = normalizeExt(ext)
	for _, s := range systems {
		for _, e := range s.Extensions {
			if e == ext {
				return s, true
			}
		}
	}
	return System{}, false
}

// Extensions returns every registered ROM extension, sorted and
// deduplicated. Scanners use it as the accept list for archives.
func Extensions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range systems {
		for _, e := range s.Extensions {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	sort.Strings(out)
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Resolver picks the core module for a ROM. Precedence is the explicit
// CorePath, then a per-system override, then the bundled default.
type Resolver struct {
	// CoresDir holds the installed core modules.
	CoresDir string

	// CorePath, when set, is used verbatim and skips the registry.
	CorePath string

	// Overrides replaces the default module per system ID. Values may
	// be bare filenames under CoresDir or absolute paths.
	Overrides map[string]string
}

// Resolve maps a ROM file name to its system and the core module path.
// The name's extension selects the system; for archives pass the inner
// entry name. With an explicit CorePath an unclaimed extension resolves
// to a synthetic "custom" system so saves still land somewhere stable.
func (r Resolver) Resolve(name string) (System, string, error) {
	ext := normalizeExt(filepath.Ext(name))
	sys, known := ByExtension(ext)

	if r.CorePath != "" {
		if !known {
			sys = System{ID: "custom", Name: "Custom core"}
		}
		if _, err := os.Stat(r.CorePath); err != nil {
			return sys, "", fmt.Errorf("%w: %s", ErrCoreMissing, r.CorePath)
		}
		return sys, r.CorePath, nil
	}

	if !known {
		return System{}, "", fmt.Errorf("%w: %q", ErrUnknownSystem, ext)
	}

	path := r.ModulePath(sys)
	if _, err := os.Stat(path); err != nil {
		return sys, "", fmt.Errorf("%w: %s", ErrCoreMissing, path)
	}
	return sys, path, nil
}

// ModulePath returns where the core module for sys should live, after
// overrides. The file may not exist yet.
func (r Resolver) ModulePath(sys System) string {
	module := sys.Core
	if o := r.Overrides[sys.ID]; o != "" {
		module = o
	}
	if filepath.IsAbs(module) {
		return module
	}
	return filepath.Join(r.CoresDir, module)
}
