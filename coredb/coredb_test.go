package coredb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestByExtension(t *testing.T) {
	cases := []struct {
		ext  string
		want string
		ok   bool
	}{
		{".nes", "nes", true},
		{"nes", "nes", true},
		{".NES", "nes", true},
		{".sfc", "snes", true},
		{".gg", "gg", true},
		{".bin", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		sys, ok := ByExtension(tc.ext)
		if ok != tc.ok {
			t.Fatalf("ByExtension(%q): ok = %v, want %v", tc.ext, ok, tc.ok)
		}
		if ok && sys.ID != tc.want {
			t.Fatalf("ByExtension(%q) = %s, want %s", tc.ext, sys.ID, tc.want)
		}
	}
}

func TestExtensionsDeduplicated(t *testing.T) {
	exts := Extensions()
	seen := make(map[string]bool)
	for _, e := range exts {
		if seen[e] {
			t.Fatalf("duplicate extension %q", e)
		}
		seen[e] = true
	}
	if !seen[".nes"] || !seen[".gba"] {
		t.Fatal("expected bundled extensions present")
	}
}

func TestRegistryConsistent(t *testing.T) {
	ids := make(map[string]bool)
	for _, s := range Systems() {
		if ids[s.ID] {
			t.Fatalf("duplicate system id %q", s.ID)
		}
		ids[s.ID] = true
		if s.Core == "" || len(s.Extensions) == 0 {
			t.Fatalf("system %q incomplete", s.ID)
		}
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("wasm"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "fceumm.wasm"))

	r := Resolver{CoresDir: dir}
	sys, core, err := r.Resolve("mario.nes")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sys.ID != "nes" {
		t.Fatalf("system = %s, want nes", sys.ID)
	}
	if core != filepath.Join(dir, "fceumm.wasm") {
		t.Fatalf("core = %s", core)
	}
}

func TestResolveOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "nestopia.wasm"))

	r := Resolver{CoresDir: dir, Overrides: map[string]string{"nes": "nestopia.wasm"}}
	_, core, err := r.Resolve("mario.nes")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(core) != "nestopia.wasm" {
		t.Fatalf("core = %s, want override", core)
	}
}

func TestResolveExplicitCore(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "special.wasm")
	writeFile(t, explicit)

	r := Resolver{CoresDir: dir, CorePath: explicit, Overrides: map[string]string{"nes": "other.wasm"}}
	sys, core, err := r.Resolve("mario.nes")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if core != explicit {
		t.Fatalf("core = %s, want explicit path", core)
	}
	if sys.ID != "nes" {
		t.Fatalf("system = %s, want nes", sys.ID)
	}
}

func TestResolveExplicitCoreUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "special.wasm")
	writeFile(t, explicit)

	r := Resolver{CorePath: explicit}
	sys, _, err := r.Resolve("game.xyz")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sys.ID != "custom" {
		t.Fatalf("system = %s, want custom", sys.ID)
	}
}

func TestResolveUnknownSystem(t *testing.T) {
	r := Resolver{CoresDir: t.TempDir()}
	_, _, err := r.Resolve("game.xyz")
	if !errors.Is(err, ErrUnknownSystem) {
		t.Fatalf("err = %v, want ErrUnknownSystem", err)
	}
}

func TestResolveCoreMissing(t *testing.T) {
	r := Resolver{CoresDir: t.TempDir()}
	_, _, err := r.Resolve("mario.nes")
	if !errors.Is(err, ErrCoreMissing) {
		t.Fatalf("err = %v, want ErrCoreMissing", err)
	}
	if errors.Is(err, ErrUnknownSystem) {
		t.Fatal("missing module must not read as unknown system")
	}
}

func TestResolveAbsoluteOverride(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "elsewhere.wasm")
	writeFile(t, abs)

	r := Resolver{CoresDir: t.TempDir(), Overrides: map[string]string{"gb": abs}}
	_, core, err := r.Resolve("tetris.gb")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if core != abs {
		t.Fatalf("core = %s, want absolute override", core)
	}
}

func TestModulePathWithoutStat(t *testing.T) {
	sys, ok := ByID("snes")
	if !ok {
		t.Fatal("snes missing from registry")
	}

	r := Resolver{CoresDir: "/opt/cores"}
	if got, want := r.ModulePath(sys), filepath.Join("/opt/cores", sys.Core); got != want {
		t.Fatalf("ModulePath = %s, want %s", got, want)
	}

	r.Overrides = map[string]string{"snes": "bsnes.wasm"}
	if got, want := r.ModulePath(sys), filepath.Join("/opt/cores", "bsnes.wasm"); got != want {
		t.Fatalf("override ModulePath = %s, want %s", got, want)
	}
}
