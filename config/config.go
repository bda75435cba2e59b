// Package config loads retroemu settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every user-tunable setting.
type Config struct {
	// Username is reported to cores that ask for one.
	Username string `yaml:"username"`

	Dirs    Dirs    `yaml:"dirs"`
	Display Display `yaml:"display"`
	Audio   Audio   `yaml:"audio"`

	// Keymap overrides terminal key bindings, button name to key token.
	Keymap map[string]string `yaml:"keymap"`

	// Cores overrides the core module per system ID.
	Cores map[string]string `yaml:"cores"`
}

// Dirs locates the directories handed to cores and persistence.
type Dirs struct {
	Cores  string `yaml:"cores"`
	Saves  string `yaml:"saves"`
	System string `yaml:"system"`

	// Data holds the library database and the session log.
	Data string `yaml:"data"`
}

// Display mirrors the terminal renderer options.
type Display struct {
	Symbols   string  `yaml:"symbols"`
	Colors    string  `yaml:"colors"`
	FgOnly    bool    `yaml:"fg_only"`
	Dither    bool    `yaml:"dither"`
	Contrast  float64 `yaml:"contrast"`
	Frameskip int     `yaml:"frameskip"`
}

// Audio holds output device settings.
type Audio struct {
	Volume float64 `yaml:"volume"`
	Muted  bool    `yaml:"muted"`
}

// BaseDir returns the retroemu home directory for the current platform:
// Application Support on macOS, APPDATA on Windows, XDG_DATA_HOME when
// set, otherwise ~/.retroemu.
func BaseDir() string {
	switch runtime.GOOS {
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "retroemu")
		}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "retroemu")
		}
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "retroemu")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".retroemu"
	}
	return filepath.Join(home, ".retroemu")
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	return filepath.Join(BaseDir(), "config.yaml")
}

// Default returns the configuration used when no file exists.
func Default() Config {
	base := BaseDir()
	return Config{
		Username: "player",
		Dirs: Dirs{
			Cores:  filepath.Join(base, "cores"),
			Saves:  filepath.Join(base, "saves"),
			System: filepath.Join(base, "system"),
			Data:   base,
		},
		Display: Display{Colors: "auto", Frameskip: 2},
		Audio:   Audio{Volume: 0.8},
	}
}

// Load reads the config at path, or the default location when path is
// empty. A missing file at the default location yields the defaults; an
// explicitly named file must exist. Parse failures are returned as-is so
// a broken config never runs with silently wrong settings.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.Dirs.Cores = expandHome(cfg.Dirs.Cores)
	cfg.Dirs.Saves = expandHome(cfg.Dirs.Saves)
	cfg.Dirs.System = expandHome(cfg.Dirs.System)
	cfg.Dirs.Data = expandHome(cfg.Dirs.Data)
	return cfg, nil
}

// EnsureDirs creates the configured directories if absent.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.Dirs.Cores, c.Dirs.Saves, c.Dirs.System, c.Dirs.Data} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
