// Package saves persists battery RAM and save states under a per-game
// directory.
package saves

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// MaxSlot is the highest save-state slot; slots cycle 0 through MaxSlot.
const MaxSlot = 9

const (
	batteryFile = "battery.srm"
	resumeFile  = "resume.state"
)

// Serializer captures and restores the full core state.
type Serializer interface {
	Serialize(ctx context.Context) ([]byte, error)
	Unserialize(ctx context.Context, data []byte) error
}

// Battery exposes a battery-backed memory region.
type Battery interface {
	Size() int
	Bytes() ([]byte, error)
	Load(data []byte) error
}

// Dir returns the save directory for a game, keyed by system and CRC so
// renamed or moved ROM files keep their saves.
func Dir(base, system string, crc uint32) string {
	return filepath.Join(base, system, fmt.Sprintf("%08x", crc))
}

// Manager reads and writes the save files for one game. Battery failures
// are logged and swallowed: a broken save must never take the session
// down. State slot operations return their errors so the session can
// surface them in the status line.
type Manager struct {
	log  *log.Logger
	dir  string
	slot int

	lastBattery []byte
}

// New returns a manager rooted at dir, creating the directory if needed.
func New(logger *log.Logger, dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	return &Manager{log: logger, dir: dir}, nil
}

// Slot returns the active save-state slot.
func (m *Manager) Slot() int { return m.slot }

// NextSlot advances to the next slot, wrapping after MaxSlot.
func (m *Manager) NextSlot() int {
	m.slot = (m.slot + 1) % (MaxSlot + 1)
	return m.slot
}

func (m *Manager) statePath(slot int) string {
	return filepath.Join(m.dir, fmt.Sprintf("state-%d.state", slot))
}

func (m *Manager) batteryPath() string { return filepath.Join(m.dir, batteryFile) }
func (m *Manager) resumePath() string  { return filepath.Join(m.dir, resumeFile) }

// SaveState writes the core state to the active slot.
func (m *Manager) SaveState(ctx context.Context, core Serializer) error {
	return m.writeState(ctx, core, m.statePath(m.slot))
}

// LoadState restores the core state from the active slot.
func (m *Manager) LoadState(ctx context.Context, core Serializer) error {
	return m.readState(ctx, core, m.statePath(m.slot))
}

// SaveResume writes the state restored by the next --resume run.
func (m *Manager) SaveResume(ctx context.Context, core Serializer) error {
	return m.writeState(ctx, core, m.resumePath())
}

// LoadResume restores the resume state.
func (m *Manager) LoadResume(ctx context.Context, core Serializer) error {
	return m.readState(ctx, core, m.resumePath())
}

// HasResume reports whether a resume state exists.
func (m *Manager) HasResume() bool {
	_, err := os.Stat(m.resumePath())
	return err == nil
}

func (m *Manager) writeState(ctx context.Context, core Serializer, path string) error {
	data, err := core.Serialize(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	m.log.Info("state saved", "file", filepath.Base(path), "bytes", len(data))
	return nil
}

func (m *Manager) readState(ctx context.Context, core Serializer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	if err := core.Unserialize(ctx, data); err != nil {
		return err
	}
	m.log.Info("state loaded", "file", filepath.Base(path))
	return nil
}

// LoadBattery restores battery RAM from disk. Missing files are normal
// for a first run; a size mismatch means the file belongs to a different
// core build and is left alone.
func (m *Manager) LoadBattery(region Battery) {
	if region == nil {
		return
	}
	data, err := os.ReadFile(m.batteryPath())
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		m.log.Warn("battery read failed", "err", err)
		return
	}
	if err := region.Load(data); err != nil {
		m.log.Warn("battery restore skipped", "err", err)
		return
	}
	m.lastBattery = data
	m.log.Debug("battery loaded", "bytes", len(data))
}

// FlushBattery writes battery RAM when its contents changed since the
// last flush. Called periodically and at shutdown, before the bridge
// releases the core.
func (m *Manager) FlushBattery(region Battery) {
	if region == nil {
		return
	}
	data, err := region.Bytes()
	if err != nil {
		m.log.Warn("battery snapshot failed", "err", err)
		return
	}
	if len(data) == 0 || bytes.Equal(data, m.lastBattery) {
		return
	}
	if err := os.WriteFile(m.batteryPath(), data, 0644); err != nil {
		m.log.Warn("battery write failed", "err", err)
		return
	}
	m.lastBattery = data
	m.log.Debug("battery flushed", "bytes", len(data))
}
