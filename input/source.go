package input

import (
	"sync"
	"time"
)

// defaultHold is how long a terminal key press counts as held. Terminals
// report presses but never releases, so each press opens a window that
// autorepeat keeps extending while the key stays down.
const defaultHold = 150 * time.Millisecond

// Source aggregates button state for the core's input callbacks. Feeders
// run on their own goroutines: terminal presses decay after a hold
// window, window-mode masks are level-triggered and replaced wholesale.
// Poll latches everything into a snapshot; State answers from the
// snapshot only, so a frame sees one consistent view no matter how many
// times the core asks.
type Source struct {
	mu     sync.Mutex
	now    func() time.Time
	hold   time.Duration
	expiry [MaxPorts][buttonCount]time.Time
	held   [MaxPorts]uint32

	// snapshot is read on the stepping goroutine only.
	snapshot [MaxPorts]uint32
}

// NewSource returns a Source with the default hold window.
func NewSource() *Source {
	return &Source{now: time.Now, hold: defaultHold}
}

// Press registers a momentary press that stays down for the hold window.
func (s *Source) Press(port, button int) {
	if port < 0 || port >= MaxPorts || button < 0 || button >= buttonCount {
		return
	}
	s.mu.Lock()
	s.expiry[port][button] = s.now().Add(s.hold)
	s.mu.Unlock()
}

// SetHeld replaces a port's level-triggered mask, for feeders that see
// real key-up events.
func (s *Source) SetHeld(port int, mask uint32) {
	if port < 0 || port >= MaxPorts {
		return
	}
	s.mu.Lock()
	s.held[port] = mask
	s.mu.Unlock()
}

// Poll latches current state into the frame snapshot. Called once per
// frame from the core's input-poll callback.
func (s *Source) Poll() {
	s.mu.Lock()
	now := s.now()
	for port := 0; port < MaxPorts; port++ {
		mask := s.held[port]
		for id := 0; id < buttonCount; id++ {
			if s.expiry[port][id].After(now) {
				mask |= 1 << uint(id)
			}
		}
		s.snapshot[port] = mask
	}
	s.mu.Unlock()
}

// State answers one input-state query from the latched snapshot.
func (s *Source) State(port, device, index, id uint32) int16 {
	if device != deviceJoypad || index != 0 || port >= MaxPorts {
		return 0
	}
	mask := s.snapshot[port]
	if id == maskID {
		return int16(uint16(mask))
	}
	if id >= buttonCount {
		return 0
	}
	if mask&(1<<id) != 0 {
		return 1
	}
	return 0
}
