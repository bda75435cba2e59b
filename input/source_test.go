package input

import (
	"testing"
	"time"
)

func newTestSource() (*Source, *time.Time) {
	now := time.Unix(1000, 0)
	s := NewSource()
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSourcePressDecays(t *testing.T) {
	s, now := newTestSource()
	s.Press(0, ButtonA)
	s.Poll()
	if s.State(0, deviceJoypad, 0, ButtonA) != 1 {
		t.Fatal("expected press visible after poll")
	}

	*now = now.Add(defaultHold + time.Millisecond)
	s.Poll()
	if s.State(0, deviceJoypad, 0, ButtonA) != 0 {
		t.Fatal("expected press to decay after the hold window")
	}
}

func TestSourceAutorepeatExtendsHold(t *testing.T) {
	s, now := newTestSource()
	s.Press(0, ButtonB)
	*now = now.Add(100 * time.Millisecond)
	s.Press(0, ButtonB) // terminal autorepeat
	*now = now.Add(100 * time.Millisecond)
	s.Poll()
	if s.State(0, deviceJoypad, 0, ButtonB) != 1 {
		t.Fatal("expected autorepeat to keep the button held")
	}
}

func TestSourceSnapshotStableBetweenPolls(t *testing.T) {
	s, now := newTestSource()
	s.Press(0, ButtonStart)
	s.Poll()
	// The hold expires, but the frame snapshot must not change until the
	// next poll.
	*now = now.Add(time.Second)
	if s.State(0, deviceJoypad, 0, ButtonStart) != 1 {
		t.Fatal("snapshot changed without a poll")
	}
	s.Poll()
	if s.State(0, deviceJoypad, 0, ButtonStart) != 0 {
		t.Fatal("expected decay at the next poll")
	}
}

func TestSourceHeldMask(t *testing.T) {
	s, _ := newTestSource()
	s.SetHeld(1, 1<<ButtonStart|1<<ButtonUp)
	s.Poll()
	if s.State(1, deviceJoypad, 0, ButtonStart) != 1 {
		t.Fatal("expected held start")
	}
	if s.State(1, deviceJoypad, 0, ButtonUp) != 1 {
		t.Fatal("expected held up")
	}
	s.SetHeld(1, 0)
	s.Poll()
	if s.State(1, deviceJoypad, 0, ButtonStart) != 0 {
		t.Fatal("expected release")
	}
}

func TestSourceMaskQuery(t *testing.T) {
	s, _ := newTestSource()
	s.Press(0, ButtonB)
	s.Press(0, ButtonStart)
	s.Poll()
	got := s.State(0, deviceJoypad, 0, maskID)
	want := int16(1<<ButtonB | 1<<ButtonStart)
	if got != want {
		t.Fatalf("expected mask %#x, got %#x", want, got)
	}
}

func TestSourceMaskQueryHighBit(t *testing.T) {
	s, _ := newTestSource()
	s.SetHeld(0, 1<<ButtonR3)
	s.Poll()
	got := s.State(0, deviceJoypad, 0, maskID)
	if uint16(got) != 1<<ButtonR3 {
		t.Fatalf("expected bit %d set, got %#x", ButtonR3, uint16(got))
	}
}

func TestSourceRejectsQueries(t *testing.T) {
	s, _ := newTestSource()
	s.SetHeld(0, 1<<ButtonA)
	s.Poll()

	cases := []struct {
		name                    string
		port, device, index, id uint32
	}{
		{"wrong device", 0, 2, 0, ButtonA},
		{"port out of range", MaxPorts, deviceJoypad, 0, ButtonA},
		{"nonzero index", 0, deviceJoypad, 1, ButtonA},
		{"id out of range", 0, deviceJoypad, 0, 200},
	}
	for _, tc := range cases {
		if got := s.State(tc.port, tc.device, tc.index, tc.id); got != 0 {
			t.Fatalf("%s: expected 0, got %d", tc.name, got)
		}
	}
}
