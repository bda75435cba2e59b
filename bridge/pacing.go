package bridge

import (
	"context"
	"errors"
	"runtime"
	"time"
)

// coarseThreshold splits the hybrid wait: above it the pacer sleeps,
// below it it yields in a tight loop to hit the deadline precisely.
const coarseThreshold = 2 * time.Millisecond

// Pacer drives one core step per frame interval. The reference time
// advances by the interval rather than by measured elapsed time, so
// scheduler jitter does not compound; after a stall the backlog is
// discarded instead of caught up in a burst.
//
// All methods run on the stepping goroutine.
type Pacer struct {
	interval time.Duration
	speed    float64

	now   func() time.Time
	sleep func(time.Duration)
	yield func()

	ref time.Time
}

// NewPacer returns a pacer stepping at fps frames per second.
func NewPacer(fps float64) *Pacer {
	p := &Pacer{
		speed: 1,
		now:   time.Now,
		sleep: time.Sleep,
		yield: runtime.Gosched,
	}
	p.SetFPS(fps)
	return p
}

// SetFPS retimes the pacer; SET_SYSTEM_AV_INFO lands here mid-session.
func (p *Pacer) SetFPS(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	p.interval = time.Duration(float64(time.Second) / fps)
}

// Interval returns the unscaled frame interval.
func (p *Pacer) Interval() time.Duration { return p.interval }

// SetSpeed applies a fast-forward multiplier; 1 is normal speed.
func (p *Pacer) SetSpeed(mult float64) {
	if mult <= 0 {
		mult = 1
	}
	p.speed = mult
}

// Speed returns the current multiplier.
func (p *Pacer) Speed() float64 { return p.speed }

// stepInterval is the per-step target after the speed multiplier.
func (p *Pacer) stepInterval() time.Duration {
	if p.speed == 1 {
		return p.interval
	}
	return time.Duration(float64(p.interval) / p.speed)
}

// Run steps until ctx is canceled or step fails. A step returning
// ErrNotRunning is the clean end of the session.
func (p *Pacer) Run(ctx context.Context, step func() error) error {
	p.ref = p.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := step(); err != nil {
			if errors.Is(err, ErrNotRunning) {
				return nil
			}
			return err
		}
		p.ref = p.ref.Add(p.stepInterval())
		if p.ref.Before(p.now()) {
			// Stalled: drop the backlog and re-anchor at now.
			p.ref = p.now()
			continue
		}
		p.waitUntil(p.ref)
	}
}

// waitUntil blocks until deadline: coarse sleeps while the budget is
// comfortable, then yields for the last stretch.
func (p *Pacer) waitUntil(deadline time.Time) {
	for {
		remaining := deadline.Sub(p.now())
		if remaining <= 0 {
			return
		}
		if remaining > coarseThreshold {
			p.sleep(remaining - time.Millisecond)
		} else {
			p.yield()
		}
	}
}
