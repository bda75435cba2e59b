package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// deviceRate is the fixed device sample rate. Cores running at other
// rates are resampled on the way in; the oto context cannot be reopened
// with a different rate once created.
const deviceRate = 48000

// ringCapacity is ~167ms at 48kHz stereo 16-bit.
const ringCapacity = 32768

// playerBufferBytes shrinks oto's internal player buffer from its
// half-second default so queued audio stays close to real time.
const playerBufferBytes = 19200

// Player plays the core's stereo s16le stream through oto. QueueSamples
// is called from the audio callbacks on the stepping goroutine; the
// device pulls from the ring buffer on oto's own goroutine.
type Player struct {
	log    *log.Logger
	ring   *RingBuffer
	player *oto.Player
	bytes  []byte
	rs     resampler
}

// The oto context is process-global and can only be created once.
var (
	otoCtx     *oto.Context
	otoOnce    sync.Once
	otoInitErr error
)

func otoContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   deviceRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		<-ready
	})
	return otoCtx, otoInitErr
}

// NewPlayer opens the audio device and starts the pull loop. The volume
// is applied before playback begins so a muted start does not pop.
func NewPlayer(logger *log.Logger, volume float64) (*Player, error) {
	ctx, err := otoContext()
	if err != nil {
		return nil, fmt.Errorf("audio device unavailable: %w", err)
	}

	ring := NewRingBuffer(ringCapacity)
	player := ctx.NewPlayer(ring)
	player.SetBufferSize(playerBufferBytes)
	player.SetVolume(clampVolume(volume))
	player.Play()

	p := &Player{
		log:    logger,
		ring:   ring,
		player: player,
		bytes:  make([]byte, 0, 4096),
	}
	p.rs.setRates(deviceRate, deviceRate)
	return p, nil
}

// SetSampleRate retunes for the core's reported rate. Called at game load
// and again when the core replaces its AV info mid-session.
func (p *Player) SetSampleRate(hz int) {
	p.rs.setRates(hz, deviceRate)
	if hz != deviceRate {
		p.log.Debug("resampling audio", "core_hz", hz, "device_hz", deviceRate)
	}
}

// QueueSamples buffers interleaved stereo samples for playback. The slice
// is copied; callers may reuse it immediately.
func (p *Player) QueueSamples(samples []int16) {
	if len(samples) == 0 {
		return
	}
	if p.rs.active() {
		samples = p.rs.convert(samples)
	}

	needed := len(samples) * 2
	if cap(p.bytes) < needed {
		p.bytes = make([]byte, 0, needed)
	}
	p.bytes = p.bytes[:0]
	for _, s := range samples {
		p.bytes = append(p.bytes, byte(s), byte(s>>8))
	}
	p.ring.Write(p.bytes)
}

// BufferLevel returns the bytes queued between core and speaker.
func (p *Player) BufferLevel() int {
	return p.ring.Buffered() + p.player.BufferedSize()
}

// SetVolume adjusts playback volume; 0 is silent, 1 is normal, 2 is max.
func (p *Player) SetVolume(v float64) {
	p.player.SetVolume(clampVolume(v))
}

// Clear drops all queued audio, for mode switches where stale samples
// would play over new content.
func (p *Player) Clear() {
	p.ring.Clear()
}

// Close stops playback and releases the device player. The shared oto
// context stays open for the process lifetime.
func (p *Player) Close() error {
	p.ring.Close()
	return p.player.Close()
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 2 {
		return 2
	}
	return v
}
