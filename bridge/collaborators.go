package bridge

// VideoSink receives one canonical RGBA frame per stepped frame. OnFrame
// must return promptly. It may take ownership of buf by returning true,
// in which case the bridge abandons the buffer and allocates a fresh one
// for the next frame.
type VideoSink interface {
	OnFrame(buf []byte, width, height int) (taken bool)
}

// AudioSink receives interleaved stereo samples from the core's audio
// callbacks. QueueSamples must not block the stepping goroutine and must
// copy: the slice is reused after the call returns.
type AudioSink interface {
	SetSampleRate(hz int)
	QueueSamples(samples []int16)
}

// InputSource supplies controller state to the core. Poll refreshes the
// snapshot once per frame; State answers from that snapshot only and must
// be safe to call at arbitrary frequency from within a core callback.
type InputSource interface {
	Poll()
	State(port, device, index, id uint32) int16
}

type nopVideo struct{}

func (nopVideo) OnFrame([]byte, int, int) bool { return false }

type nopAudio struct{}

func (nopAudio) SetSampleRate(int)    {}
func (nopAudio) QueueSamples([]int16) {}

type nopInput struct{}

func (nopInput) Poll()                                {}
func (nopInput) State(_, _, _, _ uint32) int16        { return 0 }

var (
	_ VideoSink   = nopVideo{}
	_ AudioSink   = nopAudio{}
	_ InputSource = nopInput{}
)
