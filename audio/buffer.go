package audio

import (
	"io"
	"sync"
)

// RingBuffer is the fixed-capacity byte queue between the stepping
// goroutine and the audio device. When the writer outruns the reader the
// oldest bytes are dropped, so playback latency stays bounded instead of
// growing. Read blocks until data arrives or the buffer is closed, which
// is the pull model oto expects from its source reader.
type RingBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf      []byte
	readPos  int
	writePos int
	count    int
	closed   bool
}

var _ io.Reader = (*RingBuffer)(nil)

// NewRingBuffer returns a buffer holding at most capacity bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	rb := &RingBuffer{buf: make([]byte, capacity)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Write copies p into the buffer, dropping the oldest bytes when p does
// not fit. Writes after Close are discarded.
func (rb *RingBuffer) Write(p []byte) {
	if len(p) == 0 {
		return
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closed {
		return
	}

	capacity := len(rb.buf)
	if len(p) >= capacity {
		// Only the newest window can survive.
		copy(rb.buf, p[len(p)-capacity:])
		rb.readPos = 0
		rb.writePos = 0
		rb.count = capacity
		rb.cond.Signal()
		return
	}

	if overflow := rb.count + len(p) - capacity; overflow > 0 {
		rb.readPos = (rb.readPos + overflow) % capacity
		rb.count -= overflow
	}

	n := copy(rb.buf[rb.writePos:], p)
	if n < len(p) {
		copy(rb.buf, p[n:])
	}
	rb.writePos = (rb.writePos + len(p)) % capacity
	rb.count += len(p)
	rb.cond.Signal()
}

// Read fills p with buffered bytes, blocking while the buffer is empty.
// After Close it drains what remains and then reports io.EOF.
func (rb *RingBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for rb.count == 0 {
		if rb.closed {
			return 0, io.EOF
		}
		rb.cond.Wait()
	}

	n := len(p)
	if n > rb.count {
		n = rb.count
	}
	first := copy(p[:n], rb.buf[rb.readPos:])
	if first < n {
		copy(p[first:n], rb.buf)
	}
	rb.readPos = (rb.readPos + n) % len(rb.buf)
	rb.count -= n
	return n, nil
}

// Buffered returns the byte count waiting to be read.
func (rb *RingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Clear discards all buffered bytes.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.readPos = 0
	rb.writePos = 0
	rb.count = 0
}

// Close unblocks readers; remaining bytes stay readable until drained.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.cond.Broadcast()
}
