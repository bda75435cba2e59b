// Package window mirrors core video into a desktop window and feeds
// keyboard and gamepad state back to the input source.
package window

import "sync"

// framebuffer hands RGBA frames from the stepping goroutine to the draw
// loop. Both sides copy under the lock, so neither ever holds the
// other's buffer.
type framebuffer struct {
	mu    sync.Mutex
	pix   []byte
	w, h  int
	dirty bool
}

// write stores a frame. pix is only borrowed for the duration of the
// call.
func (f *framebuffer) write(pix []byte, w, h int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cap(f.pix) < len(pix) {
		f.pix = make([]byte, len(pix))
	}
	f.pix = f.pix[:len(pix)]
	copy(f.pix, pix)
	f.w, f.h = w, h
	f.dirty = true
}

// read copies the latest frame into dst, growing it as needed, and
// reports the dimensions plus whether a new frame arrived since the
// previous read. Zero dimensions mean nothing has been written yet.
func (f *framebuffer) read(dst []byte) ([]byte, int, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.w == 0 || f.h == 0 {
		return dst, 0, 0, false
	}
	if cap(dst) < len(f.pix) {
		dst = make([]byte, len(f.pix))
	}
	dst = dst[:len(f.pix)]
	copy(dst, f.pix)
	dirty := f.dirty
	f.dirty = false
	return dst, f.w, f.h, dirty
}
