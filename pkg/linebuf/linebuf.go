// Package linebuf provides a line-buffering io.WriteCloser. Bytes accumulate in a fixed-size
// buffer and are handed to a flush hook on every newline, when the buffer fills up, or when
// Flush is called explicitly.
package linebuf

import (
	"sync"
)

// DefaultSize is the buffer capacity used when New is called with a size <= 0.
const DefaultSize = 8192

const newline = '\n'

// FlushFunc receives the buffered bytes. The slice is only valid during the call.
// An empty slice means Flush was called on an empty buffer.
type FlushFunc func(buf []byte) error

// Writer buffers written bytes line by line. It is safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	hook FlushFunc
	buf  []byte
}

// New creates a Writer which calls hook whenever a line (or a full buffer) is ready.
func New(hook FlushFunc, size int) *Writer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Writer{
		hook: hook,
		buf:  make([]byte, 0, size),
	}
}

// Write appends p to the buffer. Each newline in p flushes everything buffered up to and
// including that newline. A full buffer is flushed as it is, so the hook sees a partial line.
func (w *Writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for len(p) > 0 {
		if len(w.buf) == cap(w.buf) {
			if err := w.flushLocked(); err != nil {
				return n, err
			}
		}

		room := cap(w.buf) - len(w.buf)
		take := min(room, len(p))
		sawNewline := false
		for i, b := range p[:take] {
			if b == newline {
				take = i + 1
				sawNewline = true
				break
			}
		}

		w.buf = append(w.buf, p[:take]...)
		p = p[take:]
		n += take

		if sawNewline || len(w.buf) == cap(w.buf) {
			if err := w.flushLocked(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Flush hands the buffered bytes to the hook, even when there are none.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close is equivalent to Flush. The Writer stays usable afterwards.
func (w *Writer) Close() error {
	return w.Flush()
}

// Len returns the number of bytes currently buffered.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}

func (w *Writer) flushLocked() error {
	if err := w.hook(w.buf); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	return nil
}
