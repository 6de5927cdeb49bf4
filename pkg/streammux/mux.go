package streammux

import (
	"fmt"
	"io"
	"sync"

	"streammux/pkg/linebuf"
)

// Flusher is implemented by physical outputs which buffer internally, like *bufio.Writer.
type Flusher interface {
	Flush() error
}

// Multiplexer serializes the records of all its Channels onto one physical output.
// It never closes the output.
type Multiplexer struct {
	mu         sync.Mutex
	out        io.Writer
	record     []byte // scratch space for one record, guarded by mu
	bufferSize int
}

type Option func(*Multiplexer)

// WithBufferSize sets the line buffer capacity of Channels created afterwards. A line longer
// than the buffer is emitted as several partial records.
func WithBufferSize(size int) Option {
	return func(m *Multiplexer) {
		m.bufferSize = size
	}
}

// New creates a Multiplexer writing to out.
func New(out io.Writer, opts ...Option) *Multiplexer {
	if out == nil {
		panic("streammux: nil output")
	}
	m := &Multiplexer{
		out:        out,
		bufferSize: linebuf.DefaultSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Channel creates a Channel tagging its records with marker.
func (m *Multiplexer) Channel(marker Marker) (*Channel, error) {
	if !marker.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMarker, byte(marker))
	}
	return m.newChannel(marker), nil
}

// Stdout creates a Channel with the marker '1'.
func (m *Multiplexer) Stdout() *Channel {
	return m.newChannel(MarkerStdout)
}

// Stderr creates a Channel with the marker '2'.
func (m *Multiplexer) Stderr() *Channel {
	return m.newChannel(MarkerStderr)
}

// Control creates a Channel with the marker '3'.
func (m *Multiplexer) Control() *Channel {
	return m.newChannel(MarkerControl)
}

func (m *Multiplexer) newChannel(marker Marker) *Channel {
	c := &Channel{
		marker: marker,
		mux:    m,
	}
	c.buf = linebuf.New(c.emit, m.bufferSize)
	return c
}

// emit writes one record for payload. An empty payload only flushes the output.
func (m *Multiplexer) emit(marker Marker, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(payload) > 0 {
		partial := payload[len(payload)-1] != newline

		rec := append(m.record[:0], at, byte(marker))
		if partial {
			rec = append(rec, at)
		}
		rec = append(rec, newline)
		rec = append(rec, payload...)
		if partial {
			rec = append(rec, newline)
		}
		m.record = rec

		if _, err := m.out.Write(rec); err != nil {
			return fmt.Errorf("writing record for marker %q: %w", byte(marker), err)
		}
	}

	if f, ok := m.out.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flushing output: %w", err)
		}
	}
	return nil
}
