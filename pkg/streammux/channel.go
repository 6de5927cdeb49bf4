package streammux

import (
	"io"

	"streammux/pkg/linebuf"
)

// Channel is one logical stream of a Multiplexer. Every newline written to it emits a
// record; bytes without a trailing newline wait for the next newline or for Flush.
//
// Closing a Channel only flushes it. The shared output stays open and the Channel stays
// usable, so it can be handed to code which closes its writers when done.
type Channel struct {
	marker Marker
	mux    *Multiplexer
	buf    *linebuf.Writer
}

var _ io.WriteCloser = &Channel{}

// Marker returns the marker this Channel tags its records with.
func (c *Channel) Marker() Marker {
	return c.marker
}

func (c *Channel) Write(p []byte) (n int, err error) {
	return c.buf.Write(p)
}

// Flush emits the buffered bytes, marked as a partial line. With nothing buffered it only
// flushes the output.
func (c *Channel) Flush() error {
	return c.buf.Flush()
}

// Close is equivalent to Flush.
func (c *Channel) Close() error {
	return c.buf.Flush()
}

func (c *Channel) emit(buf []byte) error {
	return c.mux.emit(c.marker, buf)
}
