package main

import (
	"bytes"
	"io"

	"github.com/fatih/color"
)

const controlPrefix = "[control] "

// controlWriter prefixes every line of the control stream so it stands out among stderr
// output.
type controlWriter struct {
	w           io.Writer
	prefix      *color.Color
	atLineStart bool
}

func newControlWriter(w io.Writer, colored bool) *controlWriter {
	prefix := color.New(color.FgCyan)
	if colored {
		prefix.EnableColor()
	} else {
		prefix.DisableColor()
	}
	return &controlWriter{w: w, prefix: prefix, atLineStart: true}
}

func (c *controlWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if c.atLineStart {
			if _, err := c.prefix.Fprint(c.w, controlPrefix); err != nil {
				return written, err
			}
			c.atLineStart = false
		}

		line := p
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			line = p[:i+1]
			c.atLineStart = true
		}
		n, err := c.w.Write(line)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(line):]
	}
	return written, nil
}
