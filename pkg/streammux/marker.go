package streammux

import (
	"errors"
	"fmt"
)

// Marker identifies a logical stream in the combined output.
type Marker byte

const (
	MarkerStdout  Marker = '1'
	MarkerStderr  Marker = '2'
	MarkerControl Marker = '3'
)

const (
	at      = '@'
	newline = '\n'
)

// ErrInvalidMarker is returned for markers which would break the framing.
var ErrInvalidMarker = errors.New("invalid marker")

// Valid reports whether m is a printable ASCII byte other than '@'.
func (m Marker) Valid() bool {
	return m > ' ' && m < 0x7f && m != at
}

func (m Marker) String() string {
	switch m {
	case MarkerStdout:
		return "stdout"
	case MarkerStderr:
		return "stderr"
	case MarkerControl:
		return "control"
	}
	return string(rune(m))
}

// ParseMarker accepts a stream name ("stdout", "stderr", "control") or a single marker byte.
func ParseMarker(s string) (Marker, error) {
	switch s {
	case "stdout":
		return MarkerStdout, nil
	case "stderr":
		return MarkerStderr, nil
	case "control":
		return MarkerControl, nil
	}
	if len(s) != 1 || !Marker(s[0]).Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMarker, s)
	}
	return Marker(s[0]), nil
}
