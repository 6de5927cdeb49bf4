package streammux

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is returned when the input does not follow the record format.
var ErrMalformed = errors.New("malformed multiplexed stream")

// Chunk is one record of the combined stream.
type Chunk struct {
	Marker Marker
	// Line holds the bytes as written to the Channel. For partial lines the newline
	// added by the multiplexer is already removed.
	Line    []byte
	Partial bool
	Error   error
}

// Reader splits a combined stream into Chunks.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record. It returns io.EOF at the end of the input, and an error
// wrapping ErrMalformed if the input stops in the middle of a record or a control line is
// invalid.
func (r *Reader) Next() (Chunk, error) {
	control, err := r.r.ReadBytes(newline)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if len(control) == 0 {
				return Chunk{}, io.EOF
			}
			return Chunk{}, fmt.Errorf("%w: truncated control line %q: %w", ErrMalformed, control, io.ErrUnexpectedEOF)
		}
		return Chunk{}, fmt.Errorf("reading control line: %w", err)
	}

	chunk, err := parseControl(control)
	if err != nil {
		return Chunk{}, err
	}

	payload, err := r.r.ReadBytes(newline)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Chunk{}, fmt.Errorf("%w: truncated payload for marker %q: %w", ErrMalformed, byte(chunk.Marker), io.ErrUnexpectedEOF)
		}
		return Chunk{}, fmt.Errorf("reading payload: %w", err)
	}
	if chunk.Partial {
		payload = payload[:len(payload)-1]
	}
	chunk.Line = payload
	return chunk, nil
}

// parseControl parses "@m\n" or "@m@\n".
func parseControl(line []byte) (Chunk, error) {
	var chunk Chunk
	switch {
	case len(line) == 3 && line[0] == at:
	case len(line) == 4 && line[0] == at && line[2] == at:
		chunk.Partial = true
	default:
		return chunk, fmt.Errorf("%w: invalid control line %q", ErrMalformed, line)
	}
	chunk.Marker = Marker(line[1])
	if !chunk.Marker.Valid() {
		return chunk, fmt.Errorf("%w: invalid marker in control line %q", ErrMalformed, line)
	}
	return chunk, nil
}

// Chunks returns a channel which emits all records of the input and is closed at the end.
// A parse error is delivered as a last Chunk with Error set.
func (r *Reader) Chunks() <-chan Chunk {
	channel := make(chan Chunk)
	go func() {
		defer close(channel)
		for {
			chunk, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				channel <- Chunk{Error: err}
				return
			}
			channel <- chunk
		}
	}()
	return channel
}

// All reads the whole input and returns the reassembled bytes of every stream.
func (r *Reader) All() (map[Marker][]byte, error) {
	result := make(map[Marker][]byte)
	for {
		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, err
		}
		result[chunk.Marker] = append(result[chunk.Marker], chunk.Line...)
	}
}

// Demux copies the bytes of each stream to the writer registered for its marker. Streams
// without a writer are skipped.
func Demux(in io.Reader, outputs map[Marker]io.Writer) error {
	r := NewReader(in)
	for {
		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		w, ok := outputs[chunk.Marker]
		if !ok {
			continue
		}
		if _, err := w.Write(chunk.Line); err != nil {
			return fmt.Errorf("writing %s: %w", chunk.Marker, err)
		}
	}
}
