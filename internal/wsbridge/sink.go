package wsbridge

import (
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// Sink is a physical output for a streammux.Multiplexer which sends everything written
// between two flushes as one websocket message. Since the multiplexer flushes after each
// record, every message carries exactly one record. Flushing without pending bytes sends
// nothing.
type Sink struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	pending []byte
}

var _ io.Writer = &Sink{}

func NewSink(conn *websocket.Conn) *Sink {
	return &Sink{conn: conn}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, p...)
	return len(p), nil
}

// Flush sends the pending bytes. Payloads may be arbitrary bytes, so binary messages are
// used.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, s.pending); err != nil {
		return fmt.Errorf("failed to send websocket message: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}
