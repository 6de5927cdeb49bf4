package wsbridge

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"streammux/internal/runner"
	"streammux/pkg/streammux"
)

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readAll collects messages until the server closes the connection.
func readAll(t *testing.T, conn *websocket.Conn) ([][]byte, *websocket.CloseError) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var messages [][]byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeErr, ok := err.(*websocket.CloseError)
			require.True(t, ok, "unexpected read error: %v", err)
			return messages, closeErr
		}
		messages = append(messages, data)
	}
}

func TestHandler_StreamsOneRecordPerMessage(t *testing.T) {
	server := httptest.NewServer(NewServeMux(runner.Options{
		Command: []string{"sh", "-c", "echo hello; echo oops >&2; printf bye; exit 2"},
	}))
	defer server.Close()

	conn := dial(t, server, "/stream")
	messages, closeErr := readAll(t, conn)

	require.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	require.Equal(t, "exit 2", closeErr.Text)

	var combined bytes.Buffer
	for _, message := range messages {
		reader := streammux.NewReader(bytes.NewReader(message))
		_, err := reader.Next()
		require.NoError(t, err)
		_, err = reader.Next()
		require.Error(t, err, "message holds more than one record: %q", message)
		combined.Write(message)
	}

	streams, err := streammux.NewReader(&combined).All()
	require.NoError(t, err)
	require.Equal(t, "hello\nbye", string(streams[streammux.MarkerStdout]))
	require.Equal(t, "oops\n", string(streams[streammux.MarkerStderr]))
	require.Contains(t, string(streams[streammux.MarkerControl]), "exit 2\n")
}

func TestHandler_StartFailureClosesWithError(t *testing.T) {
	server := httptest.NewServer(NewServeMux(runner.Options{
		Command: []string{"/nonexistent/streammux-test-binary"},
	}))
	defer server.Close()

	conn := dial(t, server, "/stream")
	messages, closeErr := readAll(t, conn)

	require.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)
	require.Contains(t, closeErr.Text, "failed to start command")
	require.NotEmpty(t, messages)
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	server := httptest.NewServer(NewServeMux(runner.Options{Command: []string{"true"}}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/stream")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSink_HeartbeatSendsNothing(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		stdout := streammux.New(NewSink(conn)).Stdout()
		_ = stdout.Flush()
		_, _ = stdout.Write([]byte("first\n"))
		_ = stdout.Flush()
		_, _ = stdout.Write([]byte("second"))
		_ = stdout.Close()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}))
	defer server.Close()

	conn := dial(t, server, "/")
	messages, closeErr := readAll(t, conn)

	require.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	require.Len(t, messages, 2)
	require.Equal(t, "@1\nfirst\n", string(messages[0]))
	require.Equal(t, "@1@\nsecond\n", string(messages[1]))
}
