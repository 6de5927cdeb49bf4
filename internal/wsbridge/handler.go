package wsbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"streammux/internal/runner"
)

// Handler runs the configured command once for every websocket client and streams the
// combined output to it. The run is cancelled when the client goes away.
type Handler struct {
	Options  runner.Options
	Upgrader websocket.Upgrader
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		slog.Error("WebSocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clients do not send data. Reading is still needed to process close and ping frames,
	// and to notice a disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Error("WebSocket read error", "error", err)
				}
				cancel()
				return
			}
		}
	}()

	slog.Info("Stream client connected", "remote", r.RemoteAddr)

	result, err := runner.Run(ctx, NewSink(conn), h.Options)
	if err != nil {
		slog.Error("Stream failed", "remote", r.RemoteAddr, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, truncateReason(err.Error())),
			time.Now().Add(time.Second))
		return
	}

	slog.Info("Stream finished", "remote", r.RemoteAddr, "run", result.RunID, "exit_code", result.ExitCode)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, fmt.Sprintf("exit %d", result.ExitCode)),
		time.Now().Add(time.Second))
}

// truncateReason keeps close reasons within the 123 bytes allowed by RFC 6455.
func truncateReason(reason string) string {
	if len(reason) > 123 {
		return reason[:123]
	}
	return reason
}

// NewServeMux routes /stream to a Handler for opts.
func NewServeMux(opts runner.Options) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/stream", &Handler{Options: opts})
	return mux
}

// ListenAndServe serves NewServeMux(opts) on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, opts runner.Options) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           NewServeMux(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", addr, "command", opts.Command)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
