package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"streammux/internal/procstat"
	"streammux/pkg/streammux"
)

// ErrNoCommand is returned by Run when Options.Command is empty.
var ErrNoCommand = errors.New("no command given")

// Options describes the process to run
type Options struct {
	Command       []string
	Dir           string
	Env           []string // Added to the environment of the current process
	Stdin         io.Reader
	TTY           bool          // Run under a pseudo terminal. stdout and stderr are merged onto marker '1'
	StatsInterval time.Duration // 0 disables resource samples on the control stream
	BufferSize    int
	// WaitDelay is how long to wait for the process after the context is done before it
	// gets killed. Zero means five seconds.
	WaitDelay time.Duration
}

// Result describes a finished process
type Result struct {
	RunID    string
	PID      int
	ExitCode int    // 128+n if the process was killed by signal n
	Signal   string // Empty unless the process was killed by a signal
}

// Run starts the command and multiplexes its stdout, stderr and lifecycle events onto out.
// It blocks until the process has exited and all output has been written.
//
// A non-zero exit code is reported in the Result, not as an error. Errors are returned if
// the process cannot be started or if writing to out fails.
func Run(ctx context.Context, out io.Writer, opts Options) (*Result, error) {
	if len(opts.Command) == 0 {
		return nil, ErrNoCommand
	}

	mux := streammux.New(out, streammux.WithBufferSize(opts.BufferSize))
	stdout := mux.Stdout()
	stderr := mux.Stderr()
	control := mux.Control()

	result := &Result{RunID: uuid.NewString()}

	if err := controlEvent(control, "start %s %s", result.RunID, strings.Join(opts.Command, " ")); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = opts.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	var ptyDone chan error
	if opts.TTY {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return nil, startFailed(control, err)
		}
		defer func() { _ = ptmx.Close() }()

		ptyDone = make(chan error, 1)
		go func() {
			_, err := io.Copy(stdout, ptmx)
			ptyDone <- err
		}()
		if opts.Stdin != nil {
			go func() {
				_, _ = io.Copy(ptmx, opts.Stdin)
			}()
		}
	} else {
		cmd.Stdin = opts.Stdin
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if err := cmd.Start(); err != nil {
			return nil, startFailed(control, err)
		}
	}

	result.PID = cmd.Process.Pid
	slog.Info("Command started", "run", result.RunID, "pid", result.PID, "command", opts.Command, "tty", opts.TTY)

	if err := controlEvent(control, "pid %d", result.PID); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	stopStats := make(chan struct{})
	var statsWG sync.WaitGroup
	if opts.StatsInterval > 0 {
		statsWG.Add(1)
		go func() {
			defer statsWG.Done()
			reportStats(control, int32(result.PID), opts.StatsInterval, stopStats)
		}()
	}

	waitErr := cmd.Wait()

	close(stopStats)
	statsWG.Wait()

	var writeErr error
	if ptyDone != nil {
		// Reading the pty master fails with EIO once the last process holding the
		// terminal has exited.
		if err := <-ptyDone; err != nil && !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
			writeErr = err
		}
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			result.Signal = status.Signal().String()
			result.ExitCode = 128 + int(status.Signal())
		}
	default:
		// The process exited cleanly, but copying its output failed.
		if writeErr == nil {
			writeErr = waitErr
		}
	}

	// Trailing output without a newline is still buffered.
	for _, c := range []*streammux.Channel{stdout, stderr} {
		if err := c.Close(); err != nil && writeErr == nil {
			writeErr = err
		}
	}

	slog.Info("Command finished", "run", result.RunID, "pid", result.PID, "exit_code", result.ExitCode, "signal", result.Signal)

	if writeErr != nil {
		return result, fmt.Errorf("failed to write output: %w", writeErr)
	}

	if err := controlEvent(control, "exit %d", result.ExitCode); err != nil {
		return result, err
	}
	if result.Signal != "" {
		if err := controlEvent(control, "signal %s", result.Signal); err != nil {
			return result, err
		}
	}
	if err := control.Close(); err != nil {
		return result, fmt.Errorf("failed to write control event: %w", err)
	}
	return result, nil
}

// controlEvent writes one payload line to the control stream.
func controlEvent(control io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(control, format+"\n", args...); err != nil {
		return fmt.Errorf("failed to write control event: %w", err)
	}
	return nil
}

// startFailed reports the start error on the control stream and returns it.
func startFailed(control io.Writer, err error) error {
	_, _ = fmt.Fprintf(control, "error %s\n", strings.ReplaceAll(err.Error(), "\n", " "))
	return fmt.Errorf("failed to start command: %w", err)
}

// reportStats writes a resource sample of pid to control every interval until stop is closed.
func reportStats(control io.Writer, pid int32, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats, err := procstat.Sample(pid)
			if err != nil {
				// The process may be exiting
				slog.Debug("Failed to sample process", "pid", pid, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(control, "%s\n", stats); err != nil {
				slog.Error("Failed to write stats", "pid", pid, "error", err)
				return
			}
		}
	}
}
