package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streammux/internal/config"
	"streammux/internal/runner"
	"streammux/internal/wsbridge"
	"streammux/pkg/streammux"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath string
	logLevel   string

	output        string
	tty           bool
	statsInterval time.Duration
	bufferSize    int
	listen        string

	demuxStream string
)

// exitCodeError makes main exit with the code of the child process.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:   "streammux",
	Short: "streammux - multiplex stdout, stderr and control messages into one stream",
	Long: `streammux runs commands and writes their stdout, stderr and lifecycle events as one
tagged stream, which a single reader can split again without threads or select.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [flags] -- cmd [args...]",
	Short: "Run a command and multiplex its output",
	Long: `Run a command and write its stdout (marker 1), stderr (marker 2) and control
events (marker 3) as one multiplexed stream to stdout or to --output.

The exit code of streammux is the exit code of the command.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if cfg.Output != "" {
			file, err := os.OpenFile(cfg.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
			if err != nil {
				return fmt.Errorf("failed to open output file: %w", err)
			}
			defer func() { _ = file.Close() }()
			out = file
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// The multiplexer flushes after every record
		sink := bufio.NewWriter(out)
		opts := runnerOptions(cfg, args)
		if opts.TTY {
			// Only an interactive run owns the terminal
			opts.Stdin = os.Stdin
		}
		result, err := runner.Run(ctx, sink, opts)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return &exitCodeError{code: result.ExitCode}
		}
		return nil
	},
}

var demuxCmd = &cobra.Command{
	Use:   "demux [file]",
	Short: "Split a multiplexed stream",
	Long: `Read a multiplexed stream from file or stdin. Marker 1 is written to stdout,
marker 2 to stderr, and control messages (marker 3) are written to stderr with a prefix.
With --stream only the given stream is written to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open input: %w", err)
			}
			defer func() { _ = file.Close() }()
			in = file
		}

		stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
		if demuxStream != "" {
			marker, err := streammux.ParseMarker(demuxStream)
			if err != nil {
				return err
			}
			return streammux.Demux(in, map[streammux.Marker]io.Writer{marker: stdout})
		}

		return streammux.Demux(in, map[streammux.Marker]io.Writer{
			streammux.MarkerStdout:  stdout,
			streammux.MarkerStderr:  stderr,
			streammux.MarkerControl: newControlWriter(stderr, isTerminal(stderr)),
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve [flags] -- cmd [args...]",
	Short: "Stream a command's multiplexed output to websocket clients",
	Long: `Start an HTTP server. Every websocket client connecting to /stream starts one run
of the command and receives its multiplexed output, one record per message.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return wsbridge.ListenAndServe(ctx, cfg.Listen, runnerOptions(cfg, args))
	},
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// runnerOptions builds the options shared by run and serve. Stdin is left to the caller.
func runnerOptions(cfg *config.Config, args []string) runner.Options {
	opts := runner.Options{
		Command:       args,
		TTY:           cfg.TTY,
		StatsInterval: cfg.StatsInterval,
		BufferSize:    cfg.BufferSize,
	}
	return opts
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	for _, c := range []*cobra.Command{runCmd, serveCmd} {
		c.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: $"+config.EnvConfig+")")
		c.Flags().BoolVar(&tty, "tty", false, "Run the command under a pseudo terminal (stdout and stderr are merged)")
		c.Flags().DurationVar(&statsInterval, "stats-interval", 0, "Interval of resource samples on the control stream, 0 disables them")
		c.Flags().IntVar(&bufferSize, "buffer-size", 0, "Line buffer size in bytes, longer lines are split into partial records")
	}
	runCmd.Flags().StringVarP(&output, "output", "o", "", "Write the multiplexed stream to this file instead of stdout")
	serveCmd.Flags().StringVarP(&listen, "listen", "l", config.DefaultListen, "Address to listen on")

	demuxCmd.Flags().StringVarP(&demuxStream, "stream", "m", "", "Only write this stream (stdout, stderr, control or a marker byte) to stdout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(demuxCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
