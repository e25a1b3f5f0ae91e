// Command rfile reads and writes files held by a media server over its file
// service protocol.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bamsammich/rfile/internal/config"
	"github.com/bamsammich/rfile/internal/remote"
	"github.com/bamsammich/rfile/internal/ui"
	"github.com/bamsammich/rfile/internal/wire"
	"github.com/bamsammich/rfile/internal/xfer"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// globalOptions holds the persistent flags and the loaded config file.
type globalOptions struct {
	cfg     config.Config
	stdout  io.Writer
	stderr  io.Writer
	logFile *os.File

	port        int
	timeout     time.Duration
	verbose     bool
	quiet       bool
	noProgress  bool
	showVersion bool
	logPath     string
}

func run(args []string, stdout, stderr io.Writer) int {
	g := &globalOptions{stdout: stdout, stderr: stderr}
	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	g.closeLog()
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintln(stderr, ui.RenderError(err.Error()))
		return exitCode(err)
	}
	return 0
}

func newRootCmd(g *globalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rfile",
		Short: "Resilient random-access client for media server files",
		Long: `rfile reads, writes, and follows files held by a media server over its
file service protocol (TCP port 7818 by default).

Remote files are written as host:/path or rfile://[uploadId@]host[:port]/path.
A dropped connection is re-established and the failed command retried once.
Recordings still being written are followed until they stop growing.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.showVersion {
				fmt.Fprintf(g.stdout, "rfile %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.IntVar(&g.port, "port", wire.DefaultPort, "media server port")
	flags.DurationVar(&g.timeout, "timeout", remote.DefaultTimeout, "per-operation socket timeout")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&g.quiet, "quiet", "q", false, "suppress all output except errors")
	flags.BoolVar(&g.noProgress, "no-progress", false, "disable progress display")
	flags.StringVar(&g.logPath, "log", "", "write structured JSON log to FILE")
	rootCmd.Flags().BoolVar(&g.showVersion, "version", false, "print version and exit")

	rootCmd.AddCommand(
		newGetCmd(g),
		newPutCmd(g),
		newStatCmd(g),
		newTruncateCmd(g),
		newSyncCmd(g),
		newExecCmd(g),
		newDocsCmd(),
	)
	return rootCmd
}

// setup loads the config file, applies its defaults to flags not set on
// the command line, and installs the logger.
func (g *globalOptions) setup(cmd *cobra.Command) error {
	if err := g.setupLogging(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "path", config.Path(), "error", err)
	}
	g.cfg = cfg

	d := cfg.Defaults
	if !cmd.Flags().Changed("port") && d.Port != nil {
		g.port = *d.Port
	}
	if !cmd.Flags().Changed("timeout") && d.Timeout != nil {
		g.timeout = d.Timeout.Duration
	}
	ui.ApplyTheme(cfg.Theme)
	return nil
}

func (g *globalOptions) setupLogging() error {
	logLevel := slog.LevelWarn
	if g.verbose {
		logLevel = slog.LevelDebug
	} else if !g.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(g.stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	var logHandler slog.Handler = textHandler
	if g.logPath != "" {
		lf, err := os.Create(g.logPath)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		g.logFile = lf
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return nil
}

func (g *globalOptions) closeLog() {
	if g.logFile != nil {
		g.logFile.Close()
		g.logFile = nil
	}
}

func (g *globalOptions) showProgress() bool {
	return !g.quiet && !g.noProgress
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// exitCode maps an error to the process exit status: 2 for bad arguments or
// configuration, 1 otherwise. A failed verification exits 3 through
// verifyFailed.
func exitCode(err error) int {
	if errors.Is(err, remote.ErrInvalidConfig) || errors.Is(err, errUsage) {
		return 2
	}
	return 1
}

// verifyFailed logs a digest mismatch and turns it into exit status 3.
// Other errors pass through unchanged.
func verifyFailed(err error) error {
	var mismatch *xfer.MismatchError
	if !errors.As(err, &mismatch) {
		return err
	}
	slog.Error("verification failed", "path", mismatch.Path,
		"local", mismatch.Local, "remote", mismatch.Remote)
	return &exitError{code: 3}
}

// interruptible returns a context canceled on SIGINT or SIGTERM.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}
