package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bamsammich/rfile/internal/config"
	"github.com/bamsammich/rfile/internal/remote"
	"github.com/bamsammich/rfile/internal/stats"
	"github.com/bamsammich/rfile/internal/ui"
	"github.com/bamsammich/rfile/internal/xfer"
)

type getOptions struct {
	transcode    string
	forceActive  bool
	follow       bool
	compress     bool
	verify       bool
	hash         string
	bwLimit      string
	pollInterval time.Duration
	idleTimeout  time.Duration
}

func newGetCmd(g *globalOptions) *cobra.Command {
	var o getOptions

	cmd := &cobra.Command{
		Use:   "get SRC [DST]",
		Short: "Download a remote file",
		Long: `Download a remote file to DST (default: the remote file name in the
current directory). The file is written to a temporary name and renamed
into place once complete.

With --follow, a recording that is still being written is read until it
has not grown for --idle-timeout.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, g, o, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.transcode, "transcode", "", "negotiate transcode MODE before opening")
	f.BoolVar(&o.forceActive, "force-active", false, "treat the file as growing even if the server says otherwise")
	f.BoolVarP(&o.follow, "follow", "f", false, "keep reading while the file grows")
	f.BoolVar(&o.compress, "zstd", false, "store the local copy zstd-compressed")
	f.BoolVar(&o.verify, "verify", false, "re-read the remote file and compare digests")
	f.StringVar(&o.hash, "hash", "", "print a digest of the content (blake3 or xxh64)")
	f.StringVar(&o.bwLimit, "bwlimit", "", "bandwidth limit (e.g. 10M, 1G)")
	f.DurationVar(&o.pollInterval, "poll-interval", xfer.DefaultPollInterval, "how often to check a followed file for growth")
	f.DurationVar(&o.idleTimeout, "idle-timeout", xfer.DefaultIdleTimeout, "stop following after this long without growth")
	return cmd
}

// applyGetDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyGetDefaults(cmd *cobra.Command, d config.DefaultsConfig, o *getOptions) {
	if !cmd.Flags().Changed("verify") && d.Verify != nil {
		o.verify = *d.Verify
	}
	if !cmd.Flags().Changed("hash") && d.Hash != nil {
		o.hash = *d.Hash
	}
	if !cmd.Flags().Changed("bwlimit") && d.BWLimit != nil {
		o.bwLimit = *d.BWLimit
	}
	if !cmd.Flags().Changed("poll-interval") && d.PollInterval != nil {
		o.pollInterval = d.PollInterval.Duration
	}
	if !cmd.Flags().Changed("idle-timeout") && d.IdleTimeout != nil {
		o.idleTimeout = d.IdleTimeout.Duration
	}
}

//nolint:revive // cyclomatic: flag validation + transfer + reporting
func runGet(cmd *cobra.Command, g *globalOptions, o getOptions, args []string) error {
	applyGetDefaults(cmd, g.cfg.Defaults, &o)

	mode := remote.ModeReadOnly
	switch {
	case o.transcode != "" && o.forceActive:
		return fmt.Errorf("%w: --transcode and --force-active are mutually exclusive", errUsage)
	case o.transcode != "":
		mode = remote.ModeTranscode
	case o.forceActive:
		mode = remote.ModeForcedActive
	}

	algo, err := xfer.ParseAlgorithm(o.hash)
	if err != nil {
		return fmt.Errorf("%w: --hash: %w", errUsage, err)
	}
	var bwLimit int64
	if o.bwLimit != "" {
		bwLimit, err = config.ParseSize(o.bwLimit)
		if err != nil {
			return fmt.Errorf("%w: invalid --bwlimit: %w", errUsage, err)
		}
	}

	t, err := g.resolve(args[0], mode, 0)
	if err != nil {
		return err
	}
	t.cfg.TranscodeMode = o.transcode

	dst := t.Base()
	if len(args) == 2 {
		dst = args[1]
	}
	if info, statErr := os.Stat(dst); statErr == nil && info.IsDir() {
		dst = filepath.Join(dst, t.Base())
	}

	ctx, stop := interruptible(cmd.Context())
	defer stop()
	defer xfer.CleanupTmpFiles()

	collector := stats.NewCollector()
	f, err := t.open(ctx, collector)
	if err != nil {
		return err
	}
	defer f.Close()

	slog.Debug("starting download", "src", t.loc.String(), "dst", dst, "mode", mode, "follow", o.follow)

	var progress *ui.Progress
	if g.showProgress() {
		progress = ui.NewProgress(ui.ProgressConfig{
			Writer: g.stderr,
			Stats:  collector,
			Label:  t.Base(),
			TTY:    ui.StderrIsTTY(),
			Width:  ui.TermWidth(os.Stderr.Fd()),
		})
		progress.Start()
	}

	res, err := xfer.Download(ctx, f, dst, xfer.Options{
		Limiter:      xfer.NewBWLimiter(bwLimit),
		Stats:        collector,
		Hash:         algo,
		Compress:     o.compress,
		Verify:       o.verify,
		Follow:       o.follow,
		PollInterval: o.pollInterval,
		IdleTimeout:  o.idleTimeout,
	})

	if progress != nil {
		summary := progress.Stop()
		if err == nil && !g.quiet {
			fmt.Fprintln(g.stderr, summary)
		}
	}
	slog.Debug("session stats", "stats", collector.Snapshot().String())
	if err != nil {
		return verifyFailed(err)
	}

	if res.Digest != "" {
		fmt.Fprintf(g.stdout, "%s  %s\n", res.Digest, res.Path)
	}
	return nil
}
