package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/rfile/internal/config"
	"github.com/bamsammich/rfile/internal/remote"
	"github.com/bamsammich/rfile/internal/stats"
	"github.com/bamsammich/rfile/internal/ui"
	"github.com/bamsammich/rfile/internal/xfer"
)

type putOptions struct {
	uploadID  int
	truncate  bool
	writeSync bool
	hash      string
	bwLimit   string
}

func newPutCmd(g *globalOptions) *cobra.Command {
	var o putOptions

	cmd := &cobra.Command{
		Use:   "put SRC DST",
		Short: "Upload a local file",
		Long: `Upload the local file SRC to the remote file DST, starting at offset 0.
Writes need an upload id, given with --upload-id, in the URL
(rfile://ID@host/path), or by a [hosts] entry in the config file.

The server does not acknowledge individual writes; the upload ends with a
sync that reports any failure, including writes lost when the connection
dropped and was re-established. --write-sync syncs with every chunk so a
failure is reported at the chunk that caused it, and a chunk lost to a
dropped connection is sent again.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(cmd, g, o, args)
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.uploadID, "upload-id", 0, "upload id authorizing writes")
	f.BoolVar(&o.truncate, "truncate", false, "cut the remote file to the uploaded length")
	f.BoolVar(&o.writeSync, "write-sync", false, "sync after every write")
	f.StringVar(&o.hash, "hash", "", "print a digest of the uploaded content (blake3 or xxh64)")
	f.StringVar(&o.bwLimit, "bwlimit", "", "bandwidth limit (e.g. 10M, 1G)")
	return cmd
}

func runPut(cmd *cobra.Command, g *globalOptions, o putOptions, args []string) error {
	if !cmd.Flags().Changed("hash") && g.cfg.Defaults.Hash != nil {
		o.hash = *g.cfg.Defaults.Hash
	}
	if !cmd.Flags().Changed("bwlimit") && g.cfg.Defaults.BWLimit != nil {
		o.bwLimit = *g.cfg.Defaults.BWLimit
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

	src, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}

	t, err := g.resolve(args[1], remote.ModeReadWrite, o.uploadID)
	if err != nil {
		return err
	}
	t.cfg.WriteSync = o.writeSync

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	collector := stats.NewCollector()
	collector.SetTotal(info.Size())
	f, err := t.open(ctx, collector)
	if err != nil {
		return err
	}
	defer f.Close()

	slog.Debug("starting upload", "src", args[0], "dst", t.loc.String(), "size", info.Size())

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

	res, err := xfer.Upload(ctx, src, f, xfer.Options{
		Limiter:  xfer.NewBWLimiter(bwLimit),
		Hash:     algo,
		Truncate: o.truncate,
	})

	if progress != nil {
		summary := progress.Stop()
		if err == nil && !g.quiet {
			fmt.Fprintln(g.stderr, summary)
		}
	}
	slog.Debug("session stats", "stats", collector.Snapshot().String())
	if err != nil {
		return err
	}

	if res.Digest != "" {
		fmt.Fprintf(g.stdout, "%s  %s\n", res.Digest, t.loc)
	}
	return nil
}
