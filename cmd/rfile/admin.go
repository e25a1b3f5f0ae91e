package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bamsammich/rfile/internal/remote"
	"github.com/bamsammich/rfile/internal/ui"
	"github.com/bamsammich/rfile/internal/xfer"
)

func newStatCmd(g *globalOptions) *cobra.Command {
	var (
		transcode string
		hash      string
	)

	cmd := &cobra.Command{
		Use:   "stat SRC",
		Short: "Show the size and growth state of a remote file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			algo, err := xfer.ParseAlgorithm(hash)
			if err != nil {
				return fmt.Errorf("%w: --hash: %w", errUsage, err)
			}

			mode := remote.ModeReadOnly
			if transcode != "" {
				mode = remote.ModeTranscode
			}
			t, err := g.resolve(args[0], mode, 0)
			if err != nil {
				return err
			}
			t.cfg.TranscodeMode = transcode

			ctx, stop := interruptible(cmd.Context())
			defer stop()

			f, err := t.open(ctx, nil)
			if err != nil {
				return err
			}
			defer f.Close()

			available, err := f.Length()
			if err != nil {
				return err
			}
			info := ui.StatInfo{
				Location:  t.loc.String(),
				Mode:      mode.String(),
				Available: available,
				Total:     f.TotalSize(),
				Active:    f.Active(),
			}
			if algo != xfer.HashNone {
				info.Digest, err = xfer.Hash(ctx, f, algo)
				if err != nil {
					return err
				}
			}

			fmt.Fprintln(g.stdout, ui.RenderStat(info))
			return nil
		},
	}
	cmd.Flags().StringVar(&transcode, "transcode", "", "negotiate transcode MODE before opening")
	cmd.Flags().StringVar(&hash, "hash", "", "also print a digest of the content (blake3 or xxh64)")
	return cmd
}

func newTruncateCmd(g *globalOptions) *cobra.Command {
	var uploadID int

	cmd := &cobra.Command{
		Use:   "truncate DST LENGTH",
		Short: "Set the length of a remote file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: invalid length %q", errUsage, args[1])
			}
			return withWritable(cmd, g, args[0], uploadID, func(f *remote.File) error {
				if err := f.Truncate(n); err != nil {
					return err
				}
				return f.Sync()
			})
		},
	}
	cmd.Flags().IntVar(&uploadID, "upload-id", 0, "upload id authorizing writes")
	return cmd
}

func newSyncCmd(g *globalOptions) *cobra.Command {
	var uploadID int

	cmd := &cobra.Command{
		Use:   "sync DST",
		Short: "Ask the server to flush a remote file to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWritable(cmd, g, args[0], uploadID, (*remote.File).Sync)
		},
	}
	cmd.Flags().IntVar(&uploadID, "upload-id", 0, "upload id authorizing writes")
	return cmd
}

func withWritable(cmd *cobra.Command, g *globalOptions, arg string, uploadID int, fn func(*remote.File) error) error {
	t, err := g.resolve(arg, remote.ModeReadWrite, uploadID)
	if err != nil {
		return err
	}

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	f, err := t.open(ctx, nil)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	if !g.quiet {
		fmt.Fprintln(g.stderr, ui.RenderOK("ok "+t.loc.String()))
	}
	return nil
}

func newExecCmd(g *globalOptions) *cobra.Command {
	var uploadID int

	cmd := &cobra.Command{
		Use:   "exec SRC COMMAND...",
		Short: "Send a raw protocol command on an open file and print the response",
		Long: `Open SRC, send COMMAND as one protocol line, and print the server's
one-line response. With --upload-id the file is opened for writing.
Commands that return raw bytes (READ) are not supported.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := strings.Join(args[1:], " ")
			if verb, _, _ := strings.Cut(line, " "); strings.EqualFold(verb, "READ") ||
				strings.EqualFold(verb, "WRITE") || strings.EqualFold(verb, "QUIT") {
				return fmt.Errorf("%w: %s cannot be sent with exec", errUsage, verb)
			}

			mode := remote.ModeReadOnly
			if uploadID > 0 {
				mode = remote.ModeReadWrite
			}
			t, err := g.resolve(args[0], mode, uploadID)
			if err != nil {
				return err
			}

			ctx, stop := interruptible(cmd.Context())
			defer stop()

			f, err := t.open(ctx, nil)
			if err != nil {
				return err
			}
			defer f.Close()

			resp, err := f.Exec(line)
			if err != nil {
				return err
			}
			fmt.Fprintln(g.stdout, resp)
			return nil
		},
	}
	cmd.Flags().IntVar(&uploadID, "upload-id", 0, "open for writing with this upload id")
	return cmd
}
