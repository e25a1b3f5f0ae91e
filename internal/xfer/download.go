package xfer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/bamsammich/rfile/internal/platform"
)

// Download copies src from offset 0 into dst. The data lands in a temporary
// file next to dst that is renamed into place only after everything
// succeeded, so dst is never left partially written.
//
//nolint:revive // cognitive-complexity: linear setup/teardown of the temp file
func Download(ctx context.Context, src Source, dst string, opts Options) (Result, error) {
	opts = opts.withDefaults()

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("seek %s: %w", dst, err)
	}
	total, err := src.Length()
	if err != nil {
		return Result{}, fmt.Errorf("size: %w", err)
	}
	opts.Stats.SetTotal(total)

	dir := filepath.Dir(dst)
	base := filepath.Base(dst)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.rfile-tmp", base, uuid.New().String()[:8]))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create parent dir %s: %w", dir, err)
	}

	registerTmp(tmpPath)
	defer func() {
		deregisterTmp(tmpPath)
		_ = os.Remove(tmpPath) // no-op if rename succeeded
	}()

	tmpFd, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("create tmp %s: %w", tmpPath, err)
	}
	defer tmpFd.Close()

	var out io.Writer = tmpFd
	var enc *zstd.Encoder
	if opts.Compress {
		enc, err = zstd.NewWriter(tmpFd, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return Result{}, fmt.Errorf("zstd: %w", err)
		}
		defer enc.Close()
		out = enc
	} else {
		platform.Preallocate(tmpFd, total)
	}

	h := opts.Hash.newHash()
	if h != nil {
		out = io.MultiWriter(out, h)
	}

	n, err := copyRemote(ctx, src, out, opts)
	if err != nil {
		return Result{}, fmt.Errorf("download %s: %w", dst, err)
	}

	if enc != nil {
		if err := enc.Close(); err != nil {
			return Result{}, fmt.Errorf("zstd %s: %w", tmpPath, err)
		}
	}
	if err := tmpFd.Close(); err != nil {
		return Result{}, fmt.Errorf("close tmp %s: %w", tmpPath, err)
	}

	res := Result{Path: dst, Bytes: n}
	if h != nil {
		res.Digest = hex.EncodeToString(h.Sum(nil))
	}

	if opts.Verify {
		remoteDigest, err := hashRange(ctx, src, opts.Hash, n)
		if err != nil {
			return Result{}, fmt.Errorf("verify %s: %w", dst, err)
		}
		if remoteDigest != res.Digest {
			return Result{}, &MismatchError{Path: dst, Local: res.Digest, Remote: remoteDigest}
		}
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return Result{}, fmt.Errorf("rename %s -> %s: %w", tmpPath, dst, err)
	}
	return res, nil
}

// copyRemote reads src to out in ChunkSize pieces. With Follow set, hitting
// the end of an active file waits for it to grow until IdleTimeout passes
// without new data.
func copyRemote(ctx context.Context, src Source, out io.Writer, opts Options) (int64, error) {
	r := limitReader(ctx, src, opts.Limiter)
	buf := make([]byte, ChunkSize)

	var written int64
	lastData := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			lastData = time.Now()
		}

		switch {
		case err == nil:
			continue
		case !errors.Is(err, io.EOF):
			return written, err
		case !opts.Follow || !src.Active():
			return written, nil
		case time.Since(lastData) >= opts.IdleTimeout:
			opts.Logger.Debug("remote file stopped growing", "bytes", written, "idle", opts.IdleTimeout)
			return written, nil
		}

		if err := sleepCtx(ctx, opts.PollInterval); err != nil {
			return written, err
		}
		if length, err := src.Length(); err == nil {
			opts.Stats.SetTotal(length)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// hashRange digests the first limit bytes of src.
func hashRange(ctx context.Context, src Source, algo Algorithm, limit int64) (string, error) {
	h := algo.newHash()
	if h == nil {
		return "", errors.New("no hash algorithm")
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if err := digestInto(ctx, h, io.LimitReader(src, limit)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func digestInto(ctx context.Context, h hash.Hash, r io.Reader) error {
	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		h.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
