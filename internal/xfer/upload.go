package xfer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Upload writes src to dst at its cursor in ChunkSize pieces, optionally
// truncates the remote file at the end of the written data, and always
// finishes with a Sync so every write is durable on the server.
func Upload(ctx context.Context, src io.Reader, dst Sink, opts Options) (Result, error) {
	opts = opts.withDefaults()

	r := limitReader(ctx, src, opts.Limiter)
	h := opts.Hash.newHash()
	buf := make([]byte, ChunkSize)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return Result{}, fmt.Errorf("upload: %w", werr)
			}
			if h != nil {
				h.Write(buf[:n])
			}
			written += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("upload: read source: %w", err)
		}
	}

	if opts.Truncate {
		if err := dst.Truncate(dst.Position()); err != nil {
			return Result{}, fmt.Errorf("upload: truncate: %w", err)
		}
	}
	if err := dst.Sync(); err != nil {
		return Result{}, fmt.Errorf("upload: sync: %w", err)
	}

	res := Result{Bytes: written}
	if h != nil {
		res.Digest = hex.EncodeToString(h.Sum(nil))
	}
	return res, nil
}
