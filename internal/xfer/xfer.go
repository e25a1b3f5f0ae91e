// Package xfer moves whole files between the local disk and a media server
// through a remote handle.
package xfer

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/bamsammich/rfile/internal/remote"
	"github.com/bamsammich/rfile/internal/stats"
)

// ChunkSize is the size of every remote read and write issued by a transfer.
const ChunkSize = 256 * 1024

// Follow defaults.
const (
	DefaultPollInterval = time.Second
	DefaultIdleTimeout  = 30 * time.Second
)

// Source is a remote file that can be downloaded.
type Source interface {
	io.ReadSeeker
	Length() (int64, error)
	Active() bool
}

// Sink is a remote file that can be uploaded to.
type Sink interface {
	io.Writer
	Position() int64
	Truncate(n int64) error
	Sync() error
}

var (
	_ Source = (*remote.File)(nil)
	_ Sink   = (*remote.File)(nil)
)

// Options control a transfer. The zero value copies once, unthrottled and
// unhashed.
type Options struct {
	// Limiter throttles transferred bytes; nil is unlimited. It may be
	// shared between transfers.
	Limiter *rate.Limiter
	// Stats receives the expected total. Byte counters are maintained by the
	// remote handle itself.
	Stats  *stats.Collector
	Logger *slog.Logger

	Hash Algorithm

	// Download only.
	Compress     bool // write the local file zstd-compressed
	Verify       bool // re-read the remote afterwards and compare digests
	Follow       bool // keep reading an active file until it stops growing
	PollInterval time.Duration
	IdleTimeout  time.Duration

	// Upload only.
	Truncate bool // cut the remote file at the end of the upload
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.Verify && o.Hash == HashNone {
		o.Hash = HashBLAKE3
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Result reports a finished transfer.
type Result struct {
	Path   string
	Bytes  int64
	Digest string // hex; empty without Options.Hash
}

// MismatchError reports a failed verification.
type MismatchError struct {
	Path   string
	Local  string
	Remote string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verify %s: digest mismatch (local %s, remote %s)", e.Path, e.Local, e.Remote)
}
