// Package remote implements random access to a file held by a media server,
// over a single persistent TCP session per handle.
//
// A File masks a single transport fault per transaction by reconnecting and
// retrying once. It also follows files that are still being written on the
// server: a file whose available size lags its declared size is marked
// active, and reads near the end re-query the size instead of trusting the
// cache.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bamsammich/rfile/internal/stats"
	"github.com/bamsammich/rfile/internal/wire"
)

// Compile-time interface checks.
var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.WriterAt        = (*File)(nil)
	_ io.ByteReader      = (*File)(nil)
	_ io.ByteWriter      = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// File is an open handle on a remote file. All methods are safe for
// concurrent use; calls are serialized, one transaction at a time.
type File struct {
	log   *slog.Logger
	stats *stats.Collector
	sess  *session
	cfg   Config
	size  sizeCache
	pos   int64

	// unsynced is set by a fire-and-forget write and cleared by a
	// successful FORCE. writesLost records a reconnect while unsynced.
	unsynced   bool
	writesLost bool

	mu     sync.Mutex
	closed bool
}

// Open connects to the media server and performs the handshake. It fails if
// the server cannot be reached or rejects the transcode setup or the open.
func Open(ctx context.Context, cfg Config) (*File, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	f := &File{
		cfg:   cfg,
		log:   cfg.Logger.With("host", cfg.Host, "path", cfg.Path),
		stats: cfg.Stats,
		size:  newSizeCache(cfg.Mode == ModeForcedActive),
	}
	if err := f.connect(ctx); err != nil {
		f.disconnect()
		return nil, err
	}
	return f, nil
}

// Config returns the configuration the handle was opened with.
func (f *File) Config() Config { return f.cfg }

// ReadOnly reports whether the handle refuses writes.
func (f *File) ReadOnly() bool { return f.cfg.Mode.ReadOnly() }

func (f *File) checkOpen() error {
	if f.closed {
		return ErrClosed
	}
	return nil
}

func (f *File) checkWritable() error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.ReadOnly() {
		return ErrReadOnly
	}
	return nil
}

// Read reads up to len(p) bytes at the cursor. It returns io.EOF when no
// bytes are currently available at the cursor; for an active file a later
// Read may succeed once the file has grown.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := f.maxRead(f.pos, int64(len(p)))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}

	if err := f.transactRead(f.pos, p[:n]); err != nil {
		return 0, err
	}
	f.pos += n
	return int(n), nil
}

// ReadByte reads a single byte at the cursor.
func (f *File) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := f.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadFull reads exactly len(p) bytes. Running out of data first is
// io.ErrUnexpectedEOF, even if nothing was read.
func (f *File) ReadFull(p []byte) error {
	for len(p) > 0 {
		n, err := f.Read(p)
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Write writes p at the cursor and advances it. Writes are not
// acknowledged by the server unless Config.WriteSync is set; otherwise a
// failure shows up at the next Sync.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkWritable(); err != nil {
		return 0, err
	}
	return f.writeLocked(p)
}

// WriteByte writes a single byte at the cursor.
func (f *File) WriteByte(c byte) error {
	_, err := f.Write([]byte{c})
	return err
}

// WriteAt writes p at off without moving the cursor. The cursor is
// restored even when the write fails.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkWritable(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, ErrNegativePosition
	}

	saved := f.pos
	f.pos = off
	defer func() { f.pos = saved }()

	return f.writeLocked(p)
}

// writeLocked writes p at the cursor. Once the payload has gone out the
// cursor advances and n is len(p), even if the sync that follows fails.
func (f *File) writeLocked(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !f.cfg.WriteSync {
		if err := f.transactWrite(f.pos, p); err != nil {
			return 0, err
		}
		f.pos += int64(len(p))
		f.unsynced = true
		return len(p), nil
	}

	resp, err := f.transactSyncedWrite(f.pos, p)
	if err != nil {
		return 0, err
	}
	f.pos += int64(len(p))
	if resp != wire.ResponseOK {
		f.unsynced = true
		return len(p), &ProtocolError{Command: wire.VerbForce, Response: resp}
	}
	return len(p), f.settle()
}

// Skip advances the cursor by up to n bytes without transferring data and
// returns the distance moved, which is limited by the bytes available.
func (f *File) Skip(n int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, nil
	}

	moved, err := f.maxRead(f.pos, n)
	if err != nil {
		return 0, err
	}
	f.pos += moved
	return moved, nil
}

// Seek sets the cursor. Positions past the end are accepted; a read there
// returns io.EOF. io.SeekEnd resolves against Length.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkOpen(); err != nil {
		return 0, err
	}

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		length, err := f.lengthLocked()
		if err != nil {
			return 0, err
		}
		pos = length + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, ErrNegativePosition
	}
	f.pos = pos
	return pos, nil
}

// Position returns the cursor.
func (f *File) Position() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Length returns the number of bytes currently available. The cached value
// is used unless the file is active or its size was never queried.
func (f *File) Length() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	return f.lengthLocked()
}

func (f *File) lengthLocked() (int64, error) {
	if f.size.lengthStale() {
		return f.querySize()
	}
	return f.size.maxRemote, nil
}

// Available returns the number of bytes readable from the cursor without
// blocking on growth. It never returns a negative count.
func (f *File) Available() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	if f.size.known && f.pos < f.size.maxRemote {
		return f.size.maxRemote - f.pos, nil
	}
	known, err := f.querySize()
	if err != nil {
		return 0, err
	}
	return max(known-f.pos, 0), nil
}

// Active reports whether the file has been seen growing. It never reverts.
func (f *File) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size.active
}

// TotalSize returns the declared total size from the last SIZE response.
func (f *File) TotalSize() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size.total
}

// Truncate sets the remote file's length. The cached size is set to n
// without a new SIZE query. A rejected truncate tears the session down.
func (f *File) Truncate(n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkWritable(); err != nil {
		return err
	}
	if n < 0 {
		return ErrNegativePosition
	}

	cmd := wire.Trunc(n)
	resp, err := f.transactLine(cmd)
	if err != nil {
		return err
	}
	if resp != wire.ResponseOK {
		f.disconnect()
		return &ProtocolError{Command: cmd.Verb, Response: resp}
	}
	f.size.truncated(n)
	return nil
}

// Sync asks the server to flush data and metadata to disk. It is a no-op on
// read-only handles.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.ReadOnly() {
		return nil
	}
	return f.syncLocked()
}

func (f *File) syncLocked() error {
	cmd := wire.Force()
	resp, err := f.transactLine(cmd)
	if err != nil {
		return err
	}
	if resp != wire.ResponseOK {
		return &ProtocolError{Command: cmd.Verb, Response: resp}
	}
	return f.settle()
}

// settle records a successful FORCE. It reports ErrWritesLost once if a
// reconnect happened while writes were unsynced.
func (f *File) settle() error {
	lost := f.writesLost
	f.unsynced, f.writesLost = false, false
	if lost {
		return ErrWritesLost
	}
	return nil
}

// Flush is a no-op: nothing is buffered between calls.
func (*File) Flush() error { return nil }

// Exec sends a raw command line and returns the server's one-line response.
// CRLF is appended when missing. The usual reconnect-and-retry applies.
func (f *File) Exec(line string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkOpen(); err != nil {
		return "", err
	}
	cmd, err := wire.Raw(line)
	if err != nil {
		return "", err
	}
	return f.transactLine(cmd)
}

// Close ends the session. Further calls return ErrClosed.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	f.disconnect()
	return nil
}

// querySize issues SIZE and folds the response into the cache, returning
// the new high-water mark.
func (f *File) querySize() (int64, error) {
	f.stats.AddSizeQueries(1)

	cmd := wire.Size()
	resp, err := f.transactLine(cmd)
	if err != nil {
		return 0, err
	}
	available, total, err := wire.ParseSize(resp)
	if err != nil {
		return 0, &ProtocolError{Command: cmd.Verb, Response: resp, Err: err}
	}

	wasActive := f.size.active
	f.size.observe(available, total)
	if f.size.active && !wasActive {
		f.log.Debug("remote file is active", "available", available, "total", total)
	}
	return f.size.maxRemote, nil
}

// maxRead clamps a read or skip of count bytes at pos to what is known to be
// available, refreshing the size first when the cache cannot answer.
func (f *File) maxRead(pos, count int64) (int64, error) {
	known := f.size.maxRemote
	if f.size.stale(pos, count) {
		var err error
		known, err = f.querySize()
		if err != nil {
			return 0, err
		}
	}
	return clamp(pos, count, known), nil
}
