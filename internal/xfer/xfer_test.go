package xfer_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/rfile/internal/remote"
	"github.com/bamsammich/rfile/internal/remotetest"
	"github.com/bamsammich/rfile/internal/stats"
	"github.com/bamsammich/rfile/internal/xfer"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/256)
	}
	return b
}

func openRemote(t *testing.T, srv *remotetest.Server, cfg remote.Config) *remote.File {
	t.Helper()
	cfg.Host, cfg.Port = srv.Host(), srv.Port()
	if cfg.Path == "" {
		cfg.Path = "/rec/1001_20260101.ts"
	}
	cfg.Timeout = 5 * time.Second
	f, err := remote.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func assertNoTmpFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".rfile-tmp")
	}
}

func TestDownload(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	data := payload(3*xfer.ChunkSize + 1234)
	srv.SetContent(data)
	collector := stats.NewCollector()
	f := openRemote(t, srv, remote.Config{Stats: collector})

	dir := t.TempDir()
	dst := filepath.Join(dir, "sub", "show.ts")
	res, err := xfer.Download(context.Background(), f, dst, xfer.Options{
		Hash:  xfer.HashBLAKE3,
		Stats: collector,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), res.Bytes)
	assert.Equal(t, dst, res.Path)

	local, err := xfer.HashFile(dst, xfer.HashBLAKE3)
	require.NoError(t, err)
	assert.Equal(t, local, res.Digest)

	snap := collector.Snapshot()
	assert.Equal(t, int64(len(data)), snap.BytesTotal)
	assert.Equal(t, int64(len(data)), snap.BytesRead)
	assertNoTmpFiles(t, filepath.Dir(dst))
}

func TestDownloadCompressed(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	data := bytes.Repeat([]byte("mpeg-ts packet "), 50_000)
	srv.SetContent(data)
	f := openRemote(t, srv, remote.Config{})

	dst := filepath.Join(t.TempDir(), "show.ts.zst")
	res, err := xfer.Download(context.Background(), f, dst, xfer.Options{Compress: true})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), res.Bytes)

	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Less(t, len(raw), len(data))

	dec, err := zstd.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer dec.Close()
	got, err := dec.DecodeAll(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDownloadVerify(t *testing.T) {
	t.Parallel()

	for _, algo := range []xfer.Algorithm{xfer.HashNone, xfer.HashBLAKE3, xfer.HashXXH64} {
		t.Run(string(algo), func(t *testing.T) {
			t.Parallel()

			srv := remotetest.NewServer(t)
			srv.SetContent(payload(xfer.ChunkSize + 17))
			f := openRemote(t, srv, remote.Config{})

			dst := filepath.Join(t.TempDir(), "out")
			res, err := xfer.Download(context.Background(), f, dst, xfer.Options{Hash: algo, Verify: true})
			require.NoError(t, err)
			assert.NotEmpty(t, res.Digest, "verify implies a digest")
			assert.Equal(t, 4, srv.CountVerb("READ"), "verify re-reads the remote")
		})
	}
}

func TestDownloadFollowsActiveFile(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	data := payload(5000)
	srv.SetContent(data)
	srv.SetSizes(1000, 5000)
	f := openRemote(t, srv, remote.Config{})

	go func() {
		time.Sleep(100 * time.Millisecond)
		srv.SetSizes(3000, 5000)
		time.Sleep(100 * time.Millisecond)
		srv.SetSizes(5000, 5000)
	}()

	dst := filepath.Join(t.TempDir(), "live.ts")
	res, err := xfer.Download(context.Background(), f, dst, xfer.Options{
		Follow:       true,
		PollInterval: 20 * time.Millisecond,
		IdleTimeout:  400 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), res.Bytes)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDownloadWithoutFollowStopsAtAvailable(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	srv.SetContent(payload(5000))
	srv.SetSizes(1000, 5000)
	f := openRemote(t, srv, remote.Config{})

	res, err := xfer.Download(context.Background(), f, filepath.Join(t.TempDir(), "x"), xfer.Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Bytes)
}

func TestDownloadFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	srv.SetContent(payload(1000))
	f := openRemote(t, srv, remote.Config{})

	srv.FailNext("READ", 2)
	dir := t.TempDir()
	dst := filepath.Join(dir, "broken.ts")
	_, err := xfer.Download(context.Background(), f, dst, xfer.Options{})

	var tErr *remote.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.NoFileExists(t, dst)
	assertNoTmpFiles(t, dir)
}

func TestDownloadCanceled(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	srv.SetContent(payload(1000))
	srv.SetSizes(10, 1000)
	f := openRemote(t, srv, remote.Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	dir := t.TempDir()
	dst := filepath.Join(dir, "live.ts")
	_, err := xfer.Download(ctx, f, dst, xfer.Options{Follow: true, PollInterval: 10 * time.Millisecond})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoFileExists(t, dst)
	assertNoTmpFiles(t, dir)
}

func TestUpload(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	srv.SetContent(payload(4 * xfer.ChunkSize))
	f := openRemote(t, srv, remote.Config{Mode: remote.ModeReadWrite, UploadID: 77})

	data := payload(xfer.ChunkSize + 99)
	for i := range data {
		data[i] ^= 0x5a
	}

	res, err := xfer.Upload(context.Background(), bytes.NewReader(data), f, xfer.Options{
		Truncate: true,
		Hash:     xfer.HashXXH64,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), res.Bytes)
	assert.Len(t, res.Digest, 16)

	assert.Equal(t, data, srv.Content())
	assert.Equal(t, 1, srv.Syncs())
	assert.Contains(t, srv.Commands(), "TRUNC "+strconv.Itoa(len(data)))
}

func TestUploadWithoutTruncateKeepsTail(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	srv.SetContent(bytes.Repeat([]byte{'x'}, 10))
	f := openRemote(t, srv, remote.Config{Mode: remote.ModeReadWrite})

	_, err := xfer.Upload(context.Background(), bytes.NewReader([]byte("abc")), f, xfer.Options{})
	require.NoError(t, err)
	assert.Equal(t, "abcxxxxxxx", string(srv.Content()))
	assert.Zero(t, srv.CountVerb("TRUNC"))
}

func TestUploadReadOnly(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	f := openRemote(t, srv, remote.Config{})

	_, err := xfer.Upload(context.Background(), bytes.NewReader([]byte("abc")), f, xfer.Options{})
	require.ErrorIs(t, err, remote.ErrReadOnly)
}

func TestUploadSyncRejected(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	srv.RejectForce("DISK_FULL")
	f := openRemote(t, srv, remote.Config{Mode: remote.ModeReadWrite})

	_, err := xfer.Upload(context.Background(), bytes.NewReader([]byte("abc")), f, xfer.Options{})
	var protoErr *remote.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

// A dropped WRITE is never acknowledged, so the upload must either resend
// it on the new session or fail at the final sync. It may not report
// success with data missing.
func TestUploadDroppedWriteIsNeverSilent(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	f := openRemote(t, srv, remote.Config{Mode: remote.ModeReadWrite})
	data := payload(3 * xfer.ChunkSize)

	srv.FailNext("WRITE", 1)
	_, err := xfer.Upload(context.Background(), bytes.NewReader(data), f, xfer.Options{})
	if err != nil {
		require.ErrorIs(t, err, remote.ErrWritesLost)
		return
	}
	assert.Equal(t, data, srv.Content())
}

func TestUploadWriteSyncResendsDroppedWrite(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	f := openRemote(t, srv, remote.Config{Mode: remote.ModeReadWrite, WriteSync: true})
	data := payload(3 * xfer.ChunkSize)

	srv.FailNext("WRITE", 1)
	res, err := xfer.Upload(context.Background(), bytes.NewReader(data), f, xfer.Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), res.Bytes)
	assert.Equal(t, data, srv.Content())
	assert.Equal(t, 2, srv.Opens())
	assert.Equal(t, 2, srv.CountVerb("WRITE 0 "+strconv.Itoa(xfer.ChunkSize)))
}

func TestHashMatchesLocal(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	data := payload(2*xfer.ChunkSize + 5)
	srv.SetContent(data)
	f := openRemote(t, srv, remote.Config{})

	local := filepath.Join(t.TempDir(), "local")
	require.NoError(t, os.WriteFile(local, data, 0o644))

	for _, algo := range []xfer.Algorithm{xfer.HashBLAKE3, xfer.HashXXH64} {
		want, err := xfer.HashFile(local, algo)
		require.NoError(t, err)
		got, err := xfer.Hash(context.Background(), f, algo)
		require.NoError(t, err)
		assert.Equal(t, want, got, algo)
	}

	_, err := xfer.Hash(context.Background(), f, xfer.HashNone)
	assert.Error(t, err)
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]xfer.Algorithm{
		"":       xfer.HashNone,
		"none":   xfer.HashNone,
		"blake3": xfer.HashBLAKE3,
		"xxh64":  xfer.HashXXH64,
	} {
		got, err := xfer.ParseAlgorithm(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := xfer.ParseAlgorithm("md5")
	assert.Error(t, err)
}
