package wire_test

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/rfile/internal/wire"
)

func TestCommandBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  wire.Command
		want string
		verb string
	}{
		{name: "read", cmd: wire.Read(0, 10), want: "READ 0 10\r\n", verb: wire.VerbRead},
		{name: "read large offset", cmd: wire.Read(1<<40, 65536), want: "READ 1099511627776 65536\r\n", verb: wire.VerbRead},
		{name: "write", cmd: wire.Write(42, 7), want: "WRITE 42 7\r\n", verb: wire.VerbWrite},
		{name: "trunc", cmd: wire.Trunc(0), want: "TRUNC 0\r\n", verb: wire.VerbTrunc},
		{name: "size", cmd: wire.Size(), want: "SIZE\r\n", verb: wire.VerbSize},
		{name: "force", cmd: wire.Force(), want: "FORCE TRUE\r\n", verb: wire.VerbForce},
		{name: "quit", cmd: wire.Quit(), want: "QUIT\r\n", verb: wire.VerbQuit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.cmd.Bytes))
			assert.Equal(t, tt.verb, tt.cmd.Verb)
		})
	}
}

func TestXcodeSetup(t *testing.T) {
	t.Parallel()

	cmd, err := wire.XcodeSetup("mpeg2ps-dvd")
	require.NoError(t, err)
	assert.Equal(t, "XCODE_SETUP mpeg2ps-dvd\r\n", string(cmd.Bytes))

	_, err = wire.XcodeSetup("模式")
	assert.ErrorIs(t, err, wire.ErrUnencodable)
}

func TestOpenEncodesPathAsUTF16BE(t *testing.T) {
	t.Parallel()

	cmd, err := wire.Open("/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("OPENW \x00/\x00a\r\n"), cmd.Bytes)

	cmd, err = wire.WriteOpen("/a", 12)
	require.NoError(t, err)
	assert.Equal(t, []byte("WRITEOPENW \x00/\x00a 12\r\n"), cmd.Bytes)
}

func TestParseOpenRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		uploadID int
		write    bool
	}{
		{name: "read only ascii", path: "/media/tv/show.mpg"},
		{name: "read only unicode", path: "/média/日本/ショー.ts"},
		{name: "write", path: "/rec/live.ts", uploadID: 99, write: true},
		{name: "write path ending in per-mille", path: "/x‰", uploadID: 5, write: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				cmd wire.Command
				err error
			)
			if tt.write {
				cmd, err = wire.WriteOpen(tt.path, tt.uploadID)
			} else {
				cmd, err = wire.Open(tt.path)
			}
			require.NoError(t, err)

			line := strings.TrimSuffix(string(cmd.Bytes), "\r\n")
			verb, path, id, err := wire.ParseOpen([]byte(line))
			require.NoError(t, err)
			assert.Equal(t, cmd.Verb, verb)
			assert.Equal(t, tt.path, path)
			if tt.write {
				assert.Equal(t, tt.uploadID, id)
			} else {
				assert.Equal(t, -1, id)
			}
		})
	}
}

func TestRawAppendsCRLF(t *testing.T) {
	t.Parallel()

	cmd, err := wire.Raw("SIZE")
	require.NoError(t, err)
	assert.Equal(t, "SIZE\r\n", string(cmd.Bytes))
	assert.Equal(t, "SIZE", cmd.Verb)

	cmd, err = wire.Raw("FORCE TRUE\r\n")
	require.NoError(t, err)
	assert.Equal(t, "FORCE TRUE\r\n", string(cmd.Bytes))
	assert.Equal(t, "FORCE", cmd.Verb)
}

func TestReadLine(t *testing.T) {
	t.Parallel()

	r := bufio.NewReader(strings.NewReader("OK\r\n500 1000\r\nbare\npartial"))

	for _, want := range []string{"OK", "500 1000", "bare", "partial"} {
		got, err := wire.ReadLine(r)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := wire.ReadLine(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineTooLong(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", wire.MaxLineSize+10) + "\r\n"
	_, err := wire.ReadLine(bufio.NewReaderSize(strings.NewReader(long), 4096))
	assert.ErrorIs(t, err, wire.ErrLineTooLong)
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	avail, total, err := wire.ParseSize("500 1000")
	require.NoError(t, err)
	assert.Equal(t, int64(500), avail)
	assert.Equal(t, int64(1000), total)

	for _, bad := range []string{"", "500", "abc 10", "10 abc", "ERROR no such file"} {
		t.Run(bad, func(t *testing.T) {
			t.Parallel()
			_, _, err := wire.ParseSize(bad)
			assert.Error(t, err)
		})
	}
}

func TestFormatSizeParses(t *testing.T) {
	t.Parallel()

	avail, total, err := wire.ParseSize(strings.TrimSuffix(wire.FormatSize(7, 9), "\r\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), avail)
	assert.Equal(t, int64(9), total)
}
