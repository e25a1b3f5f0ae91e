package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bamsammich/rfile/internal/wire"
)

const sessionBufSize = 64 * 1024

var errNoSession = errors.New("no session")

// session is one TCP connection with its buffered streams. It is owned by a
// single File and replaced wholesale on reconnect.
type session struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// deadlineConn refreshes the deadline before every Read and Write, so each
// blocking socket call is bounded by timeout rather than the transaction as
// a whole.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c deadlineConn) Read(p []byte) (int, error) {
	//nolint:errcheck // a failed deadline surfaces on the Read itself
	c.SetReadDeadline(time.Now().Add(c.timeout))
	return c.Conn.Read(p)
}

func (c deadlineConn) Write(p []byte) (int, error) {
	//nolint:errcheck // a failed deadline surfaces on the Write itself
	c.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.Conn.Write(p)
}

func newSession(conn net.Conn, timeout time.Duration) *session {
	dc := deadlineConn{Conn: conn, timeout: timeout}
	return &session{
		conn: conn,
		r:    bufio.NewReaderSize(dc, sessionBufSize),
		w:    bufio.NewWriterSize(dc, sessionBufSize),
	}
}

// send writes a command, then payload if any, and flushes once so the
// header and payload leave in as few segments as possible.
func (s *session) send(cmd wire.Command, payload []byte) error {
	if _, err := s.w.Write(cmd.Bytes); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := s.w.Write(payload); err != nil {
			return err
		}
	}
	return s.w.Flush()
}

func (s *session) readLine() (string, error) {
	line, err := wire.ReadLine(s.r)
	if errors.Is(err, io.EOF) {
		return "", io.ErrUnexpectedEOF
	}
	return line, err
}

func (s *session) readFull(p []byte) error {
	_, err := io.ReadFull(s.r, p)
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// connect dials the server and performs the handshake. It is a no-op when
// a session already exists. Any handshake failure tears the session down.
func (f *File) connect(ctx context.Context) error {
	if f.sess != nil {
		return nil
	}

	addr := f.cfg.Addr()
	dialer := net.Dialer{Timeout: f.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &ConnectError{Addr: addr, Err: err}
	}

	if tc, ok := conn.(interface{ SetNoDelay(bool) error }); ok {
		//nolint:errcheck // latency hint only
		tc.SetNoDelay(true)
	}

	f.sess = newSession(conn, f.cfg.Timeout)
	f.log.Debug("connected", "addr", addr)

	if f.cfg.Mode == ModeTranscode {
		if err := f.transcodeSetup(); err != nil {
			return err
		}
	}
	return f.open()
}

func (f *File) transcodeSetup() error {
	cmd, err := wire.XcodeSetup(f.cfg.TranscodeMode)
	if err != nil {
		f.disconnect()
		return &HandshakeError{Stage: wire.VerbXcodeSetup, Err: err}
	}
	resp, err := f.handshakeLine(cmd)
	if err != nil {
		f.disconnect()
		return &HandshakeError{Stage: wire.VerbXcodeSetup, Err: err}
	}
	if resp != wire.ResponseOK {
		f.disconnect()
		return &HandshakeError{
			Stage:    wire.VerbXcodeSetup,
			Response: fmt.Sprintf("transcode %s: %s", f.cfg.TranscodeMode, resp),
		}
	}
	f.log.Debug("transcode negotiated", "mode", f.cfg.TranscodeMode)
	return nil
}

func (f *File) open() error {
	var (
		cmd  wire.Command
		err  error
		verb = wire.VerbOpen
	)
	if f.cfg.Mode == ModeReadWrite {
		verb = wire.VerbWriteOpen
		cmd, err = wire.WriteOpen(f.cfg.Path, f.cfg.UploadID)
	} else {
		cmd, err = wire.Open(f.cfg.Path)
	}
	if err != nil {
		f.disconnect()
		return &HandshakeError{Stage: verb, Err: err}
	}

	resp, err := f.handshakeLine(cmd)
	if err != nil {
		f.disconnect()
		return &HandshakeError{Stage: cmd.Verb, Err: err}
	}
	if resp != wire.ResponseOK {
		// Nothing can be read on a session whose open failed.
		f.disconnect()
		return &HandshakeError{Stage: cmd.Verb, Response: resp}
	}
	f.log.Debug("opened", "mode", f.cfg.Mode)
	return nil
}

// handshakeLine sends a handshake command without the retry policy.
func (f *File) handshakeLine(cmd wire.Command) (string, error) {
	f.stats.AddCommands(1)
	if err := f.sess.send(cmd, nil); err != nil {
		return "", err
	}
	return f.sess.readLine()
}

// disconnect tears the session down. It never fails: QUIT and close errors
// are dropped.
func (f *File) disconnect() {
	s := f.sess
	if s == nil {
		return
	}
	f.sess = nil

	//nolint:errcheck // best-effort goodbye
	s.send(wire.Quit(), nil)
	//nolint:errcheck // teardown errors are never surfaced
	s.conn.Close()
	f.log.Debug("disconnected")
}

func (f *File) reconnect() error {
	f.disconnect()
	return f.connect(context.Background())
}
