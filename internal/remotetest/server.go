// Package remotetest provides an in-process media server speaking the file
// service protocol, for tests of code built on package remote.
package remotetest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/bamsammich/rfile/internal/wire"
)

// Server is a fake media server backed by one in-memory file. Every
// connection sees the same file regardless of the path it opens.
type Server struct {
	listener net.Listener
	conns    map[net.Conn]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu   sync.Mutex
	data []byte
	// available and total override the reported sizes when >= 0.
	available int64
	total     int64

	commands []string
	fail     map[string]int
	opens    int
	syncs    int

	rejectOpen      string
	rejectTranscode string
	rejectTrunc     string
	rejectForce     string
	sizeResponse    string

	lastPath      string
	lastUploadID  int
	lastTranscode string
}

// NewServer starts a server on 127.0.0.1 with a random port. It is shut
// down by t.Cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("remotetest: listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		listener:  ln,
		conns:     make(map[net.Conn]struct{}),
		fail:      make(map[string]int),
		cancel:    cancel,
		available: -1,
		total:     -1,
	}
	s.wg.Go(func() { s.serve(ctx) })
	t.Cleanup(s.Close)
	return s
}

// Host returns the listener's host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String()) //nolint:errcheck // listener addr is well-formed
	return host
}

// Port returns the listener's port.
func (s *Server) Port() int {
	//nolint:forcetypeassert // net.Listen("tcp") always yields *net.TCPAddr
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Close stops accepting, drops every connection, and waits for handlers.
func (s *Server) Close() {
	s.cancel()
	s.listener.Close()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// SetContent replaces the file content and clears any size override.
func (s *Server) SetContent(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), b...)
	s.available, s.total = -1, -1
}

// Content returns a copy of the file content.
func (s *Server) Content() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

// SetSizes overrides what SIZE reports. Pass -1 to fall back to the content
// length (available) or to available (total).
func (s *Server) SetSizes(available, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available, s.total = available, total
}

// SetSizeResponse makes SIZE reply with line verbatim. Empty restores normal
// behavior.
func (s *Server) SetSizeResponse(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizeResponse = line
}

// FailNext makes the next n commands with verb drop the connection instead
// of responding. The command is still recorded.
func (s *Server) FailNext(verb string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[verb] += n
}

// RejectOpen makes open commands reply with resp. Empty restores OK.
func (s *Server) RejectOpen(resp string) { s.set(&s.rejectOpen, resp) }

// RejectTranscode makes XCODE_SETUP reply with resp.
func (s *Server) RejectTranscode(resp string) { s.set(&s.rejectTranscode, resp) }

// RejectTrunc makes TRUNC reply with resp.
func (s *Server) RejectTrunc(resp string) { s.set(&s.rejectTrunc, resp) }

// RejectForce makes FORCE reply with resp.
func (s *Server) RejectForce(resp string) { s.set(&s.rejectForce, resp) }

func (s *Server) set(field *string, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*field = v
}

// Commands returns every command received, in order, rendered as text.
// Open paths are decoded; payload bytes are not included.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// CountVerb returns how many received commands used verb.
func (s *Server) CountVerb(verb string) int {
	n := 0
	for _, c := range s.Commands() {
		if c == verb || strings.HasPrefix(c, verb+" ") {
			n++
		}
	}
	return n
}

// ResetCommands clears the command log.
func (s *Server) ResetCommands() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = nil
}

// Opens returns the number of successful opens.
func (s *Server) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Syncs returns the number of successful FORCE commands.
func (s *Server) Syncs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncs
}

// LastOpen returns the path, upload id, and transcode mode of the most
// recent open.
func (s *Server) LastOpen() (path string, uploadID int, transcode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPath, s.lastUploadID, s.lastTranscode
}

func (s *Server) serve(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Debug("remotetest: accept error", "error", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Go(func() {
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				conn.Close()
			}()
			s.handleConn(conn)
		})
	}
}

// errDrop ends a connection without a response.
var errDrop = errors.New("drop connection")

func (s *Server) handleConn(conn net.Conn) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := readRawLine(r)
		if err != nil {
			return
		}
		if err := s.dispatch(line, r, w); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func readRawLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if !isPrefix {
			return line, nil
		}
	}
}

//nolint:revive // cyclomatic: one case per protocol verb
func (s *Server) dispatch(line []byte, r *bufio.Reader, w *bufio.Writer) error {
	if verb, path, id, err := wire.ParseOpen(line); err == nil {
		return s.handleOpen(w, verb, path, id)
	}

	text := wire.DecodeText(line)
	verb, args, _ := strings.Cut(text, " ")
	if s.record(text, verb) {
		return errDrop
	}

	switch verb {
	case wire.VerbXcodeSetup:
		s.mu.Lock()
		resp := s.rejectTranscode
		s.lastTranscode = args
		s.mu.Unlock()
		return reply(w, orOK(resp))
	case wire.VerbRead:
		off, n, err := parsePair(args)
		if err != nil {
			return reply(w, "ERROR "+err.Error())
		}
		_, err = w.Write(s.readAt(off, n))
		return err
	case wire.VerbWrite:
		off, n, err := parsePair(args)
		if err != nil {
			return err
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return err
		}
		s.writeAt(off, payload)
		return nil
	case wire.VerbSize:
		return reply(w, s.sizeLine())
	case wire.VerbTrunc:
		n, err := strconv.ParseInt(args, 10, 64)
		if err != nil {
			return reply(w, "ERROR "+err.Error())
		}
		return reply(w, s.truncate(n))
	case wire.VerbForce:
		s.mu.Lock()
		resp := s.rejectForce
		if resp == "" {
			s.syncs++
		}
		s.mu.Unlock()
		return reply(w, orOK(resp))
	case wire.VerbQuit:
		return io.EOF
	default:
		return reply(w, "ERROR unknown command "+verb)
	}
}

func (s *Server) handleOpen(w *bufio.Writer, verb, path string, uploadID int) error {
	text := verb + " " + path
	if verb == wire.VerbWriteOpen {
		text += " " + strconv.Itoa(uploadID)
	}
	if s.record(text, verb) {
		return errDrop
	}

	s.mu.Lock()
	resp := s.rejectOpen
	if resp == "" {
		s.opens++
		s.lastPath = path
		s.lastUploadID = uploadID
	}
	s.mu.Unlock()
	return reply(w, orOK(resp))
}

// record logs a command and reports whether it should be dropped.
func (s *Server) record(text, verb string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, text)
	if s.fail[verb] > 0 {
		s.fail[verb]--
		return true
	}
	return false
}

func (s *Server) readAt(off, n int64) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, n)
	if off < int64(len(s.data)) {
		copy(out, s.data[off:])
	}
	return out
}

func (s *Server) writeAt(off int64, p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if end := off + int64(len(p)); end > int64(len(s.data)) {
		grown := make([]byte, end)
		copy(grown, s.data)
		s.data = grown
	}
	copy(s.data[off:], p)
}

func (s *Server) truncate(n int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectTrunc != "" {
		return s.rejectTrunc
	}
	if n <= int64(len(s.data)) {
		s.data = s.data[:n]
	} else {
		grown := make([]byte, n)
		copy(grown, s.data)
		s.data = grown
	}
	s.available, s.total = -1, -1
	return wire.ResponseOK
}

func (s *Server) sizeLine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sizeResponse != "" {
		return s.sizeResponse
	}
	avail := s.available
	if avail < 0 {
		avail = int64(len(s.data))
	}
	total := s.total
	if total < 0 {
		total = avail
	}
	return strings.TrimSuffix(wire.FormatSize(avail, total), wire.CRLF)
}

func reply(w *bufio.Writer, line string) error {
	_, err := w.WriteString(line + wire.CRLF)
	return err
}

func orOK(resp string) string {
	if resp == "" {
		return wire.ResponseOK
	}
	return resp
}

func parsePair(args string) (int64, int64, error) {
	a, b, ok := strings.Cut(args, " ")
	if !ok {
		return 0, 0, fmt.Errorf("expected two fields, got %q", args)
	}
	x, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
