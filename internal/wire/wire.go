// Package wire implements the line-oriented command grammar spoken by the
// media server's file service.
package wire

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DefaultPort is the TCP port the media server's file service listens on.
const DefaultPort = 7818

// Command verbs.
const (
	VerbXcodeSetup = "XCODE_SETUP"
	VerbOpen       = "OPENW"
	VerbWriteOpen  = "WRITEOPENW"
	VerbRead       = "READ"
	VerbWrite      = "WRITE"
	VerbSize       = "SIZE"
	VerbTrunc      = "TRUNC"
	VerbForce      = "FORCE"
	VerbQuit       = "QUIT"
)

// ResponseOK is the only positive acknowledgement the server sends.
const ResponseOK = "OK"

// CRLF terminates every command and response line.
const CRLF = "\r\n"

// MaxLineSize bounds a single response line.
const MaxLineSize = 64 * 1024

var (
	// ErrLineTooLong is returned when a response line exceeds MaxLineSize.
	ErrLineTooLong = errors.New("response line exceeds maximum size")

	// ErrUnencodable is returned when command text has characters outside
	// the byte charset.
	ErrUnencodable = errors.New("command text not representable in byte charset")
)

// EncodeText encodes command text in the fixed byte charset (ISO-8859-1).
func EncodeText(s string) ([]byte, error) {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnencodable, s)
	}
	return b, nil
}

// DecodeText decodes a byte-charset line into a Go string.
func DecodeText(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// ISO-8859-1 maps every byte; unreachable in practice.
		return string(b)
	}
	return string(s)
}

// EncodePath encodes a remote path as UTF-16 big-endian without a BOM.
func EncodePath(p string) ([]byte, error) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	b, err := enc.Bytes([]byte(p))
	if err != nil {
		return nil, fmt.Errorf("encode path %q: %w", p, err)
	}
	return b, nil
}

// DecodePath reverses EncodePath.
func DecodePath(b []byte) (string, error) {
	dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	s, err := dec.Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode path: %w", err)
	}
	return string(s), nil
}

// ReadLine reads one CRLF-terminated line and returns it without the
// terminator. A bare LF is accepted. io.EOF is returned only if no bytes
// were read; a partial line at EOF is returned as-is with a nil error.
func ReadLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if len(line) > 0 {
				return DecodeText(line), nil
			}
			return "", err
		}
		line = append(line, chunk...)
		if len(line) > MaxLineSize {
			return "", ErrLineTooLong
		}
		if !isPrefix {
			break
		}
	}
	return DecodeText(line), nil
}

// ParseSize parses a SIZE response of the form "<available> <total>".
func ParseSize(line string) (available, total int64, err error) {
	availStr, totalStr, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return 0, 0, fmt.Errorf("malformed size response %q", line)
	}
	available, err = strconv.ParseInt(availStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed size response %q: %w", line, err)
	}
	total, err = strconv.ParseInt(strings.TrimSpace(totalStr), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed size response %q: %w", line, err)
	}
	return available, total, nil
}

// FormatSize renders a SIZE response. Used by servers and tests.
func FormatSize(available, total int64) string {
	return strconv.FormatInt(available, 10) + " " + strconv.FormatInt(total, 10) + CRLF
}
