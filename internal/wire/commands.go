package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Command is a fully encoded request ready to be written to the session.
// Verb is kept alongside the bytes for logging and error messages.
type Command struct {
	Verb  string
	Bytes []byte
}

func (c Command) String() string { return c.Verb }

func textCommand(verb, text string) (Command, error) {
	b, err := EncodeText(text)
	if err != nil {
		return Command{}, err
	}
	return Command{Verb: verb, Bytes: b}, nil
}

// XcodeSetup builds "XCODE_SETUP <mode>\r\n".
func XcodeSetup(mode string) (Command, error) {
	return textCommand(VerbXcodeSetup, VerbXcodeSetup+" "+mode+CRLF)
}

// Open builds the read-only open command. The verb is byte-charset encoded
// and the path follows as UTF-16BE.
func Open(path string) (Command, error) {
	return openCommand(VerbOpen, path, "")
}

// WriteOpen builds the read-write open command carrying the upload id.
func WriteOpen(path string, uploadID int) (Command, error) {
	return openCommand(VerbWriteOpen, path, " "+strconv.Itoa(uploadID))
}

func openCommand(verb, path, trailer string) (Command, error) {
	p, err := EncodePath(path)
	if err != nil {
		return Command{}, err
	}
	head, err := EncodeText(verb + " ")
	if err != nil {
		return Command{}, err
	}
	tail, err := EncodeText(trailer + CRLF)
	if err != nil {
		return Command{}, err
	}
	buf := make([]byte, 0, len(head)+len(p)+len(tail))
	buf = append(buf, head...)
	buf = append(buf, p...)
	buf = append(buf, tail...)
	return Command{Verb: verb, Bytes: buf}, nil
}

// Read builds "READ <offset> <length>\r\n".
func Read(offset, length int64) Command {
	return asciiCommand(VerbRead, offset, length)
}

// Write builds the "WRITE <offset> <length>\r\n" header. The payload is sent
// separately, immediately after the header.
func Write(offset, length int64) Command {
	return asciiCommand(VerbWrite, offset, length)
}

// Trunc builds "TRUNC <length>\r\n".
func Trunc(length int64) Command {
	b := make([]byte, 0, 32)
	b = append(b, VerbTrunc...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, length, 10)
	b = append(b, CRLF...)
	return Command{Verb: VerbTrunc, Bytes: b}
}

// Size builds "SIZE\r\n".
func Size() Command { return Command{Verb: VerbSize, Bytes: []byte(VerbSize + CRLF)} }

// Force builds "FORCE TRUE\r\n", which syncs data and metadata.
func Force() Command { return Command{Verb: VerbForce, Bytes: []byte(VerbForce + " TRUE" + CRLF)} }

// Quit builds "QUIT\r\n".
func Quit() Command { return Command{Verb: VerbQuit, Bytes: []byte(VerbQuit + CRLF)} }

// Raw encodes an arbitrary command line, appending CRLF if it is missing.
func Raw(line string) (Command, error) {
	if !strings.HasSuffix(line, CRLF) {
		line += CRLF
	}
	verb, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	return textCommand(verb, line)
}

// asciiCommand builds "<verb> <a> <b>\r\n". Numeric fields are pure ASCII,
// which is a subset of the byte charset.
func asciiCommand(verb string, a, b int64) Command {
	buf := make([]byte, 0, len(verb)+48)
	buf = append(buf, verb...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, a, 10)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, b, 10)
	buf = append(buf, CRLF...)
	return Command{Verb: verb, Bytes: buf}
}

// ParseOpen splits a raw open line (without CRLF) into its verb, decoded
// path, and upload id (-1 for read-only opens). Used by servers and tests.
func ParseOpen(line []byte) (verb, path string, uploadID int, err error) {
	switch {
	case hasPrefix(line, VerbWriteOpen+" "):
		verb = VerbWriteOpen
	case hasPrefix(line, VerbOpen+" "):
		verb = VerbOpen
	default:
		return "", "", 0, errors.New("not an open command")
	}
	rest := line[len(verb)+1:]

	uploadID = -1
	if verb == VerbWriteOpen {
		sp := lastSpaceBeforeDigits(rest)
		if sp < 0 {
			return "", "", 0, errors.New("write open missing upload id")
		}
		uploadID, err = strconv.Atoi(string(rest[sp+1:]))
		if err != nil {
			return "", "", 0, fmt.Errorf("upload id: %w", err)
		}
		rest = rest[:sp]
	}

	path, err = DecodePath(rest)
	if err != nil {
		return "", "", 0, err
	}
	return verb, path, uploadID, nil
}

func hasPrefix(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == prefix
}

// lastSpaceBeforeDigits finds the separator between a UTF-16BE path and a
// trailing ASCII decimal field. The path part always has even length.
func lastSpaceBeforeDigits(b []byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		c := b[i]
		if c >= '0' && c <= '9' || c == '-' {
			continue
		}
		if c == ' ' && i < len(b)-1 && i%2 == 0 {
			return i
		}
		return -1
	}
	return -1
}
