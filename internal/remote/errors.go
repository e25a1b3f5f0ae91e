package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrReadOnly is returned by mutating calls on a read-only handle. No
	// bytes are sent to the server.
	ErrReadOnly = errors.New("remote file is read only")

	// ErrClosed is returned by any call after Close.
	ErrClosed = errors.New("remote file is closed")

	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid remote file config")

	// ErrWritesLost is returned by Sync, or by a Write under
	// Config.WriteSync, when the session was replaced while writes were
	// unsynced. The server never acknowledged them, so data written since the
	// previous successful sync may be missing and must be written again.
	ErrWritesLost = errors.New("session reconnected with unsynced writes")

	// ErrNegativePosition is returned when a seek would move the cursor
	// before the start of the file.
	ErrNegativePosition = errors.New("negative position")
)

// ConnectError reports a failed TCP connection to the media server.
type ConnectError struct {
	Err  error
	Addr string
}

func (e *ConnectError) Error() string { return fmt.Sprintf("connect %s: %v", e.Addr, e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// HandshakeError reports a rejected transcode setup or open. Response holds
// the server's reply when it sent one; Err holds an I/O failure otherwise.
type HandshakeError struct {
	Err      error
	Stage    string
	Response string
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s handshake: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s rejected by server: %q", e.Stage, e.Response)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// ProtocolError reports an unexpected server response to a command.
type ProtocolError struct {
	Err      error
	Command  string
	Response string
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unexpected response %q: %v", e.Command, e.Response, e.Err)
	}
	return fmt.Sprintf("%s: unexpected response %q", e.Command, e.Response)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TransportError reports an I/O failure that persisted across the single
// reconnect-and-retry.
type TransportError struct {
	Err     error
	Command string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failed after reconnect: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
