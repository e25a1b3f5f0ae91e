package remote

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/bamsammich/rfile/internal/stats"
	"github.com/bamsammich/rfile/internal/wire"
)

// DefaultTimeout bounds every socket send and receive.
const DefaultTimeout = 30 * time.Second

// Mode selects how a remote file is opened.
type Mode int

const (
	// ModeReadOnly opens the file for reading (OPENW).
	ModeReadOnly Mode = iota
	// ModeReadWrite opens the file for writing with an upload id (WRITEOPENW).
	ModeReadWrite
	// ModeTranscode negotiates XCODE_SETUP before a read-only open.
	ModeTranscode
	// ModeForcedActive is read-only and always treats the file as growing.
	ModeForcedActive
)

func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "read-only"
	case ModeReadWrite:
		return "read-write"
	case ModeTranscode:
		return "read-only-transcode"
	case ModeForcedActive:
		return "read-only-forced-active"
	default:
		return "unknown"
	}
}

// Config describes a remote file handle. It is fixed once Open returns.
type Config struct {
	// Stats receives per-session counters. Optional.
	Stats *stats.Collector
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	Host string
	Path string
	// TranscodeMode is required for ModeTranscode and rejected otherwise.
	TranscodeMode string

	Port int // 0 = wire.DefaultPort
	Mode Mode
	// UploadID authorizes writes; only meaningful in ModeReadWrite.
	UploadID int

	Timeout     time.Duration // per send/receive; 0 = DefaultTimeout
	DialTimeout time.Duration // 0 = Timeout

	// WriteSync sends FORCE TRUE with every write, in the same transaction,
	// so a server-side rejection surfaces at the write that caused it and a
	// dropped session resends the payload. Writes are otherwise not
	// acknowledged; Sync reports ErrWritesLost if the session was replaced
	// before they were synced.
	WriteSync bool
}

// Validate rejects configurations that do not describe a usable handle.
//
//nolint:revive // cyclomatic: one check per mode/field combination
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Timeout < 0 || c.DialTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}

	switch c.Mode {
	case ModeReadWrite:
		if c.TranscodeMode != "" {
			return fmt.Errorf("%w: transcode requires a read-only handle", ErrInvalidConfig)
		}
	case ModeTranscode:
		if c.TranscodeMode == "" {
			return fmt.Errorf("%w: transcode mode is required", ErrInvalidConfig)
		}
	case ModeReadOnly, ModeForcedActive:
		if c.TranscodeMode != "" {
			return fmt.Errorf("%w: transcode mode set without ModeTranscode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, int(c.Mode))
	}

	if c.Mode != ModeReadWrite {
		if c.UploadID != 0 {
			return fmt.Errorf("%w: upload id requires ModeReadWrite", ErrInvalidConfig)
		}
		if c.WriteSync {
			return fmt.Errorf("%w: write sync requires ModeReadWrite", ErrInvalidConfig)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = wire.DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = c.Timeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Addr returns host:port, applying the default port.
func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = wire.DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// ReadOnly reports whether the mode forbids writes.
func (m Mode) ReadOnly() bool { return m != ModeReadWrite }
