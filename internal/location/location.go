// Package location parses command-line file arguments.
package location

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bamsammich/rfile/internal/wire"
)

// Scheme is the URL scheme for remote files.
const Scheme = "rfile"

// Location is a parsed source or destination argument.
type Location struct {
	Host string
	Path string
	Port int // 0 = wire.DefaultPort
	// UploadID is the userinfo of an rfile:// URL. Zero when absent.
	UploadID int
}

// IsRemote reports whether the location names a file on a media server.
func (l Location) IsRemote() bool {
	return l.Host != ""
}

// Addr returns host:port with the default port applied.
func (l Location) Addr() string {
	port := l.Port
	if port == 0 {
		port = wire.DefaultPort
	}
	return net.JoinHostPort(l.Host, strconv.Itoa(port))
}

// String returns a human-readable representation.
func (l Location) String() string {
	if !l.IsRemote() {
		return l.Path
	}
	if l.UploadID != 0 {
		return fmt.Sprintf("%s://%d@%s%s", Scheme, l.UploadID, l.Addr(), l.Path)
	}
	return fmt.Sprintf("%s://%s%s", Scheme, l.Addr(), l.Path)
}

// Parse parses a CLI argument into a Location.
//
// Supported formats:
//   - /absolute/path                  → local
//   - relative/path                   → local
//   - host:/path                      → remote, default port
//   - rfile://host/path               → remote, default port
//   - rfile://host:port/path          → remote
//   - rfile://uploadId@host:port/path → remote with upload id
//
// A bare word with no colon is always local. A colon only marks a remote
// location when the part before it contains no path separator, so
// "/foo:bar" and "./host:path" are local. Remote paths are always absolute.
func Parse(arg string) (Location, error) {
	if strings.HasPrefix(arg, Scheme+"://") {
		return parseURL(arg)
	}

	if filepath.IsAbs(arg) || strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") {
		return Location{Path: arg}, nil
	}

	host, path, ok := strings.Cut(arg, ":")
	if !ok || host == "" || strings.ContainsRune(host, '/') ||
		strings.ContainsRune(host, filepath.Separator) {
		return Location{Path: arg}, nil
	}

	if path == "" {
		return Location{}, fmt.Errorf("location %q: missing remote path", arg)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return Location{Host: host, Path: path}, nil
}

func parseURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("location %q: %w", raw, err)
	}

	host := u.Hostname()
	if host == "" {
		return Location{}, fmt.Errorf("location %q: missing host", raw)
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Location{}, fmt.Errorf("location %q: invalid port %q", raw, p)
		}
	}

	if u.Path == "" || u.Path == "/" {
		return Location{}, fmt.Errorf("location %q: missing remote path", raw)
	}

	var uploadID int
	if u.User != nil {
		uploadID, err = strconv.Atoi(u.User.Username())
		if err != nil {
			return Location{}, fmt.Errorf("location %q: upload id must be numeric", raw)
		}
	}

	return Location{
		Host:     host,
		Port:     port,
		Path:     u.Path,
		UploadID: uploadID,
	}, nil
}
