package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/bamsammich/rfile/internal/location"
	"github.com/bamsammich/rfile/internal/remote"
	"github.com/bamsammich/rfile/internal/stats"
)

var errUsage = errors.New("usage")

// target is a resolved remote file argument.
type target struct {
	loc location.Location
	cfg remote.Config
}

// Base returns the remote file name.
func (t target) Base() string { return path.Base(t.loc.Path) }

// resolve parses a remote file argument and builds the handle config.
// A local-looking absolute path is taken as remote on the configured default
// host. Ports resolve in order: explicit in the argument, host alias,
// --port. Upload ids resolve from the argument, then uploadID (the
// --upload-id flag, if > 0), then the host alias.
func (g *globalOptions) resolve(arg string, mode remote.Mode, uploadID int) (target, error) {
	loc, err := location.Parse(arg)
	if err != nil {
		return target{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	if !loc.IsRemote() {
		if g.cfg.Defaults.Host == nil || !path.IsAbs(loc.Path) {
			return target{}, fmt.Errorf("%w: %q is not a remote file (want host:/path or rfile://host/path)", errUsage, arg)
		}
		loc.Host = *g.cfg.Defaults.Host
	}

	alias, _ := g.cfg.Resolve(loc.Host)

	port := loc.Port
	if port == 0 {
		port = alias.Port
	}
	if port == 0 {
		port = g.port
	}

	cfg := remote.Config{
		Host:    alias.Address,
		Port:    port,
		Path:    loc.Path,
		Mode:    mode,
		Timeout: g.timeout,
		Logger:  slog.Default(),
	}
	if mode == remote.ModeReadWrite {
		switch {
		case loc.UploadID != 0:
			cfg.UploadID = loc.UploadID
		case uploadID > 0:
			cfg.UploadID = uploadID
		default:
			cfg.UploadID = alias.UploadID
		}
	}

	loc.Port = port
	return target{loc: loc, cfg: cfg}, nil
}

// open connects to a resolved target.
func (t target) open(ctx context.Context, collector *stats.Collector) (*remote.File, error) {
	t.cfg.Stats = collector
	f, err := remote.Open(ctx, t.cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", t.loc, err)
	}
	return f, nil
}
