package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bamsammich/rfile/internal/stats"
)

const (
	sparklineWidth   = 20
	progressBarWidth = 20
	plainInterval    = 5 * time.Second
	redrawInterval   = 100 * time.Millisecond
)

// ANSI escape sequences.
const (
	ansiClearLine = "\r\033[K"
	ansiDim       = "\033[2m"
	ansiReset     = "\033[0m"
)

// ProgressConfig configures a Progress reporter.
type ProgressConfig struct {
	Writer io.Writer
	Stats  *stats.Collector
	Label  string // file name shown in the status line
	// TTY redraws one status line in place; otherwise a line is printed
	// every few seconds.
	TTY bool
	// Width is the terminal width in columns. The in-place status line is
	// cut to fit so it never wraps. 0 means no limit.
	Width int
}

// Progress periodically reports a transfer's throughput from a stats
// collector until stopped. It never writes to the collector's counters.
type Progress struct {
	cfg  ProgressConfig
	stop chan struct{}
	wg   sync.WaitGroup

	drawn bool
}

// NewProgress creates a reporter. Call Start to begin reporting.
func NewProgress(cfg ProgressConfig) *Progress {
	return &Progress{cfg: cfg, stop: make(chan struct{})}
}

// Start launches the reporting goroutine.
func (p *Progress) Start() {
	p.wg.Go(p.run)
}

// Stop ends reporting, clears the status line, and returns the summary.
func (p *Progress) Stop() string {
	close(p.stop)
	p.wg.Wait()
	return Summary(p.cfg.Label, p.cfg.Stats.Snapshot())
}

func (p *Progress) run() {
	// Fire the first tick quickly to seed the ring buffer, then every second.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	interval := plainInterval
	if p.cfg.TTY {
		interval = redrawInterval
	}
	drawTicker := time.NewTicker(interval)
	defer drawTicker.Stop()

	for {
		select {
		case <-p.stop:
			p.clear()
			return
		case <-drawTicker.C:
			p.draw()
		case <-secTicker.C:
			p.cfg.Stats.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(time.Second)
			}
		}
	}
}

func (p *Progress) draw() {
	line := p.Line()
	if p.cfg.TTY {
		fmt.Fprint(p.cfg.Writer, ansiClearLine+line)
		p.drawn = true
		return
	}
	fmt.Fprintln(p.cfg.Writer, "progress: "+line)
}

func (p *Progress) clear() {
	if p.drawn {
		fmt.Fprint(p.cfg.Writer, ansiClearLine)
		p.drawn = false
	}
}

// Line renders the current status: sparkline, rate, bytes, bar and ETA when
// the total is known.
func (p *Progress) Line() string {
	c := p.cfg.Stats
	snap := c.Snapshot()
	done := snap.Transferred()
	speed := c.RollingSpeed(10)

	var spark string
	if p.cfg.TTY {
		spark = Sparkline(c.SparklineData(sparklineWidth), sparklineWidth) + "  "
	}

	if snap.BytesTotal <= 0 {
		return p.fit(fmt.Sprintf("%s  %s%s  %s", p.cfg.Label, spark, FormatBytes(done), FormatRate(speed)))
	}

	pct := float64(done) / float64(snap.BytesTotal)
	return p.fit(fmt.Sprintf("%s  %s%3.0f%% %s  %s / %s  %s  eta %s",
		p.cfg.Label, spark,
		min(pct, 1)*100, ProgressBar(pct, progressBarWidth),
		FormatBytes(done), FormatBytes(snap.BytesTotal),
		FormatRate(speed), FormatETA(c.ETA()),
	))
}

// fit cuts a TTY status line to one column less than the terminal width;
// writing the last column would wrap the cursor on some terminals.
func (p *Progress) fit(line string) string {
	if !p.cfg.TTY || p.cfg.Width <= 1 {
		return line
	}
	runes := []rune(line)
	if len(runes) < p.cfg.Width {
		return line
	}
	return string(runes[:p.cfg.Width-1])
}



// Summary builds the final line for a finished transfer.
// Format: done ✓  show.ts  size 2.1 GiB  avg 41 MiB/s  time 53s  reconnects 0
func Summary(label string, snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.Transferred()) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.Failures > 0 {
		icon = "✗"
	}

	return fmt.Sprintf("done %s  %s  size %s  avg %s  time %s  reconnects %d",
		icon, label,
		FormatBytes(snap.Transferred()),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
		snap.Reconnects,
	)
}
