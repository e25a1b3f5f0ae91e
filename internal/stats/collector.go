package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks session statistics using lock-free atomic counters.
// A nil *Collector is valid and discards all updates, so handles can call
// it unconditionally.
type Collector struct {
	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
	commands     atomic.Int64
	sizeQueries  atomic.Int64
	reconnects   atomic.Int64
	failures     atomic.Int64
	bytesTotal   atomic.Int64
	startTime    time.Time

	// Ring buffer, written only by the progress reporter's Tick().
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int // how many samples have been written (capped at ringSize)
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotal records the expected number of bytes to transfer.
func (c *Collector) SetTotal(bytes int64) {
	if c == nil {
		return
	}
	c.bytesTotal.Store(bytes)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	BytesRead    int64
	BytesWritten int64
	Commands     int64
	SizeQueries  int64
	Reconnects   int64
	Failures     int64
	BytesTotal   int64
	Elapsed      time.Duration
}

// Transferred is the sum of bytes moved in either direction.
func (s Snapshot) Transferred() int64 { return s.BytesRead + s.BytesWritten }

func (c *Collector) AddBytesRead(n int64) {
	if c != nil {
		c.bytesRead.Add(n)
	}
}

func (c *Collector) AddBytesWritten(n int64) {
	if c != nil {
		c.bytesWritten.Add(n)
	}
}

func (c *Collector) AddCommands(n int64) {
	if c != nil {
		c.commands.Add(n)
	}
}

func (c *Collector) AddSizeQueries(n int64) {
	if c != nil {
		c.sizeQueries.Add(n)
	}
}

func (c *Collector) AddReconnects(n int64) {
	if c != nil {
		c.reconnects.Add(n)
	}
}

// AddFailures counts transactions that failed even after the retry.
func (c *Collector) AddFailures(n int64) {
	if c != nil {
		c.failures.Add(n)
	}
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		BytesRead:    c.bytesRead.Load(),
		BytesWritten: c.bytesWritten.Load(),
		Commands:     c.commands.Load(),
		SizeQueries:  c.sizeQueries.Load(),
		Reconnects:   c.reconnects.Load(),
		Failures:     c.failures.Load(),
		BytesTotal:   c.bytesTotal.Load(),
		Elapsed:      c.Elapsed(),
	}
}

func (c *Collector) transferred() int64 {
	return c.bytesRead.Load() + c.bytesWritten.Load()
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the
// progress reporter.
func (c *Collector) Tick() {
	current := c.transferred()

	c.mu.Lock()
	defer c.mu.Unlock()

	delta := current - c.lastBytes
	c.lastBytes = current

	c.throughput[c.ringIdx] = delta
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count == 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns the last n bytes/sec samples for rendering.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(n, c.ringCount)
	if count == 0 {
		return nil
	}

	data := make([]float64, count)
	for i := range count {
		// oldest first
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		data[i] = float64(c.throughput[idx])
	}
	return data
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.transferred()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"read=%d written=%d commands=%d size_queries=%d reconnects=%d failures=%d",
		s.BytesRead, s.BytesWritten, s.Commands, s.SizeQueries, s.Reconnects, s.Failures,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
