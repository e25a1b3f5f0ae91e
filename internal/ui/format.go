// Package ui renders transfer progress, remote file details, and log output
// for the rfile command.
package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bamsammich/rfile/internal/stats"
)

var rateUnits = [...]string{"B/s", "KiB/s", "MiB/s", "GiB/s", "TiB/s", "PiB/s"}

// FormatRate formats a throughput in binary units with three significant
// digits, e.g. "1.50 MiB/s" or "812 KiB/s".
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	i := 0
	for bytesPerSec >= 1024 && i < len(rateUnits)-1 {
		bytesPerSec /= 1024
		i++
	}
	prec := 0
	if bytesPerSec < 10 {
		prec = 2
	} else if bytesPerSec < 100 {
		prec = 1
	}
	return strconv.FormatFloat(bytesPerSec, 'f', prec, 64) + " " + rateUnits[i]
}

// FormatETA formats a remaining duration; unknown or zero is "--".
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	return FormatDuration(d)
}

// FormatDuration formats elapsed time concisely.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatCount formats a byte count with thousands separators, as shown next
// to the human-readable size in stat output.
func FormatCount(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range len(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return sign + string(out)
}

// ProgressBar renders a progress bar of the given width using ▪/□ characters.
func ProgressBar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	pct = min(max(pct, 0), 1)
	filled := min(int(pct*float64(width)), width)

	return strings.Repeat("▪", filled) + strings.Repeat("□", width-filled)
}

// FormatBytes wraps stats.FormatBytes for UI use.
func FormatBytes(b int64) string {
	return stats.FormatBytes(b)
}
