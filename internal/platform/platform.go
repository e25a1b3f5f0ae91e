// Package platform wraps OS-specific file operations used by transfers.
package platform

import "os"

// Preallocate reserves size bytes of disk for f without changing its
// length. It is advisory: unsupported filesystems and platforms are
// silently ignored, and a non-positive size does nothing.
func Preallocate(f *os.File, size int64) {
	if f == nil || size <= 0 {
		return
	}
	preallocate(f, size)
}
