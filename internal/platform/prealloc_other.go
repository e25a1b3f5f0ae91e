//go:build !linux

package platform

import "os"

// preallocate does nothing where fallocate(2) is unavailable; the file
// grows as it is written.
func preallocate(*os.File, int64) {}
