package xfer

import (
	"os"
	"sync"
)

// globalTmpRegistry tracks in-progress temporary files so an interrupted
// process can remove them.
var globalTmpRegistry = &tmpRegistry{} //nolint:gochecknoglobals // process-wide cleanup

type tmpRegistry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func registerTmp(path string) {
	globalTmpRegistry.mu.Lock()
	defer globalTmpRegistry.mu.Unlock()
	if globalTmpRegistry.paths == nil {
		globalTmpRegistry.paths = make(map[string]struct{})
	}
	globalTmpRegistry.paths[path] = struct{}{}
}

func deregisterTmp(path string) {
	globalTmpRegistry.mu.Lock()
	defer globalTmpRegistry.mu.Unlock()
	delete(globalTmpRegistry.paths, path)
}

// CleanupTmpFiles removes every temporary file of a download still in
// progress. The get command defers it so a run ended by an interrupt or a
// failed rename leaves no temporary files behind.
func CleanupTmpFiles() {
	globalTmpRegistry.mu.Lock()
	paths := make([]string, 0, len(globalTmpRegistry.paths))
	for p := range globalTmpRegistry.paths {
		paths = append(paths, p)
	}
	globalTmpRegistry.paths = nil
	globalTmpRegistry.mu.Unlock()

	for _, p := range paths {
		_ = os.Remove(p)
	}
}
