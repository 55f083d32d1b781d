package fsutil

import (
	"path/filepath"
	"slices"
	"sync"
)

// pathLocks hands out one mutex per cleaned path.
var pathLocks sync.Map

// GetPathMutex returns the mutex guarding path
func GetPathMutex(path string) *sync.Mutex {
	actual, _ := pathLocks.LoadOrStore(filepath.Clean(path), &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// acquireMutexes locks every distinct path in sorted order and returns the
// matching unlock function.
func acquireMutexes(paths ...string) func() {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned = append(cleaned, filepath.Clean(p))
	}
	slices.Sort(cleaned)
	cleaned = slices.Compact(cleaned)

	held := make([]*sync.Mutex, 0, len(cleaned))
	for _, p := range cleaned {
		mu := GetPathMutex(p)
		mu.Lock()
		held = append(held, mu)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
