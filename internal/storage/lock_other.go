//go:build !unix

package storage

import (
	"os"
	"sync"
)

// Without flock the store only serializes callers inside this process.
var processLock sync.RWMutex

func lockFile(_ *os.File, exclusive bool) (func() error, error) {
	if exclusive {
		processLock.Lock()
		return func() error { processLock.Unlock(); return nil }, nil
	}
	processLock.RLock()
	return func() error { processLock.RUnlock(); return nil }, nil
}
