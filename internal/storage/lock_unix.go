//go:build unix

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes an advisory flock on f and returns the matching unlock
func lockFile(f *os.File, exclusive bool) (func() error, error) {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	for {
		err := unix.Flock(int(f.Fd()), how)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		return func() error { return unix.Flock(int(f.Fd()), unix.LOCK_UN) }, nil
	}
}
