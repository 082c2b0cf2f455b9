//go:build !windows

package ctdb

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile acquires a non-blocking exclusive advisory lock on f,
// enforcing single-writer-per-handle access at the OS level.
func lockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if err == unix.EWOULDBLOCK {
			return ErrDatabaseLocked
		}
		return err
	}
	return nil
}

// unlockFile releases the lock acquired by lockFile.
func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
