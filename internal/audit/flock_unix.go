//go:build !windows

package audit

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// lockPath takes an exclusive advisory lock on path, creating it if needed.
// It polls with LOCK_NB every lockPoll until lockTimeout elapses.
func lockPath(path string) (func(), error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(lockTimeout)
	for {
		err = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return func() {
				_ = unix.Flock(fd, unix.LOCK_UN)
				_ = unix.Close(fd)
			}, nil
		}
		if time.Now().After(deadline) {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("lock %s: timeout after %s: %w", path, lockTimeout, err)
		}
		time.Sleep(lockPoll)
	}
}
