//go:build windows

package audit

import (
	"fmt"
	"os"
	"time"
)

// lockPath emulates an exclusive lock by creating path with O_EXCL and
// removing it on release.
func lockPath(path string) (func(), error) {
	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			return func() {
				_ = f.Close()
				_ = os.Remove(path)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s: timeout after %s: %w", path, lockTimeout, err)
		}
		time.Sleep(lockPoll)
	}
}
