//go:build !windows

package cache

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock guards a region file with flock(2) so separate processes exclude
// each other the same way goroutines do through the RWMutex.
type fileLock struct {
	f      *os.File
	shared sharedCount
}

func newFileLock(f *os.File) *fileLock {
	return &fileLock{f: f}
}

func (l *fileLock) flock(how int) error {
	for {
		err := unix.Flock(int(l.f.Fd()), how)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("cache: flock %s: %w", l.f.Name(), err)
		}
		return nil
	}
}

func (l *fileLock) Lock() error   { return l.flock(unix.LOCK_EX) }
func (l *fileLock) Unlock() error { return l.flock(unix.LOCK_UN) }

func (l *fileLock) RLock() error {
	return l.shared.acquire(func() error { return l.flock(unix.LOCK_SH) })
}

func (l *fileLock) RUnlock() error {
	return l.shared.release(func() error { return l.flock(unix.LOCK_UN) })
}
