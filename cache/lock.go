package cache

import "sync"

// locker is the cross-process half of the guard. Lock/Unlock take the region
// exclusively; RLock/RUnlock take it shared.
type locker interface {
	Lock() error
	Unlock() error
	RLock() error
	RUnlock() error
}

// nopLocker is used for in-process regions, where the guard's RWMutex is the
// only synchronization needed.
type nopLocker struct{}

func (nopLocker) Lock() error    { return nil }
func (nopLocker) Unlock() error  { return nil }
func (nopLocker) RLock() error   { return nil }
func (nopLocker) RUnlock() error { return nil }

// sharedCount reference-counts shared holders inside one process. flock(2)
// locks belong to the open file description, so concurrent goroutines share
// a single LOCK_SH and only the last one out may release it.
type sharedCount struct {
	mu      sync.Mutex
	holders int
}

func (c *sharedCount) acquire(lock func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holders == 0 {
		if err := lock(); err != nil {
			return err
		}
	}
	c.holders++
	return nil
}

func (c *sharedCount) release(unlock func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holders == 0 {
		return nil
	}
	c.holders--
	if c.holders == 0 {
		return unlock()
	}
	return nil
}
