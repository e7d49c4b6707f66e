// Package daemon runs the sampling loop: it owns the enable/interval state,
// waits for the next tick or a reload, asks the producer for a sample and
// writes it into the shared cache.
package daemon

import "time"

// State is the scheduler state. The zero value is disabled.
type State struct {
	Interval time.Duration
	LastRun  time.Time
	Enabled  bool
}

// Enable turns sampling on with the given interval. Going from disabled to
// enabled restarts the cadence at now; changing the interval of an enabled
// state keeps LastRun. It reports whether anything changed.
func (s *State) Enable(interval time.Duration, now time.Time) bool {
	changed := false
	if !s.Enabled {
		s.Enabled = true
		s.LastRun = now
		changed = true
	}
	if s.Interval != interval {
		s.Interval = interval
		changed = true
	}
	return changed
}

// Disable turns sampling off and reports whether it was on.
func (s *State) Disable() bool {
	if !s.Enabled {
		return false
	}
	s.Enabled = false
	return true
}

// Remaining is the time left until the next sample is due, never negative.
// It is only meaningful while enabled.
func (s *State) Remaining(now time.Time) time.Duration {
	left := s.Interval - now.Sub(s.LastRun)
	if left < 0 {
		return 0
	}
	return left
}

// Due reports whether a sample should be taken at now.
func (s *State) Due(now time.Time) bool {
	return s.Enabled && s.Remaining(now) == 0
}
