package daemon

import (
	"log/slog"
	"time"
)

const (
	// repeatWindow is how long an identical error stays suppressed.
	repeatWindow = time.Hour

	// repeatEvery logs a summary line once per this many suppressed repeats.
	repeatEvery = 100
)

// errTracker deduplicates repeated identical errors per source.
type errTracker struct {
	lastMsg    string
	lastTime   time.Time
	suppressed int64
}

// errorLog logs failures from the sampling loop without flooding the log
// when the same failure recurs every tick.
type errorLog struct {
	logger   *slog.Logger
	trackers map[string]*errTracker
	now      func() time.Time
}

func newErrorLog(logger *slog.Logger) *errorLog {
	return &errorLog{
		logger:   logger,
		trackers: make(map[string]*errTracker),
		now:      time.Now,
	}
}

// log reports err from source. If the same message recurred within the
// repeat window it is suppressed, with a summary every repeatEvery times.
// It reports whether a line was written.
func (l *errorLog) log(source string, err error) bool {
	msg := err.Error()
	tracker := l.trackers[source]
	if tracker == nil {
		tracker = &errTracker{}
		l.trackers[source] = tracker
	}

	now := l.now()
	if msg == tracker.lastMsg && now.Sub(tracker.lastTime) < repeatWindow {
		tracker.suppressed++
		if tracker.suppressed%repeatEvery == 0 {
			l.logger.Error("sampler: error repeated", "source", source, "repeats", tracker.suppressed, "error", err)
			return true
		}
		return false
	}
	if tracker.suppressed > 0 {
		l.logger.Info("sampler: previous error repeated", "source", source, "repeats", tracker.suppressed)
	}
	l.logger.Error("sampler: tick failed", "source", source, "error", err)
	tracker.lastMsg = msg
	tracker.lastTime = now
	tracker.suppressed = 0
	return true
}

// recovered clears the tracker for source after a success so the next
// failure is logged in full.
func (l *errorLog) recovered(source string) {
	tracker := l.trackers[source]
	if tracker == nil || tracker.lastMsg == "" {
		return
	}
	if tracker.suppressed > 0 {
		l.logger.Info("sampler: previous error repeated", "source", source, "repeats", tracker.suppressed)
	}
	l.logger.Info("sampler: recovered", "source", source)
	delete(l.trackers, source)
}
