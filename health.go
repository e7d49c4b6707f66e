package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
	"gitlab.com/tinyland/lab/sysinfo-pulse/config"
	"gitlab.com/tinyland/lab/sysinfo-pulse/daemon"
	"gitlab.com/tinyland/lab/sysinfo-pulse/internal/format"
)

// Health states reported by -health.
const (
	healthOK         = "ok"
	healthStale      = "stale"
	healthDisabled   = "disabled"
	healthNotRunning = "not_running"
)

// staleFactor is how many intervals may pass without a new sample before
// the sampler is reported stale.
const staleFactor = 2

// healthReport is the -health output.
type healthReport struct {
	Status     string     `json:"status"`
	PID        int        `json:"pid,omitempty"`
	Interval   string     `json:"interval"`
	LastSample *time.Time `json:"last_sample,omitempty"`
	Age        string     `json:"age,omitempty"`
	Items      int        `json:"items"`
	BytesUsed  int        `json:"bytes_used"`
}

// healthy reports whether the state warrants exit code 0.
func (h healthReport) healthy() bool {
	return h.Status == healthOK || h.Status == healthDisabled
}

// assessHealth derives the sampler state from its PID, its configured
// interval and the newest cached sample.
func assessHealth(pid int, interval time.Duration, enabled bool, samples []collectors.Sample, sum cache.BufferSummary, now time.Time) healthReport {
	h := healthReport{
		PID:       pid,
		Interval:  format.FormatInterval(interval),
		Items:     sum.Items,
		BytesUsed: sum.BytesUsed,
	}
	if !enabled {
		h.Interval = format.FormatInterval(0)
	}

	if newest := collectors.NewestFirst(samples); len(newest) > 0 {
		at := newest[0].At
		h.LastSample = &at
		h.Age = format.FormatDuration(now.Sub(at).Round(time.Second))
	}

	switch {
	case pid == 0:
		h.Status = healthNotRunning
	case !enabled:
		h.Status = healthDisabled
	case h.LastSample == nil || now.Sub(*h.LastSample) > staleFactor*interval:
		h.Status = healthStale
	default:
		h.Status = healthOK
	}
	return h
}

// checkHealth prints the sampler health and returns the exit code.
func checkHealth(cfg *config.Config, out io.Writer, asJSON bool, logger *slog.Logger) int {
	var pid int
	if running, p := daemon.NewPIDFile(cfg.Sampler.PIDFile, logger).Running(); running {
		pid = p
	}

	c := openCache(cfg, logger)
	defer c.Close()

	interval, enabled := cfg.SamplingInterval()
	h := assessHealth(pid, interval, enabled,
		cache.ReadOrEmpty(c, logger),
		cache.StatsOrZero(c, logger),
		time.Now(),
	)

	if err := writeHealth(out, h, asJSON); err != nil {
		logger.Error("write health report", "error", err)
		return 1
	}
	if !h.healthy() {
		return 1
	}
	return 0
}

func writeHealth(out io.Writer, h healthReport, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(h, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	var err error
	switch h.Status {
	case healthNotRunning:
		_, err = fmt.Fprintln(out, "sampler not running")
	case healthDisabled:
		_, err = fmt.Fprintf(out, "sampler running (PID %d), sampling disabled\n", h.PID)
	case healthStale:
		last := "no samples yet"
		if h.Age != "" {
			last = "last sample " + h.Age + " ago"
		}
		_, err = fmt.Fprintf(out, "sampler stale (PID %d, %s, interval %s)\n", h.PID, last, h.Interval)
	default:
		_, err = fmt.Fprintf(out, "sampler healthy (PID %d, last sample %s ago, %d samples cached)\n", h.PID, h.Age, h.Items)
	}
	return err
}
