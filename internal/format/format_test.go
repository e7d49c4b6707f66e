package format

import (
	"testing"
	"time"
)

func TestFormatTimeSince(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "never"},
		{"fresh", now.Add(-200 * time.Millisecond), "just now"},
		{"seconds", now.Add(-12 * time.Second), "12s ago"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-50 * time.Hour), "2d ago"},
		{"future", now.Add(30 * time.Second), "30s ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimeSince(tt.t, now); got != tt.want {
				t.Errorf("FormatTimeSince() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{250 * time.Millisecond, "250ms"},
		{time.Second, "1s"},
		{5*time.Minute + 30*time.Second, "5m 30s"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
		{76 * time.Hour, "3d 4h"},
		{-time.Second, "1s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatInterval(t *testing.T) {
	if got := FormatInterval(0); got != "disabled" {
		t.Errorf("FormatInterval(0) = %q", got)
	}
	if got := FormatInterval(2500 * time.Millisecond); got != "2s" {
		t.Errorf("FormatInterval(2.5s) = %q", got)
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"/dev/nvme0n1p2", 20, "/dev/nvme0n1p2"},
		{"/dev/nvme0n1p2", 8, "/dev/..."},
		{"/dev/nvme0n1p2", 3, "/de"},
		{"/dev", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateWithEllipsis(tt.s, tt.width); got != tt.want {
			t.Errorf("TruncateWithEllipsis(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}

func TestValue(t *testing.T) {
	tests := []struct {
		metric string
		v      float64
		want   string
	}{
		{"cpu_usage", 12.345, "12.3%"},
		{"disk_usage", 0, "0.0%"},
		{"memory_size", 2 * 1024 * 1024 * 1024, "2G"},
		{"swap_available", 0, "0B"},
		{"disk_available", 1536, "1.5K"},
		{"load_average", 0.5, "0.50"},
	}
	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			if got := Value(tt.metric, tt.v); got != tt.want {
				t.Errorf("Value(%q, %v) = %q, want %q", tt.metric, tt.v, got, tt.want)
			}
		})
	}
}
