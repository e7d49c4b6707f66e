package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
	"gitlab.com/tinyland/lab/sysinfo-pulse/config"
)

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SYSINFO_PULSE_INTERVAL", "SYSINFO_PULSE_CACHE_FILE", "SYSINFO_PULSE_LOG_LEVEL", "NO_COLOR"} {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv is a config file whose cache and PID file live in a temp dir.
type testEnv struct {
	dir        string
	configPath string
	cacheFile  string
	pidFile    string
}

func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	e := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		cacheFile:  filepath.Join(dir, "sysinfo-pulse.cache"),
		pidFile:    filepath.Join(dir, "sysinfo-pulse.pid"),
	}
	content := fmt.Sprintf("sampler:\n  cache_file: %s\n  pid_file: %s\n  segment_size: 4K\n  segments: 2\n%s", e.cacheFile, e.pidFile, extra)
	if err := os.WriteFile(e.configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return e
}

func (e testEnv) fillCache(t *testing.T, samples ...collectors.Sample) {
	t.Helper()
	c, err := collectors.CreateCache(e.cacheFile, cache.Layout{SegmentSize: 4096, Segments: 2}, discardLogger())
	if err != nil {
		t.Fatalf("CreateCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	for _, s := range samples {
		if err := c.Write(s); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
}

func testSample(at time.Time) collectors.Sample {
	return collectors.Sample{
		At:       at,
		Load:     collectors.Load{One: 1, Five: 0.5, Fifteen: 0.25},
		CPUUsage: 12.5,
		Memory:   collectors.NewMemory(8<<30, 2<<30),
		Swap:     collectors.NewMemory(0, 0),
		Volumes:  []collectors.Volume{collectors.NewVolume("/", 100<<30, 40<<30)},
	}
}

// runCLI runs the command with stdout redirected to a file.
func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "stdout"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var errBuf bytes.Buffer
	code = run(args, f, &errBuf)

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	return code, string(data), errBuf.String()
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-cached", "-json", "-config", "/tmp/x.yaml"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if !o.cached || !o.json || o.configPath != "/tmp/x.yaml" {
		t.Errorf("parsed %+v", o)
	}

	o, err = parseFlags(nil, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if o.configPath != config.DefaultPath() {
		t.Errorf("default config path = %q", o.configPath)
	}

	if _, err := parseFlags([]string{"stray"}, io.Discard); err == nil {
		t.Error("positional argument accepted")
	}
	if _, err := parseFlags([]string{"-bogus"}, io.Discard); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestRunVersion(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	if code != 0 || !strings.HasPrefix(out, "sysinfo-pulse "+version) {
		t.Errorf("code %d, output %q", code, out)
	}
}

func TestRunUsage(t *testing.T) {
	e := newTestEnv(t, "")
	code, out, _ := runCLI(t, "-config", e.configPath)
	if code != 0 || !strings.Contains(out, "Usage: sysinfo-pulse") || !strings.Contains(out, "-daemon") {
		t.Errorf("code %d, output:\n%s", code, out)
	}
}

func TestRunBadFlag(t *testing.T) {
	if code, _, _ := runCLI(t, "-nope"); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestRunCachedJSON(t *testing.T) {
	e := newTestEnv(t, "")
	e.fillCache(t, testSample(t0), testSample(t0.Add(time.Second)))

	code, out, stderr := runCLI(t, "-config", e.configPath, "-cached", "-json")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}

	var rows []collectors.Row
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(rows) != 2*13 {
		t.Fatalf("got %d rows, want 26", len(rows))
	}
	if !rows[0].At.Equal(t0.Add(time.Second)) {
		t.Errorf("first row at %v, want the newest sample", rows[0].At)
	}
	if rows[0].Metric != collectors.MetricLoadAverage || rows[0].Dimensions.Get("duration") != "1m" {
		t.Errorf("first row = %+v", rows[0])
	}
}

func TestRunCachedPlain(t *testing.T) {
	e := newTestEnv(t, "")
	e.fillCache(t, testSample(t0))

	code, out, _ := runCLI(t, "-config", e.configPath, "-cached")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 13 {
		t.Fatalf("got %d lines, want 13:\n%s", len(lines), out)
	}
	if lines[3] != "cpu_usage\t\t2026-06-01T12:00:00Z\t12.5" {
		t.Errorf("cpu line = %q", lines[3])
	}
	if !strings.HasPrefix(lines[10], "disk_usage\tfs=/\t") {
		t.Errorf("disk line = %q", lines[10])
	}
}

func TestRunCachedMissingRegion(t *testing.T) {
	e := newTestEnv(t, "")

	code, out, _ := runCLI(t, "-config", e.configPath, "-cached", "-json")
	if code != 0 || strings.TrimSpace(out) != "[]" {
		t.Errorf("code %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, "-config", e.configPath, "-summary")
	if code != 0 || out != "bytes_used\t0\nitems\t0\n" {
		t.Errorf("code %d, summary %q", code, out)
	}
}

func TestRunSummary(t *testing.T) {
	e := newTestEnv(t, "")
	e.fillCache(t, testSample(t0), testSample(t0.Add(time.Second)), testSample(t0.Add(2*time.Second)))

	code, out, _ := runCLI(t, "-config", e.configPath, "-summary", "-json")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	var sum cache.BufferSummary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if sum.Items != 3 || sum.BytesUsed <= 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunWriteConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	code, _, stderr := runCLI(t, "-config", path, "-write-config")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Sampler.Segments != cache.DefaultSegments {
		t.Errorf("segments = %d", cfg.Sampler.Segments)
	}
}

func TestReloadSettings(t *testing.T) {
	e := newTestEnv(t, "  interval: 5\n")
	startup := config.ReadOrDefault(e.configPath, discardLogger())
	settings := reloadSettings(e.configPath, startup, discardLogger())

	got := settings()
	if !got.Enabled || got.Interval != 5*time.Second || got.ProduceTimeout != 10*time.Second {
		t.Fatalf("startup settings = %+v", got)
	}

	// Later calls re-read the file.
	content := fmt.Sprintf("sampler:\n  cache_file: %s\n  interval: 250ms\n", e.cacheFile)
	if err := os.WriteFile(e.configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := settings(); !got.Enabled || got.Interval != 250*time.Millisecond {
		t.Errorf("reloaded settings = %+v", got)
	}

	if err := os.WriteFile(e.configPath, []byte("sampler:\n  interval: never\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := settings(); got.Enabled {
		t.Errorf("invalid interval left sampling enabled: %+v", got)
	}
}

func TestForwardReloadsMerges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal)
	reloads := forwardReloads(ctx, sig)

	sig <- os.Interrupt
	sig <- os.Interrupt
	sig <- os.Interrupt

	select {
	case <-reloads:
	case <-time.After(time.Second):
		t.Fatal("no reload forwarded")
	}
	select {
	case <-reloads:
		t.Fatal("burst of signals produced more than one pending reload")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-reloads:
		if ok {
			t.Error("reload delivered after cancel")
		}
	case <-time.After(time.Second):
		t.Error("reload channel not closed after cancel")
	}
}

func TestAssessHealth(t *testing.T) {
	now := t0.Add(time.Minute)
	fresh := []collectors.Sample{testSample(now.Add(-3 * time.Second))}
	old := []collectors.Sample{testSample(now.Add(-30 * time.Second))}
	sum := cache.BufferSummary{Items: 1, BytesUsed: 100}

	tests := []struct {
		name    string
		pid     int
		enabled bool
		samples []collectors.Sample
		want    string
		healthy bool
	}{
		{"not running", 0, true, fresh, healthNotRunning, false},
		{"disabled", 42, false, nil, healthDisabled, true},
		{"no samples yet", 42, true, nil, healthStale, false},
		{"stale", 42, true, old, healthStale, false},
		{"fresh", 42, true, fresh, healthOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := assessHealth(tt.pid, 5*time.Second, tt.enabled, tt.samples, sum, now)
			if h.Status != tt.want || h.healthy() != tt.healthy {
				t.Errorf("status = %q (healthy %v), want %q (%v)", h.Status, h.healthy(), tt.want, tt.healthy)
			}
		})
	}

	h := assessHealth(42, 5*time.Second, true, fresh, sum, now)
	if h.Age != "3s" || h.Interval != "5s" || h.Items != 1 {
		t.Errorf("report = %+v", h)
	}
}

func TestRunHealthNotRunning(t *testing.T) {
	e := newTestEnv(t, "  interval: 5\n")
	code, out, _ := runCLI(t, "-config", e.configPath, "-health", "-json")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	var h healthReport
	if err := json.Unmarshal([]byte(out), &h); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if h.Status != healthNotRunning {
		t.Errorf("status = %q", h.Status)
	}
}

func TestWriteHealthPlain(t *testing.T) {
	var buf bytes.Buffer
	h := healthReport{Status: healthStale, PID: 7, Interval: "5s"}
	if err := writeHealth(&buf, h, false); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "sampler stale (PID 7, no samples yet, interval 5s)\n" {
		t.Errorf("writeHealth() = %q", got)
	}
}
