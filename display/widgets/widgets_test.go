package widgets

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestRenderSparklineAscending(t *testing.T) {
	got := []rune(RenderSparkline(SparklineConfig{Data: []float64{1, 2, 3, 4, 5, 6, 7, 8}}))
	if len(got) != 8 {
		t.Fatalf("got %d cells, want 8", len(got))
	}
	if got[0] != sparkBlocks[0] || got[7] != sparkBlocks[7] {
		t.Errorf("auto-scaled ends = %c %c", got[0], got[7])
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Errorf("block %d (%c) lower than block %d (%c)", i, got[i], i-1, got[i-1])
		}
	}
}

func TestRenderSparklineEdges(t *testing.T) {
	tests := []struct {
		name string
		cfg  SparklineConfig
		want string
	}{
		{"empty", SparklineConfig{}, ""},
		{"flat uses mid block", SparklineConfig{Data: []float64{5, 5, 5}}, "▅▅▅"},
		{"pads short series", SparklineConfig{Data: []float64{0, 100}, Width: 4, Min: 0, Max: 100}, "  ▁█"},
		{"keeps newest points", SparklineConfig{Data: []float64{100, 0, 100}, Width: 2, Min: 0, Max: 100}, "▁█"},
		{"clamps to scale", SparklineConfig{Data: []float64{-10, 250}, Min: 0, Max: 100}, "▁█"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderSparkline(tt.cfg); got != tt.want {
				t.Errorf("RenderSparkline() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUsageSparklineFixedScale(t *testing.T) {
	// A nearly idle series must not be stretched to full height.
	got := UsageSparkline([]float64{1, 2, 3}, 0)
	if strings.ContainsRune(got, '█') {
		t.Errorf("UsageSparkline(1,2,3) = %q, reaches full height", got)
	}
	if UsageSparkline(nil, 10) != "" {
		t.Error("empty series rendered")
	}
}

func TestSeries(t *testing.T) {
	samples := []collectors.Sample{{CPUUsage: 10}, {CPUUsage: 20}}
	got := Series(samples, func(s collectors.Sample) float64 { return s.CPUUsage })
	if len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Errorf("Series() = %v", got)
	}
}

func TestUsageGauge(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{0, "cpu  ░░░░░░░░░░   0%"},
		{50, "cpu  █████░░░░░  50%"},
		{100, "cpu  ██████████ 100%"},
		{150, "cpu  ██████████ 100%"},
	}
	for _, tt := range tests {
		if got := UsageGauge("cpu", 4, tt.percent, 10); got != tt.want {
			t.Errorf("UsageGauge(%v) = %q, want %q", tt.percent, got, tt.want)
		}
	}
}

func TestUsageColor(t *testing.T) {
	if usageColor(10) != colorOK || usageColor(75) != colorWarn || usageColor(95) != colorDanger {
		t.Error("usage colors do not follow the thresholds")
	}
}

func testRows() []collectors.Row {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return []collectors.Row{
		{Metric: collectors.MetricCPUUsage, Dimensions: collectors.Dimensions{}, At: at, Value: 12.5},
		{Metric: collectors.MetricDiskSize, Dimensions: collectors.Dimensions{{Key: "fs", Value: "/"}}, At: at, Value: 1 << 30},
	}
}

func TestWriteRows(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRows(&buf, testRows()); err != nil {
		t.Fatal(err)
	}
	want := "cpu_usage\t\t2026-06-01T12:00:00Z\t12.5\n" +
		"disk_size\tfs=/\t2026-06-01T12:00:00Z\t1073741824\n"
	if buf.String() != want {
		t.Errorf("WriteRows() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestRenderRows(t *testing.T) {
	out := RenderRows(testRows(), 100)
	for _, want := range []string{"METRIC", "VALUE", "cpu_usage", "12.5%", "fs=/", "1G"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	for i, line := range strings.Split(out, "\n") {
		if w := lipgloss.Width(line); w > 100 {
			t.Errorf("line %d is %d cells wide", i, w)
		}
	}
}

func testStatus() cache.Status {
	return cache.Status{
		Path:    "/run/user/1000/sysinfo-pulse.cache",
		Layout:  cache.Layout{SegmentSize: 1024, Segments: 2},
		Summary: cache.BufferSummary{Items: 3, BytesUsed: 512, MeanItemBytes: 512.0 / 3},
		Segments: []cache.SegmentInfo{
			{Slot: 1, Generation: 4, Items: 2, BytesUsed: 400},
			{Slot: 0, Generation: 5, Items: 1, BytesUsed: 112},
		},
		Rotations: 4,
		Writes:    9,
	}
}

func TestSummaryLine(t *testing.T) {
	got := SummaryLine(testStatus())
	want := "3 samples  512B / 2K (25.0%)  4 rotations"
	if got != want {
		t.Errorf("SummaryLine() = %q, want %q", got, want)
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(testStatus(), 80)
	for _, want := range []string{"sysinfo-pulse.cache", "GENERATION", "2 x 1K", "39.1%"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, cache.BufferSummary{Items: 3, BytesUsed: 512}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "bytes_used\t512\nitems\t3\n" {
		t.Errorf("WriteSummary() = %q", buf.String())
	}
}
