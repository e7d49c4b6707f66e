package widgets

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
)

// sparkBlocks are the eight block heights, lowest first.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// SparklineConfig controls how a series is drawn.
type SparklineConfig struct {
	// Data points, most recent last.
	Data []float64
	// Width in cells. Only the newest Width points are drawn; shorter
	// series are left-padded. Zero means len(Data).
	Width int
	// Min and Max fix the scale. Equal values scale to the data.
	Min float64
	Max float64
	// Color of the blocks. Empty leaves them unstyled.
	Color lipgloss.Color
}

// RenderSparkline draws cfg.Data as a row of block characters.
func RenderSparkline(cfg SparklineConfig) string {
	if len(cfg.Data) == 0 {
		return ""
	}

	data := cfg.Data
	width := cfg.Width
	if width <= 0 {
		width = len(data)
	}
	if width < len(data) {
		data = data[len(data)-width:]
	}

	lo, hi := cfg.Min, cfg.Max
	if lo == hi {
		lo, hi = bounds(data)
	}

	var sb strings.Builder
	if pad := width - len(data); pad > 0 {
		sb.WriteString(strings.Repeat(" ", pad))
	}
	for _, v := range data {
		sb.WriteRune(block(v, lo, hi))
	}

	out := sb.String()
	if cfg.Color != "" {
		out = lipgloss.NewStyle().Foreground(cfg.Color).Render(out)
	}
	return out
}

// UsageSparkline draws a percentage series on a fixed 0-100 scale, colored
// by its latest value.
func UsageSparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	return RenderSparkline(SparklineConfig{
		Data:  data,
		Width: width,
		Min:   0,
		Max:   100,
		Color: usageColor(data[len(data)-1]),
	})
}

// Series picks one value from each sample, preserving order.
func Series(samples []collectors.Sample, pick func(collectors.Sample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = pick(s)
	}
	return out
}

func bounds(data []float64) (lo, hi float64) {
	lo, hi = data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func block(v, lo, hi float64) rune {
	if lo == hi || math.IsNaN(v) {
		return sparkBlocks[len(sparkBlocks)/2]
	}
	n := math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
	return sparkBlocks[int(n*float64(len(sparkBlocks)-1))]
}
