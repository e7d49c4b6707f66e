package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Usage thresholds for gauge and sparkline colors.
const (
	WarnPercent   = 70
	DangerPercent = 90
)

var (
	colorOK     = lipgloss.Color("#22C55E")
	colorWarn   = lipgloss.Color("#EAB308")
	colorDanger = lipgloss.Color("#EF4444")
)

func usageColor(percent float64) lipgloss.Color {
	switch {
	case percent >= DangerPercent:
		return colorDanger
	case percent >= WarnPercent:
		return colorWarn
	default:
		return colorOK
	}
}

// UsageGauge renders "label ████░░░░  42%" with the bar width cells wide.
// The label is padded to labelWidth so stacked gauges line up.
func UsageGauge(label string, labelWidth int, percent float64, width int) string {
	if math.IsNaN(percent) {
		percent = 0
	}
	percent = math.Max(0, math.Min(100, percent))
	if width <= 0 {
		width = 20
	}

	filled := int(math.Round(percent / 100 * float64(width)))
	bar := lipgloss.NewStyle().Foreground(usageColor(percent)).Render(strings.Repeat("█", filled)) +
		strings.Repeat("░", width-filled)

	return fmt.Sprintf("%-*s %s %3.0f%%", labelWidth, label, bar, percent)
}
