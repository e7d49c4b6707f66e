package tui

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
	"gitlab.com/tinyland/lab/sysinfo-pulse/display/widgets"
	"gitlab.com/tinyland/lab/sysinfo-pulse/internal/format"
)

const labelWidth = 14

// renderOverview shows the newest sample as gauges and the history of CPU
// and memory usage as sparklines.
func renderOverview(samples []collectors.Sample, width int, now time.Time) string {
	if len(samples) == 0 {
		return styleMuted.Render("No samples cached yet.")
	}

	history := collectors.NewestFirst(samples)
	latest := history[0]
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	barWidth := max(10, width-labelWidth-8)

	var lines []string
	lines = append(lines,
		styleTitle.Render("Latest sample")+" "+styleMuted.Render(format.FormatTimeSince(latest.At, now)),
		"",
		fmt.Sprintf("%-*s %.2f  %.2f  %.2f", labelWidth, "load 1/5/15", latest.Load.One, latest.Load.Five, latest.Load.Fifteen),
		widgets.UsageGauge("cpu", labelWidth, latest.CPUUsage, barWidth),
		widgets.UsageGauge("memory", labelWidth, latest.Memory.Usage, barWidth),
		widgets.UsageGauge("swap", labelWidth, latest.Swap.Usage, barWidth),
	)
	for _, v := range latest.Volumes {
		lines = append(lines, widgets.UsageGauge(format.TruncateWithEllipsis(v.Name, labelWidth), labelWidth, v.Usage, barWidth))
	}

	lines = append(lines,
		"",
		styleTitle.Render(fmt.Sprintf("History (%d samples)", len(history))),
		"",
		fmt.Sprintf("%-*s %s", labelWidth, "cpu", widgets.UsageSparkline(
			widgets.Series(history, func(s collectors.Sample) float64 { return s.CPUUsage }), barWidth)),
		fmt.Sprintf("%-*s %s", labelWidth, "memory", widgets.UsageSparkline(
			widgets.Series(history, func(s collectors.Sample) float64 { return s.Memory.Usage }), barWidth)),
	)

	return strings.Join(lines, "\n")
}
