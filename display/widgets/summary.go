package widgets

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
	"gitlab.com/tinyland/lab/sysinfo-pulse/internal/format"
)

var labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))

// SummaryLine is the one-line occupancy report used by the live view.
func SummaryLine(st cache.Status) string {
	capacity := float64(st.Layout.Capacity())
	used := float64(st.Summary.BytesUsed)
	pct := 0.0
	if capacity > 0 {
		pct = 100 * used / capacity
	}
	return fmt.Sprintf("%d samples  %s / %s (%s)  %d rotations",
		st.Summary.Items,
		format.Bytes(used),
		format.Bytes(capacity),
		format.Percent(pct),
		st.Rotations,
	)
}

// RenderSummary draws the region status and a per-segment table.
func RenderSummary(st cache.Status, width int) string {
	fields := [][2]string{
		{"items", strconv.Itoa(st.Summary.Items)},
		{"bytes used", fmt.Sprintf("%s (%d)", format.Bytes(float64(st.Summary.BytesUsed)), st.Summary.BytesUsed)},
		{"mean item", fmt.Sprintf("%.1f B", st.Summary.MeanItemBytes)},
		{"layout", fmt.Sprintf("%d x %s", st.Layout.Segments, format.Bytes(float64(st.Layout.SegmentSize)))},
		{"rotations", strconv.FormatUint(st.Rotations, 10)},
		{"writes", strconv.FormatUint(st.Writes, 10)},
	}
	if st.Path != "" {
		fields = append([][2]string{{"region", st.Path}}, fields...)
	}

	var out []string
	for _, f := range fields {
		out = append(out, fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-10s", f[0])), f[1]))
	}
	out = append(out, "", renderSegments(st, width))
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

func renderSegments(st cache.Status, width int) string {
	rows := make([][]string, len(st.Segments))
	for i, seg := range st.Segments {
		fill := 0.0
		if st.Layout.SegmentSize > 0 {
			fill = 100 * float64(seg.BytesUsed) / float64(st.Layout.SegmentSize)
		}
		rows[i] = []string{
			strconv.Itoa(seg.Slot),
			strconv.FormatUint(seg.Generation, 10),
			strconv.Itoa(seg.Items),
			format.Bytes(float64(seg.BytesUsed)),
			format.Percent(fill),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return valueStyle
		}).
		Headers("SLOT", "GENERATION", "ITEMS", "USED", "FILL").
		Rows(rows...)
	if width > 0 {
		t = t.Width(width)
	}
	return t.String()
}

// WriteSummary prints bytes_used and items tab-separated.
func WriteSummary(w io.Writer, sum cache.BufferSummary) error {
	_, err := fmt.Fprintf(w, "bytes_used\t%d\nitems\t%d\n", sum.BytesUsed, sum.Items)
	return err
}
