package widgets

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
	"gitlab.com/tinyland/lab/sysinfo-pulse/internal/format"
)

var rowHeaders = []string{"METRIC", "DIMENSIONS", "AT", "VALUE"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	valueStyle  = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// RowCells formats rows for display: human units, local timestamps.
func RowCells(rows []collectors.Row) [][]string {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{
			r.Metric,
			r.Dimensions.String(),
			r.At.Local().Format(time.DateTime),
			format.Value(r.Metric, r.Value),
		}
	}
	return cells
}

// RenderRows draws rows as a bordered table no wider than width.
func RenderRows(rows []collectors.Row, width int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == len(rowHeaders)-1:
				return valueStyle
			default:
				return cellStyle
			}
		}).
		Headers(rowHeaders...).
		Rows(RowCells(rows)...)
	if width > 0 {
		t = t.Width(width)
	}
	return t.String()
}

// WriteRows prints rows tab-separated with raw values, for pipes and files.
func WriteRows(w io.Writer, rows []collectors.Row) error {
	for _, r := range rows {
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Metric,
			r.Dimensions.String(),
			r.At.Format(time.RFC3339Nano),
			strconv.FormatFloat(r.Value, 'f', -1, 64),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
