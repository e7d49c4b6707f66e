package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"code.cloudfoundry.org/bytefmt"
)

// Bytes renders a byte count with a binary unit suffix, like "1.5G".
func Bytes(v float64) string {
	if v <= 0 || math.IsNaN(v) {
		return "0B"
	}
	return bytefmt.ByteSize(uint64(v))
}

// Percent renders a usage percentage with one decimal.
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// Value renders a row value according to its metric name: sizes as bytes,
// usage as a percentage, anything else as a plain number.
func Value(metric string, v float64) string {
	switch {
	case strings.HasSuffix(metric, "_size"), strings.HasSuffix(metric, "_available"):
		return Bytes(v)
	case strings.HasSuffix(metric, "_usage"):
		return Percent(v)
	}
	return fmt.Sprintf("%.2f", v)
}
