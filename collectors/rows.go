package collectors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Dimension is one key/value label on a row.
type Dimension struct {
	Key   string
	Value string
}

// Dimensions keeps labels in the order they were added. It marshals to a
// JSON object, so {"fs": "/"} rather than a list of pairs.
type Dimensions []Dimension

// MarshalJSON renders the dimensions as an ordered JSON object.
func (d Dimensions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, dim := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(dim.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(dim.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of string values, keeping key order.
func (d *Dimensions) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("collectors: dimensions must be a JSON object, got %v", tok)
	}

	out := Dimensions{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("collectors: dimension %v: %w", keyTok, err)
		}
		out = append(out, Dimension{Key: keyTok.(string), Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}

// Get returns the value for key, or "".
func (d Dimensions) Get(key string) string {
	for _, dim := range d {
		if dim.Key == key {
			return dim.Value
		}
	}
	return ""
}

// String renders the dimensions as key=value pairs.
func (d Dimensions) String() string {
	var buf bytes.Buffer
	for i, dim := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(dim.Key)
		buf.WriteByte('=')
		buf.WriteString(dim.Value)
	}
	return buf.String()
}

// Row is one flattened metric value.
type Row struct {
	Metric     string     `json:"metric"`
	Dimensions Dimensions `json:"dimensions"`
	At         time.Time  `json:"at"`
	Value      float64    `json:"value"`
}

// Metric names emitted by Rows.
const (
	MetricLoadAverage     = "load_average"
	MetricCPUUsage        = "cpu_usage"
	MetricMemoryUsage     = "memory_usage"
	MetricMemorySize      = "memory_size"
	MetricMemoryAvailable = "memory_available"
	MetricSwapUsage       = "swap_usage"
	MetricSwapSize        = "swap_size"
	MetricSwapAvailable   = "swap_available"
	MetricDiskUsage       = "disk_usage"
	MetricDiskSize        = "disk_size"
	MetricDiskAvailable   = "disk_available"
)

// Rows flattens a sample: ten host-wide rows, then three per volume.
func Rows(s Sample) []Row {
	none := Dimensions{}
	duration := func(d string) Dimensions {
		return Dimensions{{Key: "duration", Value: d}}
	}

	rows := make([]Row, 0, 10+3*len(s.Volumes))
	add := func(metric string, dims Dimensions, v float64) {
		rows = append(rows, Row{Metric: metric, Dimensions: dims, At: s.At, Value: v})
	}

	add(MetricLoadAverage, duration("1m"), s.Load.One)
	add(MetricLoadAverage, duration("5m"), s.Load.Five)
	add(MetricLoadAverage, duration("15m"), s.Load.Fifteen)
	add(MetricCPUUsage, none, s.CPUUsage)
	add(MetricMemoryUsage, none, s.Memory.Usage)
	add(MetricMemorySize, none, s.Memory.Size)
	add(MetricMemoryAvailable, none, s.Memory.Available)
	add(MetricSwapUsage, none, s.Swap.Usage)
	add(MetricSwapSize, none, s.Swap.Size)
	add(MetricSwapAvailable, none, s.Swap.Available)

	for _, v := range s.Volumes {
		fs := Dimensions{{Key: "fs", Value: v.Name}}
		add(MetricDiskUsage, fs, v.Usage)
		add(MetricDiskSize, fs, v.Size)
		add(MetricDiskAvailable, fs, v.Available)
	}
	return rows
}

// NewestFirst orders samples by timestamp, most recent first. Samples with
// equal timestamps keep their stored order.
func NewestFirst(samples []Sample) []Sample {
	out := make([]Sample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.After(out[j].At)
	})
	return out
}

// CachedRows is the rows of every sample, newest sample first.
func CachedRows(samples []Sample) []Row {
	var rows []Row
	for _, s := range NewestFirst(samples) {
		rows = append(rows, Rows(s)...)
	}
	return rows
}
