package collectors

import (
	"errors"
	"fmt"
	"time"

	"github.com/viant/bintly"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
)

// sampleFormat is written first in every record so older layouts can be
// rejected instead of misread.
const sampleFormat int16 = 1

// ErrMalformedSample is returned when a record does not decode as a Sample.
var ErrMalformedSample = errors.New("collectors: malformed sample record")

// Sample is one point-in-time reading of the host.
type Sample struct {
	At       time.Time `json:"at"`
	Load     Load      `json:"load"`
	CPUUsage float64   `json:"cpu_usage"`
	Memory   Memory    `json:"memory"`
	Swap     Memory    `json:"swap"`
	Volumes  []Volume  `json:"volumes"`
}

// Load holds the 1, 5 and 15 minute load averages.
type Load struct {
	One     float64 `json:"one"`
	Five    float64 `json:"five"`
	Fifteen float64 `json:"fifteen"`
}

// Memory describes a memory pool in bytes. Usage is a percentage.
type Memory struct {
	Size      float64 `json:"size"`
	Available float64 `json:"available"`
	Usage     float64 `json:"usage"`
}

// NewMemory derives usage from total and available bytes.
func NewMemory(size, available uint64) Memory {
	return Memory{
		Size:      float64(size),
		Available: float64(available),
		Usage:     UsagePercent(float64(size), float64(available)),
	}
}

// Volume is one mounted file system.
type Volume struct {
	Name      string  `json:"name"`
	Size      float64 `json:"size"`
	Available float64 `json:"available"`
	Usage     float64 `json:"usage"`
}

// NewVolume derives usage from total and available bytes.
func NewVolume(name string, size, available uint64) Volume {
	return Volume{
		Name:      name,
		Size:      float64(size),
		Available: float64(available),
		Usage:     UsagePercent(float64(size), float64(available)),
	}
}

// UsagePercent is 100*(1-available/size), or 0 for an empty pool.
func UsagePercent(size, available float64) float64 {
	if size <= 0 {
		return 0
	}
	return 100 * (1 - available/size)
}

// EncodeBinary writes s to stream.
func (s *Sample) EncodeBinary(stream *bintly.Writer) error {
	stream.Int16(sampleFormat)
	stream.Int64(s.At.UnixNano())
	stream.Float64(s.Load.One)
	stream.Float64(s.Load.Five)
	stream.Float64(s.Load.Fifteen)
	stream.Float64(s.CPUUsage)
	encodeMemory(stream, s.Memory)
	encodeMemory(stream, s.Swap)

	stream.Int(len(s.Volumes))
	for _, v := range s.Volumes {
		stream.String(v.Name)
		stream.Float64(v.Size)
		stream.Float64(v.Available)
		stream.Float64(v.Usage)
	}
	return nil
}

func encodeMemory(stream *bintly.Writer, m Memory) {
	stream.Float64(m.Size)
	stream.Float64(m.Available)
	stream.Float64(m.Usage)
}

// DecodeBinary reads s from stream.
func (s *Sample) DecodeBinary(stream *bintly.Reader) error {
	var format int16
	stream.Int16(&format)
	if format != sampleFormat {
		return fmt.Errorf("%w: format %d, want %d", ErrMalformedSample, format, sampleFormat)
	}

	var at int64
	stream.Int64(&at)
	s.At = time.Unix(0, at).UTC()
	stream.Float64(&s.Load.One)
	stream.Float64(&s.Load.Five)
	stream.Float64(&s.Load.Fifteen)
	stream.Float64(&s.CPUUsage)
	decodeMemory(stream, &s.Memory)
	decodeMemory(stream, &s.Swap)

	var n int
	stream.Int(&n)
	if n < 0 {
		return fmt.Errorf("%w: negative volume count %d", ErrMalformedSample, n)
	}
	s.Volumes = make([]Volume, n)
	for i := range s.Volumes {
		v := &s.Volumes[i]
		stream.String(&v.Name)
		stream.Float64(&v.Size)
		stream.Float64(&v.Available)
		stream.Float64(&v.Usage)
	}
	return nil
}

func decodeMemory(stream *bintly.Reader, m *Memory) {
	stream.Float64(&m.Size)
	stream.Float64(&m.Available)
	stream.Float64(&m.Usage)
}

var (
	sampleWriters = bintly.NewWriters()
	sampleReaders = bintly.NewReaders()
)

// SampleCodec stores samples in the cache as bintly records.
type SampleCodec struct{}

var _ cache.Codec[Sample] = SampleCodec{}

// AppendEncode appends the record for s to dst.
func (SampleCodec) AppendEncode(dst []byte, s Sample) ([]byte, error) {
	w := sampleWriters.Get()
	defer sampleWriters.Put(w)
	if err := s.EncodeBinary(w); err != nil {
		return dst, fmt.Errorf("collectors: encode sample: %w", err)
	}
	return append(dst, w.Bytes()...), nil
}

// Decode parses one record. A truncated record is reported as
// ErrMalformedSample rather than a panic from the reader.
func (SampleCodec) Decode(data []byte) (s Sample, err error) {
	r := sampleReaders.Get()
	defer sampleReaders.Put(r)
	if err := r.FromBytes(data); err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrMalformedSample, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			s, err = Sample{}, fmt.Errorf("%w: %v", ErrMalformedSample, rec)
		}
	}()
	if err := s.DecodeBinary(r); err != nil {
		return Sample{}, err
	}
	return s, nil
}
