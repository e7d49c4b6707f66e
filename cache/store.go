package cache

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"code.cloudfoundry.org/bytefmt"
)

// Codec serializes one record. AppendEncode appends the encoding of v to dst
// and returns the extended slice, so the store can reuse a single scratch
// buffer across writes.
type Codec[T any] interface {
	AppendEncode(dst []byte, v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// BufferSummary is a point-in-time view of the store's occupancy.
type BufferSummary struct {
	Items         int     `json:"items"`
	BytesUsed     int     `json:"bytes_used"`
	MeanItemBytes float64 `json:"mean_item_bytes"`
}

// SegmentInfo describes one segment in ring order.
type SegmentInfo struct {
	Slot       int    `json:"slot"`
	Generation uint64 `json:"generation"`
	Items      int    `json:"items"`
	BytesUsed  int    `json:"bytes_used"`
}

// Store is the segmented ring buffer. It is not safe for concurrent use on
// its own; Guard provides the locking.
type Store[T any] struct {
	region  *region
	codec   Codec[T]
	logger  *slog.Logger
	scratch []byte

	corrupt atomic.Int64
}

func newStore[T any](r *region, codec Codec[T], logger *slog.Logger) *Store[T] {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store[T]{region: r, codec: codec, logger: logger}
}

// Layout returns the geometry of the backing region.
func (s *Store[T]) Layout() Layout {
	return s.region.layout
}

// Write appends one record to the active segment, rotating first when the
// active segment cannot hold it.
func (s *Store[T]) Write(v T) error {
	if s.region.readOnly {
		return ErrReadOnly
	}

	payload, err := s.codec.AppendEncode(s.scratch[:0], v)
	if err != nil {
		return fmt.Errorf("cache: encode record: %w", err)
	}
	s.scratch = payload[:0]

	l := s.region.layout
	size := frameHeaderSize + len(payload)
	if size > l.MaxRecordSize() {
		return fmt.Errorf("%w: %d bytes, limit is %d for %d-byte segments",
			ErrRecordTooLarge, size, l.MaxRecordSize(), l.SegmentSize)
	}

	active := s.region.activeSlot()
	used := s.region.used(active)
	count, ok := s.region.count(active)
	if !ok {
		s.corrupt.Add(1)
		s.logger.Warn("cache: clearing active segment with a damaged descriptor", "slot", active)
		s.region.setFill(active, 0, 0)
		used = 0
	}
	if used+size > l.SegmentSize {
		s.rotate()
		active = s.region.activeSlot()
		used, count = 0, 0
	}

	putFrame(s.region.segment(active)[used:used+size], payload)
	s.region.setFill(active, used+size, count+1)
	s.region.addWrite()
	return nil
}

// rotate recycles the oldest segment as the new active segment and clears it.
func (s *Store[T]) rotate() {
	was := s.Stats()

	oldest := s.region.slot(0)
	next := s.region.generation(s.region.activeSlot()) + 1
	s.region.setHead((s.region.head() + 1) % s.region.layout.Segments)
	s.region.reset(oldest, next)
	s.region.addRotation()

	if was.Items == 0 {
		return
	}
	is := s.Stats()
	s.logger.Debug("cache: rotated buffer, cleared one segment",
		"usage", fmt.Sprintf("%s -> %s", bytefmt.ByteSize(uint64(was.BytesUsed)), bytefmt.ByteSize(uint64(is.BytesUsed))),
		"items", fmt.Sprintf("%d -> %d", was.Items, is.Items),
		"bytes_per_item", fmt.Sprintf("%.1f -> %.1f", was.MeanItemBytes, is.MeanItemBytes),
		"generation", next,
	)
}

// Read decodes every record, oldest segment first. Each segment yields
// exactly as many records as its descriptor counts; a record that fails to
// verify ends that segment's scan, and a segment whose count cannot fit in
// its used bytes is skipped.
func (s *Store[T]) Read() []T {
	var out []T
	for pos := 0; pos < s.region.layout.Segments; pos++ {
		slot := s.region.slot(pos)
		n, ok := s.region.count(slot)
		if !ok {
			s.corrupt.Add(1)
			s.logger.Warn("cache: skipping segment with a damaged descriptor",
				"slot", slot,
				"error", ErrCorruptRecord,
			)
			continue
		}
		seg := s.region.segment(slot)[:s.region.used(slot)]
		off := 0
		for i := 0; i < n; i++ {
			payload, next, err := nextFrame(seg, off)
			if err == nil {
				var v T
				if v, err = s.codec.Decode(payload); err == nil {
					out = append(out, v)
					off = next
					continue
				}
				err = fmt.Errorf("%w: %v", ErrCorruptRecord, err)
			}
			s.corrupt.Add(1)
			s.logger.Warn("cache: stopping segment scan",
				"slot", slot,
				"record", i,
				"of", n,
				"error", err,
			)
			break
		}
	}
	return out
}

// Stats sums the per-segment counters.
func (s *Store[T]) Stats() BufferSummary {
	var sum BufferSummary
	for slot := 0; slot < s.region.layout.Segments; slot++ {
		n, _ := s.region.count(slot)
		sum.Items += n
		sum.BytesUsed += s.region.used(slot)
	}
	if sum.Items > 0 {
		sum.MeanItemBytes = float64(sum.BytesUsed) / float64(sum.Items)
	}
	return sum
}

// Segments lists the segments from oldest to active.
func (s *Store[T]) Segments() []SegmentInfo {
	out := make([]SegmentInfo, s.region.layout.Segments)
	for pos := range out {
		slot := s.region.slot(pos)
		n, _ := s.region.count(slot)
		out[pos] = SegmentInfo{
			Slot:       slot,
			Generation: s.region.generation(slot),
			Items:      n,
			BytesUsed:  s.region.used(slot),
		}
	}
	return out
}

// Rotations is the number of rotations since the region was initialized.
func (s *Store[T]) Rotations() uint64 {
	return s.region.rotations()
}

// Writes is the number of records written since the region was initialized.
func (s *Store[T]) Writes() uint64 {
	return s.region.writes()
}

// Corruptions counts records this process failed to verify while reading.
func (s *Store[T]) Corruptions() int64 {
	return s.corrupt.Load()
}
