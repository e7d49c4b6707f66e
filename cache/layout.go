// Package cache implements the segmented ring buffer that holds serialized
// samples in a fixed-size memory block shared between the sampler process and
// any number of reader processes.
//
// The block is laid out once, when the sampler initializes it, and is never
// resized:
//
//	+--------------------+ 0
//	| header (64 bytes)  |  magic, version, segment size/count, head, counters
//	+--------------------+ 64
//	| M descriptors      |  generation, used bytes, record count (16 bytes each)
//	+--------------------+ 64 + 16*M
//	| M segments of N    |  framed records, appended in order
//	+--------------------+ 64 + 16*M + N*M
//
// Segments form a ring of generations: the descriptor at head is the oldest
// segment and the one just before it is the active write target.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// DefaultSegmentSize is the capacity of one segment in bytes.
	DefaultSegmentSize = 256 * 1024

	// DefaultSegments is the number of segments in the ring.
	DefaultSegments = 5

	headerSize     = 64
	descriptorSize = 16

	// regionMagic spells "SYSPULSE".
	regionMagic   uint64 = 0x45534c5550535953
	regionVersion uint32 = 1

	minSegmentSize = 4 * frameHeaderSize
	maxSegmentSize = 1 << 30
	maxSegments    = 1 << 10
)

// Header field offsets.
const (
	offMagic       = 0
	offVersion     = 8
	offSegmentSize = 12
	offSegments    = 16
	offHead        = 20
	offRotations   = 24
	offWrites      = 32
)

// Descriptor field offsets, relative to the descriptor start.
const (
	offGeneration = 0
	offUsed       = 8
	offCount      = 12
)

var le = binary.LittleEndian

// Layout fixes the geometry of a region. It is chosen once at startup;
// changing it requires reinitializing the region.
type Layout struct {
	// SegmentSize is N, the byte capacity of each segment.
	SegmentSize int `json:"segment_size"`

	// Segments is M, the number of segments in the ring.
	Segments int `json:"segments"`
}

// DefaultLayout returns the 5 x 256 KiB layout.
func DefaultLayout() Layout {
	return Layout{SegmentSize: DefaultSegmentSize, Segments: DefaultSegments}
}

// Validate checks that the layout can hold at least one record per segment
// and fits the header fields.
func (l Layout) Validate() error {
	if l.SegmentSize < minSegmentSize || l.SegmentSize > maxSegmentSize {
		return fmt.Errorf("cache: segment size %d out of range [%d, %d]", l.SegmentSize, minSegmentSize, maxSegmentSize)
	}
	if l.Segments < 1 || l.Segments > maxSegments {
		return fmt.Errorf("cache: segment count %d out of range [1, %d]", l.Segments, maxSegments)
	}
	return nil
}

// Capacity is the total record capacity, M x N bytes.
func (l Layout) Capacity() int {
	return l.SegmentSize * l.Segments
}

// MaxRecordSize is the largest framed record a segment accepts. Keeping
// records at or below half a segment guarantees a freshly rotated segment
// always has room for the record that triggered the rotation.
func (l Layout) MaxRecordSize() int {
	return l.SegmentSize / 2
}

// Size is the number of bytes the whole region occupies.
func (l Layout) Size() int {
	return headerSize + l.Segments*descriptorSize + l.Capacity()
}

func (l Layout) dataOffset() int {
	return headerSize + l.Segments*descriptorSize
}

// readLayout parses and validates a region header. Anything that is not a
// header written by this package is reported as ErrUninitialized.
func readLayout(hdr []byte) (Layout, error) {
	if len(hdr) < headerSize {
		return Layout{}, fmt.Errorf("%w: short header (%d bytes)", ErrUninitialized, len(hdr))
	}
	if le.Uint64(hdr[offMagic:]) != regionMagic {
		return Layout{}, fmt.Errorf("%w: bad magic", ErrUninitialized)
	}
	if v := le.Uint32(hdr[offVersion:]); v != regionVersion {
		return Layout{}, fmt.Errorf("%w: unsupported version %d", ErrUninitialized, v)
	}
	l := Layout{
		SegmentSize: int(le.Uint32(hdr[offSegmentSize:])),
		Segments:    int(le.Uint32(hdr[offSegments:])),
	}
	if err := l.Validate(); err != nil {
		return Layout{}, errors.Join(ErrUninitialized, err)
	}
	return l, nil
}
