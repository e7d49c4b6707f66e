package cache

import "fmt"

// region addresses the header, descriptors and segments of one block by
// index. It never allocates or resizes; buf is either a shared mapping or a
// plain slice for in-process use.
type region struct {
	layout   Layout
	buf      []byte
	readOnly bool
}

func newRegion(buf []byte, l Layout, readOnly bool) (*region, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if len(buf) < l.Size() {
		return nil, fmt.Errorf("cache: region buffer is %d bytes, layout needs %d", len(buf), l.Size())
	}
	return &region{layout: l, buf: buf[:l.Size()], readOnly: readOnly}, nil
}

// format writes a fresh header and empty descriptors. Slot i starts as
// generation i+1 so the ring order is slot 0 (oldest) to slot M-1 (active).
func (r *region) format() {
	clear(r.buf[:r.layout.dataOffset()])
	le.PutUint64(r.buf[offMagic:], regionMagic)
	le.PutUint32(r.buf[offVersion:], regionVersion)
	le.PutUint32(r.buf[offSegmentSize:], uint32(r.layout.SegmentSize))
	le.PutUint32(r.buf[offSegments:], uint32(r.layout.Segments))
	le.PutUint32(r.buf[offHead:], 0)
	for slot := 0; slot < r.layout.Segments; slot++ {
		r.reset(slot, uint64(slot+1))
	}
}

// check verifies the header still describes this mapping. A sampler that
// reinitialized the file with a different geometry invalidates readers.
func (r *region) check() error {
	l, err := readLayout(r.buf[:headerSize])
	if err != nil {
		return err
	}
	if l != r.layout {
		return fmt.Errorf("%w: layout changed from %dx%d to %dx%d", ErrUninitialized,
			r.layout.Segments, r.layout.SegmentSize, l.Segments, l.SegmentSize)
	}
	return nil
}

func (r *region) head() int {
	h := int(le.Uint32(r.buf[offHead:]))
	if h >= r.layout.Segments {
		return 0
	}
	return h
}

func (r *region) setHead(h int) {
	le.PutUint32(r.buf[offHead:], uint32(h))
}

// slot maps a logical position (0 = oldest, M-1 = active) to a physical
// segment index.
func (r *region) slot(pos int) int {
	return (r.head() + pos) % r.layout.Segments
}

func (r *region) activeSlot() int {
	return r.slot(r.layout.Segments - 1)
}

func (r *region) descriptor(slot int) []byte {
	off := headerSize + slot*descriptorSize
	return r.buf[off : off+descriptorSize]
}

func (r *region) generation(slot int) uint64 {
	return le.Uint64(r.descriptor(slot)[offGeneration:])
}

// used returns the segment fill, clamped so a damaged descriptor can never
// address bytes outside the segment.
func (r *region) used(slot int) int {
	u := int(le.Uint32(r.descriptor(slot)[offUsed:]))
	if u > r.layout.SegmentSize {
		return r.layout.SegmentSize
	}
	return u
}

// count returns the segment's record count. Every record carries at least a
// frame header, so a count above used/frameHeaderSize cannot be true; such a
// descriptor reports zero records and ok false.
func (r *region) count(slot int) (n int, ok bool) {
	n = int(le.Uint32(r.descriptor(slot)[offCount:]))
	if n > r.used(slot)/frameHeaderSize {
		return 0, false
	}
	return n, true
}

func (r *region) setFill(slot, used, count int) {
	d := r.descriptor(slot)
	le.PutUint32(d[offUsed:], uint32(used))
	le.PutUint32(d[offCount:], uint32(count))
}

func (r *region) reset(slot int, generation uint64) {
	d := r.descriptor(slot)
	le.PutUint64(d[offGeneration:], generation)
	r.setFill(slot, 0, 0)
}

// segment returns the full-capacity byte range of a segment.
func (r *region) segment(slot int) []byte {
	off := r.layout.dataOffset() + slot*r.layout.SegmentSize
	return r.buf[off : off+r.layout.SegmentSize : off+r.layout.SegmentSize]
}

func (r *region) rotations() uint64 {
	return le.Uint64(r.buf[offRotations:])
}

func (r *region) writes() uint64 {
	return le.Uint64(r.buf[offWrites:])
}

func (r *region) addRotation() {
	le.PutUint64(r.buf[offRotations:], r.rotations()+1)
}

func (r *region) addWrite() {
	le.PutUint64(r.buf[offWrites:], r.writes()+1)
}
