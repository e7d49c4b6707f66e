package cache

import (
	"fmt"

	"github.com/minio/highwayhash"
)

// frameHeaderSize is the per-record bookkeeping: payload length (uint32)
// followed by a HighwayHash-64 of the payload.
const frameHeaderSize = 12

var frameKey = []byte("sysinfo-pulse/cache/frame/key/01")

func checksum(payload []byte) uint64 {
	return highwayhash.Sum64(payload, frameKey)
}

// putFrame writes header and payload into dst, which must be exactly
// frameHeaderSize+len(payload) bytes.
func putFrame(dst, payload []byte) {
	le.PutUint32(dst[0:], uint32(len(payload)))
	le.PutUint64(dst[4:], checksum(payload))
	copy(dst[frameHeaderSize:], payload)
}

// nextFrame returns the payload of the frame starting at off in seg and the
// offset just past it.
func nextFrame(seg []byte, off int) ([]byte, int, error) {
	if off+frameHeaderSize > len(seg) {
		return nil, off, fmt.Errorf("%w: truncated header at offset %d", ErrCorruptRecord, off)
	}
	n := int(le.Uint32(seg[off:]))
	sum := le.Uint64(seg[off+4:])
	start := off + frameHeaderSize
	if n > len(seg)-start {
		return nil, off, fmt.Errorf("%w: length %d overruns segment at offset %d", ErrCorruptRecord, n, off)
	}
	payload := seg[start : start+n]
	if checksum(payload) != sum {
		return nil, off, fmt.Errorf("%w: checksum mismatch at offset %d", ErrCorruptRecord, off)
	}
	return payload, start + n, nil
}
