package cache

import "errors"

var (
	// ErrUninitialized is returned by every guarded operation when the shared
	// region was never set up, has been closed, or holds something other than
	// a region written by this package.
	ErrUninitialized = errors.New("cache: shared region not initialized")

	// ErrRecordTooLarge is returned by Write when a framed record exceeds half
	// a segment. The store is left unchanged.
	ErrRecordTooLarge = errors.New("cache: record too large")

	// ErrCorruptRecord marks a record whose frame or checksum does not verify.
	// Reads stop scanning the affected segment when they meet one.
	ErrCorruptRecord = errors.New("cache: corrupt record")

	// ErrReadOnly is returned by Write on a handle opened for reading.
	ErrReadOnly = errors.New("cache: region opened read-only")
)
