package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Guard is the handle through which every component reaches a Store. It
// serializes one writer against any number of readers, both inside the
// process (RWMutex) and across processes (flock on the region file). No lock
// is held outside a single Write, Read or Stats call.
//
// A nil *Guard, or one that has been closed, reports ErrUninitialized.
type Guard[T any] struct {
	mu    sync.RWMutex
	lock  locker
	store *Store[T]

	path string
	file *os.File
	mem  []byte
}

// Create initializes the shared region at path for writing. Any previous
// content is discarded and the file is sized to exactly layout.Size().
func Create[T any](path string, l Layout, codec Codec[T], logger *slog.Logger) (*Guard[T], error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}

	lock := newFileLock(f)
	if err := lock.Lock(); err != nil {
		_ = f.Close()
		return nil, err
	}
	defer lock.Unlock()

	if err := f.Truncate(int64(l.Size())); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("cache: size %s to %d bytes: %w", path, l.Size(), err)
	}

	buf, err := mapFile(f, l.Size(), true)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r, err := newRegion(buf, l, false)
	if err != nil {
		_ = unmapFile(buf)
		_ = f.Close()
		return nil, err
	}
	r.format()

	return &Guard[T]{
		lock:  lock,
		store: newStore(r, codec, logger),
		path:  path,
		file:  f,
		mem:   buf,
	}, nil
}

// Open attaches to a region another process initialized. The mapping is
// read-only; Write on the returned guard fails with ErrReadOnly. A missing
// file or one without a valid header yields ErrUninitialized.
func Open[T any](path string, codec Codec[T], logger *slog.Logger) (*Guard[T], error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrUninitialized, path)
		}
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}

	lock := newFileLock(f)
	l, err := readFileLayout(f, lock)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	buf, err := mapFile(f, l.Size(), false)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r, err := newRegion(buf, l, true)
	if err != nil {
		_ = unmapFile(buf)
		_ = f.Close()
		return nil, err
	}

	return &Guard[T]{
		lock:  lock,
		store: newStore(r, codec, logger),
		path:  path,
		file:  f,
		mem:   buf,
	}, nil
}

func readFileLayout(f *os.File, lock locker) (Layout, error) {
	if err := lock.RLock(); err != nil {
		return Layout{}, err
	}
	defer lock.RUnlock()

	hdr := make([]byte, headerSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		if errors.Is(err, io.EOF) {
			return Layout{}, fmt.Errorf("%w: %s is empty or truncated", ErrUninitialized, f.Name())
		}
		return Layout{}, fmt.Errorf("cache: read header of %s: %w", f.Name(), err)
	}
	l, err := readLayout(hdr)
	if err != nil {
		return Layout{}, err
	}

	info, err := f.Stat()
	if err != nil {
		return Layout{}, fmt.Errorf("cache: stat %s: %w", f.Name(), err)
	}
	if info.Size() < int64(l.Size()) {
		return Layout{}, fmt.Errorf("%w: %s is %d bytes, header describes %d", ErrUninitialized, f.Name(), info.Size(), l.Size())
	}
	return l, nil
}

// NewMemory builds a guard over a private, process-local block. It behaves
// like a shared region without the file and the cross-process lock.
func NewMemory[T any](l Layout, codec Codec[T], logger *slog.Logger) (*Guard[T], error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	r, err := newRegion(make([]byte, l.Size()), l, false)
	if err != nil {
		return nil, err
	}
	r.format()
	return &Guard[T]{lock: nopLocker{}, store: newStore(r, codec, logger)}, nil
}

// Path is the region file, or "" for an in-process guard.
func (g *Guard[T]) Path() string {
	if g == nil {
		return ""
	}
	return g.path
}

// Write appends v under the exclusive lock.
func (g *Guard[T]) Write(v T) error {
	if g == nil {
		return ErrUninitialized
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.store == nil {
		return ErrUninitialized
	}
	if err := g.lock.Lock(); err != nil {
		return err
	}
	defer g.lock.Unlock()

	if err := g.store.region.check(); err != nil {
		return err
	}
	return g.store.Write(v)
}

// Read returns every stored record, oldest first, under the shared lock.
func (g *Guard[T]) Read() ([]T, error) {
	var out []T
	err := g.shared(func(s *Store[T]) {
		out = s.Read()
	})
	return out, err
}

// Stats returns the occupancy summary under the shared lock.
func (g *Guard[T]) Stats() (BufferSummary, error) {
	var sum BufferSummary
	err := g.shared(func(s *Store[T]) {
		sum = s.Stats()
	})
	return sum, err
}

// Status describes the region as a whole, taken under one shared lock.
type Status struct {
	Path        string        `json:"path,omitempty"`
	Layout      Layout        `json:"layout"`
	Summary     BufferSummary `json:"summary"`
	Segments    []SegmentInfo `json:"segments"`
	Rotations   uint64        `json:"rotations"`
	Writes      uint64        `json:"writes"`
	Corruptions int64         `json:"corruptions"`
}

// Status returns the layout, occupancy and counters of the region.
func (g *Guard[T]) Status() (Status, error) {
	var st Status
	err := g.shared(func(s *Store[T]) {
		st = Status{
			Path:        g.path,
			Layout:      s.Layout(),
			Summary:     s.Stats(),
			Segments:    s.Segments(),
			Rotations:   s.Rotations(),
			Writes:      s.Writes(),
			Corruptions: s.Corruptions(),
		}
	})
	return st, err
}

func (g *Guard[T]) shared(fn func(*Store[T])) error {
	if g == nil {
		return ErrUninitialized
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.store == nil {
		return ErrUninitialized
	}
	if err := g.lock.RLock(); err != nil {
		return err
	}
	defer g.lock.RUnlock()

	if err := g.store.region.check(); err != nil {
		return err
	}
	fn(g.store)
	return nil
}

// Close unmaps the region and releases the file. The region file itself is
// left in place for readers. Later calls report ErrUninitialized.
func (g *Guard[T]) Close() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.store == nil {
		return nil
	}
	g.store = nil

	var errs []error
	if g.file != nil {
		if err := unmapFile(g.mem); err != nil {
			errs = append(errs, fmt.Errorf("cache: munmap %s: %w", g.path, err))
		}
		if err := g.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: close %s: %w", g.path, err))
		}
	}
	g.mem = nil
	g.file = nil
	return errors.Join(errs...)
}

// ReadOrEmpty is the boundary form of Read: an uninitialized region yields
// no records, and any other failure is logged and also yields none.
func ReadOrEmpty[T any](g *Guard[T], logger *slog.Logger) []T {
	out, err := g.Read()
	if err != nil {
		logDegraded(logger, "read", err)
		return nil
	}
	return out
}

// StatsOrZero is the boundary form of Stats.
func StatsOrZero[T any](g *Guard[T], logger *slog.Logger) BufferSummary {
	sum, err := g.Stats()
	if err != nil {
		logDegraded(logger, "stats", err)
		return BufferSummary{}
	}
	return sum
}

// StatusOrZero is the boundary form of Status.
func StatusOrZero[T any](g *Guard[T], logger *slog.Logger) Status {
	st, err := g.Status()
	if err != nil {
		logDegraded(logger, "status", err)
		return Status{Path: g.Path()}
	}
	return st
}

func logDegraded(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	if errors.Is(err, ErrUninitialized) {
		logger.Debug("cache: region not initialized, returning empty result", "op", op, "error", err)
		return
	}
	logger.Warn("cache: degraded to empty result", "op", op, "error", err)
}
