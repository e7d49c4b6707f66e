// Package collectors defines the host sample that the sampler stores in the
// shared cache, its binary record codec, and the row view readers print.
// Concrete producers live in subpackages (see collectors/sysinfo).
package collectors

import (
	"context"
	"time"
)

// Producer yields one Sample per call. Implementations are driven from a
// single sampler goroutine and need not be safe for concurrent use.
type Producer interface {
	// Produce samples the host now. The context bounds the whole call.
	Produce(ctx context.Context) (Sample, error)

	// RefreshInventory re-enumerates slow-changing devices such as mounted
	// file systems. Calling it repeatedly is harmless.
	RefreshInventory(ctx context.Context) error
}

// ProducerFunc adapts a plain function to Producer. RefreshInventory is a
// no-op.
type ProducerFunc func(ctx context.Context) (Sample, error)

// Produce calls f.
func (f ProducerFunc) Produce(ctx context.Context) (Sample, error) {
	return f(ctx)
}

// RefreshInventory does nothing.
func (ProducerFunc) RefreshInventory(context.Context) error {
	return nil
}

// Now is the clock used to stamp samples, in UTC.
func Now() time.Time {
	return time.Now().UTC()
}
