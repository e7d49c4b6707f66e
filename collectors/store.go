package collectors

import (
	"log/slog"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
)

// Cache is the shared sample buffer.
type Cache = cache.Guard[Sample]

// CreateCache initializes the region file for the sampler.
func CreateCache(path string, l cache.Layout, logger *slog.Logger) (*Cache, error) {
	return cache.Create[Sample](path, l, SampleCodec{}, logger)
}

// OpenCache attaches a reader to the region the sampler created.
func OpenCache(path string, logger *slog.Logger) (*Cache, error) {
	return cache.Open[Sample](path, SampleCodec{}, logger)
}

// MemoryCache builds a process-local buffer.
func MemoryCache(l cache.Layout, logger *slog.Logger) (*Cache, error) {
	return cache.NewMemory[Sample](l, SampleCodec{}, logger)
}
