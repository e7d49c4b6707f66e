// Package sysinfo produces host samples from gopsutil: load averages, CPU
// usage, memory, swap and mounted volumes.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/time/rate"

	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
)

// MinCPUInterval is the shortest span CPU usage is measured over. Calls to
// Produce that come faster reuse the previous CPU reading.
const MinCPUInterval = 200 * time.Millisecond

// ErrNoData is returned when every host query failed.
var ErrNoData = errors.New("sysinfo: no host metric could be read")

var _ collectors.Producer = (*Producer)(nil)

// Producer implements collectors.Producer. It is meant to be driven by a
// single goroutine.
type Producer struct {
	logger *slog.Logger

	cpuLimiter *rate.Limiter
	cpuPrimed  bool
	lastCPU    float64

	// mountpoints is the volume inventory, nil until first enumerated.
	mountpoints []string

	// lastWarn holds the last reported error per query so a persistent
	// failure is logged once rather than every tick.
	lastWarn map[string]string

	// Overridable host queries for testing.
	loadAvg       func(ctx context.Context) (*load.AvgStat, error)
	cpuPercent    func(ctx context.Context, interval time.Duration) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	swapMemory    func(ctx context.Context) (*mem.SwapMemoryStat, error)
	partitions    func(ctx context.Context) ([]disk.PartitionStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	now           func() time.Time
}

// NewProducer creates a Producer. If logger is nil, a no-op logger is used.
func NewProducer(logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Producer{
		logger:        logger,
		cpuLimiter:    rate.NewLimiter(rate.Every(MinCPUInterval), 1),
		lastWarn:      make(map[string]string),
		loadAvg:       load.AvgWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		swapMemory:    mem.SwapMemoryWithContext,
		cpuPercent: func(ctx context.Context, interval time.Duration) ([]float64, error) {
			return cpu.PercentWithContext(ctx, interval, false)
		},
		partitions: func(ctx context.Context) ([]disk.PartitionStat, error) {
			return disk.PartitionsWithContext(ctx, false)
		},
		diskUsage: disk.UsageWithContext,
		now:       collectors.Now,
	}
}

// Produce reads the host. A query that fails leaves its part of the sample
// at zero; only when all of load, CPU and memory fail is an error returned.
func (p *Producer) Produce(ctx context.Context) (collectors.Sample, error) {
	select {
	case <-ctx.Done():
		return collectors.Sample{}, ctx.Err()
	default:
	}

	if p.mountpoints == nil {
		if err := p.RefreshInventory(ctx); err != nil {
			p.warn("partitions", err)
		}
	}

	s := collectors.Sample{}
	var failed []error

	if avg, err := p.loadAvg(ctx); err != nil {
		failed = append(failed, p.warn("load", err))
	} else {
		p.clear("load")
		s.Load = collectors.Load{One: avg.Load1, Five: avg.Load5, Fifteen: avg.Load15}
	}

	if pct, err := p.readCPU(ctx); err != nil {
		failed = append(failed, p.warn("cpu", err))
	} else {
		p.clear("cpu")
		s.CPUUsage = pct
	}

	if vm, err := p.virtualMemory(ctx); err != nil {
		failed = append(failed, p.warn("memory", err))
	} else {
		p.clear("memory")
		s.Memory = collectors.NewMemory(vm.Total, vm.Available)
	}

	if len(failed) == 3 {
		return collectors.Sample{}, fmt.Errorf("%w: %w", ErrNoData, errors.Join(failed...))
	}

	// There is no "available" figure for swap; free is the closest.
	if sw, err := p.swapMemory(ctx); err != nil {
		p.warn("swap", err)
	} else {
		p.clear("swap")
		s.Swap = collectors.NewMemory(sw.Total, sw.Free)
	}

	s.Volumes = p.readVolumes(ctx)
	s.At = p.now()

	p.logger.Debug("sysinfo sampled",
		"cpu", fmt.Sprintf("%.1f%%", s.CPUUsage),
		"memory", fmt.Sprintf("%.1f%%", s.Memory.Usage),
		"load", fmt.Sprintf("%.2f %.2f %.2f", s.Load.One, s.Load.Five, s.Load.Fifteen),
		"volumes", len(s.Volumes),
	)
	return s, nil
}

// readCPU returns total CPU usage since the previous measurement. The first
// call blocks for MinCPUInterval to get a baseline; later calls inside the
// limiter window return the cached value.
func (p *Producer) readCPU(ctx context.Context) (float64, error) {
	if !p.cpuLimiter.Allow() {
		return p.lastCPU, nil
	}

	var interval time.Duration
	if !p.cpuPrimed {
		interval = MinCPUInterval
	}
	vals, err := p.cpuPercent(ctx, interval)
	if err != nil {
		return 0, fmt.Errorf("sysinfo: cpu percent: %w", err)
	}
	if len(vals) == 0 {
		return 0, errors.New("sysinfo: cpu percent: no values")
	}
	p.cpuPrimed = true
	p.lastCPU = vals[0]
	return p.lastCPU, nil
}

func (p *Producer) readVolumes(ctx context.Context) []collectors.Volume {
	vols := make([]collectors.Volume, 0, len(p.mountpoints))
	for _, mp := range p.mountpoints {
		u, err := p.diskUsage(ctx, mp)
		if err != nil {
			p.logger.Debug("sysinfo: skipping volume", "mountpoint", mp, "error", err)
			continue
		}
		if u.Total == 0 {
			continue
		}
		vols = append(vols, collectors.NewVolume(mp, u.Total, u.Free))
	}
	return vols
}

// RefreshInventory re-enumerates mounted physical partitions. On failure the
// previous inventory is kept.
func (p *Producer) RefreshInventory(ctx context.Context) error {
	parts, err := p.partitions(ctx)
	if err != nil {
		return fmt.Errorf("sysinfo: list partitions: %w", err)
	}

	seen := make(map[string]bool, len(parts))
	mountpoints := make([]string, 0, len(parts))
	for _, part := range parts {
		if part.Mountpoint == "" || seen[part.Mountpoint] {
			continue
		}
		seen[part.Mountpoint] = true
		mountpoints = append(mountpoints, part.Mountpoint)
	}
	sort.Strings(mountpoints)

	p.logger.Debug("sysinfo: volume inventory refreshed",
		"before", len(p.mountpoints),
		"after", len(mountpoints),
	)
	p.mountpoints = mountpoints
	return nil
}

// Mountpoints returns the current volume inventory.
func (p *Producer) Mountpoints() []string {
	out := make([]string, len(p.mountpoints))
	copy(out, p.mountpoints)
	return out
}

// warn logs err for query unless it is the same error as last time.
func (p *Producer) warn(query string, err error) error {
	if msg := err.Error(); p.lastWarn[query] != msg {
		p.lastWarn[query] = msg
		p.logger.Warn("sysinfo: query failed", "query", query, "error", err)
	}
	return err
}

func (p *Producer) clear(query string) {
	delete(p.lastWarn, query)
}
