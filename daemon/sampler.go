package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
)

const (
	// InventoryHiatus is the minimum time between two volume inventory
	// refreshes triggered by reloads.
	InventoryHiatus = 100 * time.Second

	// DefaultProduceTimeout bounds one sample collection when the settings
	// do not say otherwise.
	DefaultProduceTimeout = 10 * time.Second
)

// ErrProducerPanic wraps a panic raised inside Producer.Produce.
var ErrProducerPanic = errors.New("daemon: producer panicked")

// Settings is the part of the configuration the sampler reacts to.
type Settings struct {
	Interval       time.Duration
	Enabled        bool
	ProduceTimeout time.Duration
}

// SettingsFunc reads the current settings. It is called at start and on
// every reload, and must not fail: unreadable configuration means disabled.
type SettingsFunc func() Settings

// Options configures a Sampler.
type Options struct {
	Cache    *collectors.Cache
	Producer collectors.Producer
	Settings SettingsFunc
	Logger   *slog.Logger
	Metrics  *Metrics
}

// Sampler is the scheduling loop. Run must be called from one goroutine;
// the other methods exist for that goroutine and for tests.
type Sampler struct {
	cache    *collectors.Cache
	producer collectors.Producer
	settings SettingsFunc
	logger   *slog.Logger
	metrics  *Metrics
	errs     *errorLog

	state          State
	produceTimeout time.Duration
	lastReload     time.Time

	now    func() time.Time
	status func() (cache.Status, error)
}

// NewSampler validates opts and returns a disabled sampler.
func NewSampler(opts Options) (*Sampler, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("daemon: sampler needs a cache: %w", cache.ErrUninitialized)
	}
	if opts.Producer == nil {
		return nil, errors.New("daemon: sampler needs a producer")
	}
	if opts.Settings == nil {
		return nil, errors.New("daemon: sampler needs a settings source")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Sampler{
		cache:          opts.Cache,
		producer:       opts.Producer,
		settings:       opts.Settings,
		logger:         logger,
		metrics:        opts.Metrics,
		errs:           newErrorLog(logger),
		produceTimeout: DefaultProduceTimeout,
		now:            time.Now,
		status:         opts.Cache.Status,
	}, nil
}

// State returns a copy of the scheduler state.
func (s *Sampler) State() State {
	return s.state
}

// Run samples until ctx is done. Each value received on reloads re-reads
// the settings. A closed reloads channel is treated as "no more reloads".
//
// Every wakeup handles termination first, then a pending reload, then at
// most one sample.
func (s *Sampler) Run(ctx context.Context, reloads <-chan struct{}) error {
	start := s.now()
	s.lastReload = start
	s.apply(s.settings(), start)
	if !s.state.Enabled {
		s.logger.Info("sampler: no interval configured, waiting for reload")
	}

	for {
		var (
			timer *time.Timer
			wake  <-chan time.Time
		)
		if s.state.Enabled {
			timer = time.NewTimer(s.state.Remaining(s.now()))
			wake = timer.C
		}

		reload := false
		select {
		case <-ctx.Done():
		case _, ok := <-reloads:
			if !ok {
				reloads = nil
			}
			reload = ok
		case <-wake:
		}
		if timer != nil {
			timer.Stop()
		}

		if ctx.Err() != nil {
			sum := cache.StatsOrZero(s.cache, s.logger)
			s.logger.Info("sampler: shutting down",
				"cached_items", sum.Items,
				"bytes_used", sum.BytesUsed,
			)
			return nil
		}
		if reload {
			s.Reload(ctx)
		}
		if now := s.now(); s.state.Due(now) {
			s.Tick(ctx, now)
		}
	}
}

// Reload re-reads the settings and applies them. If InventoryHiatus has
// passed since the previous reload (or since Run started), the producer's
// device inventory is refreshed as well.
func (s *Sampler) Reload(ctx context.Context) {
	now := s.now()
	s.logger.Info("sampler: reloading configuration")
	s.apply(s.settings(), now)

	if since := now.Sub(s.lastReload); since >= InventoryHiatus {
		s.logger.Info("sampler: refreshing volume inventory", "since_last_reload", since.Round(time.Second))
		if err := s.producer.RefreshInventory(ctx); err != nil {
			s.errs.log("inventory", err)
		}
	}
	s.lastReload = now
	s.metrics.observeReload()
}

func (s *Sampler) apply(cfg Settings, now time.Time) {
	if cfg.Enabled && cfg.Interval > 0 {
		if s.state.Enable(cfg.Interval, now) {
			s.logger.Info("sampler: sampling enabled", "interval", cfg.Interval)
		}
	} else if s.state.Disable() {
		s.logger.Info("sampler: sampling disabled")
	}

	s.produceTimeout = cfg.ProduceTimeout
	if s.produceTimeout <= 0 {
		s.produceTimeout = DefaultProduceTimeout
	}
	s.metrics.observeState(s.state)
}

// Tick takes one sample and writes it to the cache. Failures are logged and
// the tick is skipped; LastRun advances either way.
func (s *Sampler) Tick(ctx context.Context, now time.Time) {
	defer func() { s.state.LastRun = now }()

	s.logger.Debug("sampler: collecting", "since_last_run", now.Sub(s.state.LastRun))

	start := time.Now()
	sample, err := s.produce(ctx)
	took := time.Since(start)
	if err != nil {
		s.errs.log("produce", err)
		s.metrics.observeTick(resultProduceError, took)
		return
	}
	s.errs.recovered("produce")

	if err := s.cache.Write(sample); err != nil {
		s.errs.log("write", err)
		if errors.Is(err, cache.ErrRecordTooLarge) {
			s.metrics.observeTick(resultTooLarge, took)
		} else {
			s.metrics.observeTick(resultWriteError, took)
		}
		return
	}
	s.errs.recovered("write")
	s.metrics.observeTick(resultOK, took)

	if s.metrics != nil {
		st, err := s.status()
		if err != nil {
			s.errs.log("status", err)
			return
		}
		s.errs.recovered("status")
		s.metrics.observeCache(st.Summary, st.Rotations)
	}
}

func (s *Sampler) produce(ctx context.Context) (sample collectors.Sample, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.produceTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			sample, err = collectors.Sample{}, fmt.Errorf("%w: %v", ErrProducerPanic, r)
		}
	}()
	return s.producer.Produce(ctx)
}
