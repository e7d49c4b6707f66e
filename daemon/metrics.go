package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promcollectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
)

// Tick outcomes recorded in sysinfo_pulse_ticks_total.
const (
	resultOK           = "ok"
	resultProduceError = "produce_error"
	resultTooLarge     = "too_large"
	resultWriteError   = "write_error"
)

// Metrics exposes the sampler's own health. Each Metrics has a private
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Ticks           *prometheus.CounterVec
	ProduceDuration prometheus.Histogram
	Reloads         prometheus.Counter
	Enabled         prometheus.Gauge
	IntervalSeconds prometheus.Gauge
	CacheItems      prometheus.Gauge
	CacheBytesUsed  prometheus.Gauge
	CacheRotations  prometheus.Gauge
}

// NewMetrics creates and registers the sampler metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sysinfo_pulse_ticks_total",
			Help: "Sampling ticks by outcome",
		}, []string{"result"}),

		ProduceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sysinfo_pulse_produce_duration_seconds",
			Help:    "Time spent collecting one sample",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),

		Reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sysinfo_pulse_reloads_total",
			Help: "Configuration reloads handled",
		}),

		Enabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sysinfo_pulse_sampling_enabled",
			Help: "1 while sampling is enabled",
		}),

		IntervalSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sysinfo_pulse_interval_seconds",
			Help: "Configured sampling interval",
		}),

		CacheItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sysinfo_pulse_cache_items",
			Help: "Samples currently held in the cache",
		}),

		CacheBytesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sysinfo_pulse_cache_bytes_used",
			Help: "Bytes used across all cache segments",
		}),

		CacheRotations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sysinfo_pulse_cache_rotations",
			Help: "Segment rotations since the cache was initialized",
		}),
	}

	m.registry.MustRegister(
		m.Ticks,
		m.ProduceDuration,
		m.Reloads,
		m.Enabled,
		m.IntervalSeconds,
		m.CacheItems,
		m.CacheBytesUsed,
		m.CacheRotations,
		promcollectors.NewGoCollector(),
		promcollectors.NewProcessCollector(promcollectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeState(s State) {
	if m == nil {
		return
	}
	if s.Enabled {
		m.Enabled.Set(1)
	} else {
		m.Enabled.Set(0)
	}
	m.IntervalSeconds.Set(s.Interval.Seconds())
}

func (m *Metrics) observeTick(result string, produce time.Duration) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(result).Inc()
	if produce > 0 {
		m.ProduceDuration.Observe(produce.Seconds())
	}
}

func (m *Metrics) observeCache(sum cache.BufferSummary, rotations uint64) {
	if m == nil {
		return
	}
	m.CacheItems.Set(float64(sum.Items))
	m.CacheBytesUsed.Set(float64(sum.BytesUsed))
	m.CacheRotations.Set(float64(rotations))
}

func (m *Metrics) observeReload() {
	if m == nil {
		return
	}
	m.Reloads.Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
