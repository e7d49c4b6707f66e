package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"

	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors/sysinfo"
	"gitlab.com/tinyland/lab/sysinfo-pulse/config"
	"gitlab.com/tinyland/lab/sysinfo-pulse/daemon"
	"gitlab.com/tinyland/lab/sysinfo-pulse/display/tui"
)

// runSampler owns the region for the life of the process: it takes the PID
// file, initializes the region, and samples until ctx is done. SIGHUP
// re-reads configPath.
func runSampler(ctx context.Context, configPath string, cfg *config.Config, logger *slog.Logger) error {
	pid := daemon.NewPIDFile(cfg.Sampler.PIDFile, logger)
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer pid.Release()

	c, err := collectors.CreateCache(cfg.Sampler.CacheFile, cfg.Layout(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("close cache", "error", err)
		}
	}()
	logger.Info("cache initialized",
		"path", cfg.Sampler.CacheFile,
		"segment_size", int(cfg.Sampler.SegmentSize),
		"segments", cfg.Sampler.Segments,
	)

	if cfg.Diagnostics.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			logger.Warn("gops agent not started", "error", err)
		} else {
			defer agent.Close()
		}
	}

	var metrics *daemon.Metrics
	if addr := cfg.Diagnostics.MetricsAddr; addr != "" {
		metrics = daemon.NewMetrics()
		go func() {
			if err := metrics.Serve(ctx, addr, logger); err != nil {
				logger.Error("metrics listener failed", "addr", addr, "error", err)
			}
		}()
	}

	sampler, err := daemon.NewSampler(daemon.Options{
		Cache:    c,
		Producer: sysinfo.NewProducer(logger),
		Settings: reloadSettings(configPath, cfg, logger),
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	logger.Info("starting sysinfo-pulse sampler", "version", version, "pid", os.Getpid())
	return sampler.Run(ctx, forwardReloads(ctx, hup))
}

// reloadSettings returns the sampler's settings source. The first call uses
// the startup configuration; later calls re-read configPath. Region geometry
// is fixed for the life of the process, so changes to it are only reported.
func reloadSettings(configPath string, startup *config.Config, logger *slog.Logger) daemon.SettingsFunc {
	first := true
	return func() daemon.Settings {
		cfg := startup
		if !first {
			cfg = config.ReadOrDefault(configPath, logger)
			if cfg.Sampler.CacheFile != startup.Sampler.CacheFile || cfg.Layout() != startup.Layout() {
				logger.Warn("cache file or layout changed; restart the sampler to apply",
					"cache_file", cfg.Sampler.CacheFile,
					"segment_size", int(cfg.Sampler.SegmentSize),
					"segments", cfg.Sampler.Segments,
				)
			}
		}
		first = false
		return settingsFor(cfg)
	}
}

func settingsFor(cfg *config.Config) daemon.Settings {
	interval, enabled := cfg.SamplingInterval()
	return daemon.Settings{
		Interval:       interval,
		Enabled:        enabled,
		ProduceTimeout: cfg.ProduceTimeout(),
	}
}

// forwardReloads turns signals into reload requests. Requests arriving while
// one is pending are merged.
func forwardReloads(ctx context.Context, sig <-chan os.Signal) <-chan struct{} {
	reloads := make(chan struct{}, 1)
	go func() {
		defer close(reloads)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sig:
				select {
				case reloads <- struct{}{}:
				default:
				}
			}
		}
	}()
	return reloads
}

// openCache attaches to the sampler's region. A failure is logged and
// yields a nil handle, which reads as an uninitialized region.
func openCache(cfg *config.Config, logger *slog.Logger) *collectors.Cache {
	c, err := collectors.OpenCache(cfg.Sampler.CacheFile, logger)
	if err != nil {
		logger.Debug("cache not available", "path", cfg.Sampler.CacheFile, "error", err)
		return nil
	}
	return c
}

func runTop(cfg *config.Config, logger *slog.Logger) error {
	src := tui.NewSource(func() (*collectors.Cache, error) {
		return collectors.OpenCache(cfg.Sampler.CacheFile, logger)
	})
	defer src.Close()
	return tui.Run(src, tui.DefaultRefresh)
}
