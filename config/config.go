// Package config provides configuration parsing for sysinfo-pulse.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
)

// ErrInvalidInterval is returned for a sampling interval that is not a
// positive number of seconds or a positive Go duration.
var ErrInvalidInterval = errors.New("config: invalid sampling interval")

// Config represents the sysinfo-pulse configuration.
type Config struct {
	// Sampler holds the sampling loop and cache settings.
	Sampler SamplerConfig `yaml:"sampler"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log"`

	// Diagnostics holds optional introspection endpoints for the sampler.
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// SamplerConfig holds the sampling loop and cache settings.
type SamplerConfig struct {
	// Interval between samples. Empty disables sampling.
	Interval Interval `yaml:"interval"`
	// CacheFile is the shared region file readers attach to.
	CacheFile string `yaml:"cache_file"`
	// SegmentSize is the byte capacity of one cache segment ("256K" or 262144).
	SegmentSize ByteSize `yaml:"segment_size"`
	// Segments is the number of segments in the cache ring.
	Segments int `yaml:"segments"`
	// ProduceTimeout is a duration string bounding one sample collection.
	ProduceTimeout string `yaml:"produce_timeout"`
	// PIDFile guards against two samplers writing the same cache.
	PIDFile string `yaml:"pid_file"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// DiagnosticsConfig holds optional introspection endpoints.
type DiagnosticsConfig struct {
	// MetricsAddr is a listen address for Prometheus /metrics. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
	// Gops starts the gops agent in the sampler process.
	Gops bool `yaml:"gops"`
}

// Interval is the raw sampling interval as written in the file: a number of
// seconds ("5", "2.5") or a Go duration ("30s").
type Interval struct {
	Raw string
}

// UnmarshalYAML keeps the scalar text so parsing errors can disable sampling
// instead of rejecting the whole file.
func (i *Interval) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected a number or duration", ErrInvalidInterval, n.Line)
	}
	i.Raw = strings.TrimSpace(n.Value)
	return nil
}

// MarshalYAML writes the raw text back.
func (i Interval) MarshalYAML() (interface{}, error) {
	return i.Raw, nil
}

// Duration parses the interval. enabled is false for an empty interval.
func (i Interval) Duration() (d time.Duration, enabled bool, err error) {
	return ParseInterval(i.Raw)
}

// ParseInterval parses seconds or a Go duration. An empty string disables
// sampling and is not an error.
func ParseInterval(raw string) (time.Duration, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}

	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
			return 0, false, fmt.Errorf("%w: %q must be positive", ErrInvalidInterval, raw)
		}
		d := time.Duration(secs * float64(time.Second))
		if d <= 0 {
			return 0, false, fmt.Errorf("%w: %q rounds to zero", ErrInvalidInterval, raw)
		}
		return d, true, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q: %v", ErrInvalidInterval, raw, err)
	}
	if d <= 0 {
		return 0, false, fmt.Errorf("%w: %q must be positive", ErrInvalidInterval, raw)
	}
	return d, true, nil
}

// ByteSize is a byte count written either as an integer or with a unit
// suffix such as "256K" or "1M".
type ByteSize int

// UnmarshalYAML accepts an integer or a bytefmt size string.
func (b *ByteSize) UnmarshalYAML(n *yaml.Node) error {
	v := strings.TrimSpace(n.Value)
	if i, err := strconv.Atoi(v); err == nil {
		*b = ByteSize(i)
		return nil
	}
	u, err := bytefmt.ToBytes(v)
	if err != nil {
		return fmt.Errorf("config: line %d: size %q: %w", n.Line, v, err)
	}
	if u > math.MaxInt32 {
		return fmt.Errorf("config: line %d: size %q is too large", n.Line, v)
	}
	*b = ByteSize(u)
	return nil
}

// MarshalYAML writes the size with a unit suffix.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	if b < 0 {
		return int(b), nil
	}
	return bytefmt.ByteSize(uint64(b)), nil
}

// DefaultConfig returns a Config populated with sensible defaults. Sampling
// is disabled until an interval is configured.
func DefaultConfig() *Config {
	return &Config{
		Sampler: SamplerConfig{
			CacheFile:      DefaultCacheFile(),
			SegmentSize:    ByteSize(cache.DefaultSegmentSize),
			Segments:       cache.DefaultSegments,
			ProduceTimeout: "10s",
			PIDFile:        DefaultPIDFile(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/sysinfo-pulse/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(xdgConfigHome(home), "sysinfo-pulse", "config.yaml")
}

// DefaultCacheFile returns the region file path. It lives in the per-user
// runtime directory when there is one, so it is backed by tmpfs.
func DefaultCacheFile() string {
	return runtimePath("sysinfo-pulse.cache")
}

// DefaultPIDFile returns the sampler PID file path.
func DefaultPIDFile() string {
	return runtimePath("sysinfo-pulse.pid")
}

func runtimePath(name string) string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, name)
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d%s", base, os.Getuid(), ext))
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// LoadConfig loads configuration from a YAML file, merging with defaults and
// applying environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides lets the environment win over the file.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("SYSINFO_PULSE_INTERVAL"); ok {
		cfg.Sampler.Interval.Raw = strings.TrimSpace(v)
	}
	if v := os.Getenv("SYSINFO_PULSE_CACHE_FILE"); v != "" {
		cfg.Sampler.CacheFile = v
	}
	if v := os.Getenv("SYSINFO_PULSE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// ReadOrDefault loads path and never fails. An unreadable or malformed file
// yields the defaults; an invalid interval disables sampling; any other
// invalid setting is replaced by its default. Each fallback is logged.
func ReadOrDefault(path string, logger *slog.Logger) *Config {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		logger.Warn("config: using defaults", "path", path, "error", err)
		cfg = DefaultConfig()
		applyEnvOverrides(cfg)
	}

	if _, _, err := cfg.Sampler.Interval.Duration(); err != nil {
		logger.Warn("config: sampling disabled", "interval", cfg.Sampler.Interval.Raw, "error", err)
		cfg.Sampler.Interval = Interval{}
	}

	if err := cfg.Validate(); err != nil {
		logger.Warn("config: invalid settings, falling back to defaults", "path", path, "error", err)
		cfg.resetInvalid()
	}
	return cfg
}

// resetInvalid replaces every field that fails validation with its default.
func (c *Config) resetInvalid() {
	def := DefaultConfig()
	if c.Sampler.CacheFile == "" {
		c.Sampler.CacheFile = def.Sampler.CacheFile
	}
	if c.Layout().Validate() != nil {
		c.Sampler.SegmentSize = def.Sampler.SegmentSize
		c.Sampler.Segments = def.Sampler.Segments
	}
	if _, err := parsePositive(c.Sampler.ProduceTimeout); err != nil {
		c.Sampler.ProduceTimeout = def.Sampler.ProduceTimeout
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		c.Log.Level = def.Log.Level
	}
}

// Validate checks the configuration for required fields and logical consistency.
func (c *Config) Validate() error {
	if _, _, err := c.Sampler.Interval.Duration(); err != nil {
		return fmt.Errorf("sampler.interval: %w", err)
	}
	if c.Sampler.CacheFile == "" {
		return fmt.Errorf("sampler.cache_file is required")
	}
	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("sampler.segment_size/segments: %w", err)
	}
	if _, err := parsePositive(c.Sampler.ProduceTimeout); err != nil {
		return fmt.Errorf("sampler.produce_timeout: %w", err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// SamplingInterval returns the interval and whether sampling is enabled. An
// invalid interval counts as disabled.
func (c *Config) SamplingInterval() (time.Duration, bool) {
	d, enabled, err := c.Sampler.Interval.Duration()
	if err != nil {
		return 0, false
	}
	return d, enabled
}

// Layout returns the cache geometry.
func (c *Config) Layout() cache.Layout {
	return cache.Layout{SegmentSize: int(c.Sampler.SegmentSize), Segments: c.Sampler.Segments}
}

// ProduceTimeout returns the per-sample collection bound, falling back to
// the default for an unparseable value.
func (c *Config) ProduceTimeout() time.Duration {
	if d, err := parsePositive(c.Sampler.ProduceTimeout); err == nil {
		return d
	}
	d, _ := parsePositive(DefaultConfig().Sampler.ProduceTimeout)
	return d
}

// LogLevel returns the configured slog level, or info.
func (c *Config) LogLevel() slog.Level {
	l, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parsePositive(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// SaveConfig saves configuration to a YAML file.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
