// sysinfo-pulse samples host metrics into a shared-memory ring buffer and
// serves them to any number of local readers.
//
// Usage:
//
//	sysinfo-pulse [flags]
//
// Flags:
//
//	-daemon           Run the sampler (reload the config with SIGHUP)
//	-cached           Print every cached row, newest sample first
//	-summary          Print the cache occupancy
//	-collect          Take one live sample and print its rows
//	-top              Live terminal view over the cache
//	-health           Report whether the sampler is running and fresh
//	-json             JSON output for -cached, -summary, -collect and -health
//	-config string    Path to configuration file (default: ~/.config/sysinfo-pulse/config.yaml)
//	-write-config     Write the effective configuration to -config and exit
//	-verbose          Enable debug logging
//	-version          Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/tinyland/lab/sysinfo-pulse/config"
	"gitlab.com/tinyland/lab/sysinfo-pulse/display/color"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options are the parsed command line flags.
type options struct {
	configPath  string
	daemon      bool
	cached      bool
	summary     bool
	collect     bool
	top         bool
	health      bool
	json        bool
	writeConfig bool
	verbose     bool
	version     bool
}

func newFlagSet(o *options, w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("sysinfo-pulse", flag.ContinueOnError)
	fs.SetOutput(w)
	fs.StringVar(&o.configPath, "config", "", "Path to configuration file (default: "+config.DefaultPath()+")")
	fs.BoolVar(&o.daemon, "daemon", false, "Run the sampler")
	fs.BoolVar(&o.cached, "cached", false, "Print every cached row, newest sample first")
	fs.BoolVar(&o.summary, "summary", false, "Print the cache occupancy")
	fs.BoolVar(&o.collect, "collect", false, "Take one live sample and print its rows")
	fs.BoolVar(&o.top, "top", false, "Live terminal view over the cache")
	fs.BoolVar(&o.health, "health", false, "Report whether the sampler is running and fresh")
	fs.BoolVar(&o.json, "json", false, "JSON output for -cached, -summary, -collect and -health")
	fs.BoolVar(&o.writeConfig, "write-config", false, "Write the effective configuration to -config and exit")
	fs.BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	return fs
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := newFlagSet(&o, stderr)
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.configPath == "" {
		o.configPath = config.DefaultPath()
	}
	return o, nil
}

// run executes one mode and returns the process exit code.
func run(args []string, stdout *os.File, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "sysinfo-pulse: %v\n", err)
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "sysinfo-pulse %s (%s) built %s\n", version, commit, date)
		return 0
	}

	// The config loader logs at warn until the configured level is known.
	cfg := config.ReadOrDefault(opts.configPath, newLogger(stderr, slog.LevelWarn))

	level := cfg.LogLevel()
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.writeConfig:
		if err := config.SaveConfig(cfg, opts.configPath); err != nil {
			logger.Error("write config", "path", opts.configPath, "error", err)
			return 1
		}
		fmt.Fprintf(stdout, "wrote %s\n", opts.configPath)
		return 0

	case opts.daemon:
		if err := runSampler(ctx, opts.configPath, cfg, logger); err != nil {
			logger.Error("sampler failed", "error", err)
			return 1
		}
		return 0

	case opts.top:
		color.Apply(stdout)
		// Log lines would tear the alternate screen.
		if err := runTop(cfg, newLogger(io.Discard, level)); err != nil {
			fmt.Fprintf(stderr, "sysinfo-pulse: %v\n", err)
			return 1
		}
		return 0

	case opts.health:
		return checkHealth(cfg, stdout, opts.json, logger)

	case opts.cached, opts.summary, opts.collect:
		out := newPrinter(stdout, opts.json)
		var err error
		switch {
		case opts.cached:
			err = printCached(out, cfg, logger)
		case opts.summary:
			err = printSummary(out, cfg, logger)
		default:
			err = printCollected(ctx, out, logger)
		}
		if err != nil {
			logger.Error("output failed", "error", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stdout, "sysinfo-pulse %s (%s) built %s\n\n", version, commit, date)
	fmt.Fprintln(stdout, "Usage: sysinfo-pulse [flags]")
	fmt.Fprintln(stdout)
	newFlagSet(&options{}, stdout).PrintDefaults()
	return 0
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
