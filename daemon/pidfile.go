package daemon

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile keeps a second sampler from reinitializing a cache that another
// sampler is writing.
type PIDFile struct {
	path   string
	logger *slog.Logger
}

// NewPIDFile returns a PID file at path. If logger is nil, a no-op logger is used.
func NewPIDFile(path string, logger *slog.Logger) *PIDFile {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PIDFile{path: path, logger: logger}
}

// Acquire fails if a live process owns the PID file, then writes ours.
func (p *PIDFile) Acquire() error {
	if running, pid := p.Running(); running && pid != os.Getpid() {
		return fmt.Errorf("daemon: sampler already running (PID %d)", pid)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("daemon: create PID file directory: %w", err)
	}
	pid := os.Getpid()
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("daemon: write PID file: %w", err)
	}
	p.logger.Info("wrote PID file", "path", p.path, "pid", pid)
	return nil
}

// Release removes the PID file.
func (p *PIDFile) Release() {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		p.logger.Error("failed to remove PID file", "path", p.path, "error", err)
		return
	}
	p.logger.Info("removed PID file", "path", p.path)
}

// Running reports whether the PID file names a live process. Corrupt or
// stale PID files are removed.
func (p *PIDFile) Running() (bool, int) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		p.logger.Warn("corrupt PID file, removing", "path", p.path, "content", string(data))
		os.Remove(p.path)
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(p.path)
		return false, 0
	}

	// Signal 0 probes for existence without delivering anything.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		p.logger.Warn("stale PID file, removing", "path", p.path, "pid", pid)
		os.Remove(p.path)
		return false, 0
	}
	return true, pid
}
