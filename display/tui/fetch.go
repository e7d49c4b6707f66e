package tui

import (
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
)

// Opener attaches to the sample region.
type Opener func() (*collectors.Cache, error)

// Source reads the region for the live view. The handle is opened on first
// use and reopened when the sampler reinitializes the region.
type Source struct {
	mu    sync.Mutex
	open  Opener
	cache *collectors.Cache
}

// NewSource returns a Source that attaches lazily through open.
func NewSource(open Opener) *Source {
	return &Source{open: open}
}

// dataMsg carries one read of the region.
type dataMsg struct {
	samples []collectors.Sample
	status  cache.Status
	err     error
}

// tickMsg asks for the next refresh.
type tickMsg time.Time

// Fetch reads every sample and the region status.
func (s *Source) Fetch() dataMsg {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.fetch()
	if errors.Is(msg.err, cache.ErrUninitialized) {
		s.drop()
		msg = s.fetch()
	}
	return msg
}

func (s *Source) fetch() dataMsg {
	if s.cache == nil {
		c, err := s.open()
		if err != nil {
			return dataMsg{err: err}
		}
		s.cache = c
	}

	samples, err := s.cache.Read()
	if err != nil {
		return dataMsg{err: err}
	}
	st, err := s.cache.Status()
	if err != nil {
		return dataMsg{err: err}
	}
	return dataMsg{samples: samples, status: st}
}

func (s *Source) drop() {
	if s.cache != nil {
		_ = s.cache.Close()
		s.cache = nil
	}
}

// Close releases the region handle.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop()
	return nil
}

// fetchCmd reads the region off the UI goroutine.
func fetchCmd(src *Source) tea.Cmd {
	return func() tea.Msg {
		return src.Fetch()
	}
}

func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
