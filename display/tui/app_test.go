package tui

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testSample(at time.Time, cpu float64) collectors.Sample {
	return collectors.Sample{
		At:       at,
		Load:     collectors.Load{One: 0.5, Five: 0.25, Fifteen: 0.1},
		CPUUsage: cpu,
		Memory:   collectors.NewMemory(8<<30, 2<<30),
		Swap:     collectors.NewMemory(1<<30, 1<<30),
		Volumes:  []collectors.Volume{collectors.NewVolume("/", 100<<30, 40<<30)},
	}
}

// memoryOpener hands out in-process caches and counts how often it is called.
type memoryOpener struct {
	calls   int
	samples []collectors.Sample
	last    *collectors.Cache
	err     error
}

func (o *memoryOpener) open() (*collectors.Cache, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	c, err := collectors.MemoryCache(cache.Layout{SegmentSize: 4096, Segments: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return nil, err
	}
	for _, s := range o.samples {
		if err := c.Write(s); err != nil {
			return nil, err
		}
	}
	o.last = c
	return c, nil
}

func isQuitCmd(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func newTestModel(t *testing.T, o *memoryOpener) Model {
	t.Helper()
	src := NewSource(o.open)
	t.Cleanup(func() { _ = src.Close() })
	m := NewModel(src, time.Second)
	m.now = func() time.Time { return t0.Add(5 * time.Second) }
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model)
}

func TestSourceFetch(t *testing.T) {
	o := &memoryOpener{samples: []collectors.Sample{testSample(t0, 10), testSample(t0.Add(time.Second), 20)}}
	src := NewSource(o.open)
	defer src.Close()

	msg := src.Fetch()
	if msg.err != nil {
		t.Fatalf("Fetch: %v", msg.err)
	}
	if len(msg.samples) != 2 || msg.status.Summary.Items != 2 {
		t.Errorf("got %d samples, status %+v", len(msg.samples), msg.status.Summary)
	}

	src.Fetch()
	if o.calls != 1 {
		t.Errorf("opened %d times for two reads", o.calls)
	}
}

func TestSourceReopensUninitializedRegion(t *testing.T) {
	o := &memoryOpener{samples: []collectors.Sample{testSample(t0, 10)}}
	src := NewSource(o.open)
	defer src.Close()

	src.Fetch()
	// Closing the handle behind the source's back makes it report
	// ErrUninitialized, as a reinitialized region would.
	_ = o.last.Close()

	msg := src.Fetch()
	if msg.err != nil {
		t.Fatalf("Fetch after reinit: %v", msg.err)
	}
	if o.calls != 2 {
		t.Errorf("opened %d times, want 2", o.calls)
	}
	if len(msg.samples) != 1 {
		t.Errorf("got %d samples after reopen", len(msg.samples))
	}
}

func TestSourceOpenFailure(t *testing.T) {
	o := &memoryOpener{err: cache.ErrUninitialized}
	src := NewSource(o.open)

	msg := src.Fetch()
	if !errors.Is(msg.err, cache.ErrUninitialized) {
		t.Errorf("Fetch error = %v", msg.err)
	}
}

func TestModelInitReturnsCommands(t *testing.T) {
	m := NewModel(NewSource((&memoryOpener{}).open), 0)
	if m.refresh != DefaultRefresh {
		t.Errorf("refresh = %v, want default", m.refresh)
	}
	if m.Init() == nil {
		t.Error("Init() returned no command")
	}
	if m.View() != "Initializing..." {
		t.Error("view rendered before the window size is known")
	}
}

func TestModelQuit(t *testing.T) {
	m := newTestModel(t, &memoryOpener{})
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
	} {
		if _, cmd := m.Update(msg); !isQuitCmd(cmd) {
			t.Errorf("%v did not quit", msg)
		}
	}
}

func TestModelTabs(t *testing.T) {
	m := newTestModel(t, &memoryOpener{})

	steps := []struct {
		msg  tea.KeyMsg
		want Tab
	}{
		{tea.KeyMsg{Type: tea.KeyTab}, TabRows},
		{tea.KeyMsg{Type: tea.KeyTab}, TabRegion},
		{tea.KeyMsg{Type: tea.KeyTab}, TabOverview},
		{tea.KeyMsg{Type: tea.KeyShiftTab}, TabRegion},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}}, TabRows},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'1'}}, TabOverview},
	}
	for i, step := range steps {
		updated, _ := m.Update(step.msg)
		m = updated.(Model)
		if m.activeTab != step.want {
			t.Fatalf("step %d: activeTab = %d, want %d", i, m.activeTab, step.want)
		}
	}
}

func TestModelAppliesData(t *testing.T) {
	o := &memoryOpener{samples: []collectors.Sample{testSample(t0, 10), testSample(t0.Add(time.Second), 95)}}
	m := newTestModel(t, o)

	updated, _ := m.Update(m.src.Fetch())
	m = updated.(Model)

	if len(m.samples) != 2 || m.lastUpdated.IsZero() {
		t.Fatalf("data not applied: %d samples", len(m.samples))
	}
	// Two samples, each 10 host rows plus 3 for the volume.
	if got := len(m.rows.Rows()); got != 26 {
		t.Errorf("rows table has %d rows, want 26", got)
	}
	if first := m.rows.Rows()[0]; first[0] != collectors.MetricLoadAverage {
		t.Errorf("first row = %v", first)
	}

	view := m.View()
	for _, want := range []string{"Overview", "Latest sample", "4s ago", "History (2 samples)", "2 samples"} {
		if !strings.Contains(view, want) {
			t.Errorf("overview missing %q:\n%s", want, view)
		}
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'3'}})
	if view := updated.(Model).View(); !strings.Contains(view, "GENERATION") {
		t.Errorf("region tab missing segment table:\n%s", view)
	}
}

func TestModelKeepsDataOnError(t *testing.T) {
	o := &memoryOpener{samples: []collectors.Sample{testSample(t0, 10)}}
	m := newTestModel(t, o)
	updated, _ := m.Update(m.src.Fetch())
	m = updated.(Model)

	updated, _ = m.Update(dataMsg{err: cache.ErrUninitialized})
	m = updated.(Model)
	if len(m.samples) != 1 {
		t.Error("a failed read dropped the previous samples")
	}
	if !strings.Contains(m.View(), "not initialized") {
		t.Errorf("error not shown:\n%s", m.View())
	}
}

func TestModelShowsOpenError(t *testing.T) {
	m := newTestModel(t, &memoryOpener{})
	updated, _ := m.Update(dataMsg{err: errors.New("no such file")})
	view := updated.(Model).View()
	if !strings.Contains(view, "Cannot read samples") || !strings.Contains(view, "-daemon") {
		t.Errorf("missing hint:\n%s", view)
	}
}

func TestModelTickSchedulesFetch(t *testing.T) {
	m := newTestModel(t, &memoryOpener{})
	if _, cmd := m.Update(tickMsg(t0)); cmd == nil {
		t.Error("tick produced no follow-up command")
	}
}

func TestModelHelpToggle(t *testing.T) {
	m := newTestModel(t, &memoryOpener{})
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = updated.(Model)
	if !m.help.ShowAll {
		t.Fatal("help not expanded")
	}
	if !strings.Contains(m.View(), "scroll down") {
		t.Error("full help not rendered")
	}
}

func TestRenderOverviewEmpty(t *testing.T) {
	if got := renderOverview(nil, 80, t0); !strings.Contains(got, "No samples") {
		t.Errorf("renderOverview(nil) = %q", got)
	}
}
