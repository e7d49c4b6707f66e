// Package tui is the live terminal view over the sample region. It polls
// the region on a fixed cadence and never writes to it.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
	"gitlab.com/tinyland/lab/sysinfo-pulse/display/widgets"
	"gitlab.com/tinyland/lab/sysinfo-pulse/internal/format"
)

// DefaultRefresh is how often the region is polled.
const DefaultRefresh = time.Second

// Tab identifies which tab is currently active.
type Tab int

const (
	TabOverview Tab = iota
	TabRows
	TabRegion
	tabCount
)

var tabNames = map[Tab]string{
	TabOverview: "Overview",
	TabRows:     "Rows",
	TabRegion:   "Region",
}

// chromeHeight is the header, footer and content padding.
const chromeHeight = 6

// Model is the bubbletea model for the live view.
type Model struct {
	src     *Source
	refresh time.Duration
	now     func() time.Time

	activeTab Tab
	width     int
	height    int
	ready     bool

	samples     []collectors.Sample
	status      cache.Status
	err         error
	lastUpdated time.Time

	rows table.Model
	help help.Model
}

// NewModel returns a model reading src every refresh.
func NewModel(src *Source, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	rows := table.New(
		table.WithColumns(rowColumns(0)),
		table.WithFocused(true),
		table.WithStyles(tableStyles()),
	)
	return Model{
		src:     src,
		refresh: refresh,
		now:     time.Now,
		rows:    rows,
		help:    help.New(),
	}
}

// Run shows the live view until the user quits.
func Run(src *Source, refresh time.Duration) error {
	_, err := tea.NewProgram(NewModel(src, refresh), tea.WithAltScreen()).Run()
	return err
}

// Init starts the first read and the poll timer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.src), tickCmd(m.refresh))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, keys.Refresh):
			return m, fetchCmd(m.src)
		case key.Matches(msg, keys.NextTab):
			m.activeTab = (m.activeTab + 1) % tabCount
		case key.Matches(msg, keys.PrevTab):
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case key.Matches(msg, keys.Overview):
			m.activeTab = TabOverview
		case key.Matches(msg, keys.Rows):
			m.activeTab = TabRows
		case key.Matches(msg, keys.Region):
			m.activeTab = TabRegion
		default:
			if m.activeTab == TabRows {
				var cmd tea.Cmd
				m.rows, cmd = m.rows.Update(msg)
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.rows.SetColumns(rowColumns(msg.Width - 4))
		m.rows.SetHeight(max(3, msg.Height-chromeHeight-2))

	case tickMsg:
		return m, tea.Batch(fetchCmd(m.src), tickCmd(m.refresh))

	case dataMsg:
		m.err = msg.err
		if msg.err == nil {
			m.samples = msg.samples
			m.status = msg.status
			m.lastUpdated = m.now()
			m.rows.SetRows(tableRows(collectors.CachedRows(m.samples)))
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderContent(),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	var tabs []string
	for i := Tab(0); i < tabCount; i++ {
		if i == m.activeTab {
			tabs = append(tabs, styleActiveTab.Render(tabNames[i]))
		} else {
			tabs = append(tabs, styleInactiveTab.Render(tabNames[i]))
		}
	}
	return styleHeader.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

func (m Model) renderContent() string {
	width := max(20, m.width-4)

	var content string
	switch {
	case m.err != nil && len(m.samples) == 0:
		content = styleError.Render(fmt.Sprintf("Cannot read samples: %v", m.err)) +
			"\n\n" + styleMuted.Render("Start the sampler with -daemon and set sampler.interval.")
	case m.activeTab == TabOverview:
		content = renderOverview(m.samples, width, m.now())
	case m.activeTab == TabRows:
		content = m.rows.View()
	case m.activeTab == TabRegion:
		content = widgets.RenderSummary(m.status, width)
	}
	return styleContent.Width(m.width).Render(content)
}

func (m Model) renderFooter() string {
	status := widgets.SummaryLine(m.status)
	if !m.lastUpdated.IsZero() {
		status += "  updated " + format.FormatTimeSince(m.lastUpdated, m.now())
	}
	lines := []string{status}
	if m.err != nil {
		lines = append(lines, styleError.Render(m.err.Error()))
	}
	lines = append(lines, m.help.View(keys))
	return styleFooter.Width(m.width).Render(strings.Join(lines, "\n"))
}

func rowColumns(width int) []table.Column {
	metric, dims, at, value := 18, 16, 19, 12
	if extra := width - (metric + dims + at + value + 8); extra > 0 {
		dims += extra
	}
	return []table.Column{
		{Title: "METRIC", Width: metric},
		{Title: "DIMENSIONS", Width: dims},
		{Title: "AT", Width: at},
		{Title: "VALUE", Width: value},
	}
}

func tableRows(rows []collectors.Row) []table.Row {
	cells := widgets.RowCells(rows)
	out := make([]table.Row, len(cells))
	for i, c := range cells {
		out[i] = table.Row(c)
	}
	return out
}
