package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap implements help.KeyMap.
type keyMap struct {
	Quit     key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Overview key.Binding
	Rows     key.Binding
	Region   key.Binding
	Up       key.Binding
	Down     key.Binding
	Refresh  key.Binding
	Help     key.Binding
}

// ShortHelp is the footer line.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.NextTab, k.Refresh, k.Quit}
}

// FullHelp is shown after pressing "?".
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextTab, k.PrevTab, k.Overview, k.Rows, k.Region},
		{k.Up, k.Down},
		{k.Refresh, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextTab:  key.NewBinding(key.WithKeys("tab", "right"), key.WithHelp("tab", "next tab")),
	PrevTab:  key.NewBinding(key.WithKeys("shift+tab", "left"), key.WithHelp("shift+tab", "prev tab")),
	Overview: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "overview")),
	Rows:     key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "rows")),
	Region:   key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "region")),
	Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/up", "scroll up")),
	Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/dn", "scroll down")),
	Refresh:  key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}
