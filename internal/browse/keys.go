package browse

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

// tableKeys holds key bindings for the table view.
type tableKeys struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Filter   key.Binding
	Reload   key.Binding
	Detail   key.Binding
	Quit     key.Binding
}

// ShortHelp returns the table view bindings for the help bar.
func (k tableKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextTab, k.Filter, k.Reload, k.Detail, k.Quit}
}

// FullHelp returns the table view bindings grouped for expanded help.
func (k tableKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Top, k.Bottom, k.NextTab, k.PrevTab},
		{k.Filter, k.Reload, k.Detail, k.Quit},
	}
}

// detailKeys holds key bindings for the row detail view.
type detailKeys struct {
	Scroll key.Binding
	Back   key.Binding
	Quit   key.Binding
}

// ShortHelp returns the detail view bindings for the help bar.
func (k detailKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Scroll, k.Back, k.Quit}
}

// FullHelp returns the detail view bindings grouped for expanded help.
func (k detailKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Scroll, k.Back, k.Quit}}
}

// TableKeyMap returns the key bindings for the table view.
func TableKeyMap() tableKeys {
	return tableKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab", "right"),
			key.WithHelp("tab", "next dataset"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab", "left"),
			key.WithHelp("shift+tab", "prev dataset"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Detail: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "inspect"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// DetailKeyMap returns the key bindings for the row detail view.
func DetailKeyMap() detailKeys {
	return detailKeys{
		Scroll: key.NewBinding(
			key.WithKeys("up", "down"),
			key.WithHelp("↑/↓", "scroll"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "enter"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// HelpBindings returns the help.KeyMap for the given mode,
// providing context-aware help bar content.
func HelpBindings(mode Mode) help.KeyMap {
	if mode == ModeDetail {
		return DetailKeyMap()
	}
	return TableKeyMap()
}
