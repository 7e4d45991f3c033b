package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/h0rv/postergrid/internal/grid"
)

// KeyMap defines the key bindings of the browse screen. Grid navigation is
// handled by the grid itself and listed here for help only.
type KeyMap struct {
	Grid grid.KeyMap

	Detail       key.Binding
	Open         key.Binding
	Status       key.Binding
	LoadMore     key.Binding
	Filter       key.Binding
	ApplyFilter  key.Binding
	CancelFilter key.Binding
	Refresh      key.Binding
	Help         key.Binding
	Quit         key.Binding
}

// DefaultKeyMap returns the default browse bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Grid: grid.DefaultKeyMap(),
		Detail: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in browser"),
		),
		Status: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "cycle list status"),
		),
		LoadMore: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "load more"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter titles"),
		),
		ApplyFilter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "keep filter"),
		),
		CancelFilter: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear filter"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Detail, k.Open, k.Status, k.Filter, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Grid.Left, k.Grid.Right, k.Grid.Up, k.Grid.Down},
		{k.Grid.PageUp, k.Grid.PageDown, k.Grid.Top, k.Grid.Bottom},
		{k.Detail, k.Open, k.Status, k.LoadMore},
		{k.Filter, k.Refresh, k.Help, k.Quit},
	}
}

// DetailKeyMap defines the key bindings of the detail screen.
type DetailKeyMap struct {
	Back       key.Binding
	Open       key.Binding
	Up         key.Binding
	Down       key.Binding
	HalfUp     key.Binding
	HalfDown   key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Note       key.Binding
	SaveNote   key.Binding
	CancelNote key.Binding
}

// DefaultDetailKeyMap returns the default detail bindings.
func DefaultDetailKeyMap() DetailKeyMap {
	return DetailKeyMap{
		Back: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "back"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("j", "down"),
		),
		HalfUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "half page up"),
		),
		HalfDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "half page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Note: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "edit note"),
		),
		SaveNote: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		CancelNote: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k DetailKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Back, k.Open, k.Down, k.Up, k.Top, k.Bottom, k.Note}
}

// FullHelp implements help.KeyMap.
func (k DetailKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.HalfUp, k.HalfDown, k.Top, k.Bottom},
		{k.Back, k.Open, k.Note, k.SaveNote, k.CancelNote},
	}
}
