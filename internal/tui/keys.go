package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the TUI. Elements loaded from a
// layout file may declare their own toggle key on top of these.
type KeyMap struct {
	// Elements
	Next   key.Binding
	Prev   key.Binding
	Show   key.Binding
	Hide   key.Binding
	Toggle key.Binding
	Back   key.Binding

	// Toasts
	Up         key.Binding
	Down       key.Binding
	Dismiss    key.Binding
	DismissAll key.Binding
	Demo       key.Binding
	Promise    key.Binding

	// Global
	Quit key.Binding
}

// ShortHelp returns a short help message.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Toggle, k.Demo, k.Promise, k.Quit}
}

// FullHelp returns a full help message.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Show, k.Hide, k.Toggle, k.Back},
		{k.Up, k.Down, k.Dismiss, k.DismissAll},
		{k.Demo, k.Promise, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next element"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous element"),
		),
		Show: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "show element"),
		),
		Hide: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "hide element"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle element"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close modals"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "focus previous toast"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "focus next toast"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "dismiss toast"),
		),
		DismissAll: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "dismiss all"),
		),
		Demo: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new toast"),
		),
		Promise: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "promise toast"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
