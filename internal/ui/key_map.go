package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the sync view.
type keyMap struct {
	history key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		history: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "toggle history")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.history, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.history, k.quit}}
}
