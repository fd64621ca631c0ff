package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap 定义全局快捷键绑定
// KeyMap defines global keybindings
type KeyMap struct {
	Quit      key.Binding
	Submit    key.Binding
	ClearChat key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
}

// DefaultKeyMap 默认快捷键
// DefaultKeyMap returns default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		ClearChat: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear chat memory"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
	}
}
