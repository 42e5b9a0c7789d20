// Package hotkey delivers the global Ctrl+Shift+Space shortcut that toggles
// listening while the terminal is not focused.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Combo is the human-readable shortcut.
const Combo = "Ctrl+Shift+Space"
