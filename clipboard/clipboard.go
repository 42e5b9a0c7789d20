// Package clipboard copies the transcript to the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

// ErrEmpty is returned when there is nothing to copy.
var ErrEmpty = errors.New("nothing to copy")

// Writer puts text on a clipboard.
type Writer interface {
	WriteAll(text string) error
}

// Reader is implemented by clipboards that can be read back.
type Reader interface {
	ReadAll() (string, error)
}

type system struct{}

func (system) WriteAll(text string) error { return cb.WriteAll(text) }
func (system) ReadAll() (string, error)    { return cb.ReadAll() }

// System is the OS clipboard. On Linux it needs xclip, xsel or
// wl-clipboard on PATH.
var System Writer = system{}

// Unsupported reports whether no clipboard utility was found.
func Unsupported() bool { return cb.Unsupported }

// Copy trims text and writes it to w.
func Copy(w Writer, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}
	return w.WriteAll(text)
}

// Memory is an in-process clipboard for tests and -test mode.
type Memory struct {
	Text string
	Err  error
}

func (m *Memory) WriteAll(text string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Text = text
	return nil
}

func (m *Memory) ReadAll() (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}
