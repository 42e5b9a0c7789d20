//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Linux input event layout (struct input_event on 64-bit): 16 bytes of
// timeval, then type, code and value.
const (
	eventSize   = 24
	eventTypeAt = 16
	eventCodeAt = 18
	eventValAt  = 20

	evKey = 1

	valueUp     = 0
	valueDown   = 1
	valueRepeat = 2
)

const (
	keyLCtrl  = 29
	keyLShift = 42
	keySpace  = 57
	keyRCtrl  = 97
	keyRShift = 54
)

var (
	inputDir = "/dev/input"
	sysDir   = "/sys/class/input"
)

type keyEvent struct {
	code  uint16
	value int32
}

// decodeKeys returns the key events in buf, skipping sync and other
// event types. A trailing partial event is ignored.
func decodeKeys(buf []byte) []keyEvent {
	var out []keyEvent
	for off := 0; off+eventSize <= len(buf); off += eventSize {
		ev := buf[off : off+eventSize]
		if binary.LittleEndian.Uint16(ev[eventTypeAt:]) != evKey {
			continue
		}
		out = append(out, keyEvent{
			code:  binary.LittleEndian.Uint16(ev[eventCodeAt:]),
			value: int32(binary.LittleEndian.Uint32(ev[eventValAt:])),
		})
	}
	return out
}

// combo tracks held keys on one keyboard and reports the edges of
// Ctrl+Shift+Space. Either side's modifier counts.
type combo struct {
	held   map[uint16]bool
	active bool
}

func (c *combo) feed(code uint16, value int32) (down, up bool) {
	if c.held == nil {
		c.held = make(map[uint16]bool)
	}
	switch value {
	case valueDown:
		c.held[code] = true
	case valueUp:
		delete(c.held, code)
	case valueRepeat:
		return false, false
	}
	if code != keySpace {
		return false, false
	}
	if value == valueDown && !c.active && c.modifiers() {
		c.active = true
		return true, false
	}
	if value == valueUp && c.active {
		c.active = false
		return false, true
	}
	return false, false
}

func (c *combo) modifiers() bool {
	ctrl := c.held[keyLCtrl] || c.held[keyRCtrl]
	shift := c.held[keyLShift] || c.held[keyRShift]
	return ctrl && shift
}

type evdevHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}

	mu     sync.Mutex
	files  []*os.File
	closed bool
}

// New reads keyboards under /dev/input directly so the shortcut works on
// Wayland as well as X11. The user must be in the input group.
func New() Hotkey {
	return &evdevHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *evdevHotkey) Register() error {
	paths, err := keyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var errs []error
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		h.files = append(h.files, f)
		go h.watch(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard (run: sudo usermod -aG input $USER, then re-login): %w", errors.Join(errs...))
	}
	return nil
}

// watch runs until the device is closed by Unregister.
func (h *evdevHotkey) watch(f *os.File) {
	buf := make([]byte, eventSize*16)
	var c combo
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for _, ev := range decodeKeys(buf[:n]) {
			down, up := c.feed(ev.code, ev.value)
			if down {
				signal(h.keydown)
			}
			if up {
				signal(h.keyup)
			}
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *evdevHotkey) Unregister() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, f := range h.files {
		f.Close()
	}
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }

func (h *evdevHotkey) Keyup() <-chan struct{} { return h.keyup }

// keyboards lists eventN devices whose key capability bitmap is long
// enough to be a keyboard. Mice and power buttons report a few bits.
func keyboards() ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "event") {
			continue
		}
		caps, err := os.ReadFile(filepath.Join(sysDir, name, "device", "capabilities", "key"))
		if err != nil || len(strings.TrimSpace(string(caps))) <= 10 {
			continue
		}
		out = append(out, filepath.Join(inputDir, name))
	}
	return out, nil
}
