package audio

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// SelectDevice presents an interactive picker on the terminal. With a
// single device it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	p := picker{names: make([]string, len(devices))}
	for i := range devices {
		p.names[i] = devices[i].Name
	}
	p.render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch p.key(buf[:n]) {
		case pickDone:
			fmt.Print("\r\n")
			return &devices[p.cursor], nil
		case pickCancel:
			fmt.Print("\r\n")
			return nil, fmt.Errorf("device selection cancelled")
		}
		fmt.Printf("\x1b[%dA", len(devices)+2)
		p.render()
	}
}

type pickResult int

const (
	pickMoved pickResult = iota
	pickDone
	pickCancel
)

type picker struct {
	names  []string
	cursor int
}

func (p *picker) key(b []byte) pickResult {
	if len(b) == 1 {
		switch b[0] {
		case 13: // Enter
			return pickDone
		case 3, 'q': // Ctrl+C
			return pickCancel
		case 'j':
			p.down()
		case 'k':
			p.up()
		}
		return pickMoved
	}
	if len(b) == 3 && b[0] == 0x1b && b[1] == '[' {
		switch b[2] {
		case 'A':
			p.up()
		case 'B':
			p.down()
		}
	}
	return pickMoved
}

func (p *picker) up() {
	if p.cursor > 0 {
		p.cursor--
	}
}

func (p *picker) down() {
	if p.cursor < len(p.names)-1 {
		p.cursor++
	}
}

func (p *picker) render() {
	fmt.Print("\r\x1b[J")
	fmt.Print("Select microphone (↑/↓, Enter to confirm):\r\n\r\n")
	for i, name := range p.names {
		if i == p.cursor {
			fmt.Printf("  \x1b[1;36m▶ %s\x1b[0m\r\n", name)
		} else {
			fmt.Printf("    %s\r\n", name)
		}
	}
}
