package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voxcall/hotkey"
	"voxcall/render"
)

type snapshotMsg Snapshot
type tickMsg time.Time

var (
	listeningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	finalStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	hintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	callStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	argsStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	noCallStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

// tuiSink hands the newest snapshot to the program. Intermediate snapshots
// are dropped when the view falls behind; the loop never waits on it.
type tuiSink struct {
	latest chan Snapshot
}

func newTUISink() *tuiSink {
	return &tuiSink{latest: make(chan Snapshot, 1)}
}

// Update is only called from the loop goroutine, so the drain-then-send
// below cannot block.
func (s *tuiSink) Update(snap Snapshot) {
	select {
	case <-s.latest:
	default:
	}
	s.latest <- snap
}

func (s *tuiSink) forward(ctx context.Context, p *tea.Program) {
	for {
		select {
		case snap := <-s.latest:
			p.Send(snapshotMsg(snap))
		case <-ctx.Done():
			return
		}
	}
}

type tuiModel struct {
	snap          Snapshot
	ready         bool
	frame         int
	width, height int
	control       func(command)
}

func newTUIProgram(ctx context.Context, a *app) *tea.Program {
	m := tuiModel{control: func(c command) { a.send(ctx, c) }}
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
}

func tuiTick() tea.Cmd {
	return tea.Tick(400*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.control(cmdQuit)
			return m, tea.Quit
		case " ":
			m.control(cmdToggle)
		case "r":
			m.control(cmdReset)
		case "c":
			m.control(cmdCopy)
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case snapshotMsg:
		m.snap = Snapshot(msg)
		m.ready = true
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 || !m.ready {
		return "Loading..."
	}

	header := m.headerLines()
	footer := m.footerLines()
	bodyHeight := max(m.height-len(header)-len(footer)-1, 3)

	leftWidth := max(m.width*2/5, 20)
	rightWidth := max(m.width-leftWidth-1, 20)

	left := lipgloss.NewStyle().
		Width(leftWidth).
		Height(bodyHeight).
		Render(strings.Join(tail(m.transcriptLines(leftWidth-1), bodyHeight), "\n"))
	right := lipgloss.NewStyle().
		Width(rightWidth).
		Height(bodyHeight).
		PaddingLeft(1).
		Render(strings.Join(tail(m.boardLines(rightWidth-2), bodyHeight), "\n"))

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return strings.Join(header, "\n") + "\n\n" + body + "\n" + strings.Join(footer, "\n")
}

func (m tuiModel) headerLines() []string {
	var state string
	if m.snap.Listening {
		dot := "●"
		if m.frame%2 == 1 {
			dot = "○"
		}
		state = listeningStyle.Render(dot + " LISTENING")
	} else {
		state = idleStyle.Render("○ IDLE")
	}
	info := fmt.Sprintf("[%s (%s) | %s | mic: %s]", m.snap.Source, m.snap.Language, m.snap.Backend, m.snap.Device)
	lines := []string{state + "  " + infoStyle.Render(info)}

	status := m.snap.Status
	if m.snap.Pending > 0 {
		status += fmt.Sprintf("  (%d pending)", m.snap.Pending)
	}
	lines = append(lines, statusStyle.Render(status))
	return lines
}

func (m tuiModel) footerLines() []string {
	keys := []struct{ key, label string }{
		{"space", " listen/stop  "},
		{"r", " reset  "},
		{"c", " copy  "},
		{"q", " quit  "},
		{hotkey.Combo, " toggle from anywhere"},
	}
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(helpKeyStyle.Render(k.key) + helpStyle.Render(k.label))
	}
	return []string{b.String()}
}

func (m tuiModel) transcriptLines(width int) []string {
	lines := []string{titleStyle.Render("Transcript"), ""}
	if m.snap.Transcript == "" {
		return append(lines, hintStyle.Render("Your speech will appear here..."))
	}
	for _, l := range wrapText(m.snap.Transcript, width) {
		lines = append(lines, finalStyle.Render(l))
	}
	return lines
}

func (m tuiModel) boardLines(width int) []string {
	lines := []string{titleStyle.Render("Function calls"), ""}
	if len(m.snap.Blocks) == 0 {
		return append(lines, hintStyle.Render(render.Hint))
	}
	for i, blk := range m.snap.Blocks {
		if i > 0 {
			lines = append(lines, "")
		}
		style := placeholderStyle
		switch blk.Kind {
		case render.Call:
			style = callStyle
		case render.NoCall:
			style = noCallStyle
		case render.Error:
			style = errorStyle
		}
		for _, l := range wrapText(blk.Title(), width) {
			lines = append(lines, style.Render(l))
		}
		if blk.Kind == render.Call {
			lines = append(lines, argsStyle.Render("Arguments:"))
			for _, l := range strings.Split(blk.Arguments, "\n") {
				lines = append(lines, argsStyle.Render(l))
			}
		}
	}
	return lines
}

// tail keeps the last n lines so the newest content stays visible.
func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	runes := []rune(text)
	var lines []string
	for len(runes) > width {
		// break at the last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = []rune(strings.TrimLeft(string(runes[splitAt:]), " "))
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
