package ui

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Trace collects the frames exchanged with a device for display in
// verbose mode. It is safe for concurrent use.
type Trace struct {
	Title    string // e.g., "Frame Trace"
	Width    int    // Terminal width
	MaxLines int    // Maximum lines to display (0 = unlimited)

	mu    sync.Mutex
	lines []string
}

// NewTrace creates an empty frame trace
func NewTrace() *Trace {
	return &Trace{
		Title: "Frame Trace",
		Width: GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (t *Trace) SetWidth(width int) *Trace {
	t.Width = width
	return t
}

// SetMaxLines limits the number of lines displayed
func (t *Trace) SetMaxLines(max int) *Trace {
	t.MaxLines = max
	return t
}

// Record appends one frame. direction is "tx" or "rx".
func (t *Trace) Record(direction string, data []byte) {
	arrow := "→"
	if direction == "rx" {
		arrow = "←"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, fmt.Sprintf("%s %3d  %s", arrow, len(data), hex.EncodeToString(data)))
}

// Note appends a free-form line
func (t *Trace) Note(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

// Len returns the number of recorded lines
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

// Lines returns a copy of the recorded lines
func (t *Trace) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// Render returns the styled trace box as a string
func (t *Trace) Render() string {
	width := t.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := t.Lines()
	if t.MaxLines > 0 && len(lines) > t.MaxLines {
		hidden := len(lines) - t.MaxLines
		lines = append(lines[:t.MaxLines:t.MaxLines], fmt.Sprintf("... (%d more frames)", hidden))
	}

	titleStyled := TraceTitleStyle.Render(t.Title)
	contentStyled := TraceContentStyle.Render(strings.Join(lines, "\n"))
	inner := lipgloss.JoinVertical(lipgloss.Left, titleStyled, "", contentStyled)

	boxWidth := width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(boxWidth).
		Padding(0, 1).
		MarginLeft(2).
		Render(inner)
}

// String implements fmt.Stringer
func (t *Trace) String() string {
	return t.Render()
}
