package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is the box printed before a command runs: title, command line and
// the parameters it was given (device, node, profile).
type Header struct {
	Title   string
	Command string
	Params  map[string]string
	Width   int
}

// NewHeader creates a header sized to the terminal
func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{Title: title, Command: command, Params: params, Width: GetTerminalWidth()}
}

// SetWidth sets the box width
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the header box. Parameters are listed in key order below a
// divider and omitted entirely when there are none.
func (h *Header) Render() string {
	width := max(h.Width, MinTerminalWidth)

	body := []string{
		HeaderTitleStyle.Render(strings.ToUpper(h.Title)),
		HeaderCommandStyle.Render(h.Command),
	}
	if len(h.Params) > 0 {
		body = append(body, RenderHorizontalDivider(max(width-6, 10), "─"))
		body = append(body, renderParams(h.Params)...)
	}
	return HeaderBorderStyle(width).Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

// renderParams renders one "Key:  value" line per parameter, values aligned
func renderParams(params map[string]string) []string {
	keys := sortedKeys(params)
	pad := 0
	for _, k := range keys {
		pad = max(pad, len(k))
	}

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, HeaderParamKeyStyle.Render(k+":")+
			strings.Repeat(" ", pad-len(k)+1)+
			HeaderParamValueStyle.Render(params[k]))
	}
	return lines
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
