package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmPhrase must be typed exactly to approve a dangerous operation
const ConfirmPhrase = "I AGREE"

// Confirmation is a warning box followed by a typed-phrase prompt
type Confirmation struct {
	Title      string
	Warnings   []string
	Disclaimer string
	Width      int
}

// Ask prints the box and prompt on out and reads one line from in. It
// returns true only if the line, trimmed, is ConfirmPhrase. EOF without a
// newline still counts as a line.
func (c *Confirmation) Ask(in io.Reader, out io.Writer) bool {
	_, _ = fmt.Fprintln(out, c.render())
	_, _ = fmt.Fprintln(out)

	prompt := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	_, _ = fmt.Fprint(out, prompt.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", ConfirmPhrase)))

	input, _ := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)

	if strings.TrimSpace(input) == ConfirmPhrase {
		return true
	}
	_, _ = fmt.Fprintln(out, StepPendingStyle.Render("  Operation cancelled."))
	_, _ = fmt.Fprintln(out)
	return false
}

func (c *Confirmation) render() string {
	width := c.Width
	if width == 0 {
		width = GetTerminalWidth()
	}
	width = max(width, MinTerminalWidth)

	style := resultStyles[ResultWarning]
	lines := []string{"", style.title.Render(fmt.Sprintf("   %s  %s  ─  %s", style.marker, style.label, c.Title)), ""}
	for _, w := range c.Warnings {
		lines = append(lines, ResultValueStyle.Render("   • "+w))
	}
	lines = append(lines, "")
	if c.Disclaimer != "" {
		lines = append(lines, AdvisoryStyle.Width(width-12).PaddingLeft(3).Render(c.Disclaimer), "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(style.color).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

// ConfirmDangerousOperation asks for ConfirmPhrase after showing warnings
func ConfirmDangerousOperation(in io.Reader, out io.Writer, title string, warnings []string, disclaimer string) bool {
	c := &Confirmation{Title: title, Warnings: warnings, Disclaimer: disclaimer}
	return c.Ask(in, out)
}

// SIIWriteConfirmation asks before edit is applied to the image file.
func SIIWriteConfirmation(in io.Reader, out io.Writer, image, edit string) bool {
	return ConfirmDangerousOperation(in, out,
		"SII IMAGE WRITE",
		[]string{
			fmt.Sprintf("%s will be modified in place: %s", image, edit),
			"Header words 0x0000-0x000F hold the checksum, manufacturer id and identity",
			"A wrong header value stops the master from recognising the device once flashed",
			"Reseal the checksum (--seal) after changing header bytes",
		},
		"Keep a copy of the image before proceeding. The file is only rewritten if the edit succeeds.",
	)
}
