package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// RunOnceModel is a Bubble Tea model that renders once and exits.
// This is used for "run once and exit" output patterns rather than
// interactive TUIs.
type RunOnceModel struct {
	content string
	width   int
	height  int
}

// NewRunOnceModel creates a model that will render the given content and exit
func NewRunOnceModel(content string) RunOnceModel {
	width, height := GetTerminalSize()
	return RunOnceModel{
		content: content,
		width:   width,
		height:  height,
	}
}

// Init implements tea.Model
func (m RunOnceModel) Init() tea.Cmd {
	return tea.Quit
}

// Update implements tea.Model
func (m RunOnceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = size.Width, size.Height
	}
	return m, nil
}

// View implements tea.Model
func (m RunOnceModel) View() string {
	return m.content
}

// RenderOnce renders content to w using Bubble Tea's rendering engine and
// immediately exits. Input is never read.
func RenderOnce(w io.Writer, content string) error {
	p := tea.NewProgram(NewRunOnceModel(content),
		tea.WithOutput(w),
		tea.WithInput(nil),
	)
	_, err := p.Run()
	return err
}

// Printer provides methods for printing UI components to a writer.
// This is the primary way commands should output styled content.
type Printer struct {
	out   io.Writer
	width int
	tty   bool
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	p := &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
	if f, ok := w.(*os.File); ok {
		p.tty = term.IsTerminal(int(f.Fd()))
	}
	return p
}

// WithWidth overrides the detected terminal width
func (p *Printer) WithWidth(width int) *Printer {
	p.width = width
	return p
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintLines writes multiple lines
func (p *Printer) PrintLines(lines ...string) {
	for _, line := range lines {
		_, _ = fmt.Fprintln(p.out, line)
	}
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// printBox writes a rendered box. On a terminal it goes through Bubble Tea
// so resizing mid-render is handled; elsewhere it is written as is.
func (p *Printer) printBox(box string) {
	if p.tty {
		if err := RenderOnce(p.out, box+"\n"); err == nil {
			return
		}
	}
	p.Println(box)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.printBox(NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.printBox(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details map[string]string) {
	p.printBox(NewWarningResult(title, details).SetWidth(p.width).Render())
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.printBox(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintTrace prints a frame trace box (for verbose mode)
func (p *Printer) PrintTrace(t *Trace) {
	if t == nil || t.Len() == 0 {
		return
	}
	p.Newline()
	p.Println(t.SetWidth(p.width).Render())
}

// PrintPleaseWait prints a styled "please wait" message for long-running operations.
func (p *Printer) PrintPleaseWait(message string, durationHint string) {
	line := PleaseWaitStyle.Render("⏳ " + message)
	if durationHint != "" {
		line += " " + StepNoteStyle.Render("("+durationHint+")")
	}
	line += PleaseWaitStyle.Render("...")
	p.Println(line)
	p.Newline()
}

// indent prefixes every line of s
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
