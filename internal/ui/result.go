package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/ecatcheck/internal/ecaterr"
)

// ResultType selects the verdict box style
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

type resultStyle struct {
	label  string
	marker string
	color  lipgloss.TerminalColor
	title  lipgloss.Style
}

var resultStyles = map[ResultType]resultStyle{
	ResultSuccess: {"SUCCESS", SuccessMarker, SuccessColor, SuccessTitleStyle},
	ResultFailure: {"FAILED", FailureMarker, ErrorColor, ErrorTitleStyle},
	ResultWarning: {"WARNING", "⚠", WarningColor, lipgloss.NewStyle().Foreground(WarningColor).Bold(true)},
}

// trailingDetails are always listed last, in this order
var trailingDetails = []string{"Report", "Duration"}

// Result is the verdict box printed at the end of a command
type Result struct {
	Type            ResultType
	Title           string            // e.g. "Identity matches"
	Details         map[string]string // key/value lines, aligned on the colon
	Error           error             // failure only
	Troubleshooting []string          // failure only
	Width           int
}

// NewSuccessResult creates a success box
func NewSuccessResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultSuccess, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewFailureResult creates a failure box with optional troubleshooting tips
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning box
func NewWarningResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultWarning, Title: title, Details: details, Width: GetTerminalWidth()}
}

// SetWidth sets the box width
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail adds one detail line
func (r *Result) AddDetail(key, value string) *Result {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
	return r
}

// Render returns the box as a string
func (r *Result) Render() string {
	style, ok := resultStyles[r.Type]
	if !ok {
		style = resultStyles[ResultSuccess]
	}
	width := max(r.Width, MinTerminalWidth)

	lines := []string{"", style.title.Render(fmt.Sprintf("   %s  %s  ─  %s", style.marker, style.label, r.Title)), ""}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()))
		if kind := errorKind(r.Error); kind != "" {
			lines = append(lines, ResultKeyStyle.Render("   Kind:")+" "+ResultValueStyle.Render(kind))
		}
		lines = append(lines, "")
	}

	if len(r.Details) > 0 {
		lines = append(lines, r.detailLines()...)
		lines = append(lines, "")
	}

	if len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshooting(width), "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(style.color).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

// errorKind names the failure category of ecaterr errors, "" otherwise
func errorKind(err error) string {
	var e *ecaterr.Error
	if !errors.As(err, &e) {
		return ""
	}
	if e.Kind == ecaterr.KindChannel {
		return fmt.Sprintf("%s (%s)", e.Kind, e.Subtype)
	}
	return e.Kind.String()
}

// detailLines renders Details sorted by key, with trailingDetails last and
// values aligned after the longest key.
func (r *Result) detailLines() []string {
	var keys, tail []string
	for _, k := range sortedKeys(r.Details) {
		if !isTrailing(k) {
			keys = append(keys, k)
		}
	}
	for _, k := range trailingDetails {
		if _, ok := r.Details[k]; ok {
			tail = append(tail, k)
		}
	}
	keys = append(keys, tail...)

	pad := 0
	for _, k := range keys {
		pad = max(pad, lipgloss.Width(k))
	}

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		label := ResultKeyStyle.Render(fmt.Sprintf("   %s:", k))
		lines = append(lines, label+strings.Repeat(" ", pad-lipgloss.Width(k)+1)+ResultValueStyle.Render(r.Details[k]))
	}
	return lines
}

func isTrailing(key string) bool {
	for _, k := range trailingDetails {
		if k == key {
			return true
		}
	}
	return false
}

// renderTroubleshooting renders the tips in an inset rounded box
func (r *Result) renderTroubleshooting(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(max(width-12, 40)).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
