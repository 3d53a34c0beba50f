package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus is the state of one check in a multi-step run
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

// settled reports whether a step has finished one way or another
func (s StepStatus) settled() bool {
	return s == StepComplete || s == StepFailed || s == StepSkipped
}

// Step is one transition, object or other check shown in the step list
type Step struct {
	Number  int
	Name    string
	Status  StepStatus
	Message string // e.g. "rejected", "abort 0x06020000"
}

// Tally counts steps by outcome
type Tally struct {
	Complete int
	Failed   int
	Skipped  int
}

// Settled is the number of steps that have finished
func (t Tally) Settled() int {
	return t.Complete + t.Failed + t.Skipped
}

// maxListedSteps is the longest step list rendered in full. Longer lists
// (large object dictionaries) only show the steps that did not complete.
const maxListedSteps = 24

// Step names are padded to this column, capped at maxNameColumn
const (
	minNameColumn = 24
	maxNameColumn = 48
)

// Progress tracks a fixed number of steps for the lifecycle walk and object
// dictionary verification and renders them with a bubbles progress bar.
type Progress struct {
	Label   string
	Steps   []Step
	Current int     // 1-based, last step started
	Total   int
	Percent float64 // settled steps / Total
	Width   int

	nameColumn int
	bar        progress.Model
}

// NewProgress creates a tracker with totalSteps pending steps
func NewProgress(label string, totalSteps int) *Progress {
	steps := make([]Step, totalSteps)
	for i := range steps {
		steps[i] = Step{Number: i + 1}
	}

	p := &Progress{
		Label:      label,
		Steps:      steps,
		Total:      totalSteps,
		nameColumn: minNameColumn,
	}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sizes the bar to leave room for the counters after it
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := min(max(width-30, 20), 50)
	p.bar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth))
	return p
}

// SetStepNames names the steps in order. Extra names are ignored.
func (p *Progress) SetStepNames(names []string) *Progress {
	for i, name := range names {
		if i < len(p.Steps) {
			p.setName(i, name)
		}
	}
	return p
}

func (p *Progress) setName(i int, name string) {
	p.Steps[i].Name = name
	if w := lipgloss.Width(name) + 2; w > p.nameColumn {
		p.nameColumn = min(w, maxNameColumn)
	}
}

// UpdateStep records a status change. Out-of-range step numbers are ignored.
func (p *Progress) UpdateStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(p.Steps) {
		return
	}
	step := &p.Steps[stepNumber-1]
	step.Status = status
	step.Message = message

	if status == StepRunning {
		p.Current = stepNumber
	}
	if p.Total > 0 {
		p.Percent = float64(p.Tally().Settled()) / float64(p.Total)
	}
}

// StartStep marks a step as running
func (p *Progress) StartStep(stepNumber int, message string) {
	p.UpdateStep(stepNumber, StepRunning, message)
}

// CompleteStep marks a step as passed
func (p *Progress) CompleteStep(stepNumber int, message string) {
	p.UpdateStep(stepNumber, StepComplete, message)
}

// FailStep marks a step as failed
func (p *Progress) FailStep(stepNumber int, message string) {
	p.UpdateStep(stepNumber, StepFailed, message)
}

// Tally counts the steps by outcome
func (p *Progress) Tally() Tally {
	var t Tally
	for _, s := range p.Steps {
		switch s.Status {
		case StepComplete:
			t.Complete++
		case StepFailed:
			t.Failed++
		case StepSkipped:
			t.Skipped++
		}
	}
	return t
}

// Render returns the label, bar and step list
func (p *Progress) Render() string {
	var b strings.Builder
	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}
	b.WriteString(p.RenderBar())
	b.WriteString("\n\n")
	b.WriteString(p.renderStepList())
	return b.String()
}

// RenderBar returns the progress bar followed by the step counters, e.g.
// "████░░  75%  3/4 checked, 1 failed".
func (p *Progress) RenderBar() string {
	t := p.Tally()
	counts := fmt.Sprintf("%d/%d checked", t.Settled(), p.Total)
	if t.Failed > 0 {
		counts += ", " + ErrorTitleStyle.Render(fmt.Sprintf("%d failed", t.Failed))
	}
	if t.Skipped > 0 {
		counts += fmt.Sprintf(", %d skipped", t.Skipped)
	}
	return lipgloss.NewStyle().PaddingLeft(2).Render(
		fmt.Sprintf("%s  %3.0f%%  %s", p.bar.ViewAs(p.Percent), p.Percent*100, counts))
}

func (p *Progress) renderStepList() string {
	var lines []string
	hidden := 0
	for _, step := range p.Steps {
		if len(p.Steps) > maxListedSteps && step.Status == StepComplete {
			hidden++
			continue
		}
		lines = append(lines, p.renderStepLine(step))
	}
	if hidden > 0 {
		lines = append(lines, StepNoteStyle.Render(fmt.Sprintf("  ... %d more passed", hidden)))
	}
	return strings.Join(lines, "\n")
}

// renderStepLine renders "  [2/4] Name ......  ✓  (message)"
func (p *Progress) renderStepLine(step Step) string {
	marker, style := StepMarkerPending, StepPendingStyle
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker = StepMarkerSkipped
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, p.Total)
	b.WriteString(style.Render(step.Name))
	b.WriteString(strings.Repeat(" ", max(p.nameColumn-lipgloss.Width(step.Name), 1)))
	b.WriteString(style.Render(marker))
	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}

// StepCallback reports a step's progress. A non-empty name replaces the
// step's configured name.
type StepCallback func(stepNumber int, name string, status StepStatus, message string)
