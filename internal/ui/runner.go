package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/muurk/ecatcheck/internal/ecaterr"
)

// RunnerConfig holds configuration for a device command execution
type RunnerConfig struct {
	Title      string            // Command title (e.g., "Lifecycle Validation")
	Command    string            // Full command (e.g., "ecatcheck lifecycle")
	Params     map[string]string // Parameters to display in header
	TotalSteps int               // Total number of steps (for progress)
	StepNames  []string          // Names for each step
	Verbose    bool              // Whether to show the frame trace
	Trace      *Trace            // Frames recorded during the run (optional)
	Output     io.Writer         // Output writer (default: os.Stdout)
	Width      int               // Overrides the detected terminal width
}

// Outcome is what an operation reports back to the Runner
type Outcome struct {
	Passed  bool
	Summary string            // e.g., "All 3 transitions accepted"
	Details map[string]string // Shown in the result box
}

// Operation is the function signature for the work a Runner wraps.
// It receives a StepCallback to report progress.
type Operation func(ctx context.Context, onStep StepCallback) (*Outcome, error)

// Runner orchestrates the header → progress → result flow of a command.
type Runner struct {
	config    RunnerConfig
	header    *Header
	progress  *Progress
	printer   *Printer
	startTime time.Time
}

// NewRunner creates a new runner for a device command
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	printer := NewPrinter(config.Output)
	if config.Width > 0 {
		printer.WithWidth(config.Width)
	}
	width := printer.Width()

	var progress *Progress
	if config.TotalSteps > 0 {
		progress = NewProgress("", config.TotalSteps)
		progress.SetWidth(width)
		if len(config.StepNames) > 0 {
			progress.SetStepNames(config.StepNames)
		}
	}

	return &Runner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params).SetWidth(width),
		progress: progress,
		printer:  printer,
	}
}

// Run prints the header, executes op while rendering its steps, then prints
// a success or failure box. A nil Outcome with a nil error counts as passed.
func (r *Runner) Run(ctx context.Context, op Operation) (*Outcome, error) {
	r.startTime = time.Now()

	r.printer.Println(r.header.Render())
	r.printer.Newline()

	outcome, err := op(ctx, r.stepCallback())
	duration := time.Since(r.startTime).Round(time.Millisecond)
	r.printer.Newline()
	if r.progress != nil {
		r.printer.Println(r.progress.RenderBar())
		r.printer.Newline()
	}

	switch {
	case err != nil:
		r.printer.PrintError(r.config.Title+" failed", err, ecaterr.TroubleshootingHint(err))
	case outcome == nil:
		outcome = &Outcome{Passed: true}
		fallthrough
	default:
		if outcome.Details == nil {
			outcome.Details = make(map[string]string)
		}
		outcome.Details["Duration"] = duration.String()
		r.printOutcome(outcome)
	}

	if r.config.Verbose {
		r.printer.PrintTrace(r.config.Trace)
	}
	return outcome, err
}

func (r *Runner) printOutcome(o *Outcome) {
	title := o.Summary
	if o.Passed {
		if title == "" {
			title = r.config.Title + " complete"
		}
		r.printer.PrintSuccess(title, o.Details)
		return
	}

	if title == "" {
		title = r.config.Title + " failed"
	}
	res := NewFailureResult(title, nil, nil).SetWidth(r.printer.Width())
	res.Details = o.Details
	r.printer.Println(res.Render())
}

// stepCallback prints each step line as it settles. A running step is
// printed with a carriage return so the settled line replaces it.
func (r *Runner) stepCallback() StepCallback {
	return func(stepNumber int, name string, status StepStatus, message string) {
		if r.progress == nil || stepNumber < 1 || stepNumber > len(r.progress.Steps) {
			return
		}
		if name != "" {
			r.progress.setName(stepNumber-1, name)
		}
		r.progress.UpdateStep(stepNumber, status, message)

		line := r.progress.renderStepLine(r.progress.Steps[stepNumber-1])
		switch {
		case status.settled():
			r.printer.Println(line)
		case status == StepRunning:
			r.printer.Print(line + "\r")
		}
	}
}

// Progress exposes the runner's progress tracker, nil without steps
func (r *Runner) Progress() *Progress {
	return r.progress
}
