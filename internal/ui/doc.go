// Package ui provides terminal UI components for the ecatcheck CLI.
//
// This package uses Bubble Tea and Lipgloss to render terminal output for
// device commands. The components follow a "run once and exit" pattern:
// they render output but never require user interaction, except for the
// typed confirmation guarding SII image writes. On a terminal, boxes are
// drawn through a single-shot Bubble Tea program (RenderOnce).
//
// # Architecture
//
//   - Header: command banner showing operation name and parameters
//   - Progress: progress bar with step list showing real-time status
//   - Result: success/failure/warning boxes; failures show the ecaterr kind
//   - Checklist: expected/actual tables for identity comparisons
//   - Trace: hex frame log box for verbose mode
//
// These components are orchestrated by the Runner, which manages the
// header → progress → result flow.
//
// # Usage Pattern
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:      "Lifecycle Validation",
//	    Command:    "ecatcheck lifecycle",
//	    Params:     map[string]string{"Device": "tcp://gw-01:34980"},
//	    TotalSteps: 4,
//	})
//
//	outcome, err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) (*ui.Outcome, error) {
//	    onStep(1, "Init -> PreOperational", ui.StepRunning, "")
//	    // ... do work ...
//	    onStep(1, "", ui.StepComplete, "")
//	    return &ui.Outcome{Passed: true}, nil
//	})
//
// Failures are rendered with hints from ecaterr.TroubleshootingHint.
//
// # Logging Integration
//
// Logging is controlled by --log-level or ECATCHECK_LOG_LEVEL. When unset
// the zap logger is silent so the styled output is displayed cleanly.
package ui
