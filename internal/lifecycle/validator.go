package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/channel"
	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/logging"
)

const (
	// OpTransition tags a state-transition command
	OpTransition = 0x01

	// CommandLen is the fixed transition command length
	CommandLen = 16

	// MinResponseLen is the shortest response that can carry a state echo
	MinResponseLen = 4

	// StateEchoOffset is where the device reports the state it entered
	StateEchoOffset = 3
)

// BuildTransitionCommand encodes a request to move from one state to another.
func BuildTransitionCommand(from, to State) []byte {
	cmd := make([]byte, CommandLen)
	cmd[0] = OpTransition
	cmd[1] = byte(from)
	cmd[2] = byte(to)
	return cmd
}

// TransitionAccepted reports whether resp confirms the device entered to.
func TransitionAccepted(resp []byte, to State) bool {
	return len(resp) >= MinResponseLen && resp[StateEchoOffset] == byte(to)
}

// StepResult records one issued transition.
type StepResult struct {
	From     State  `json:"from" yaml:"from" cbor:"1,keyasint"`
	To       State  `json:"to" yaml:"to" cbor:"2,keyasint"`
	Accepted bool   `json:"accepted" yaml:"accepted" cbor:"3,keyasint"`
	Err      string `json:"error,omitempty" yaml:"error,omitempty" cbor:"4,keyasint,omitempty"`
	Cleanup  bool   `json:"cleanup,omitempty" yaml:"cleanup,omitempty" cbor:"5,keyasint,omitempty"`
}

// SequenceResult is the outcome of a full state walk. Passed covers the
// forward steps only.
type SequenceResult struct {
	Passed bool         `json:"passed" yaml:"passed" cbor:"1,keyasint"`
	Steps  []StepResult `json:"steps" yaml:"steps" cbor:"2,keyasint"`
}

// Failed returns the forward steps that were not accepted.
func (r *SequenceResult) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if !s.Cleanup && !s.Accepted {
			failed = append(failed, s)
		}
	}
	return failed
}

// Validator issues transition commands over a channel.
type Validator struct {
	ch channel.Channel

	// OnStep, if set, is called after every issued transition.
	OnStep func(index, total int, step StepResult)
}

// NewValidator returns a validator bound to ch.
func NewValidator(ch channel.Channel) *Validator {
	return &Validator{ch: ch}
}

// ValidateTransition requests from -> to and reports whether the device
// confirmed it. Channel failures are returned as errors.
func (v *Validator) ValidateTransition(ctx context.Context, from, to State) (bool, error) {
	if !from.Valid() || !to.Valid() {
		return false, ecaterr.NewValidationError(fmt.Sprintf("invalid transition %s -> %s", from, to))
	}

	logging.Debug("Testing state transition",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)

	resp, err := v.ch.Exchange(ctx, BuildTransitionCommand(from, to))
	if err != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}

	accepted := TransitionAccepted(resp, to)
	if !accepted {
		fields := []zap.Field{
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		}
		if len(resp) >= MinResponseLen {
			fields = append(fields, zap.String("reported", State(resp[StateEchoOffset]).String()))
		} else {
			fields = append(fields, zap.Int("response_len", len(resp)))
		}
		logging.Warn("State transition rejected", fields...)
	}
	return accepted, nil
}

// EnterBoot requests the explicit transition into Boot.
func (v *Validator) EnterBoot(ctx context.Context, from State) (bool, error) {
	return v.ValidateTransition(ctx, from, StateBoot)
}

// ValidateFullStateSequence walks StandardSequence, issuing every step even
// after one fails, then always issues CleanupTransition. A channel failure
// on a step marks that step failed and the walk continues; the failures are
// returned joined, alongside the complete result. The cleanup outcome is
// recorded in Steps but never affects Passed or the returned error.
//
// The cleanup is issued even when ctx is already done; the channel timeout
// bounds it. The returned error then includes ctx.Err().
func (v *Validator) ValidateFullStateSequence(ctx context.Context) (*SequenceResult, error) {
	result := &SequenceResult{Passed: true}
	total := len(StandardSequence) + 1

	var errs []error
	for i, t := range StandardSequence {
		step, err := v.runStep(ctx, t, false)
		if err != nil {
			errs = append(errs, err)
		}
		if !step.Accepted {
			result.Passed = false
		}
		result.Steps = append(result.Steps, step)
		v.notify(i, total, step)
	}

	cleanup, _ := v.runStep(context.WithoutCancel(ctx), CleanupTransition, true)
	result.Steps = append(result.Steps, cleanup)
	v.notify(total-1, total, cleanup)

	logging.Info("State sequence validation",
		zap.Bool("passed", result.Passed),
		zap.Int("failed_steps", len(result.Failed())),
		zap.Int("channel_errors", len(errs)),
	)
	if err := ctx.Err(); err != nil && !containsErr(errs, err) {
		errs = append(errs, err)
	}
	return result, errors.Join(errs...)
}

func (v *Validator) runStep(ctx context.Context, t Transition, cleanup bool) (StepResult, error) {
	step := StepResult{From: t.From, To: t.To, Cleanup: cleanup}
	ok, err := v.ValidateTransition(ctx, t.From, t.To)
	if err != nil {
		step.Err = err.Error()
		logging.Warn("State transition failed",
			zap.String("transition", t.String()),
			zap.Bool("cleanup", cleanup),
			zap.Error(err),
		)
		return step, err
	}
	step.Accepted = ok
	return step, nil
}

func containsErr(errs []error, target error) bool {
	for _, err := range errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (v *Validator) notify(i, total int, step StepResult) {
	if v.OnStep != nil {
		v.OnStep(i, total, step)
	}
}
