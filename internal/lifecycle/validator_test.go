package lifecycle

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/muurk/ecatcheck/internal/channel"
	"github.com/muurk/ecatcheck/internal/ecaterr"
)

type stubChannel struct{ mock.Mock }

func (s *stubChannel) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	ret := s.Called(ctx, cmd)
	var resp []byte
	if ret.Get(0) != nil {
		resp = ret.Get(0).([]byte)
	}
	return resp, ret.Error(1)
}

// echo returns a response reporting state s
func echo(s State) []byte {
	return []byte{0x00, 0x00, 0x00, byte(s)}
}

func TestBuildTransitionCommand(t *testing.T) {
	cmd := BuildTransitionCommand(StateInit, StatePreOperational)
	require.Len(t, cmd, CommandLen)
	assert.Equal(t, []byte{0x01, 0x00, 0x01}, cmd[:3])
	assert.Equal(t, make([]byte, CommandLen-3), cmd[3:])
}

func TestTransitionAccepted(t *testing.T) {
	assert.True(t, TransitionAccepted(echo(StateOperational), StateOperational))
	assert.True(t, TransitionAccepted([]byte{0, 0, 0, 2, 0xFF}, StateSafeOperational))
	assert.False(t, TransitionAccepted(echo(StatePreOperational), StateOperational))
	assert.False(t, TransitionAccepted([]byte{0, 0, 3}, StateOperational))
	assert.False(t, TransitionAccepted(nil, StateInit))
}

func TestValidateTransition(t *testing.T) {
	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, BuildTransitionCommand(StateInit, StatePreOperational)).
		Return(echo(StatePreOperational), nil).Once()
	ch.On("Exchange", mock.Anything, BuildTransitionCommand(StatePreOperational, StateOperational)).
		Return(echo(StatePreOperational), nil).Once()

	v := NewValidator(ch)

	ok, err := v.ValidateTransition(context.Background(), StateInit, StatePreOperational)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.ValidateTransition(context.Background(), StatePreOperational, StateOperational)
	require.NoError(t, err)
	assert.False(t, ok)

	ch.AssertExpectations(t)
}

func TestValidateTransitionChannelError(t *testing.T) {
	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, mock.Anything).
		Return(nil, ecaterr.NewChannelError(ecaterr.ChannelTimeout, "no response", nil)).Once()

	ok, err := NewValidator(ch).ValidateTransition(context.Background(), StateInit, StatePreOperational)
	assert.False(t, ok)
	assert.True(t, ecaterr.IsTimeout(err))
}

func TestValidateTransitionInvalidState(t *testing.T) {
	ch := &stubChannel{}
	_, err := NewValidator(ch).ValidateTransition(context.Background(), StateInit, State(7))
	assert.True(t, ecaterr.IsValidationError(err))
	ch.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything)
}

func TestEnterBoot(t *testing.T) {
	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, BuildTransitionCommand(StateInit, StateBoot)).
		Return(echo(StateBoot), nil).Once()

	ok, err := NewValidator(ch).EnterBoot(context.Background(), StateInit)
	require.NoError(t, err)
	assert.True(t, ok)
}

// deviceFunc answers transitions like a well-behaved device, except that
// transitions into reject are answered with the unchanged state.
func deviceFunc(reject State, log *[]Transition) channel.Func {
	current := StateInit
	return func(ctx context.Context, cmd []byte) ([]byte, error) {
		from, to := State(cmd[1]), State(cmd[2])
		*log = append(*log, Transition{from, to})
		if to != reject {
			current = to
		}
		return echo(current), nil
	}
}

func TestValidateFullStateSequencePasses(t *testing.T) {
	var issued []Transition
	v := NewValidator(deviceFunc(State(0xFF), &issued))

	result, err := v.ValidateFullStateSequence(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Passed)
	require.Len(t, result.Steps, 4)
	assert.True(t, result.Steps[3].Cleanup)
	assert.Empty(t, result.Failed())
	assert.Equal(t, append(append([]Transition{}, StandardSequence...), CleanupTransition), issued)
}

func TestValidateFullStateSequencePartialFailure(t *testing.T) {
	var issued []Transition
	v := NewValidator(deviceFunc(StatePreOperational, &issued))

	result, err := v.ValidateFullStateSequence(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, []Transition{
		{StateInit, StatePreOperational},
		{StatePreOperational, StateSafeOperational},
		{StateSafeOperational, StateOperational},
		{StateOperational, StateInit},
	}, issued, "every step and the cleanup must still be issued")

	require.Len(t, result.Steps, 4)
	assert.False(t, result.Steps[0].Accepted)
	assert.True(t, result.Steps[1].Accepted)
	assert.True(t, result.Steps[2].Accepted)
	assert.True(t, result.Steps[3].Cleanup)
	assert.Len(t, result.Failed(), 1)
}

func TestValidateFullStateSequenceCleanupIgnored(t *testing.T) {
	var issued []Transition
	v := NewValidator(deviceFunc(StateInit, &issued))

	result, err := v.ValidateFullStateSequence(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Passed, "cleanup failure must not affect the verdict")
	assert.False(t, result.Steps[3].Accepted)
}

func TestValidateFullStateSequenceChannelErrorContinues(t *testing.T) {
	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, BuildTransitionCommand(StateInit, StatePreOperational)).
		Return(nil, ecaterr.NewChannelError(ecaterr.ChannelIO, "write failed", nil)).Once()
	ch.On("Exchange", mock.Anything, BuildTransitionCommand(StatePreOperational, StateSafeOperational)).
		Return(echo(StateSafeOperational), nil).Once()
	ch.On("Exchange", mock.Anything, BuildTransitionCommand(StateSafeOperational, StateOperational)).
		Return(echo(StateOperational), nil).Once()
	ch.On("Exchange", mock.Anything, BuildTransitionCommand(StateOperational, StateInit)).
		Return(nil, ecaterr.NewChannelError(ecaterr.ChannelTimeout, "no response", nil)).Once()

	var notified []int
	v := NewValidator(ch)
	v.OnStep = func(i, total int, step StepResult) {
		assert.Equal(t, 4, total)
		notified = append(notified, i)
	}

	result, err := v.ValidateFullStateSequence(context.Background())
	require.Error(t, err)
	assert.True(t, ecaterr.IsChannelError(err), "got %v", err)
	assert.Contains(t, err.Error(), "Init -> PreOperational")
	assert.NotContains(t, err.Error(), "no response", "cleanup failure must not be returned")

	require.NotNil(t, result)
	assert.False(t, result.Passed)
	require.Len(t, result.Steps, 4)
	assert.Contains(t, result.Steps[0].Err, "write failed")
	assert.True(t, result.Steps[1].Accepted)
	assert.NotEmpty(t, result.Steps[3].Err)
	assert.Equal(t, []int{0, 1, 2, 3}, notified)
	ch.AssertExpectations(t)
}

func TestValidateFullStateSequenceDisconnectedEveryStep(t *testing.T) {
	gone := ecaterr.NewChannelError(ecaterr.ChannelDisconnected, "gone", nil)
	v := NewValidator(channel.Func(func(context.Context, []byte) ([]byte, error) {
		return nil, gone
	}))

	result, err := v.ValidateFullStateSequence(context.Background())
	require.Error(t, err)
	assert.True(t, ecaterr.IsDisconnected(err), "got %v", err)
	assert.ErrorIs(t, err, gone)
	assert.Len(t, strings.Split(err.Error(), "\n"), len(StandardSequence))

	require.NotNil(t, result)
	assert.False(t, result.Passed)
	assert.Len(t, result.Steps, len(StandardSequence)+1)
}
