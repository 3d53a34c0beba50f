package channel

import (
	"context"
	"sync"
	"time"

	"github.com/muurk/ecatcheck/internal/ecaterr"
)

const (
	// DefaultTimeout bounds a single exchange when no other limit applies
	DefaultTimeout = 5 * time.Second

	// DefaultPort is the gateway's TCP mailbox port
	DefaultPort = 34980

	// MaxResponseSize is the largest response a transport will accept
	MaxResponseSize = 2048
)

// Channel exchanges one command for one response.
type Channel interface {
	Exchange(ctx context.Context, cmd []byte) ([]byte, error)
}

// ConnState is the connection state of a transport
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is a Channel with an explicit connect/close lifecycle.
type Conn interface {
	Channel
	Connect(ctx context.Context) error
	Close() error
	State() ConnState
	// OnStateChange registers fn to be called after every state change.
	// Callbacks run synchronously on the goroutine that changed state.
	OnStateChange(fn func(ConnState))
	// Addr describes the remote end for logs and reports
	Addr() string
}

// Func adapts a function to the Channel interface.
type Func func(ctx context.Context, cmd []byte) ([]byte, error)

// Exchange calls f.
func (f Func) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	return f(ctx, cmd)
}

// stateTracker is embedded by transports to implement State and
// OnStateChange.
type stateTracker struct {
	mu        sync.Mutex
	state     ConnState
	callbacks []func(ConnState)
}

// State returns the current connection state.
func (t *stateTracker) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnStateChange registers a state change callback.
func (t *stateTracker) OnStateChange(fn func(ConnState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, fn)
}

func (t *stateTracker) setState(s ConnState) {
	t.mu.Lock()
	if t.state == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	callbacks := make([]func(ConnState), len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn(s)
	}
}

func (t *stateTracker) requireConnected() error {
	if t.State() != StateConnected {
		return ecaterr.NewChannelError(ecaterr.ChannelDisconnected, "channel is not connected", nil)
	}
	return nil
}

// exchangeDeadline returns the earlier of now+timeout and the context
// deadline.
func exchangeDeadline(ctx context.Context, timeout time.Duration) time.Time {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

// classify turns a transport error into a channel error, preferring the
// context's own error when the context ended the exchange.
func classify(ctx context.Context, err error, message string) *ecaterr.Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if ctxErr == context.DeadlineExceeded {
			return ecaterr.NewChannelError(ecaterr.ChannelTimeout, message, ctxErr)
		}
		return ecaterr.NewChannelError(ecaterr.ChannelIO, message, ctxErr)
	}
	return ecaterr.ClassifyChannelError(err, message)
}
