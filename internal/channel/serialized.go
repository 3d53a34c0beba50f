package channel

import (
	"context"
	"sync"
)

// SerializedChannel allows at most one exchange at a time on the wrapped
// channel.
type SerializedChannel struct {
	mu    sync.Mutex
	inner Channel
}

// Serialized wraps ch so concurrent callers take turns.
func Serialized(ch Channel) *SerializedChannel {
	if s, ok := ch.(*SerializedChannel); ok {
		return s
	}
	return &SerializedChannel{inner: ch}
}

// Exchange waits for any in-flight exchange to finish, then runs this one.
// A caller whose context ends while waiting gets the context error without
// sending anything.
func (s *SerializedChannel) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, err, "exchange abandoned before sending")
	}
	return s.inner.Exchange(ctx, cmd)
}

// Unwrap returns the wrapped channel.
func (s *SerializedChannel) Unwrap() Channel {
	return s.inner
}
