package channel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/logging"
)

// TCP is a raw TCP transport. Each exchange writes the command and returns
// the bytes delivered by a single read.
type TCP struct {
	stateTracker

	addr    string
	timeout time.Duration
	dialer  net.Dialer

	mu   sync.Mutex
	conn net.Conn
}

// NewTCP creates an unconnected TCP transport. A missing port defaults to
// DefaultPort.
func NewTCP(addr string, opts ...Option) *TCP {
	o := applyOptions(opts)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, fmt.Sprint(DefaultPort))
	}
	return &TCP{addr: addr, timeout: o.timeout}
}

// Addr returns host:port.
func (t *TCP) Addr() string {
	return t.addr
}

// Connect dials the gateway.
func (t *TCP) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	t.setState(StateConnecting)
	dialCtx, cancel := context.WithDeadline(ctx, exchangeDeadline(ctx, t.timeout))
	defer cancel()

	conn, err := t.dialer.DialContext(dialCtx, "tcp", t.addr)
	if err != nil {
		t.setState(StateDisconnected)
		return classify(ctx, err, fmt.Sprintf("failed to connect to %s", t.addr))
	}

	t.conn = conn
	t.setState(StateConnected)
	logging.LogConnection(t.addr, "connected")
	return nil
}

// Close closes the connection. Closing an unconnected transport is a no-op.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		t.setState(StateClosed)
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	t.setState(StateClosed)
	logging.LogConnection(t.addr, "closed")
	return err
}

// Exchange sends cmd and waits for the response.
func (t *TCP) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireConnected(); err != nil {
		return nil, err
	}
	conn := t.conn

	if err := conn.SetDeadline(exchangeDeadline(ctx, t.timeout)); err != nil {
		return nil, t.fail(ctx, err, "failed to set deadline")
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	logging.LogExchange(t.addr, "tx", cmd)
	if _, err := conn.Write(cmd); err != nil {
		return nil, t.fail(ctx, err, "failed to send command")
	}

	buf := make([]byte, MaxResponseSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, t.fail(ctx, err, "failed to receive response")
	}
	resp := buf[:n]
	logging.LogExchange(t.addr, "rx", resp)

	return resp, nil
}

// fail classifies err and drops the connection. A reply that arrives after
// a timeout would otherwise be read as the answer to the next command.
// Called with t.mu held.
func (t *TCP) fail(ctx context.Context, err error, message string) error {
	e := classify(ctx, err, message)
	logging.Warn("Exchange failed, dropping connection",
		zap.String("remote_addr", t.addr),
		zap.Stringer("subtype", e.Subtype),
		zap.Error(err),
	)
	_ = t.conn.Close()
	t.conn = nil
	t.setState(StateDisconnected)
	return e
}
