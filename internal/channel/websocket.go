package channel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/logging"
)

// WebSocket is a transport that carries each command and response as one
// binary WebSocket message.
type WebSocket struct {
	stateTracker

	url       string
	timeout   time.Duration
	userAgent string
	dialer    *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocket creates an unconnected WebSocket transport for a ws:// or
// wss:// URL.
func NewWebSocket(url string, opts ...Option) *WebSocket {
	o := applyOptions(opts)
	return &WebSocket{
		url:       url,
		timeout:   o.timeout,
		userAgent: o.userAgent,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: o.timeout,
			TLSClientConfig:  o.tlsConfig,
		},
	}
}

// Addr returns the endpoint URL.
func (w *WebSocket) Addr() string {
	return w.url
}

// Connect performs the WebSocket handshake.
func (w *WebSocket) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		return nil
	}

	w.setState(StateConnecting)

	header := http.Header{}
	if w.userAgent != "" {
		header.Set("User-Agent", w.userAgent)
	}

	conn, resp, err := w.dialer.DialContext(ctx, w.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		w.setState(StateDisconnected)
		msg := fmt.Sprintf("failed to connect to %s", w.url)
		if resp != nil {
			msg = fmt.Sprintf("%s (HTTP %d)", msg, resp.StatusCode)
		}
		return classify(ctx, err, msg)
	}

	conn.SetReadLimit(MaxResponseSize)
	w.conn = conn
	w.setState(StateConnected)
	logging.LogConnection(w.url, "websocket_connected")
	return nil
}

// Close sends a close frame and closes the connection.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		w.setState(StateClosed)
		return nil
	}

	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	w.setState(StateClosed)
	logging.LogConnection(w.url, "websocket_closed")
	return err
}

// Exchange sends cmd as a binary message and returns the next binary
// message. A failed read leaves the connection unusable, so any read error
// drops it.
func (w *WebSocket) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireConnected(); err != nil {
		return nil, err
	}
	conn := w.conn

	deadline := exchangeDeadline(ctx, w.timeout)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.UnderlyingConn().SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	logging.LogExchange(w.url, "tx", cmd)
	if err := conn.WriteMessage(websocket.BinaryMessage, cmd); err != nil {
		return nil, w.drop(ctx, err, "failed to send command")
	}

	msgType, resp, err := conn.ReadMessage()
	if err != nil {
		return nil, w.drop(ctx, err, "failed to receive response")
	}
	if msgType != websocket.BinaryMessage {
		return nil, ecaterr.NewFramingError("expected a binary message", resp)
	}
	logging.LogExchange(w.url, "rx", resp)

	return resp, nil
}

// drop classifies err and discards the connection. Called with w.mu held.
func (w *WebSocket) drop(ctx context.Context, err error, message string) error {
	e := classify(ctx, err, message)
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		e = ecaterr.NewChannelError(ecaterr.ChannelDisconnected, message, err)
	}

	logging.Warn("WebSocket exchange failed, dropping connection",
		zap.String("url", w.url),
		zap.Error(err),
	)
	_ = w.conn.Close()
	w.conn = nil
	w.setState(StateDisconnected)
	return e
}
