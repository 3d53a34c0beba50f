package simulator

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/ecatcheck/internal/channel"
	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/identity"
	"github.com/muurk/ecatcheck/internal/lifecycle"
	"github.com/muurk/ecatcheck/internal/mailbox"
)

func startServer(t *testing.T, config *Config, dev *Device) *Server {
	t.Helper()
	srv := New(config, dev)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func connect(t *testing.T, conn channel.Conn) channel.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Connect(ctx))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServerTCPIdentity(t *testing.T) {
	srv := startServer(t, &Config{TCPAddr: "127.0.0.1:0"}, NewDevice(0x0002, 0x1C213052, 0))
	conn := connect(t, channel.NewTCP(srv.TCPAddr(), channel.WithTimeout(2*time.Second)))

	id, err := identity.NewReader(mailbox.NewClient(conn, 0)).Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{VendorID: 0x0002, ProductCode: 0x1C213052}, id)
	assert.Equal(t, 1, srv.GetActiveConnections())
	assert.Empty(t, srv.WSURL())
}

func TestServerTCPMailboxAbort(t *testing.T) {
	srv := startServer(t, &Config{TCPAddr: "127.0.0.1:0"}, NewDevice(1, 1, 0))
	conn := connect(t, channel.NewTCP(srv.TCPAddr(), channel.WithTimeout(2*time.Second)))

	_, err := mailbox.NewClient(conn, 0).Read(context.Background(), 0x6000, 1)
	require.Error(t, err)
	assert.True(t, ecaterr.IsProtocolNack(err))
	assert.Contains(t, err.Error(), "object does not exist")
}

func TestServerWebSocketLifecycle(t *testing.T) {
	srv := startServer(t, &Config{WSAddr: "127.0.0.1:0", WSPath: "/mailbox"}, NewDevice(1, 1, 0))
	require.Contains(t, srv.WSURL(), "ws://127.0.0.1:")
	require.Contains(t, srv.WSURL(), "/mailbox")

	conn := connect(t, channel.NewWebSocket(srv.WSURL(), channel.WithTimeout(2*time.Second)))

	result, err := lifecycle.NewValidator(conn).ValidateFullStateSequence(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Passed)
	require.Len(t, result.Steps, len(lifecycle.StandardSequence)+1)
	assert.True(t, result.Steps[len(result.Steps)-1].Accepted)
	assert.Equal(t, lifecycle.StateInit, srv.Device().State())
}

func TestServerWebSocketRejectedStep(t *testing.T) {
	dev := NewDevice(1, 1, 0)
	dev.RejectTransitionsTo(lifecycle.StateSafeOperational)
	srv := startServer(t, &Config{WSAddr: "127.0.0.1:0"}, dev)

	conn := connect(t, channel.NewWebSocket(srv.WSURL(), channel.WithTimeout(2*time.Second)))

	result, err := lifecycle.NewValidator(conn).ValidateFullStateSequence(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Passed)

	failed := result.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, lifecycle.StateSafeOperational, failed[0].To)
	assert.Equal(t, lifecycle.StateOperational, failed[1].To)
}

func TestServerSecureWebSocket(t *testing.T) {
	cert, err := GenerateSelfSigned("127.0.0.1", "localhost")
	require.NoError(t, err)
	serverTLS, err := NewTLSConfigFromMemory(cert.CertPEM, cert.KeyPEM)
	require.NoError(t, err)

	srv := startServer(t, &Config{WSAddr: "127.0.0.1:0", TLSConfig: serverTLS}, NewDevice(0x0002, 0x44, 0))
	require.Contains(t, srv.WSURL(), "wss://")

	conn := connect(t, channel.NewWebSocket(srv.WSURL(),
		channel.WithTimeout(2*time.Second),
		channel.WithTLSConfig(&tls.Config{RootCAs: cert.Pool(), MinVersion: tls.VersionTLS12}),
	))

	id, err := identity.NewReader(mailbox.NewClient(conn, 0)).Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(0x44), id.ProductCode)
}

func TestServerSecureWebSocketUntrusted(t *testing.T) {
	cert, err := GenerateSelfSigned("127.0.0.1")
	require.NoError(t, err)
	serverTLS, err := NewTLSConfigFromMemory(cert.CertPEM, cert.KeyPEM)
	require.NoError(t, err)

	srv := startServer(t, &Config{WSAddr: "127.0.0.1:0", TLSConfig: serverTLS}, NewDevice(1, 1, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = channel.NewWebSocket(srv.WSURL(), channel.WithTimeout(2*time.Second)).Connect(ctx)
	require.Error(t, err)
	assert.True(t, ecaterr.IsChannelError(err))
}

func TestServerShutdownClosesConnections(t *testing.T) {
	srv := New(&Config{TCPAddr: "127.0.0.1:0"}, NewDevice(1, 1, 0))
	require.NoError(t, srv.Start())

	conn := connect(t, channel.NewTCP(srv.TCPAddr(), channel.WithTimeout(2*time.Second)))
	client := mailbox.NewClient(conn, 0)
	_, err := client.Read(context.Background(), mailbox.IdentityIndex, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Equal(t, 0, srv.GetActiveConnections())

	_, err = client.Read(context.Background(), mailbox.IdentityIndex, 1)
	require.Error(t, err)
	assert.True(t, ecaterr.IsChannelError(err))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv := New(&Config{TCPAddr: "127.0.0.1:0"}, NewDevice(1, 1, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}

func TestStartWithoutAddress(t *testing.T) {
	err := New(&Config{}, NewDevice(1, 1, 0)).Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no listen address")
}

func TestDefaultWSPath(t *testing.T) {
	cfg := &Config{}
	New(cfg, NewDevice(1, 1, 0))
	assert.Equal(t, DefaultWSPath, cfg.WSPath)
}
