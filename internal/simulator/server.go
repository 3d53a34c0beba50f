package simulator

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/discovery"
	"github.com/muurk/ecatcheck/internal/logging"
	"github.com/muurk/ecatcheck/internal/mailbox"
)

const (
	// ShutdownTimeout bounds how long Shutdown waits for handlers
	ShutdownTimeout = 10 * time.Second

	// DefaultWSPath is served when Config.WSPath is empty
	DefaultWSPath = "/"

	readBufferSize = 2 * mailbox.MaxFrameSize
)

// Config holds the server configuration
type Config struct {
	TCPAddr   string      // Raw TCP listen address (empty = disabled)
	WSAddr    string      // WebSocket listen address (empty = disabled)
	WSPath    string      // WebSocket endpoint path
	TLSConfig *tls.Config // Serve WebSocket as wss:// when set
	Advertise string      // mDNS instance name (empty = not advertised)
}

// Server exposes a Device over TCP and WebSocket.
type Server struct {
	config   *Config
	device   *Device
	upgrader websocket.Upgrader

	tcpListener net.Listener
	wsListener  net.Listener
	httpServer  *http.Server
	adverts     []*discovery.Advertisement

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]io.Closer
	closed      bool
}

// New creates a server for device. Nothing listens until Start.
func New(config *Config, device *Device) *Server {
	if config.WSPath == "" {
		config.WSPath = DefaultWSPath
	}
	return &Server{
		config: config,
		device: device,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: readBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		activeConns: make(map[string]io.Closer),
	}
}

// Device returns the simulated device.
func (s *Server) Device() *Device {
	return s.device
}

// Start opens the configured listeners and begins serving in the
// background.
func (s *Server) Start() error {
	if s.config.TCPAddr == "" && s.config.WSAddr == "" {
		return errors.New("no listen address configured")
	}

	if s.config.TCPAddr != "" {
		l, err := net.Listen("tcp", s.config.TCPAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.config.TCPAddr, err)
		}
		s.tcpListener = l
		logging.Info("Simulator listening for TCP connections", zap.String("addr", l.Addr().String()))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.acceptConnections(l)
		}()
	}

	if s.config.WSAddr != "" {
		l, err := net.Listen("tcp", s.config.WSAddr)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("failed to listen on %s: %w", s.config.WSAddr, err)
		}
		if s.config.TLSConfig != nil {
			l = tls.NewListener(l, s.config.TLSConfig)
		}
		s.wsListener = l

		mux := http.NewServeMux()
		mux.HandleFunc(s.config.WSPath, s.handleWebSocket)
		s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		logging.Info("Simulator listening for WebSocket connections", zap.String("url", s.WSURL()))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("WebSocket server stopped", zap.Error(err))
			}
		}()
	}

	if s.config.Advertise != "" {
		if err := s.advertise(); err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}
	return nil
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	logging.Info("Shutdown signal received, stopping simulator...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// TCPAddr returns the bound TCP address, or "" when TCP is disabled.
func (s *Server) TCPAddr() string {
	if s.tcpListener == nil {
		return ""
	}
	return s.tcpListener.Addr().String()
}

// WSURL returns the WebSocket endpoint URL, or "" when WebSocket is
// disabled.
func (s *Server) WSURL() string {
	if s.wsListener == nil {
		return ""
	}
	scheme := "ws"
	if s.config.TLSConfig != nil {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, s.wsListener.Addr().String(), s.config.WSPath)
}

func (s *Server) advertise() error {
	id := s.identityMetadata()
	if s.tcpListener != nil {
		meta := map[string]string{discovery.TxtTransport: "tcp"}
		for k, v := range id {
			meta[k] = v
		}
		a, err := discovery.Advertise(s.config.Advertise, listenPort(s.tcpListener), meta)
		if err != nil {
			return err
		}
		s.adverts = append(s.adverts, a)
	}
	if s.wsListener != nil {
		transport := "ws"
		if s.config.TLSConfig != nil {
			transport = "wss"
		}
		meta := map[string]string{
			discovery.TxtTransport: transport,
			discovery.TxtPath:      s.config.WSPath,
		}
		for k, v := range id {
			meta[k] = v
		}
		instance := s.config.Advertise
		if s.tcpListener != nil {
			instance += "-ws"
		}
		a, err := discovery.Advertise(instance, listenPort(s.wsListener), meta)
		if err != nil {
			return err
		}
		s.adverts = append(s.adverts, a)
	}
	logging.Info("Simulator advertised over mDNS", zap.String("instance", s.config.Advertise))
	return nil
}

func (s *Server) identityMetadata() map[string]string {
	meta := make(map[string]string)
	if v, ok := s.device.Get(mailbox.IdentityIndex, mailbox.VendorIDSubIndex); ok && len(v) >= 2 {
		meta[discovery.TxtVendor] = fmt.Sprintf("0x%04X", binary.LittleEndian.Uint16(v))
	}
	if v, ok := s.device.Get(mailbox.IdentityIndex, mailbox.ProductCodeSubIndex); ok && len(v) >= 4 {
		meta[discovery.TxtProduct] = fmt.Sprintf("0x%08X", binary.LittleEndian.Uint32(v))
	}
	return meta
}

// acceptConnections accepts and handles raw TCP connections
func (s *Server) acceptConnections(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection answers one command per read until the peer disconnects
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	if !s.track(remoteAddr, conn) {
		_ = conn.Close()
		return
	}
	defer func() {
		_ = conn.Close()
		s.untrack(remoteAddr)
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logging.Info("Connection closed or error reading command",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		logging.LogExchange(remoteAddr, "rx", buf[:n])
		resp := s.device.Handle(buf[:n])
		if resp == nil {
			continue
		}
		logging.LogExchange(remoteAddr, "tx", resp)
		if _, err := conn.Write(resp); err != nil {
			logging.Error("Failed to send response",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			return
		}
	}
}

// handleWebSocket upgrades the request and answers each binary message
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	remoteAddr := r.RemoteAddr
	if !s.track(remoteAddr, conn) {
		_ = conn.Close()
		return
	}
	defer func() {
		_ = conn.Close()
		s.untrack(remoteAddr)
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	logging.LogConnection(remoteAddr, "websocket_upgraded")
	conn.SetReadLimit(readBufferSize)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Connection closed or error reading message",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			logging.Warn("Ignoring non-binary message", zap.String("remote_addr", remoteAddr))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("binary messages only")); err != nil {
				return
			}
			continue
		}

		logging.LogExchange(remoteAddr, "rx", msg)
		resp := s.device.Handle(msg)
		if resp == nil {
			continue
		}
		logging.LogExchange(remoteAddr, "tx", resp)
		if err := conn.WriteMessage(websocket.BinaryMessage, resp); err != nil {
			logging.Error("Failed to send response",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			return
		}
	}
}

// track registers an active connection and counts it in s.wg. It refuses
// once Shutdown has begun.
func (s *Server) track(addr string, c io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.activeConns[addr] = c
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(addr string) {
	s.mu.Lock()
	delete(s.activeConns, addr)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) closeListeners() {
	if s.tcpListener != nil {
		if err := s.tcpListener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	} else if s.wsListener != nil {
		_ = s.wsListener.Close()
	}
}

// Shutdown stops accepting connections, closes active ones and waits for
// their handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down simulator...")

	for _, a := range s.adverts {
		a.Shutdown()
	}
	s.adverts = nil

	s.closeListeners()

	s.mu.Lock()
	s.closed = true
	for addr, conn := range s.activeConns {
		logging.Debug("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
		return nil
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		return ctx.Err()
	}
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func listenPort(l net.Listener) int {
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	_, port, _ := net.SplitHostPort(l.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}
