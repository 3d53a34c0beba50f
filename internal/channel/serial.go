package channel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/logging"
)

const (
	// DefaultBaud is the serial line speed used when none is given
	DefaultBaud = 115200

	// serialPoll is the read timeout handed to the port; reads return
	// periodically so the exchange deadline and context are honoured.
	serialPoll = 100 * time.Millisecond

	serialHeaderLen = 2
)

// PortOpener opens a serial port. Tests substitute a fake.
type PortOpener func(cfg *serial.Config) (io.ReadWriteCloser, error)

func openSerialPort(cfg *serial.Config) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Serial is a transport over a serial line. Frames in both directions are
// prefixed with their length as a little-endian uint16.
type Serial struct {
	stateTracker

	name    string
	baud    int
	timeout time.Duration
	open    PortOpener

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewSerial creates an unconnected serial transport for the named device.
func NewSerial(name string, opts ...Option) *Serial {
	o := applyOptions(opts)
	return &Serial{
		name:    name,
		baud:    o.baud,
		timeout: o.timeout,
		open:    openSerialPort,
	}
}

// WithPortOpener replaces the function used to open the port.
func (s *Serial) WithPortOpener(open PortOpener) *Serial {
	s.open = open
	return s
}

// Addr returns the device name and speed.
func (s *Serial) Addr() string {
	return fmt.Sprintf("%s@%d", s.name, s.baud)
}

// Connect opens the port.
func (s *Serial) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return classify(ctx, err, "connect abandoned")
	}

	s.setState(StateConnecting)
	port, err := s.open(&serial.Config{
		Name:        s.name,
		Baud:        s.baud,
		ReadTimeout: serialPoll,
	})
	if err != nil {
		s.setState(StateDisconnected)
		return ecaterr.NewChannelError(ecaterr.ChannelIO, fmt.Sprintf("failed to open %s", s.name), err)
	}

	s.port = port
	s.setState(StateConnected)
	logging.LogConnection(s.Addr(), "connected")
	return nil
}

// Close closes the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		s.setState(StateClosed)
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.setState(StateClosed)
	logging.LogConnection(s.Addr(), "closed")
	return err
}

// Exchange writes one length-prefixed command and reads one
// length-prefixed response.
func (s *Serial) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnected(); err != nil {
		return nil, err
	}
	if len(cmd) > 0xFFFF {
		return nil, ecaterr.NewValidationError(fmt.Sprintf("command of %d bytes exceeds serial frame limit", len(cmd)))
	}

	frame := make([]byte, serialHeaderLen+len(cmd))
	binary.LittleEndian.PutUint16(frame, uint16(len(cmd)))
	copy(frame[serialHeaderLen:], cmd)

	logging.LogExchange(s.Addr(), "tx", cmd)
	if _, err := s.port.Write(frame); err != nil {
		return nil, s.drop(classify(ctx, err, "failed to send command"))
	}

	deadline := exchangeDeadline(ctx, s.timeout)

	header := make([]byte, serialHeaderLen)
	if err := s.readFull(ctx, header, deadline); err != nil {
		return nil, s.drop(err)
	}
	n := int(binary.LittleEndian.Uint16(header))
	if n > MaxResponseSize {
		return nil, s.drop(ecaterr.NewFramingError(fmt.Sprintf("response length %d exceeds limit %d", n, MaxResponseSize), header))
	}

	resp := make([]byte, n)
	if err := s.readFull(ctx, resp, deadline); err != nil {
		return nil, s.drop(err)
	}
	logging.LogExchange(s.Addr(), "rx", resp)

	return resp, nil
}

// drop closes the port after a failed exchange. Unread bytes of a late or
// partial frame would otherwise shift the framing of the next exchange, and
// reopening the port discards them. Called with s.mu held.
func (s *Serial) drop(err error) error {
	logging.Warn("Serial exchange failed, closing port",
		zap.String("port", s.Addr()),
		zap.Error(err),
	)
	_ = s.port.Close()
	s.port = nil
	s.setState(StateDisconnected)
	return err
}

// readFull fills buf, polling the port until the deadline. The port's read
// timeout surfaces as a zero-byte read (with or without io.EOF), which is
// not treated as a fault.
func (s *Serial) readFull(ctx context.Context, buf []byte, deadline time.Time) error {
	got := 0
	for got < len(buf) {
		if err := ctx.Err(); err != nil {
			return classify(ctx, err, "exchange abandoned")
		}
		if time.Now().After(deadline) {
			return ecaterr.NewChannelError(ecaterr.ChannelTimeout,
				fmt.Sprintf("no response within timeout (%d of %d bytes)", got, len(buf)), nil)
		}

		n, err := s.port.Read(buf[got:])
		got += n
		if err != nil && !(n == 0 && errors.Is(err, io.EOF)) {
			return classify(ctx, err, "failed to receive response")
		}
	}
	return nil
}
