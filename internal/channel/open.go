package channel

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/muurk/ecatcheck/internal/ecaterr"
)

// Supported URL schemes
const (
	SchemeTCP    = "tcp"
	SchemeWS     = "ws"
	SchemeWSS    = "wss"
	SchemeSerial = "serial"
)

// New builds an unconnected transport from a device URL:
//
//	tcp://192.168.1.50:34980
//	ws://gateway.local:8080/ecat
//	serial:///dev/ttyUSB0?baud=115200
//
// A bare host or host:port is treated as tcp.
func New(rawURL string, opts ...Option) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		if _, _, splitErr := net.SplitHostPort(rawURL); splitErr == nil || net.ParseIP(rawURL) != nil || isHostname(rawURL) {
			return NewTCP(rawURL, opts...), nil
		}
		return nil, ecaterr.NewValidationError(fmt.Sprintf("invalid device URL %q", rawURL))
	}

	switch u.Scheme {
	case SchemeTCP:
		if u.Host == "" {
			return nil, ecaterr.NewValidationError(fmt.Sprintf("device URL %q has no host", rawURL))
		}
		return NewTCP(u.Host, opts...), nil

	case SchemeWS, SchemeWSS:
		if u.Host == "" {
			return nil, ecaterr.NewValidationError(fmt.Sprintf("device URL %q has no host", rawURL))
		}
		return NewWebSocket(u.String(), opts...), nil

	case SchemeSerial:
		name := u.Path
		if name == "" {
			name = u.Host
		}
		if name == "" {
			return nil, ecaterr.NewValidationError(fmt.Sprintf("device URL %q has no port name", rawURL))
		}
		if b := u.Query().Get("baud"); b != "" {
			baud, err := strconv.Atoi(b)
			if err != nil || baud <= 0 {
				return nil, ecaterr.NewValidationError(fmt.Sprintf("invalid baud rate %q", b))
			}
			opts = append(opts, WithBaud(baud))
		}
		return NewSerial(name, opts...), nil

	default:
		return nil, ecaterr.NewValidationError(fmt.Sprintf("unsupported device URL scheme %q", u.Scheme))
	}
}

// Open builds a transport from a device URL and connects it.
func Open(ctx context.Context, rawURL string, opts ...Option) (Conn, error) {
	conn, err := New(rawURL, opts...)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

func isHostname(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}
