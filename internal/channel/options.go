package channel

import (
	"crypto/tls"
	"time"
)

type options struct {
	timeout   time.Duration
	baud      int
	userAgent string
	tlsConfig *tls.Config
}

// Option configures a transport
type Option func(*options)

// WithTimeout overrides DefaultTimeout for every exchange.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBaud sets the serial line speed.
func WithBaud(baud int) Option {
	return func(o *options) {
		if baud > 0 {
			o.baud = baud
		}
	}
}

// WithUserAgent sets the User-Agent header of the WebSocket handshake.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithTLSConfig sets the client TLS configuration for wss:// endpoints.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

func applyOptions(opts []Option) options {
	o := options{
		timeout: DefaultTimeout,
		baud:    DefaultBaud,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
