package ecaterr

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// Kind represents the category of error that occurred
type Kind int

const (
	// KindMalformedProfile indicates a missing or invalid required field in a device profile
	KindMalformedProfile Kind = iota
	// KindOutOfBounds indicates a configuration-memory access outside the fixed image window
	KindOutOfBounds
	// KindChannel indicates a transport failure (disconnected, timeout, I/O fault, bad framing)
	KindChannel
	// KindProtocolNack indicates a well-formed response in which the device rejected the request
	KindProtocolNack
	// KindValidation indicates an invalid argument supplied by the caller
	KindValidation
)

// ChannelSubtype provides more specific channel error classification
type ChannelSubtype int

const (
	ChannelGeneral ChannelSubtype = iota
	ChannelDisconnected
	ChannelTimeout
	ChannelIO
	ChannelFraming
)

// String returns a human-readable name for the error kind
func (k Kind) String() string {
	switch k {
	case KindMalformedProfile:
		return "Malformed Profile"
	case KindOutOfBounds:
		return "Out Of Bounds"
	case KindChannel:
		return "Channel Error"
	case KindProtocolNack:
		return "Protocol NACK"
	case KindValidation:
		return "Validation Error"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// String returns a human-readable name for the channel subtype
func (s ChannelSubtype) String() string {
	switch s {
	case ChannelDisconnected:
		return "disconnected"
	case ChannelTimeout:
		return "timeout"
	case ChannelIO:
		return "i/o"
	case ChannelFraming:
		return "framing"
	default:
		return "general"
	}
}

// Error represents an error raised by the verification core
type Error struct {
	Kind      Kind           // Category of error
	Message   string         // Human-readable error message
	Err       error          // Underlying error (if any)
	Subtype   ChannelSubtype // Channel error classification (KindChannel only)
	Raw       []byte         // Raw device response (KindProtocolNack, KindChannel framing)
	Retryable bool           // Advisory only: the core itself never retries
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Kind == KindChannel && e.Subtype != ChannelGeneral {
		msg = fmt.Sprintf("%s [%s]", msg, e.Subtype)
	}
	if len(e.Raw) > 0 {
		msg = fmt.Sprintf("%s (response: %s)", msg, hex.EncodeToString(e.Raw))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewMalformedProfile creates a profile parsing error naming the offending element
func NewMalformedProfile(message string, err error) *Error {
	return &Error{
		Kind:    KindMalformedProfile,
		Message: message,
		Err:     err,
	}
}

// NewOutOfBounds creates a configuration-memory bounds error
func NewOutOfBounds(offset, width, size int) *Error {
	return &Error{
		Kind:    KindOutOfBounds,
		Message: fmt.Sprintf("access of %d byte(s) at offset 0x%04X exceeds image size %d", width, offset, size),
	}
}

// NewChannelError creates a channel error with an explicit subtype
func NewChannelError(subtype ChannelSubtype, message string, err error) *Error {
	return &Error{
		Kind:      KindChannel,
		Message:   message,
		Err:       err,
		Subtype:   subtype,
		Retryable: subtype == ChannelTimeout || subtype == ChannelIO,
	}
}

// NewFramingError creates a channel error for a response too short or malformed to trust
func NewFramingError(message string, raw []byte) *Error {
	e := NewChannelError(ChannelFraming, message, nil)
	e.Raw = append([]byte(nil), raw...)
	return e
}

// NewProtocolNack creates an error for a device-side rejection, keeping the raw response
func NewProtocolNack(message string, raw []byte) *Error {
	return &Error{
		Kind:    KindProtocolNack,
		Message: message,
		Raw:     append([]byte(nil), raw...),
	}
}

// NewValidationError creates a caller argument error
func NewValidationError(message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
	}
}

// ClassifyChannelError maps a transport-level error onto a channel error subtype.
// Errors that are already classified are returned unchanged.
func ClassifyChannelError(err error, message string) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return NewChannelError(ChannelTimeout, message, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewChannelError(ChannelTimeout, message, err)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNREFUSED) {
		return NewChannelError(ChannelDisconnected, message, err)
	}

	return NewChannelError(ChannelIO, message, err)
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsMalformedProfile checks if an error is a profile parsing error
func IsMalformedProfile(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindMalformedProfile
}

// IsOutOfBounds checks if an error is a configuration-memory bounds error
func IsOutOfBounds(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindOutOfBounds
}

// IsChannelError checks if an error is a transport-level error
func IsChannelError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindChannel
}

// IsTimeout checks if an error is a channel timeout
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindChannel && e.Subtype == ChannelTimeout
}

// IsDisconnected checks if an error reports a closed or unconnected channel
func IsDisconnected(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindChannel && e.Subtype == ChannelDisconnected
}

// IsProtocolNack checks if an error is a device-side rejection
func IsProtocolNack(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindProtocolNack
}

// IsValidationError checks if an error is a caller argument error
func IsValidationError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindValidation
}

// IsRetryable reports whether a caller may reasonably retry the whole exchange
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// TroubleshootingHint returns user-friendly troubleshooting advice for an error
func TroubleshootingHint(err error) []string {
	var e *Error
	if !errors.As(err, &e) {
		return []string{"An unexpected error occurred. Re-run with --log-level debug for details."}
	}

	switch e.Kind {
	case KindMalformedProfile:
		return []string{
			"The ESI document is missing a required element or attribute.",
			"Run 'ecatcheck esi check <file>' to list structural issues with line numbers",
			"Numbers may be decimal, 0x-prefixed or #x-prefixed hex",
		}
	case KindOutOfBounds:
		return []string{
			"The address range lies outside the 8192-byte SII image.",
			"Valid offsets are 0x0000-0x1FFF; multi-byte accesses must end before 0x2000",
		}
	case KindChannel:
		switch e.Subtype {
		case ChannelTimeout:
			return []string{
				"The device did not answer within the channel timeout.",
				"Check that the gateway is powered and reachable",
				"Increase --timeout for slow gateways",
			}
		case ChannelDisconnected:
			return []string{
				"The channel is not connected or was closed by the peer.",
				"Verify the --device URL (tcp://host:34980, ws://host/path, serial:///dev/ttyUSB0)",
				"Check that no other tool holds the gateway connection",
			}
		case ChannelFraming:
			return []string{
				"The device answered with a response too short to decode.",
				"Confirm the gateway speaks the mailbox command format",
			}
		default:
			return []string{
				"Communication with the gateway failed.",
				"Check cabling or network connectivity",
			}
		}
	case KindProtocolNack:
		return []string{
			"The device rejected the request.",
			"Check the object index/subindex exist in the device's object dictionary",
			"Check the device is in a state that permits mailbox access (PreOperational or higher)",
		}
	case KindValidation:
		return []string{"An argument is invalid. Check the error message for details."}
	default:
		return []string{"Check the error message for details."}
	}
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Kind {
	case KindChannel:
		switch e.Subtype {
		case ChannelTimeout:
			return "Device not responding (timeout)"
		case ChannelDisconnected:
			return "Channel disconnected"
		case ChannelFraming:
			return "Malformed device response"
		default:
			return "Channel error - check connection"
		}
	case KindProtocolNack:
		return "Device rejected request"
	case KindOutOfBounds:
		return "Address out of range"
	default:
		return strings.TrimSpace(e.Message)
	}
}
