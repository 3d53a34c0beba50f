// Package ecaterr defines the error kinds shared by the verification core.
//
// Every failure surfaced by the parser, the configuration-memory image, the
// channel transports and the protocol validators is an *Error carrying one of
// these kinds:
//   - MalformedProfile: a required profile element is missing or not numeric
//   - OutOfBounds: an image access would cross the 8192-byte window
//   - Channel: the transport failed (disconnected, timeout, I/O fault, framing)
//   - ProtocolNack: the device answered but rejected the request
//   - Validation: the caller supplied an invalid argument
//
// Use the Is* predicates rather than type assertions; they see through %w
// wrapping:
//
//	if ecaterr.IsTimeout(err) {
//	    // caller-owned retry policy
//	}
//
// The core never retries. The Retryable flag is advisory for callers.
package ecaterr
