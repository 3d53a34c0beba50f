// Package lifecycle drives and checks device state transitions.
//
// A device moves Init -> PreOperational -> SafeOperational -> Operational.
// Boot is reachable only by an explicit request and never appears in the
// standard walk.
//
// # Transition command
//
//	[0]     0x01       state-transition op
//	[1]     from       numeric State
//	[2]     to         numeric State
//	[3-15]  zero padding
//
// A transition is accepted when the response is at least 4 bytes long and
// byte 3 equals the requested target state.
package lifecycle
