// Package simulator provides an in-process EtherCAT gateway for bench work
// and integration tests.
//
// A Device holds an identity, an object dictionary of raw little-endian
// values and an application-layer state. It answers the same command frames
// the verification core sends: mailbox reads and writes (answered with CoE
// abort codes when an object or subindex is missing) and state-transition
// commands (answered with the state actually entered).
//
// # Server
//
// Server exposes one Device over a raw TCP listener and a WebSocket
// endpoint, optionally behind TLS, and can advertise itself over mDNS:
//
//	dev, _ := simulator.FromProfile(profile)
//	srv := simulator.New(&simulator.Config{
//	    TCPAddr: ":34980",
//	    WSAddr:  ":8080",
//	    WSPath:  "/mailbox",
//	}, dev)
//	if err := srv.ListenAndServe(ctx); err != nil {
//	    return err
//	}
//
// ListenAndServe blocks until ctx is cancelled, then closes every listener
// and active connection.
//
// # Transitions
//
// Transitions follow the EtherCAT state machine. Init is reachable from any
// state; every other target must be a legal edge from the current state and
// the command's "from" byte must name the current state. RejectTransitionsTo
// forces a target to be refused, which is how tests exercise partial
// lifecycle failures.
package simulator
