// Package channel provides the opaque request/response byte exchange that
// every device-facing component talks through.
//
// A Channel sends one command and returns one response. It carries no
// protocol knowledge of its own; the mailbox codec and the lifecycle
// validator build and interpret the bytes.
//
// Three transports implement Conn, which adds an explicit connection
// lifecycle:
//
//	tcp://host:34980               raw TCP, one response per read
//	ws://host:8080/ecat            WebSocket binary messages
//	serial:///dev/ttyUSB0?baud=115200
//	                               serial line, 16-bit length-prefixed frames
//
// Every transport checks that it is connected before sending, bounds each
// exchange with a timeout (DefaultTimeout unless overridden, shortened by a
// context deadline), and reports failures as ecaterr Channel errors with a
// Disconnected, Timeout, IO or Framing subtype. Nothing here retries.
//
// A Channel is not safe for concurrent exchanges. Wrap it with Serialized
// when several validators share one connection.
//
// Connection state can be polled with State or observed by registering a
// callback with OnStateChange.
package channel
