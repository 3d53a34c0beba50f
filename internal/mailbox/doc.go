// Package mailbox encodes and decodes the CoE-style SDO commands exchanged
// with a device over a channel.
//
// # Request frame
//
//	[0]     op         0x02 read, 0x03 write
//	[1]     node       node identifier
//	[2-3]   index      object index, big-endian
//	[4]     subindex
//	[5+]    payload    write only
//
// Read requests are zero-padded to RequestFrameLen bytes. Write requests are
// exactly the header followed by the payload.
//
// # Response frame
//
//	[0]     status     0x00 success, anything else is a rejection
//	[1-3]   echo       index and subindex as sent
//	[4+]    data       value (success) or 32-bit abort code (rejection)
//
// A response shorter than MinReadResponseLen is a framing error; a
// rejection is an ecaterr ProtocolNack carrying the raw bytes. Identity
// fields need longer responses: MinWordResponseLen for a 16-bit value and
// MinDWordResponseLen for a 32-bit value, both little-endian at FieldOffset.
//
// Every exchange is one request and one response. There is no segmented
// transfer, so a value must fit one frame, and nothing is retried.
package mailbox
