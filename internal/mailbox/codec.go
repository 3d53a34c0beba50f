package mailbox

import (
	"encoding/binary"
	"fmt"

	"github.com/muurk/ecatcheck/internal/ecaterr"
)

// Operation tags
const (
	OpRead  = 0x02
	OpWrite = 0x03
)

// Response status values
const (
	StatusSuccess = 0x00
	StatusAbort   = 0x80
)

// Frame layout constants
const (
	HeaderLen       = 5
	RequestFrameLen = 20
	MaxFrameSize    = 1024
	MaxPayloadSize  = MaxFrameSize - HeaderLen

	FieldOffset         = 4
	MinReadResponseLen  = 5
	MinWordResponseLen  = 8
	MinDWordResponseLen = 10
)

// Identity object
const (
	IdentityIndex       = 0x1018
	VendorIDSubIndex    = 0x01
	ProductCodeSubIndex = 0x02
	RevisionSubIndex    = 0x03
	SerialSubIndex      = 0x04
)

// Request is a decoded SDO command
type Request struct {
	Op       byte
	Node     uint8
	Index    uint16
	SubIndex uint8
	Payload  []byte
}

// Response is a decoded, successful SDO response
type Response struct {
	Status   byte
	Index    uint16
	SubIndex uint8
	Data     []byte
	Raw      []byte
}

// BuildReadRequest encodes an SDO read of index/subindex for node.
//
// Frame Structure:
//
//	[0]     0x02       OpRead
//	[1]     node
//	[2-3]   index      big-endian
//	[4]     subindex
//	[5-19]  zero padding
func BuildReadRequest(node uint8, index uint16, subIndex uint8) []byte {
	frame := make([]byte, RequestFrameLen)
	frame[0] = OpRead
	frame[1] = node
	binary.BigEndian.PutUint16(frame[2:4], index)
	frame[4] = subIndex
	return frame
}

// BuildWriteRequest encodes an SDO write of payload to index/subindex.
// The payload follows the 5-byte header directly.
//
// Returns an error if the frame would exceed MaxFrameSize.
func BuildWriteRequest(node uint8, index uint16, subIndex uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, ecaterr.NewValidationError(
			fmt.Sprintf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize))
	}

	frame := make([]byte, HeaderLen+len(payload))
	frame[0] = OpWrite
	frame[1] = node
	binary.BigEndian.PutUint16(frame[2:4], index)
	frame[4] = subIndex
	copy(frame[HeaderLen:], payload)
	return frame, nil
}

// ParseRequest decodes a request frame. Padding after a read header is
// ignored; everything after a write header is payload.
func ParseRequest(frame []byte) (*Request, error) {
	if len(frame) < HeaderLen {
		return nil, ecaterr.NewFramingError(
			fmt.Sprintf("request too short: %d bytes (minimum %d)", len(frame), HeaderLen), frame)
	}

	req := &Request{
		Op:       frame[0],
		Node:     frame[1],
		Index:    binary.BigEndian.Uint16(frame[2:4]),
		SubIndex: frame[4],
	}

	switch req.Op {
	case OpRead:
	case OpWrite:
		req.Payload = append([]byte(nil), frame[HeaderLen:]...)
	default:
		return nil, ecaterr.NewFramingError(fmt.Sprintf("unknown mailbox operation 0x%02X", req.Op), frame)
	}

	return req, nil
}

// IsSuccess reports whether resp is long enough to trust and carries the
// success status.
func IsSuccess(resp []byte) bool {
	return len(resp) >= MinReadResponseLen && resp[0] == StatusSuccess
}

// ParseResponse decodes a response frame. Short frames are a channel
// framing error; a non-zero status is a ProtocolNack with the raw bytes.
func ParseResponse(resp []byte) (*Response, error) {
	if len(resp) < MinReadResponseLen {
		return nil, ecaterr.NewFramingError(
			fmt.Sprintf("response too short: %d bytes (minimum %d)", len(resp), MinReadResponseLen), resp)
	}

	if resp[0] != StatusSuccess {
		msg := fmt.Sprintf("device rejected request (status 0x%02X)", resp[0])
		if code, ok := AbortCodeOf(resp); ok {
			msg = fmt.Sprintf("%s: abort 0x%08X %s", msg, code, AbortCodeText(code))
		}
		return nil, ecaterr.NewProtocolNack(msg, resp)
	}

	raw := append([]byte(nil), resp...)
	return &Response{
		Status:   raw[0],
		Index:    binary.BigEndian.Uint16(raw[1:3]),
		SubIndex: raw[3],
		Data:     raw[FieldOffset:],
		Raw:      raw,
	}, nil
}

// BuildResponse encodes a response frame. Data shorter than pad bytes is
// zero-padded so that 16- and 32-bit fields can always be decoded.
func BuildResponse(status byte, index uint16, subIndex uint8, data []byte, pad int) []byte {
	n := FieldOffset + len(data)
	if n < pad {
		n = pad
	}
	if n < MinReadResponseLen {
		n = MinReadResponseLen
	}

	resp := make([]byte, n)
	resp[0] = status
	binary.BigEndian.PutUint16(resp[1:3], index)
	resp[3] = subIndex
	copy(resp[FieldOffset:], data)
	return resp
}

// BuildAbortResponse encodes a rejection carrying a CoE abort code.
func BuildAbortResponse(index uint16, subIndex uint8, code uint32) []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, code)
	return BuildResponse(StatusAbort, index, subIndex, data, MinWordResponseLen)
}

// DecodeWord extracts the little-endian uint16 at FieldOffset. The response
// must be at least MinWordResponseLen bytes.
func DecodeWord(resp []byte) (uint16, error) {
	if len(resp) < MinWordResponseLen {
		return 0, ecaterr.NewFramingError(
			fmt.Sprintf("response too short for 16-bit field: %d bytes (minimum %d)", len(resp), MinWordResponseLen), resp)
	}
	return binary.LittleEndian.Uint16(resp[FieldOffset:]), nil
}

// DecodeDWord extracts the little-endian uint32 at FieldOffset. The response
// must be at least MinDWordResponseLen bytes.
func DecodeDWord(resp []byte) (uint32, error) {
	if len(resp) < MinDWordResponseLen {
		return 0, ecaterr.NewFramingError(
			fmt.Sprintf("response too short for 32-bit field: %d bytes (minimum %d)", len(resp), MinDWordResponseLen), resp)
	}
	return binary.LittleEndian.Uint32(resp[FieldOffset:]), nil
}
