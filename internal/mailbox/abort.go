package mailbox

import (
	"encoding/binary"
	"fmt"
)

// CoE SDO abort codes (ETG.1000.6)
const (
	AbortToggleBit         uint32 = 0x05030000
	AbortTimeout           uint32 = 0x05040000
	AbortUnsupportedAccess uint32 = 0x06010000
	AbortWriteOnly         uint32 = 0x06010001
	AbortReadOnly          uint32 = 0x06010002
	AbortObjectMissing     uint32 = 0x06020000
	AbortTypeMismatch      uint32 = 0x06070010
	AbortSubIndexMissing   uint32 = 0x06090011
	AbortValueRange        uint32 = 0x06090030
	AbortGeneral           uint32 = 0x08000000
	AbortDeviceState       uint32 = 0x08000022
)

var abortText = map[uint32]string{
	AbortToggleBit:         "toggle bit not changed",
	AbortTimeout:           "SDO protocol timeout",
	AbortUnsupportedAccess: "unsupported access to an object",
	AbortWriteOnly:         "attempt to read a write-only object",
	AbortReadOnly:          "attempt to write a read-only object",
	AbortObjectMissing:     "object does not exist in the object dictionary",
	AbortTypeMismatch:      "data type does not match, length of service parameter does not match",
	AbortSubIndexMissing:   "subindex does not exist",
	AbortValueRange:        "value range of parameter exceeded",
	AbortGeneral:           "general error",
	AbortDeviceState:       "data cannot be transferred because of the present device state",
}

// AbortCodeOf extracts the abort code from a rejected response.
func AbortCodeOf(resp []byte) (uint32, bool) {
	if len(resp) < MinWordResponseLen || resp[0] == StatusSuccess {
		return 0, false
	}
	return binary.LittleEndian.Uint32(resp[FieldOffset:]), true
}

// AbortCodeText describes an abort code.
func AbortCodeText(code uint32) string {
	if s, ok := abortText[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown abort code 0x%08X", code)
}
