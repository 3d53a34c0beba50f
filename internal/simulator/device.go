package simulator

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/lifecycle"
	"github.com/muurk/ecatcheck/internal/logging"
	"github.com/muurk/ecatcheck/internal/mailbox"
)

// Objects every simulated device carries regardless of its profile
const (
	DeviceTypeIndex = 0x1000
	DeviceNameIndex = 0x1008
)

// legal lists the targets reachable from each state, Init excluded.
var legal = map[lifecycle.State][]lifecycle.State{
	lifecycle.StateInit:           {lifecycle.StatePreOperational, lifecycle.StateBoot},
	lifecycle.StatePreOperational: {lifecycle.StateSafeOperational},
	lifecycle.StateSafeOperational: {
		lifecycle.StatePreOperational,
		lifecycle.StateOperational,
	},
	lifecycle.StateOperational: {
		lifecycle.StatePreOperational,
		lifecycle.StateSafeOperational,
	},
}

// Device is a simulated EtherCAT slave. It is safe for concurrent use.
type Device struct {
	mu        sync.Mutex
	node      uint8
	nodeSet   bool
	state     lifecycle.State
	objects   map[uint16]map[uint8][]byte
	readOnly  map[uint16]bool
	rejected  map[lifecycle.State]bool
	exchanges int
}

// NewDevice creates a device in Init with the device type, device name and
// identity objects populated.
func NewDevice(vendorID uint16, productCode uint32, revision uint16) *Device {
	d := &Device{
		state:    lifecycle.StateInit,
		objects:  make(map[uint16]map[uint8][]byte),
		readOnly: make(map[uint16]bool),
		rejected: make(map[lifecycle.State]bool),
	}

	d.objects[DeviceTypeIndex] = map[uint8][]byte{0: make([]byte, 4)}
	d.objects[mailbox.IdentityIndex] = map[uint8][]byte{
		0:                           {4},
		mailbox.VendorIDSubIndex:    le32(uint32(vendorID)),
		mailbox.ProductCodeSubIndex: le32(productCode),
		mailbox.RevisionSubIndex:    le32(uint32(revision)),
		mailbox.SerialSubIndex:      le32(0),
	}
	d.readOnly[DeviceTypeIndex] = true
	d.readOnly[DeviceNameIndex] = true
	d.readOnly[mailbox.IdentityIndex] = true
	return d
}

// FromProfile creates a device whose identity and object dictionary follow p.
// Declared values are encoded by data type; objects without a value read as
// zeros of the type's width.
func FromProfile(p *esi.Profile) (*Device, error) {
	d := NewDevice(p.VendorID, p.ProductCode, p.RevisionNo)
	if p.DeviceName != "" {
		d.objects[DeviceNameIndex] = map[uint8][]byte{0: []byte(p.DeviceName)}
	}

	for _, obj := range p.ObjectDictionary {
		if obj.Index == mailbox.IdentityIndex {
			continue
		}
		subs := make(map[uint8][]byte)
		if len(obj.SubIndices) == 0 {
			subs[0] = make([]byte, typeWidth(obj.DataType))
		}
		for _, si := range obj.SubIndices {
			v, err := encodeValue(si.DataType, si.Value)
			if err != nil {
				return nil, fmt.Errorf("object 0x%04X:%02X: %w", obj.Index, si.SubIndex, err)
			}
			subs[si.SubIndex] = v
		}
		if _, ok := subs[0]; !ok {
			subs[0] = []byte{byte(len(obj.SubIndices))}
		}
		d.objects[obj.Index] = subs
	}

	logging.Debug("Simulated device created from profile",
		zap.String("vendor_id", fmt.Sprintf("0x%04X", p.VendorID)),
		zap.String("product_code", fmt.Sprintf("0x%08X", p.ProductCode)),
		zap.Int("objects", len(d.objects)),
	)
	return d, nil
}

// SetNode restricts mailbox requests to one node address. By default any
// node is answered.
func (d *Device) SetNode(node uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.node = node
	d.nodeSet = true
}

// State returns the current application-layer state.
func (d *Device) State() lifecycle.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetState forces the application-layer state.
func (d *Device) SetState(s lifecycle.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
}

// RejectTransitionsTo makes the device refuse every transition into s.
func (d *Device) RejectTransitionsTo(s lifecycle.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected[s] = true
}

// Set stores a raw value, creating the object when needed.
func (d *Device) Set(index uint16, subIndex uint8, value []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.objects[index] == nil {
		d.objects[index] = make(map[uint8][]byte)
	}
	d.objects[index][subIndex] = append([]byte(nil), value...)
}

// Get returns a copy of a stored value.
func (d *Device) Get(index uint16, subIndex uint8) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.objects[index][subIndex]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// Remove deletes an object, or a single subindex when subIndex is given.
func (d *Device) Remove(index uint16, subIndex ...uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(subIndex) == 0 {
		delete(d.objects, index)
		return
	}
	for _, s := range subIndex {
		delete(d.objects[index], s)
	}
}

// Exchanges returns how many commands the device has answered.
func (d *Device) Exchanges() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exchanges
}

// Handle answers one command frame. It returns nil for an empty frame.
func (d *Device) Handle(cmd []byte) []byte {
	if len(cmd) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.exchanges++

	switch cmd[0] {
	case lifecycle.OpTransition:
		return d.handleTransition(cmd)
	case mailbox.OpRead, mailbox.OpWrite:
		return d.handleMailbox(cmd)
	default:
		logging.Warn("Simulator received unknown command", zap.String("op", fmt.Sprintf("0x%02X", cmd[0])))
		logging.LogRawBytes("Unknown command frame", cmd)
		return mailbox.BuildAbortResponse(0, 0, mailbox.AbortUnsupportedAccess)
	}
}

// handleTransition applies a state-transition command. Called with d.mu held.
func (d *Device) handleTransition(cmd []byte) []byte {
	resp := make([]byte, lifecycle.MinResponseLen)
	if len(cmd) < 3 {
		resp[0] = mailbox.StatusAbort
		resp[lifecycle.StateEchoOffset] = byte(d.state)
		return resp
	}

	from, to := lifecycle.State(cmd[1]), lifecycle.State(cmd[2])
	resp[1], resp[2] = cmd[1], cmd[2]

	if d.allowed(from, to) {
		logging.Debug("Simulator state change",
			zap.Stringer("from", d.state),
			zap.Stringer("to", to),
		)
		d.state = to
	} else {
		resp[0] = mailbox.StatusAbort
		logging.Debug("Simulator refused transition",
			zap.Stringer("current", d.state),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	resp[lifecycle.StateEchoOffset] = byte(d.state)
	return resp
}

func (d *Device) allowed(from, to lifecycle.State) bool {
	if !to.Valid() || d.rejected[to] {
		return false
	}
	if to == lifecycle.StateInit || to == d.state {
		return true
	}
	if from != d.state {
		return false
	}
	for _, s := range legal[d.state] {
		if s == to {
			return true
		}
	}
	return false
}

// handleMailbox answers an SDO read or write. Called with d.mu held.
func (d *Device) handleMailbox(cmd []byte) []byte {
	req, err := mailbox.ParseRequest(cmd)
	if err != nil {
		return mailbox.BuildAbortResponse(0, 0, mailbox.AbortGeneral)
	}
	if d.nodeSet && req.Node != d.node {
		return mailbox.BuildAbortResponse(req.Index, req.SubIndex, mailbox.AbortGeneral)
	}
	if d.state == lifecycle.StateBoot {
		return mailbox.BuildAbortResponse(req.Index, req.SubIndex, mailbox.AbortDeviceState)
	}

	obj, ok := d.objects[req.Index]
	if !ok {
		return mailbox.BuildAbortResponse(req.Index, req.SubIndex, mailbox.AbortObjectMissing)
	}
	value, ok := obj[req.SubIndex]
	if !ok {
		return mailbox.BuildAbortResponse(req.Index, req.SubIndex, mailbox.AbortSubIndexMissing)
	}

	if req.Op == mailbox.OpRead {
		return mailbox.BuildResponse(mailbox.StatusSuccess, req.Index, req.SubIndex, value, mailbox.MinDWordResponseLen)
	}

	if d.readOnly[req.Index] {
		return mailbox.BuildAbortResponse(req.Index, req.SubIndex, mailbox.AbortReadOnly)
	}
	obj[req.SubIndex] = append([]byte(nil), req.Payload...)
	return mailbox.BuildResponse(mailbox.StatusSuccess, req.Index, req.SubIndex, nil, mailbox.MinReadResponseLen)
}

// typeWidth returns the encoded size of an ESI base data type, 0 for
// strings and 4 for anything unrecognised.
func typeWidth(dataType string) int {
	t := strings.ToUpper(strings.TrimSpace(dataType))
	switch {
	case isStringType(t):
		return 0
	case t == "BOOL" || t == "SINT" || t == "USINT" || t == "BYTE" || strings.HasPrefix(t, "BIT"):
		return 1
	case t == "INT" || t == "UINT" || t == "WORD":
		return 2
	case t == "LINT" || t == "ULINT" || t == "LREAL" || t == "LWORD":
		return 8
	default:
		return 4
	}
}

func isStringType(t string) bool {
	return strings.HasPrefix(t, "STRING") || strings.Contains(t, "VISIBLE_STRING") ||
		t == "OCTET_STRING" || t == "UNICODE_STRING"
}

func encodeValue(dataType, value string) ([]byte, error) {
	if isStringType(strings.ToUpper(strings.TrimSpace(dataType))) {
		return []byte(value), nil
	}

	width := typeWidth(dataType)
	buf := make([]byte, 8)
	if strings.TrimSpace(value) != "" {
		v, err := esi.ParseUint(value, width*8)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(buf, v)
	}
	return buf[:width], nil
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
