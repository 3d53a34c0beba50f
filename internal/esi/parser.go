package esi

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/logging"
)

// Element names used by the parser
const (
	elemRoot        = "EtherCATInfo"
	elemDeviceInfo  = "DeviceInfo"
	elemObjectEntry = "ObjectEntry"
	elemSubIndex    = "SubIndex"
	elemSyncManager = "SyncManager"
	elemPDOMapping  = "PDOMapping"
	elemPDOEntry    = "PDOEntry"

	attrVersion = "version"
)

// fieldReader pulls required and optional fields out of one element and
// remembers the first failure.
type fieldReader struct {
	el   *Element
	path string
	err  error
}

func newFieldReader(el *Element, path string) *fieldReader {
	return &fieldReader{el: el, path: path}
}

func (r *fieldReader) fail(format string, args ...any) {
	if r.err != nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if r.el.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, r.el.Line)
	}
	r.err = ecaterr.NewMalformedProfile(msg, nil)
}

func (r *fieldReader) text(name string) string {
	if r.err != nil {
		return ""
	}
	v, ok := r.el.ChildText(name)
	if !ok {
		r.fail("%s/%s: required element is missing", r.path, name)
	}
	return v
}

func (r *fieldReader) optionalText(name string) string {
	v, _ := r.el.ChildText(name)
	return v
}

func (r *fieldReader) number(name string, bits int) uint64 {
	if r.err != nil {
		return 0
	}
	c := r.el.Child(name)
	if c == nil {
		r.fail("%s/%s: required element is missing", r.path, name)
		return 0
	}
	v, err := ParseUint(c.Text, bits)
	if err != nil {
		r.fail("%s/%s: %v", r.path, name, err)
	}
	return v
}

func (r *fieldReader) attrNumber(name string, bits int) uint64 {
	if r.err != nil {
		return 0
	}
	s, ok := r.el.Attr(name)
	if !ok {
		r.fail("%s/@%s: required attribute is missing", r.path, name)
		return 0
	}
	v, err := ParseUint(s, bits)
	if err != nil {
		r.fail("%s/@%s: %v", r.path, name, err)
	}
	return v
}

// Parse builds a Profile from a document tree. It does no I/O and always
// returns the same Profile for the same tree.
func Parse(root *Element) (*Profile, error) {
	if root == nil {
		return nil, ecaterr.NewMalformedProfile("document is empty", nil)
	}

	info := root.Find(elemDeviceInfo)
	if info == nil {
		return nil, ecaterr.NewMalformedProfile(elemDeviceInfo+": required element is missing", nil)
	}

	r := newFieldReader(info, elemDeviceInfo)
	p := &Profile{
		VendorID:    uint16(r.number("VendorID", 16)),
		ProductCode: uint32(r.number("ProductCode", 32)),
		RevisionNo:  uint16(r.number("RevisionNo", 16)),
		OrderCode:   r.optionalText("OrderCode"),
		DeviceName:  r.optionalText("Name"),
	}
	if r.err != nil {
		return nil, r.err
	}
	p.SchemaVersion, _ = root.Attr(attrVersion)

	var err error
	if p.ObjectDictionary, err = parseObjectDictionary(root); err != nil {
		return nil, err
	}
	if p.SyncManagers, err = parseSyncManagers(root); err != nil {
		return nil, err
	}
	if p.PDOMappings, err = parsePDOMappings(root); err != nil {
		return nil, err
	}

	logging.Debug("ESI profile parsed",
		zap.String("vendor_id", FormatHex(uint64(p.VendorID), 4)),
		zap.String("product_code", FormatHex(uint64(p.ProductCode), 8)),
		zap.Int("objects", len(p.ObjectDictionary)),
		zap.Int("sync_managers", len(p.SyncManagers)),
		zap.Int("pdo_mappings", len(p.PDOMappings)),
	)

	return p, nil
}

func parseObjectDictionary(root *Element) ([]ObjectEntry, error) {
	elems := root.Descendants(elemObjectEntry)
	entries := make([]ObjectEntry, 0, len(elems))
	seen := make(map[uint16]int, len(elems))

	for i, el := range elems {
		path := fmt.Sprintf("%s[%d]", elemObjectEntry, i)
		r := newFieldReader(el, path)

		entry := ObjectEntry{
			Index:      uint16(r.attrNumber("Index", 16)),
			Name:       r.text("Name"),
			ObjectType: r.text("ObjectType"),
			DataType:   r.text("DataType"),
		}
		if r.err != nil {
			return nil, r.err
		}

		if prev, dup := seen[entry.Index]; dup {
			r.fail("%s: duplicate index 0x%04X (first declared by %s[%d])", path, entry.Index, elemObjectEntry, prev)
			return nil, r.err
		}
		seen[entry.Index] = i

		subs, err := parseSubIndices(el, path)
		if err != nil {
			return nil, err
		}
		entry.SubIndices = subs

		entries = append(entries, entry)
	}

	return entries, nil
}

func parseSubIndices(obj *Element, objPath string) ([]SubIndexEntry, error) {
	elems := obj.Descendants(elemSubIndex)
	if len(elems) == 0 {
		return nil, nil
	}

	subs := make([]SubIndexEntry, 0, len(elems))
	seen := make(map[uint8]bool, len(elems))

	for i, el := range elems {
		path := fmt.Sprintf("%s/%s[%d]", objPath, elemSubIndex, i)
		r := newFieldReader(el, path)

		sub := SubIndexEntry{
			SubIndex: uint8(r.attrNumber("SubIndex", 8)),
			Name:     r.text("Name"),
			DataType: r.text("DataType"),
			Value:    r.optionalText("Value"),
		}
		if r.err != nil {
			return nil, r.err
		}

		if seen[sub.SubIndex] {
			r.fail("%s: duplicate subindex 0x%02X", path, sub.SubIndex)
			return nil, r.err
		}
		seen[sub.SubIndex] = true

		subs = append(subs, sub)
	}

	return subs, nil
}

func parseSyncManagers(root *Element) ([]SyncManager, error) {
	elems := root.Descendants(elemSyncManager)
	sms := make([]SyncManager, 0, len(elems))

	for i, el := range elems {
		r := newFieldReader(el, fmt.Sprintf("%s[%d]", elemSyncManager, i))

		sm := SyncManager{
			Index:         uint8(r.attrNumber("Index", 8)),
			Name:          r.text("Name"),
			DirectionText: r.text("Direction"),
			WatchdogMode:  r.text("WatchdogMode"),
		}
		if r.err != nil {
			return nil, r.err
		}
		sm.Direction = ParseDirection(sm.DirectionText)

		sms = append(sms, sm)
	}

	return sms, nil
}

func parsePDOMappings(root *Element) ([]PDOMapping, error) {
	elems := root.Descendants(elemPDOMapping)
	pdos := make([]PDOMapping, 0, len(elems))

	for i, el := range elems {
		path := fmt.Sprintf("%s[%d]", elemPDOMapping, i)
		r := newFieldReader(el, path)

		pdo := PDOMapping{
			PDOIndex:      uint16(r.attrNumber("PDOIndex", 16)),
			DirectionText: r.text("Direction"),
		}
		if r.err != nil {
			return nil, r.err
		}
		pdo.Direction = ParseDirection(pdo.DirectionText)

		entryElems := el.Descendants(elemPDOEntry)
		pdo.Entries = make([]PDOEntry, 0, len(entryElems))
		for j, entryEl := range entryElems {
			er := newFieldReader(entryEl, fmt.Sprintf("%s/%s[%d]", path, elemPDOEntry, j))
			entry := PDOEntry{
				ObjectIndex: uint16(er.attrNumber("ObjectIndex", 16)),
				SubIndex:    uint8(er.attrNumber("SubIndex", 8)),
				BitLength:   int(er.attrNumber("BitLength", 31)),
			}
			if er.err != nil {
				return nil, er.err
			}
			pdo.Entries = append(pdo.Entries, entry)
		}

		pdos = append(pdos, pdo)
	}

	return pdos, nil
}

// ParseReader reads a document from r, choosing the format from name, and
// parses it.
func ParseReader(name string, r io.Reader) (*Profile, error) {
	root, err := ReadDocument(name, r)
	if err != nil {
		return nil, err
	}
	return Parse(root)
}

// ParseFile reads and parses the profile at path.
func ParseFile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer f.Close()

	p, err := ParseReader(path, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ValidateDeviceInfoConsistency reports whether the profile identity matches
// the given vendor id and product code.
func ValidateDeviceInfoConsistency(p *Profile, vendorID uint16, productCode uint32) bool {
	match := p.VendorID == vendorID && p.ProductCode == productCode

	logging.Debug("Device info consistency",
		zap.String("profile_vendor_id", FormatHex(uint64(p.VendorID), 4)),
		zap.String("actual_vendor_id", FormatHex(uint64(vendorID), 4)),
		zap.String("profile_product_code", FormatHex(uint64(p.ProductCode), 8)),
		zap.String("actual_product_code", FormatHex(uint64(productCode), 8)),
		zap.Bool("match", match),
	)

	return match
}
