package esi

import "fmt"

// Severity of a structural issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one structural problem found in a profile document
type Issue struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Line     int      `json:"line" yaml:"line"`
	Column   int      `json:"column" yaml:"column"`
}

func (i Issue) String() string {
	if i.Line == 0 {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: %s at line %d, position %d", i.Severity, i.Message, i.Line, i.Column)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// field describes one required field of a profile element.
// bits is zero for free text.
type field struct {
	name string
	attr bool
	bits int
}

var (
	deviceInfoFields = []field{
		{name: "VendorID", bits: 16},
		{name: "ProductCode", bits: 32},
		{name: "RevisionNo", bits: 16},
	}
	objectEntryFields = []field{
		{name: "Index", attr: true, bits: 16},
		{name: "Name"},
		{name: "ObjectType"},
		{name: "DataType"},
	}
	subIndexFields = []field{
		{name: "SubIndex", attr: true, bits: 8},
		{name: "Name"},
		{name: "DataType"},
	}
	syncManagerFields = []field{
		{name: "Index", attr: true, bits: 8},
		{name: "Name"},
		{name: "Direction"},
		{name: "WatchdogMode"},
	}
	pdoMappingFields = []field{
		{name: "PDOIndex", attr: true, bits: 16},
		{name: "Direction"},
	}
	pdoEntryFields = []field{
		{name: "ObjectIndex", attr: true, bits: 16},
		{name: "SubIndex", attr: true, bits: 8},
		{name: "BitLength", attr: true, bits: 31},
	}
)

type checker struct {
	issues []Issue
}

func (c *checker) add(sev Severity, el *Element, format string, args ...any) {
	c.issues = append(c.issues, Issue{
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Line:     el.Line,
		Column:   el.Column,
	})
}

func (c *checker) fields(el *Element, fields []field) {
	for _, f := range fields {
		if f.attr {
			v, ok := el.Attr(f.name)
			if !ok {
				c.add(SeverityError, el, "%s: required attribute %s is missing", el.Name, f.name)
				continue
			}
			if _, err := ParseUint(v, f.bits); err != nil {
				c.add(SeverityError, el, "%s/@%s: %v", el.Name, f.name, err)
			}
			continue
		}

		child := el.Child(f.name)
		if child == nil {
			c.add(SeverityError, el, "%s: required element %s is missing", el.Name, f.name)
			continue
		}
		if f.bits > 0 {
			if _, err := ParseUint(child.Text, f.bits); err != nil {
				c.add(SeverityError, child, "%s/%s: %v", el.Name, f.name, err)
			}
		}
	}
}

func (c *checker) direction(el *Element) {
	child := el.Child("Direction")
	if child == nil {
		return
	}
	if ParseDirection(child.Text) == DirectionUnspecified {
		c.add(SeverityWarning, child, "%s: unrecognised direction %q (expected %s or %s)", el.Name, child.Text, RoleInput, RoleOutput)
	}
}

// CheckStructure reports structural problems in a profile document without
// stopping at the first one. A document without error-severity issues
// parses successfully.
func CheckStructure(root *Element) []Issue {
	c := &checker{}

	if root == nil {
		return []Issue{{Severity: SeverityError, Message: "document is empty"}}
	}

	if root.Name != elemRoot {
		c.add(SeverityError, root, "root element must be %s, found %s", elemRoot, root.Name)
	}
	if _, ok := root.Attr(attrVersion); !ok {
		c.add(SeverityWarning, root, "root element has no %s attribute", attrVersion)
	}
	if desc := root.Child("Descriptions"); desc == nil || desc.Child("Devices") == nil || desc.Child("Devices").Child("Device") == nil {
		c.add(SeverityWarning, root, "Descriptions/Devices/Device not found")
	}

	if info := root.Find(elemDeviceInfo); info == nil {
		c.add(SeverityError, root, "required element %s is missing", elemDeviceInfo)
	} else {
		c.fields(info, deviceInfoFields)
	}

	seen := make(map[uint64]bool)
	for _, obj := range root.Descendants(elemObjectEntry) {
		c.fields(obj, objectEntryFields)
		if v, ok := obj.Attr("Index"); ok {
			if idx, err := ParseUint(v, 16); err == nil {
				if seen[idx] {
					c.add(SeverityError, obj, "%s: duplicate index 0x%04X", elemObjectEntry, idx)
				}
				seen[idx] = true
			}
		}

		subSeen := make(map[uint64]bool)
		for _, sub := range obj.Descendants(elemSubIndex) {
			c.fields(sub, subIndexFields)
			if v, ok := sub.Attr("SubIndex"); ok {
				if si, err := ParseUint(v, 8); err == nil {
					if subSeen[si] {
						c.add(SeverityError, sub, "%s: duplicate subindex 0x%02X", elemSubIndex, si)
					}
					subSeen[si] = true
				}
			}
		}
	}

	for _, sm := range root.Descendants(elemSyncManager) {
		c.fields(sm, syncManagerFields)
		c.direction(sm)
	}

	for _, pdo := range root.Descendants(elemPDOMapping) {
		c.fields(pdo, pdoMappingFields)
		c.direction(pdo)
		for _, entry := range pdo.Descendants(elemPDOEntry) {
			c.fields(entry, pdoEntryFields)
		}
	}

	return c.issues
}
