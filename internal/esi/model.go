package esi

import "strings"

// Role vocabulary for sync manager and PDO directions. Matching is
// case-insensitive.
const (
	RoleInput  = "Input"
	RoleOutput = "Output"
)

// Direction is the data direction of a sync manager or PDO mapping
type Direction int

const (
	DirectionUnspecified Direction = iota
	DirectionInput
	DirectionOutput
)

// ParseDirection maps direction text onto a Direction, ignoring case only.
// Element text is already trimmed by the reader.
func ParseDirection(text string) Direction {
	switch {
	case strings.EqualFold(text, RoleInput):
		return DirectionInput
	case strings.EqualFold(text, RoleOutput):
		return DirectionOutput
	default:
		return DirectionUnspecified
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return RoleInput
	case DirectionOutput:
		return RoleOutput
	default:
		return "Unspecified"
	}
}

// Profile is a parsed ESI device description.
// A Profile is immutable once returned by Parse; callers must not modify it.
type Profile struct {
	VendorID      uint16 `json:"vendorId" yaml:"vendorId"`
	ProductCode   uint32 `json:"productCode" yaml:"productCode"`
	RevisionNo    uint16 `json:"revisionNo" yaml:"revisionNo"`
	OrderCode     string `json:"orderCode,omitempty" yaml:"orderCode,omitempty"`
	DeviceName    string `json:"deviceName,omitempty" yaml:"deviceName,omitempty"`
	SchemaVersion string `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`

	ObjectDictionary []ObjectEntry `json:"objectDictionary" yaml:"objectDictionary"`
	SyncManagers     []SyncManager `json:"syncManagers" yaml:"syncManagers"`
	PDOMappings      []PDOMapping  `json:"pdoMappings" yaml:"pdoMappings"`
}

// ObjectEntry is one object of the CoE object dictionary
type ObjectEntry struct {
	Index      uint16          `json:"index" yaml:"index"`
	Name       string          `json:"name" yaml:"name"`
	ObjectType string          `json:"objectType" yaml:"objectType"`
	DataType   string          `json:"dataType" yaml:"dataType"`
	SubIndices []SubIndexEntry `json:"subIndices,omitempty" yaml:"subIndices,omitempty"`
}

// SubIndexEntry is one subindex of an ObjectEntry
type SubIndexEntry struct {
	SubIndex uint8  `json:"subIndex" yaml:"subIndex"`
	Name     string `json:"name" yaml:"name"`
	DataType string `json:"dataType" yaml:"dataType"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
}

// SyncManager describes one sync manager channel
type SyncManager struct {
	Index         uint8     `json:"index" yaml:"index"`
	Name          string    `json:"name" yaml:"name"`
	Direction     Direction `json:"-" yaml:"-"`
	DirectionText string    `json:"direction" yaml:"direction"`
	WatchdogMode  string    `json:"watchdogMode" yaml:"watchdogMode"`
}

// PDOMapping is a declared group of objects transferred as process data
type PDOMapping struct {
	PDOIndex      uint16     `json:"pdoIndex" yaml:"pdoIndex"`
	Direction     Direction  `json:"-" yaml:"-"`
	DirectionText string     `json:"direction" yaml:"direction"`
	Entries       []PDOEntry `json:"entries" yaml:"entries"`
}

// PDOEntry maps one object subindex into a PDO
type PDOEntry struct {
	ObjectIndex uint16 `json:"objectIndex" yaml:"objectIndex"`
	SubIndex    uint8  `json:"subIndex" yaml:"subIndex"`
	BitLength   int    `json:"bitLength" yaml:"bitLength"`
}

// Object returns the object with the given index.
func (p *Profile) Object(index uint16) (*ObjectEntry, bool) {
	for i := range p.ObjectDictionary {
		if p.ObjectDictionary[i].Index == index {
			return &p.ObjectDictionary[i], true
		}
	}
	return nil, false
}

// SyncManager returns the sync manager with the given index.
func (p *Profile) SyncManager(index uint8) (*SyncManager, bool) {
	for i := range p.SyncManagers {
		if p.SyncManagers[i].Index == index {
			return &p.SyncManagers[i], true
		}
	}
	return nil, false
}

// TotalSubIndices counts subindices across the whole object dictionary.
func (p *Profile) TotalSubIndices() int {
	n := 0
	for _, obj := range p.ObjectDictionary {
		n += len(obj.SubIndices)
	}
	return n
}

// TotalPDOEntries counts entries across all PDO mappings.
func (p *Profile) TotalPDOEntries() int {
	n := 0
	for _, pdo := range p.PDOMappings {
		n += len(pdo.Entries)
	}
	return n
}
