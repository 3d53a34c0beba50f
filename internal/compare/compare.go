package compare

import (
	"fmt"

	"github.com/muurk/ecatcheck/internal/esi"
)

// RevisionUnspecified is the profile revision that matches any device.
// There is no live revision readback, so only this value matches.
const RevisionUnspecified uint16 = 0

// MandatoryObjectIndices are the CoE objects every profile must declare:
// device type, error register, device name, identity, configured station
// alias, store parameters, restore parameters and the first RxPDO mapping.
var MandatoryObjectIndices = []uint16{0x1000, 0x1001, 0x1008, 0x1018, 0x1019, 0x1020, 0x1021, 0x1600}

// MandatorySyncManagers are the mailbox-out and mailbox-in sync managers.
var MandatorySyncManagers = []uint8{0, 1}

// Advisory lines for sections the profile leaves empty
const (
	NoObjectDictionary = "ESI file does not contain object dictionary information"
	NoSyncManagers     = "ESI file does not contain sync manager information"
	NoPDOMappings      = "ESI file does not contain PDO mapping information"
)

// Section tags used in OverallDifferences
const (
	TagObjectDictionary = "OD: "
	TagSyncManagers     = "SM: "
	TagPDOMappings      = "PDO: "
)

// Actual is the identity read from, or supplied for, a device.
type Actual struct {
	VendorID    uint16
	ProductCode uint32
	// RevisionNo is reserved for a future revision readback and is
	// ignored by Compare.
	RevisionNo *uint16
}

// BasicInfoDiff compares identity fields.
type BasicInfoDiff struct {
	IsMatch bool `json:"isMatch" yaml:"isMatch" cbor:"1,keyasint"`

	VendorIDExpected uint16 `json:"vendorIdExpected" yaml:"vendorIdExpected" cbor:"2,keyasint"`
	VendorIDActual   uint16 `json:"vendorIdActual" yaml:"vendorIdActual" cbor:"3,keyasint"`
	VendorIDMatch    bool   `json:"vendorIdMatch" yaml:"vendorIdMatch" cbor:"4,keyasint"`

	ProductCodeExpected uint32 `json:"productCodeExpected" yaml:"productCodeExpected" cbor:"5,keyasint"`
	ProductCodeActual   uint32 `json:"productCodeActual" yaml:"productCodeActual" cbor:"6,keyasint"`
	ProductCodeMatch    bool   `json:"productCodeMatch" yaml:"productCodeMatch" cbor:"7,keyasint"`

	RevisionNoExpected uint16 `json:"revisionNoExpected" yaml:"revisionNoExpected" cbor:"8,keyasint"`
	RevisionNoActual   uint16 `json:"revisionNoActual" yaml:"revisionNoActual" cbor:"9,keyasint"`
	RevisionNoMatch    bool   `json:"revisionNoMatch" yaml:"revisionNoMatch" cbor:"10,keyasint"`
}

// ObjectDictionaryDiff reports on the declared object dictionary.
type ObjectDictionaryDiff struct {
	HasDifferences  bool     `json:"hasDifferences" yaml:"hasDifferences" cbor:"1,keyasint"`
	TotalObjects    int      `json:"totalObjects" yaml:"totalObjects" cbor:"2,keyasint"`
	TotalSubIndices int      `json:"totalSubIndices" yaml:"totalSubIndices" cbor:"3,keyasint"`
	Differences     []string `json:"differences" yaml:"differences" cbor:"4,keyasint"`
}

// SyncManagerDiff reports on the declared sync managers.
type SyncManagerDiff struct {
	HasDifferences    bool     `json:"hasDifferences" yaml:"hasDifferences" cbor:"1,keyasint"`
	TotalSyncManagers int      `json:"totalSyncManagers" yaml:"totalSyncManagers" cbor:"2,keyasint"`
	Differences       []string `json:"differences" yaml:"differences" cbor:"3,keyasint"`
}

// PDOMappingDiff reports on the declared PDO mappings.
type PDOMappingDiff struct {
	HasDifferences   bool     `json:"hasDifferences" yaml:"hasDifferences" cbor:"1,keyasint"`
	TotalPDOMappings int      `json:"totalPdoMappings" yaml:"totalPdoMappings" cbor:"2,keyasint"`
	TotalPDOEntries  int      `json:"totalPdoEntries" yaml:"totalPdoEntries" cbor:"3,keyasint"`
	Differences      []string `json:"differences" yaml:"differences" cbor:"4,keyasint"`
}

// DiffResult is the full comparison. It is built fresh by Compare and not
// modified afterwards.
type DiffResult struct {
	HasDifferences     bool                 `json:"hasDifferences" yaml:"hasDifferences" cbor:"1,keyasint"`
	BasicInfo          BasicInfoDiff        `json:"basicInfo" yaml:"basicInfo" cbor:"2,keyasint"`
	ObjectDictionary   ObjectDictionaryDiff `json:"objectDictionary" yaml:"objectDictionary" cbor:"3,keyasint"`
	SyncManagers       SyncManagerDiff      `json:"syncManagers" yaml:"syncManagers" cbor:"4,keyasint"`
	PDOMappings        PDOMappingDiff       `json:"pdoMappings" yaml:"pdoMappings" cbor:"5,keyasint"`
	OverallDifferences []string             `json:"overallDifferences" yaml:"overallDifferences" cbor:"6,keyasint"`
}

// Compare diffs profile p against the actual identity.
func Compare(p *esi.Profile, actual Actual) *DiffResult {
	result := &DiffResult{
		BasicInfo:        compareBasicInfo(p, actual),
		ObjectDictionary: compareObjectDictionary(p),
		SyncManagers:     compareSyncManagers(p),
		PDOMappings:      comparePDOMappings(p),
	}

	result.HasDifferences = !result.BasicInfo.IsMatch ||
		result.ObjectDictionary.HasDifferences ||
		result.SyncManagers.HasDifferences ||
		result.PDOMappings.HasDifferences

	overall := []string{}
	bi := result.BasicInfo
	if !bi.VendorIDMatch {
		overall = append(overall, fmt.Sprintf("VendorId mismatch: expected 0x%04X, actual 0x%04X",
			bi.VendorIDExpected, bi.VendorIDActual))
	}
	if !bi.ProductCodeMatch {
		overall = append(overall, fmt.Sprintf("ProductCode mismatch: expected 0x%08X, actual 0x%08X",
			bi.ProductCodeExpected, bi.ProductCodeActual))
	}
	overall = appendTagged(overall, TagObjectDictionary, result.ObjectDictionary.Differences)
	overall = appendTagged(overall, TagSyncManagers, result.SyncManagers.Differences)
	overall = appendTagged(overall, TagPDOMappings, result.PDOMappings.Differences)
	result.OverallDifferences = overall

	return result
}

func appendTagged(dst []string, tag string, diffs []string) []string {
	for _, d := range diffs {
		dst = append(dst, tag+d)
	}
	return dst
}

func compareBasicInfo(p *esi.Profile, actual Actual) BasicInfoDiff {
	d := BasicInfoDiff{
		VendorIDExpected:    p.VendorID,
		VendorIDActual:      actual.VendorID,
		VendorIDMatch:       p.VendorID == actual.VendorID,
		ProductCodeExpected: p.ProductCode,
		ProductCodeActual:   actual.ProductCode,
		ProductCodeMatch:    p.ProductCode == actual.ProductCode,
		RevisionNoExpected:  p.RevisionNo,
		RevisionNoActual:    RevisionUnspecified,
		RevisionNoMatch:     p.RevisionNo == RevisionUnspecified,
	}
	d.IsMatch = d.VendorIDMatch && d.ProductCodeMatch && d.RevisionNoMatch
	return d
}

func compareObjectDictionary(p *esi.Profile) ObjectDictionaryDiff {
	d := ObjectDictionaryDiff{Differences: []string{}}
	if len(p.ObjectDictionary) == 0 {
		d.Differences = append(d.Differences, NoObjectDictionary)
		return d
	}

	d.TotalObjects = len(p.ObjectDictionary)
	d.TotalSubIndices = p.TotalSubIndices()

	for _, idx := range MandatoryObjectIndices {
		if _, ok := p.Object(idx); !ok {
			d.Differences = append(d.Differences, fmt.Sprintf("Mandatory object 0x%04X not found in ESI file", idx))
		}
	}

	d.HasDifferences = len(d.Differences) > 0
	return d
}

func compareSyncManagers(p *esi.Profile) SyncManagerDiff {
	d := SyncManagerDiff{Differences: []string{}}
	if len(p.SyncManagers) == 0 {
		d.Differences = append(d.Differences, NoSyncManagers)
		return d
	}

	d.TotalSyncManagers = len(p.SyncManagers)

	for _, idx := range MandatorySyncManagers {
		if _, ok := p.SyncManager(idx); !ok {
			d.Differences = append(d.Differences, fmt.Sprintf("Mandatory sync manager SM%d not found in ESI file", idx))
		}
	}

	var inputs, outputs int
	for _, sm := range p.SyncManagers {
		switch esi.ParseDirection(sm.DirectionText) {
		case esi.DirectionInput:
			inputs++
		case esi.DirectionOutput:
			outputs++
		}
	}
	if inputs == 0 {
		d.Differences = append(d.Differences, "No input sync managers found in ESI file")
	}
	if outputs == 0 {
		d.Differences = append(d.Differences, "No output sync managers found in ESI file")
	}

	d.HasDifferences = len(d.Differences) > 0
	return d
}

func comparePDOMappings(p *esi.Profile) PDOMappingDiff {
	d := PDOMappingDiff{Differences: []string{}}
	if len(p.PDOMappings) == 0 {
		d.Differences = append(d.Differences, NoPDOMappings)
		return d
	}

	d.TotalPDOMappings = len(p.PDOMappings)
	d.TotalPDOEntries = p.TotalPDOEntries()

	var inputs, outputs int
	for _, pdo := range p.PDOMappings {
		switch esi.ParseDirection(pdo.DirectionText) {
		case esi.DirectionInput:
			inputs++
		case esi.DirectionOutput:
			outputs++
		}
	}
	if inputs == 0 {
		d.Differences = append(d.Differences, "No RxPDO mappings found in ESI file")
	}
	if outputs == 0 {
		d.Differences = append(d.Differences, "No TxPDO mappings found in ESI file")
	}

	for _, pdo := range p.PDOMappings {
		if len(pdo.Entries) == 0 {
			d.Differences = append(d.Differences, fmt.Sprintf("PDO 0x%04X has no entries", pdo.PDOIndex))
		}
	}

	d.HasDifferences = len(d.Differences) > 0
	return d
}
