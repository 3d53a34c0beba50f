// Package report collects the outcome of one verification run and writes
// it as JSON, YAML or CBOR.
//
// A Run is assembled by the CLI from whichever checks were performed.
// Sections that were not run are nil and omitted from the output. Runs are
// not stored anywhere by this package; Write sends them to any io.Writer.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/muurk/ecatcheck/internal/compare"
	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/identity"
	"github.com/muurk/ecatcheck/internal/lifecycle"
	"github.com/muurk/ecatcheck/internal/odverify"
	"github.com/muurk/ecatcheck/internal/sii"
	"github.com/muurk/ecatcheck/internal/version"
)

// Format selects the report encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("unknown report format %q (expected json, yaml or cbor)", s)
	}
}

// FormatForPath picks a format from the file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	if f, err := ParseFormat(filepath.Ext(path)); err == nil {
		return f
	}
	return FormatJSON
}

// ProfileSummary identifies the profile a run was checked against.
type ProfileSummary struct {
	Source      string `json:"source,omitempty" yaml:"source,omitempty" cbor:"1,keyasint,omitempty"`
	VendorID    uint16 `json:"vendorId" yaml:"vendorId" cbor:"2,keyasint"`
	ProductCode uint32 `json:"productCode" yaml:"productCode" cbor:"3,keyasint"`
	RevisionNo  uint16 `json:"revisionNo" yaml:"revisionNo" cbor:"4,keyasint"`
	DeviceName  string `json:"deviceName,omitempty" yaml:"deviceName,omitempty" cbor:"5,keyasint,omitempty"`
	Objects     int    `json:"objects" yaml:"objects" cbor:"6,keyasint"`
	SyncManager int    `json:"syncManagers" yaml:"syncManagers" cbor:"7,keyasint"`
	PDOMappings int    `json:"pdoMappings" yaml:"pdoMappings" cbor:"8,keyasint"`
}

// Summarize builds a ProfileSummary for p read from source.
func Summarize(p *esi.Profile, source string) *ProfileSummary {
	return &ProfileSummary{
		Source:      source,
		VendorID:    p.VendorID,
		ProductCode: p.ProductCode,
		RevisionNo:  p.RevisionNo,
		DeviceName:  p.DeviceName,
		Objects:     len(p.ObjectDictionary),
		SyncManager: len(p.SyncManagers),
		PDOMappings: len(p.PDOMappings),
	}
}

// Run is the record of one verification run.
type Run struct {
	ID         string    `json:"id" yaml:"id" cbor:"1,keyasint"`
	Tool       string    `json:"tool" yaml:"tool" cbor:"2,keyasint"`
	Device     string    `json:"device,omitempty" yaml:"device,omitempty" cbor:"3,keyasint,omitempty"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt" cbor:"4,keyasint"`
	FinishedAt time.Time `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty" cbor:"5,keyasint,omitempty"`
	Passed     bool      `json:"passed" yaml:"passed" cbor:"6,keyasint"`

	Profile   *ProfileSummary           `json:"profile,omitempty" yaml:"profile,omitempty" cbor:"7,keyasint,omitempty"`
	Identity  *identity.Identity        `json:"identity,omitempty" yaml:"identity,omitempty" cbor:"8,keyasint,omitempty"`
	Diff      *compare.DiffResult       `json:"diff,omitempty" yaml:"diff,omitempty" cbor:"9,keyasint,omitempty"`
	Lifecycle *lifecycle.SequenceResult `json:"lifecycle,omitempty" yaml:"lifecycle,omitempty" cbor:"10,keyasint,omitempty"`
	Objects   *odverify.Result          `json:"objects,omitempty" yaml:"objects,omitempty" cbor:"11,keyasint,omitempty"`
	Image     *sii.ValidationResult     `json:"image,omitempty" yaml:"image,omitempty" cbor:"12,keyasint,omitempty"`
	Errors    []string                  `json:"errors,omitempty" yaml:"errors,omitempty" cbor:"13,keyasint,omitempty"`
}

// New starts a run against device.
func New(device string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Tool:      version.UserAgent(),
		Device:    device,
		StartedAt: time.Now().UTC(),
	}
}

// AddError records a failure that prevented a check from completing.
func (r *Run) AddError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Finish stamps the end time and computes the overall verdict: every
// section that ran must have passed and no errors may be recorded.
func (r *Run) Finish() {
	r.FinishedAt = time.Now().UTC()
	r.Passed = r.verdict()
}

func (r *Run) verdict() bool {
	if len(r.Errors) > 0 {
		return false
	}
	if r.Diff != nil && r.Diff.HasDifferences {
		return false
	}
	if r.Lifecycle != nil && !r.Lifecycle.Passed {
		return false
	}
	if r.Objects != nil && !r.Objects.Valid {
		return false
	}
	if r.Image != nil && !r.Image.Valid {
		return false
	}
	return true
}

var reportEncMode cbor.EncMode

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	reportEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create report CBOR encoder mode: %v", err))
	}
}

// Write encodes the run to w in the given format.
func (r *Run) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatCBOR:
		return reportEncMode.NewEncoder(w).Encode(r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// Read decodes a run previously written in the given format.
func Read(rd io.Reader, format Format) (*Run, error) {
	var run Run
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(rd).Decode(&run)
	case FormatYAML:
		err = yaml.NewDecoder(rd).Decode(&run)
	case FormatCBOR:
		err = cbor.NewDecoder(rd).Decode(&run)
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s report: %w", format, err)
	}
	return &run, nil
}
