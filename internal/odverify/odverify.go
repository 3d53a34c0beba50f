// Package odverify checks that every object and subindex a profile declares
// can be read from the live device.
//
// Objects are probed one at a time: subindex 0 first, then each declared
// subindex. A rejected read marks the object invalid. A channel failure
// is recorded against the object and verification moves on to the next
// one; the caller decides whether a partial run is useful.
package odverify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/logging"
	"github.com/muurk/ecatcheck/internal/mailbox"
)

// SubIndexResult is the outcome for one declared subindex.
type SubIndexResult struct {
	ObjectIndex uint16   `json:"objectIndex" yaml:"objectIndex" cbor:"1,keyasint"`
	SubIndex    uint8    `json:"subIndex" yaml:"subIndex" cbor:"2,keyasint"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty" cbor:"3,keyasint,omitempty"`
	Valid       bool     `json:"valid" yaml:"valid" cbor:"4,keyasint"`
	Errors      []string `json:"errors,omitempty" yaml:"errors,omitempty" cbor:"5,keyasint,omitempty"`
}

// ObjectResult is the outcome for one declared object.
type ObjectResult struct {
	Index      uint16           `json:"index" yaml:"index" cbor:"1,keyasint"`
	Name       string           `json:"name,omitempty" yaml:"name,omitempty" cbor:"2,keyasint,omitempty"`
	Valid      bool             `json:"valid" yaml:"valid" cbor:"3,keyasint"`
	Errors     []string         `json:"errors,omitempty" yaml:"errors,omitempty" cbor:"4,keyasint,omitempty"`
	SubIndices []SubIndexResult `json:"subIndices,omitempty" yaml:"subIndices,omitempty" cbor:"5,keyasint,omitempty"`
}

// Result summarises a verification run.
type Result struct {
	Valid          bool           `json:"valid" yaml:"valid" cbor:"1,keyasint"`
	Errors         []string       `json:"errors" yaml:"errors" cbor:"2,keyasint"`
	Objects        []ObjectResult `json:"objects" yaml:"objects" cbor:"3,keyasint"`
	TotalObjects   int            `json:"totalObjects" yaml:"totalObjects" cbor:"4,keyasint"`
	ValidObjects   int            `json:"validObjects" yaml:"validObjects" cbor:"5,keyasint"`
	InvalidObjects int            `json:"invalidObjects" yaml:"invalidObjects" cbor:"6,keyasint"`
}

// Verifier probes a device's object dictionary through the mailbox.
type Verifier struct {
	client *mailbox.Client

	// OnObject, if set, is called after each object is verified.
	OnObject func(index, total int, obj ObjectResult)
}

// NewVerifier returns a verifier issuing reads through client.
func NewVerifier(client *mailbox.Client) *Verifier {
	return &Verifier{client: client}
}

// Verify probes every object in p's dictionary. The error is non-nil only
// when ctx ends before all objects were probed; the partial result is
// returned alongside it.
func (v *Verifier) Verify(ctx context.Context, p *esi.Profile) (*Result, error) {
	result := &Result{Valid: true, Errors: []string{}}

	if len(p.ObjectDictionary) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "ESI file does not contain object dictionary information")
		return result, nil
	}

	result.TotalObjects = len(p.ObjectDictionary)
	for i := range p.ObjectDictionary {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		obj := v.verifyObject(ctx, &p.ObjectDictionary[i])
		result.Objects = append(result.Objects, obj)
		if obj.Valid {
			result.ValidObjects++
		} else {
			result.Valid = false
			result.InvalidObjects++
			result.Errors = append(result.Errors, obj.Errors...)
		}

		if v.OnObject != nil {
			v.OnObject(i, result.TotalObjects, obj)
		}
	}

	logging.Info("Object dictionary verification",
		zap.Bool("valid", result.Valid),
		zap.Int("total", result.TotalObjects),
		zap.Int("invalid", result.InvalidObjects),
	)
	return result, nil
}

func (v *Verifier) verifyObject(ctx context.Context, entry *esi.ObjectEntry) ObjectResult {
	obj := ObjectResult{Index: entry.Index, Name: entry.Name, Valid: true}

	ok, err := v.client.TestRead(ctx, entry.Index, 0x00)
	if err != nil {
		obj.Valid = false
		obj.Errors = append(obj.Errors, fmt.Sprintf("Error validating object 0x%04X: %v", entry.Index, err))
		logging.Warn("Object probe failed", zap.String("object", fmt.Sprintf("0x%04X", entry.Index)), zap.Error(err))
		return obj
	}
	if !ok {
		obj.Valid = false
		obj.Errors = append(obj.Errors, fmt.Sprintf("Cannot read object 0x%04X from device", entry.Index))
		return obj
	}

	for _, sub := range entry.SubIndices {
		sr := SubIndexResult{ObjectIndex: entry.Index, SubIndex: sub.SubIndex, Name: sub.Name, Valid: true}

		ok, err := v.client.TestRead(ctx, entry.Index, sub.SubIndex)
		switch {
		case err != nil:
			sr.Valid = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("Error validating subindex 0x%02X of object 0x%04X: %v",
				sub.SubIndex, entry.Index, err))
		case !ok:
			sr.Valid = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("Cannot read subindex 0x%02X from object 0x%04X",
				sub.SubIndex, entry.Index))
		}

		obj.SubIndices = append(obj.SubIndices, sr)
		if !sr.Valid {
			obj.Valid = false
			obj.Errors = append(obj.Errors, sr.Errors...)
		}
	}

	return obj
}
