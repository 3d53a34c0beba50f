package compare

import (
	"context"

	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/identity"
	"github.com/muurk/ecatcheck/internal/logging"
)

// Comparator compares profiles against a live device.
type Comparator struct {
	reader *identity.Reader
}

// NewComparator returns a comparator reading identity through reader.
func NewComparator(reader *identity.Reader) *Comparator {
	return &Comparator{reader: reader}
}

// CompareLive reads the device identity and compares it with p.
// Channel and protocol errors are returned unchanged.
func (c *Comparator) CompareLive(ctx context.Context, p *esi.Profile) (*DiffResult, error) {
	id, err := c.reader.Identity(ctx)
	if err != nil {
		return nil, err
	}

	result := Compare(p, FromIdentity(id))
	logging.Info("Configuration comparison",
		zap.String("device", id.String()),
		zap.Bool("has_differences", result.HasDifferences),
		zap.Int("differences", len(result.OverallDifferences)),
	)
	return result, nil
}

// FromIdentity converts a device identity readback into an Actual.
func FromIdentity(id identity.Identity) Actual {
	return Actual{VendorID: id.VendorID, ProductCode: id.ProductCode}
}
