// Package identity reads and validates the vendor ID and product code a
// device reports in its identity object (0x1018).
package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/logging"
	"github.com/muurk/ecatcheck/internal/mailbox"
)

// Identity is the pair of identity fields read from a device.
type Identity struct {
	VendorID    uint16 `json:"vendor_id" yaml:"vendor_id" cbor:"1,keyasint"`
	ProductCode uint32 `json:"product_code" yaml:"product_code" cbor:"2,keyasint"`
}

// String returns the identity as hex
func (id Identity) String() string {
	return fmt.Sprintf("vendor 0x%04X product 0x%08X", id.VendorID, id.ProductCode)
}

// Reader fetches identity fields over the mailbox.
type Reader struct {
	client *mailbox.Client
}

// NewReader returns a reader that issues its requests through client.
func NewReader(client *mailbox.Client) *Reader {
	return &Reader{client: client}
}

// read fetches one identity subindex and rejects responses the device
// marked as failed.
func (r *Reader) read(ctx context.Context, subIndex uint8, field string) ([]byte, error) {
	resp, err := r.client.ReadRaw(ctx, mailbox.IdentityIndex, subIndex)
	if err != nil {
		return nil, err
	}
	if len(resp) > 0 && resp[0] != mailbox.StatusSuccess {
		return nil, ecaterr.NewProtocolNack(fmt.Sprintf("Failed to read %s from device", field), resp)
	}
	return resp, nil
}

// VendorID reads 0x1018:01. The response must carry at least 8 bytes.
func (r *Reader) VendorID(ctx context.Context) (uint16, error) {
	resp, err := r.read(ctx, mailbox.VendorIDSubIndex, "Vendor ID")
	if err != nil {
		return 0, err
	}
	if len(resp) < mailbox.MinWordResponseLen {
		return 0, ecaterr.NewFramingError("Failed to read Vendor ID from device", resp)
	}
	v, _ := mailbox.DecodeWord(resp)
	return v, nil
}

// ProductCode reads 0x1018:02. The response must carry at least 10 bytes.
func (r *Reader) ProductCode(ctx context.Context) (uint32, error) {
	resp, err := r.read(ctx, mailbox.ProductCodeSubIndex, "Product Code")
	if err != nil {
		return 0, err
	}
	if len(resp) < mailbox.MinDWordResponseLen {
		return 0, ecaterr.NewFramingError("Failed to read Product Code from device", resp)
	}
	v, _ := mailbox.DecodeDWord(resp)
	return v, nil
}

// Identity reads the vendor ID then the product code.
func (r *Reader) Identity(ctx context.Context) (Identity, error) {
	vendor, err := r.VendorID(ctx)
	if err != nil {
		return Identity{}, err
	}
	product, err := r.ProductCode(ctx)
	if err != nil {
		return Identity{}, err
	}
	return Identity{VendorID: vendor, ProductCode: product}, nil
}

// Validator checks a device's identity against expected values.
type Validator struct {
	reader *Reader
}

// NewValidator returns a validator reading through client.
func NewValidator(client *mailbox.Client) *Validator {
	return &Validator{reader: NewReader(client)}
}

// Reader returns the underlying identity reader.
func (v *Validator) Reader() *Reader {
	return v.reader
}

// ValidateVendorID reports whether the device's vendor ID equals expected.
func (v *Validator) ValidateVendorID(ctx context.Context, expected uint16) (bool, error) {
	actual, err := v.reader.VendorID(ctx)
	if err != nil {
		return false, err
	}

	logging.Info("Vendor ID validation",
		zap.String("expected", fmt.Sprintf("0x%04X", expected)),
		zap.String("actual", fmt.Sprintf("0x%04X", actual)),
		zap.Bool("match", actual == expected),
	)
	return actual == expected, nil
}

// ValidateProductCode reports whether the device's product code equals expected.
func (v *Validator) ValidateProductCode(ctx context.Context, expected uint32) (bool, error) {
	actual, err := v.reader.ProductCode(ctx)
	if err != nil {
		return false, err
	}

	logging.Info("Product Code validation",
		zap.String("expected", fmt.Sprintf("0x%08X", expected)),
		zap.String("actual", fmt.Sprintf("0x%08X", actual)),
		zap.Bool("match", actual == expected),
	)
	return actual == expected, nil
}

// ValidateIdentity checks both fields. Both are read even when the vendor
// ID already mismatches.
func (v *Validator) ValidateIdentity(ctx context.Context, expectedVendor uint16, expectedProduct uint32) (bool, error) {
	vendorOK, err := v.ValidateVendorID(ctx, expectedVendor)
	if err != nil {
		return false, err
	}
	productOK, err := v.ValidateProductCode(ctx, expectedProduct)
	if err != nil {
		return false, err
	}
	return vendorOK && productOK, nil
}
