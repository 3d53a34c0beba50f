package sii

import (
	"encoding/binary"

	"github.com/muurk/ecatcheck/internal/ecaterr"
)

// Image layout constants
const (
	// Size is the fixed capacity of the configuration memory in bytes
	Size = 8192

	// ChecksumOffset is the byte offset of the checksum word
	ChecksumOffset = 0x0000

	// ManufacturerIDOffset is the byte offset of the manufacturer id word
	ManufacturerIDOffset = 0x0002
)

// Validation messages
const (
	MsgCRCFailed          = "CRC validation failed"
	MsgManufacturerFailed = "Manufacturer information validation failed"
)

// Image is a fixed 8192-byte configuration-memory buffer.
// The zero value is not usable; call New or FromBytes.
type Image struct {
	data [Size]byte
}

// ValidationResult holds the outcome of an image integrity check
type ValidationResult struct {
	Valid    bool     `json:"valid" yaml:"valid" cbor:"1,keyasint"`
	Errors   []string `json:"errors" yaml:"errors" cbor:"2,keyasint"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty" cbor:"3,keyasint,omitempty"`
}

// AddError records an error and marks the result invalid
func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// AddWarning records a warning without affecting validity
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// New returns an all-zero image.
func New() *Image {
	return &Image{}
}

// FromBytes returns an image initialised from b.
// At most Size bytes are copied; the remainder stays zero.
func FromBytes(b []byte) *Image {
	img := New()
	img.SetBytes(b)
	return img
}

func checkRange(offset, width int) error {
	if offset < 0 || width < 0 || offset > Size-width {
		return ecaterr.NewOutOfBounds(offset, width, Size)
	}
	return nil
}

// ReadByteAt returns the byte at offset.
func (img *Image) ReadByteAt(offset int) (byte, error) {
	if err := checkRange(offset, 1); err != nil {
		return 0, err
	}
	return img.data[offset], nil
}

// WriteByteAt stores v at offset.
func (img *Image) WriteByteAt(offset int, v byte) error {
	if err := checkRange(offset, 1); err != nil {
		return err
	}
	img.data[offset] = v
	return nil
}

// ReadWord returns the little-endian uint16 at offset.
func (img *Image) ReadWord(offset int) (uint16, error) {
	if err := checkRange(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(img.data[offset:]), nil
}

// WriteWord stores v little-endian at offset.
func (img *Image) WriteWord(offset int, v uint16) error {
	if err := checkRange(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(img.data[offset:], v)
	return nil
}

// ReadDWord returns the little-endian uint32 at offset.
func (img *Image) ReadDWord(offset int) (uint32, error) {
	if err := checkRange(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(img.data[offset:]), nil
}

// WriteDWord stores v little-endian at offset.
func (img *Image) WriteDWord(offset int, v uint32) error {
	if err := checkRange(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(img.data[offset:], v)
	return nil
}

// ReadBlock returns a copy of n bytes starting at offset.
func (img *Image) ReadBlock(offset, n int) ([]byte, error) {
	if err := checkRange(offset, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, img.data[offset:offset+n])
	return out, nil
}

// WriteBlock copies data into the image starting at offset.
// Nothing is written unless the whole block fits.
func (img *Image) WriteBlock(offset int, data []byte) error {
	if err := checkRange(offset, len(data)); err != nil {
		return err
	}
	copy(img.data[offset:], data)
	return nil
}

// Bytes returns a copy of the full image.
func (img *Image) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, img.data[:])
	return out
}

// SetBytes overwrites the image from b. Input beyond Size bytes is ignored;
// a shorter input leaves the tail untouched.
func (img *Image) SetBytes(b []byte) {
	copy(img.data[:], b)
}

// Clear zeroes the whole image.
func (img *Image) Clear() {
	img.data = [Size]byte{}
}

// Checksum returns the stored checksum word.
func (img *Image) Checksum() uint16 {
	return img.headerWord(ChecksumOffset)
}

// ManufacturerID returns the stored manufacturer id word.
func (img *Image) ManufacturerID() uint16 {
	return img.headerWord(ManufacturerIDOffset)
}

// headerWord reads a fixed header field. The offsets are constants inside
// the image, so ReadWord cannot fail.
func (img *Image) headerWord(offset int) uint16 {
	v, err := img.ReadWord(offset)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks that the checksum and manufacturer words are populated.
// Both checks always run so every failure is reported.
func (img *Image) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	if img.Checksum() == 0 {
		result.AddError(MsgCRCFailed)
	}
	if img.ManufacturerID() == 0 {
		result.AddError(MsgManufacturerFailed)
	}

	return result
}
