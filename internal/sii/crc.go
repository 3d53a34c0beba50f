package sii

import "fmt"

// CRC-8 parameters as ETG.2010 defines them for the SII (x^8 + x^2 + x + 1).
// The covered range and the word the result is stored in differ from
// ETG.2010 (0x0000..0x000D, stored at word 7): this image layout covers
// 0x0002..0x000F and stores the result in word 0.
const (
	crcPoly = 0x07
	crcInit = 0xFF
)

// Header range covered by the checksum
const (
	checksumStart = 0x0002
	checksumEnd   = 0x0010
)

var crcTable = func() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		c := byte(i)
		for bit := 0; bit < 8; bit++ {
			if c&0x80 != 0 {
				c = c<<1 ^ crcPoly
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// CRC8 computes the CRC-8 of data (poly 0x07, init 0xFF, no reflection,
// no final xor).
func CRC8(data []byte) byte {
	crc := byte(crcInit)
	for _, b := range data {
		crc = crcTable[crc^b]
	}
	return crc
}

// ComputeChecksum returns the CRC-8 of header bytes 0x0002..0x000F as a word.
func (img *Image) ComputeChecksum() uint16 {
	return uint16(CRC8(img.data[checksumStart:checksumEnd]))
}

// SealChecksum stores ComputeChecksum in the checksum word and returns it.
func (img *Image) SealChecksum() uint16 {
	sum := img.ComputeChecksum()
	// offset is constant and in range
	_ = img.WriteWord(ChecksumOffset, sum)
	return sum
}

// ValidateStrict runs Validate and then compares the stored checksum with
// the recomputed CRC.
func (img *Image) ValidateStrict() *ValidationResult {
	result := img.Validate()

	stored, computed := img.Checksum(), img.ComputeChecksum()
	if stored != computed {
		result.AddError(fmt.Sprintf("Checksum mismatch: stored 0x%04X, computed 0x%04X", stored, computed))
	}

	return result
}
