// Package sii models the 8192-byte Slave Information Interface (SII)
// configuration memory of an EtherCAT device.
//
// An Image is a fixed-size, little-endian byte buffer with bounds-checked
// byte, word, dword and block accessors. Any access whose last byte would
// fall past offset 0x1FFF fails with an ecaterr OutOfBounds error and leaves
// the image unchanged.
//
// Two header words are inspected by Validate:
//
//	0x0000  checksum word
//	0x0002  manufacturer (vendor) id word
//
// Validate performs the lightweight presence check (both words non-zero).
// ValidateStrict additionally recomputes the ETG CRC-8 over the header and
// compares it with the stored checksum; SealChecksum writes that CRC.
//
// An Image is owned by one caller at a time. Editor adds snapshot and
// rollback on top of an Image for interactive editing sessions.
package sii
