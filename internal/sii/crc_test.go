package sii

import (
	"strings"
	"testing"
)

func TestCRC8(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want byte
	}{
		{"empty", nil, 0xFF},
		{"check string", []byte("123456789"), 0xFB},
	}

	for _, tt := range tests {
		if got := CRC8(tt.in); got != tt.want {
			t.Errorf("%s: CRC8() = 0x%02X, want 0x%02X", tt.name, got, tt.want)
		}
	}
}

func TestComputeChecksum(t *testing.T) {
	img := New()
	_ = img.WriteWord(ManufacturerIDOffset, 0x0002)

	if got := img.ComputeChecksum(); got != 0x00FD {
		t.Errorf("ComputeChecksum() = 0x%04X, want 0x00FD", got)
	}
}

func TestSealAndValidateStrict(t *testing.T) {
	img := New()
	_ = img.WriteWord(ManufacturerIDOffset, 0x0002)
	_ = img.WriteDWord(0x0008, 0x00001234)

	img.SealChecksum()
	result := img.ValidateStrict()
	if !result.Valid {
		t.Fatalf("sealed image should validate, got %v", result.Errors)
	}

	_ = img.WriteByteAt(0x0009, 0xFF)
	result = img.ValidateStrict()
	if result.Valid {
		t.Fatal("modified header should fail strict validation")
	}
	if !strings.HasPrefix(result.Errors[len(result.Errors)-1], "Checksum mismatch") {
		t.Errorf("unexpected errors %v", result.Errors)
	}

	// bytes outside the header are not covered
	img.SealChecksum()
	_ = img.WriteByteAt(0x0100, 0xFF)
	if !img.ValidateStrict().Valid {
		t.Error("payload bytes should not affect the header checksum")
	}
}
