package sii

import (
	"bytes"
	"testing"

	"github.com/muurk/ecatcheck/internal/ecaterr"
)

func TestAccessorBounds(t *testing.T) {
	tests := []struct {
		name  string
		width int
		read  func(img *Image, off int) error
		write func(img *Image, off int) error
	}{
		{
			name:  "byte",
			width: 1,
			read:  func(img *Image, off int) error { _, err := img.ReadByteAt(off); return err },
			write: func(img *Image, off int) error { return img.WriteByteAt(off, 0xAA) },
		},
		{
			name:  "word",
			width: 2,
			read:  func(img *Image, off int) error { _, err := img.ReadWord(off); return err },
			write: func(img *Image, off int) error { return img.WriteWord(off, 0xAAAA) },
		},
		{
			name:  "dword",
			width: 4,
			read:  func(img *Image, off int) error { _, err := img.ReadDWord(off); return err },
			write: func(img *Image, off int) error { return img.WriteDWord(off, 0xAAAAAAAA) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := New()
			last := Size - tt.width

			if err := tt.write(img, last); err != nil {
				t.Errorf("write at %d: unexpected error %v", last, err)
			}
			if err := tt.read(img, last); err != nil {
				t.Errorf("read at %d: unexpected error %v", last, err)
			}

			before := img.Bytes()
			if err := tt.write(img, last+1); !ecaterr.IsOutOfBounds(err) {
				t.Errorf("write at %d: expected OutOfBounds, got %v", last+1, err)
			}
			if !bytes.Equal(before, img.Bytes()) {
				t.Error("failed write must leave the image unchanged")
			}
			if err := tt.read(img, last+1); !ecaterr.IsOutOfBounds(err) {
				t.Errorf("read at %d: expected OutOfBounds, got %v", last+1, err)
			}
			if err := tt.read(img, -1); !ecaterr.IsOutOfBounds(err) {
				t.Errorf("read at -1: expected OutOfBounds, got %v", err)
			}
		})
	}
}

func TestLittleEndianLayout(t *testing.T) {
	img := New()
	if err := img.WriteDWord(0x10, 0x12345678); err != nil {
		t.Fatal(err)
	}

	got, _ := img.ReadBlock(0x10, 4)
	want := []byte{0x78, 0x56, 0x34, 0x12}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBlock() = % x, want % x", got, want)
	}

	w, _ := img.ReadWord(0x12)
	if w != 0x1234 {
		t.Errorf("ReadWord(0x12) = 0x%04X, want 0x1234", w)
	}
	b, _ := img.ReadByteAt(0x10)
	if b != 0x78 {
		t.Errorf("ReadByteAt(0x10) = 0x%02X, want 0x78", b)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	img := New()
	_ = img.WriteWord(0x100, 0xBEEF)
	_ = img.WriteDWord(0x200, 0xCAFEBABE)
	_ = img.WriteByteAt(0x300, 0x5A)

	if v, _ := img.ReadWord(0x100); v != 0xBEEF {
		t.Errorf("word = 0x%04X", v)
	}
	if v, _ := img.ReadDWord(0x200); v != 0xCAFEBABE {
		t.Errorf("dword = 0x%08X", v)
	}
	if v, _ := img.ReadByteAt(0x300); v != 0x5A {
		t.Errorf("byte = 0x%02X", v)
	}
}

func TestBlockBounds(t *testing.T) {
	img := New()

	if err := img.WriteBlock(Size-3, []byte{1, 2, 3}); err != nil {
		t.Errorf("WriteBlock at end: %v", err)
	}
	if err := img.WriteBlock(Size-2, []byte{1, 2, 3}); !ecaterr.IsOutOfBounds(err) {
		t.Errorf("expected OutOfBounds, got %v", err)
	}
	if _, err := img.ReadBlock(0, Size); err != nil {
		t.Errorf("ReadBlock whole image: %v", err)
	}
	if _, err := img.ReadBlock(1, Size); !ecaterr.IsOutOfBounds(err) {
		t.Errorf("expected OutOfBounds, got %v", err)
	}
	if _, err := img.ReadBlock(0, -1); !ecaterr.IsOutOfBounds(err) {
		t.Errorf("negative length: expected OutOfBounds, got %v", err)
	}
}

func TestSetBytes(t *testing.T) {
	t.Run("oversized input is truncated", func(t *testing.T) {
		input := make([]byte, Size+100)
		for i := range input {
			input[i] = byte(i)
		}
		img := New()
		img.SetBytes(input)

		got := img.Bytes()
		if len(got) != Size {
			t.Fatalf("len(Bytes()) = %d, want %d", len(got), Size)
		}
		if !bytes.Equal(got, input[:Size]) {
			t.Error("first 8192 bytes should be copied verbatim")
		}
	})

	t.Run("short input leaves tail", func(t *testing.T) {
		img := New()
		_ = img.WriteByteAt(Size-1, 0xEE)
		img.SetBytes([]byte{0x01, 0x02})

		if b, _ := img.ReadByteAt(0); b != 0x01 {
			t.Errorf("byte 0 = 0x%02X", b)
		}
		if b, _ := img.ReadByteAt(Size - 1); b != 0xEE {
			t.Errorf("tail byte = 0x%02X, want 0xEE", b)
		}
	})

	t.Run("Bytes returns a copy", func(t *testing.T) {
		img := New()
		out := img.Bytes()
		out[0] = 0xFF
		if img.Checksum() != 0 {
			t.Error("mutating Bytes() result must not affect the image")
		}
	})
}

func TestClear(t *testing.T) {
	img := FromBytes(bytes.Repeat([]byte{0xFF}, Size))
	img.Clear()
	if !bytes.Equal(img.Bytes(), make([]byte, Size)) {
		t.Error("Clear() should zero the image")
	}
}

func TestValidateZeroImage(t *testing.T) {
	result := New().Validate()

	if result.Valid {
		t.Error("zero image must not validate")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Expected 2 errors, got %v", result.Errors)
	}
	if result.Errors[0] != MsgCRCFailed {
		t.Errorf("Errors[0] = %q, want %q", result.Errors[0], MsgCRCFailed)
	}
	if result.Errors[1] != MsgManufacturerFailed {
		t.Errorf("Errors[1] = %q, want %q", result.Errors[1], MsgManufacturerFailed)
	}
}

func TestValidatePopulatedImage(t *testing.T) {
	img := New()
	_ = img.WriteWord(ChecksumOffset, 0x1234)
	_ = img.WriteWord(ManufacturerIDOffset, 0x0002)

	result := img.Validate()
	if !result.Valid {
		t.Errorf("Expected valid image, got errors %v", result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Expected no errors, got %v", result.Errors)
	}
}

func TestValidateOnlyManufacturerMissing(t *testing.T) {
	img := New()
	_ = img.WriteWord(ChecksumOffset, 0x0001)

	result := img.Validate()
	if result.Valid {
		t.Error("Expected invalid image")
	}
	if len(result.Errors) != 1 || result.Errors[0] != MsgManufacturerFailed {
		t.Errorf("Errors = %v", result.Errors)
	}
}

func TestHeaderFieldsMatchWordAccessor(t *testing.T) {
	img := New()
	img.SetBytes([]byte{0x34, 0x12, 0x02, 0x00})

	for _, tt := range []struct {
		name   string
		offset int
		got    uint16
	}{
		{"checksum", ChecksumOffset, img.Checksum()},
		{"manufacturer", ManufacturerIDOffset, img.ManufacturerID()},
	} {
		want, err := img.ReadWord(tt.offset)
		if err != nil {
			t.Fatalf("%s: ReadWord(%#x) error = %v", tt.name, tt.offset, err)
		}
		if tt.got != want {
			t.Errorf("%s = %#04x, ReadWord = %#04x", tt.name, tt.got, want)
		}
	}
	if img.Checksum() != 0x1234 || img.ManufacturerID() != 0x0002 {
		t.Errorf("Checksum/ManufacturerID = %#04x/%#04x", img.Checksum(), img.ManufacturerID())
	}
}
