package sii

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images", "dev.bin")

	img := New()
	_ = img.WriteWord(ManufacturerIDOffset, 0x0002)
	img.SealChecksum()

	if err := img.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != Size {
		t.Errorf("file size = %d, want %d", info.Size(), Size)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ManufacturerID() != 0x0002 || loaded.Checksum() != img.Checksum() {
		t.Error("loaded image differs from saved image")
	}
}

func TestLoadShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	if err := os.WriteFile(path, []byte{0xFD, 0x00, 0x02, 0x00}, 0644); err != nil {
		t.Fatal(err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !img.Validate().Valid {
		t.Error("header words should be loaded from the short file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.bin")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDump(t *testing.T) {
	img := New()
	_ = img.WriteBlock(0x10, []byte("EtherCAT"))

	lines, err := img.Dump(0x10, 20)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "0010: 45 74 68 65") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "|EtherCAT........|") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0020: 00 00 00 00 ") {
		t.Errorf("line 1 = %q", lines[1])
	}

	if _, err := img.Dump(Size-4, 8); err == nil {
		t.Error("Expected OutOfBounds for dump past the end")
	}
}
