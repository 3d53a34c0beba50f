package esi

import "testing"

func TestParseUint(t *testing.T) {
	tests := []struct {
		in      string
		bits    int
		want    uint64
		wantErr bool
	}{
		{"4096", 16, 4096, false},
		{"0x1000", 16, 0x1000, false},
		{"0X1a00", 16, 0x1A00, false},
		{"#x1C213052", 32, 0x1C213052, false},
		{" 7 ", 8, 7, false},
		{"0xFFFF", 16, 0xFFFF, false},
		{"0x10000", 16, 0, true},
		{"256", 8, 0, true},
		{"-1", 16, 0, true},
		{"0x", 16, 0, true},
		{"", 16, 0, true},
		{"ten", 16, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseUint(tt.in, tt.bits)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseUint(%q, %d) error = %v, wantErr %v", tt.in, tt.bits, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseUint(%q, %d) = %d, want %d", tt.in, tt.bits, got, tt.want)
		}
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex(0x1A, 4); got != "0x001A" {
		t.Errorf("FormatHex() = %q", got)
	}
	if got := FormatHex(0x12345678, 8); got != "0x12345678" {
		t.Errorf("FormatHex() = %q", got)
	}
}
