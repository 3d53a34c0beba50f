package esi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseUint parses a profile number of the given bit width. Accepted forms
// are decimal ("4096"), C-style hex ("0x1000") and ESI hex ("#x1000").
func ParseUint(text string, bits int) (uint64, error) {
	s := strings.TrimSpace(text)
	base := 10

	switch {
	case strings.HasPrefix(s, "#x"), strings.HasPrefix(s, "#X"):
		s, base = s[2:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	}

	if s == "" {
		return 0, fmt.Errorf("empty number")
	}

	v, err := strconv.ParseUint(s, base, bits)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%q does not fit in %d bits", text, bits)
		}
		return 0, fmt.Errorf("%q is not a number", text)
	}
	return v, nil
}

// FormatHex renders v as 0x-prefixed uppercase hex padded to the given
// number of digits. Encode uses it so output stays stable.
func FormatHex(v uint64, digits int) string {
	return fmt.Sprintf("0x%0*X", digits, v)
}
