package sii

import (
	"fmt"
	"strings"
)

const dumpWidth = 16

// Dump renders n bytes from offset as hex dump lines of 16 bytes:
//
//	0000: 2a 00 02 00 ... |*...|
func (img *Image) Dump(offset, n int) ([]string, error) {
	block, err := img.ReadBlock(offset, n)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, (n+dumpWidth-1)/dumpWidth)
	for start := 0; start < len(block); start += dumpWidth {
		end := min(start+dumpWidth, len(block))
		row := block[start:end]

		var hex strings.Builder
		for i := 0; i < dumpWidth; i++ {
			if i < len(row) {
				fmt.Fprintf(&hex, "%02x ", row[i])
			} else {
				hex.WriteString("   ")
			}
		}

		ascii := make([]byte, len(row))
		for i, b := range row {
			if b >= 32 && b <= 126 {
				ascii[i] = b
			} else {
				ascii[i] = '.'
			}
		}

		lines = append(lines, fmt.Sprintf("%04X: %s|%s|", offset+start, hex.String(), ascii))
	}

	return lines, nil
}
