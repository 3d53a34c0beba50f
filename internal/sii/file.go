package sii

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/logging"
)

// Load reads a raw binary image from path.
// Files longer than Size are truncated; shorter files are zero-padded.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if len(data) != Size {
		logging.Warn("Image file size differs from SII capacity",
			zap.String("path", path),
			zap.Int("size", len(data)),
			zap.Int("capacity", Size),
		)
	}

	return FromBytes(data), nil
}

// Save writes the image to path atomically (temp file + rename).
func (img *Image) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sii-*.bin")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(img.data[:]); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save image: %w", err)
	}

	return nil
}
