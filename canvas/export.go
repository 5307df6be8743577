package canvas

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExportFilename builds "prefix-YYYY-MM-DDTHH-MM-SS.png": an RFC3339-style
// timestamp with colons and periods replaced so the name is safe on every
// filesystem.
func ExportFilename(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s.png", prefix, now.Format("2006-01-02T15-04-05"))
}

// ExportPNG writes the current surface into dir under a timestamped name
// and returns the full path.
func (s *Surface) ExportPNG(dir, prefix string) (string, error) {
	data, err := s.Encode()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ExportFilename(prefix, time.Now()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}
