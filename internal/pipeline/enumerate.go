package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ListImages returns the paths of regular files in dir whose extension
// matches ext case-insensitively, in directory-listing order.
func ListImages(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list input directory %s: %w", dir, err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			images = append(images, filepath.Join(dir, entry.Name()))
		}
	}

	return images, nil
}

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
