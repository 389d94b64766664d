package host

import (
	"fmt"
	"os"
	"path/filepath"
)

// MaxPathLength bounds resolved library paths.
const MaxPathLength = 4096

var getwd = os.Getwd

// ResolvePath turns path into the canonical key of the library cache.
// Absolute paths are returned unchanged, relative ones are joined to the
// working directory.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path: %w", ErrPathResolution)
	}
	resolved := path
	if !filepath.IsAbs(path) {
		wd, err := getwd()
		if err != nil {
			return "", fmt.Errorf("working directory: %v: %w", err, ErrPathResolution)
		}
		resolved = filepath.Join(wd, path)
	}
	if len(resolved) > MaxPathLength {
		return "", fmt.Errorf("%d bytes exceeds %d: %w", len(resolved), MaxPathLength, ErrPathResolution)
	}
	return resolved, nil
}
