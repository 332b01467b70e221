// Package storage maps a picker.Location and directory type onto an
// absolute directory on disk.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"media-picker/internal/logging"
	"media-picker/internal/picker"
)

// Dirs holds the base directory for each storage location.
type Dirs struct {
	ExternalApp   string
	ExternalCache string
	InternalApp   string
}

// Service resolves target directories and creates them on demand.
type Service struct {
	dirs Dirs
}

// New creates a Service over dirs.
func New(dirs Dirs) *Service {
	return &Service{dirs: dirs}
}

// Dir returns the directory for loc. Only LocationExternalApp uses
// directoryType, as a subdirectory (Pictures, Movies, ...). The directory is
// created if it does not exist. Errors wrap picker.ErrNoLocation.
func (s *Service) Dir(loc picker.Location, directoryType string) (string, error) {
	var dir string
	switch loc {
	case picker.LocationExternalCache:
		dir = s.dirs.ExternalCache
	case picker.LocationInternalApp:
		dir = s.dirs.InternalApp
	case picker.LocationExternalApp, "":
		dir = s.dirs.ExternalApp
		if dir != "" && directoryType != "" {
			dir = filepath.Join(dir, filepath.Base(directoryType))
		}
	default:
		return "", fmt.Errorf("%w: unknown location %q", picker.ErrNoLocation, loc)
	}

	if dir == "" {
		return "", fmt.Errorf("%w: no directory configured for %s", picker.ErrNoLocation, loc)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", picker.ErrNoLocation, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", picker.ErrNoLocation, err)
	}

	logging.Debug("storage: %s/%s -> %s", loc, directoryType, abs)
	return abs, nil
}
