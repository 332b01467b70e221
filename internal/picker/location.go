package picker

import (
	"fmt"
	"strings"
)

// Location selects where materialized files are stored.
type Location string

const (
	// LocationExternalApp stores files in the app's external files directory,
	// one subdirectory per directory type (Pictures, Movies, ...).
	LocationExternalApp Location = "external-app"
	// LocationExternalCache stores files in the external cache directory.
	LocationExternalCache Location = "external-cache"
	// LocationInternalApp stores files in the app-private directory.
	LocationInternalApp Location = "internal-app"
)

// Directory types assigned from the media kind before copying.
const (
	DirectoryPictures = "Pictures"
	DirectoryMovies   = "Movies"
)

// ParseLocation maps a configuration value onto a Location. The empty string
// selects LocationExternalApp.
func ParseLocation(s string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "external-app", "external_app", "external-storage-app-dir":
		return LocationExternalApp, nil
	case "external-cache", "external_cache", "external-cache-dir":
		return LocationExternalCache, nil
	case "internal-app", "internal_app", "internal-app-dir":
		return LocationInternalApp, nil
	default:
		return "", fmt.Errorf("unknown storage location %q", s)
	}
}
