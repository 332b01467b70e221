// Package materializer copies resolved sources into the configured storage
// location under a collision-free name.
package materializer

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"media-picker/internal/filesystem"
	"media-picker/internal/logging"
	"media-picker/internal/mediatypes"
	"media-picker/internal/metrics"
	"media-picker/internal/picker"
)

// Directories resolves the base directory for a location and directory type.
type Directories interface {
	Dir(loc picker.Location, directoryType string) (string, error)
}

// Materializer assigns final resting paths inside one storage location.
type Materializer struct {
	dirs     Directories
	location picker.Location
}

// New creates a Materializer writing into loc.
func New(dirs Directories, loc picker.Location) *Materializer {
	return &Materializer{dirs: dirs, location: loc}
}

// TargetPath returns the collision-unaware target for item: the target
// directory joined with the item's base file name. It has no side effects.
func (m *Materializer) TargetPath(item *picker.Item) (string, error) {
	dir, err := m.dirs.Dir(m.location, item.DirectoryType)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, baseName(item, item.DisplayName)), nil
}

// GenerateTargetPath returns a path in the target directory that did not
// exist when it was checked, and writes the chosen file name back to
// item.DisplayName. When the item has no MIME type yet, one is guessed from
// the chosen name.
//
// The existence check and the later create are not atomic. Two batches
// writing the same name into the same directory at the same time can both
// pick it.
func (m *Materializer) GenerateTargetPath(item *picker.Item) (string, error) {
	name := baseName(item, item.DisplayName)
	if name == "" {
		name = baseName(item, uuid.NewString())
	}

	dir, err := m.dirs.Dir(m.location, item.DirectoryType)
	if err != nil {
		return "", err
	}

	candidate := filepath.Join(dir, name)
	for n := 1; ; n++ {
		taken, err := filesystem.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("check target %q: %w", candidate, err)
		}
		if !taken {
			break
		}
		candidate = filepath.Join(dir, suffixed(name, n))
	}

	item.DisplayName = filepath.Base(candidate)
	if item.MimeType == "" {
		item.SetMimeType(mediatypes.GuessFromPath(candidate, item.Kind))
	}

	logging.Debug("materializer: target for %s is %s", item.QueryReference, candidate)
	return candidate, nil
}

// Copy copies the item's resolved source into the target directory and
// repoints ResolvedPath at the copy. When the source already sits at the
// target path nothing is copied.
func (m *Materializer) Copy(item *picker.Item) error {
	switch item.Kind {
	case mediatypes.KindImage:
		item.DirectoryType = picker.DirectoryPictures
	case mediatypes.KindVideo:
		item.DirectoryType = picker.DirectoryMovies
	}

	target, err := m.TargetPath(item)
	if err != nil {
		return err
	}
	if samePath(item.ResolvedPath, target) {
		metrics.Materializations.WithLabelValues("in_place").Inc()
		logging.Debug("materializer: %s already in place", target)
		return nil
	}

	target, err = m.GenerateTargetPath(item)
	if err != nil {
		return err
	}

	n, err := filesystem.CopyFile(item.ResolvedPath, target)
	if err != nil {
		return fmt.Errorf("copy %s: %w", item.ResolvedPath, err)
	}

	item.SetResolvedPath(target)
	metrics.Materializations.WithLabelValues("copied").Inc()
	logging.Debug("materializer: copied %d bytes to %s", n, target)
	return nil
}

// Materialize runs Copy and then records size, creation time and extension
// of the final file. Every failure is fatal for the item.
func (m *Materializer) Materialize(_ context.Context, item *picker.Item) picker.Result {
	if !item.Resolved() {
		metrics.Materializations.WithLabelValues("error").Inc()
		return picker.Fatal(picker.StageMaterialize,
			picker.Wrap(picker.ErrProcessing, picker.StageMaterialize, item.ResolvedPath, picker.ErrUnresolved))
	}

	if err := m.Copy(item); err != nil {
		metrics.Materializations.WithLabelValues("error").Inc()
		return picker.Fatal(picker.StageMaterialize, picker.Wrap(picker.ErrProcessing, picker.StageMaterialize, "copy", err))
	}

	info, err := filesystem.StatWithRetry(item.ResolvedPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return picker.Fatal(picker.StageMaterialize, picker.Wrap(picker.ErrProcessing, picker.StageMaterialize, "stat", err))
	}

	item.SizeBytes = info.Size()
	item.CreatedAt = info.ModTime()
	item.Extension = mediatypes.ExtensionFromPath(item.ResolvedPath)
	if item.DisplayName == "" {
		item.DisplayName = filepath.Base(item.ResolvedPath)
	}
	if item.MimeType == "" {
		item.SetMimeType(mediatypes.GuessFromPath(item.ResolvedPath, item.Kind))
	}
	return picker.Done(picker.StageMaterialize)
}

// baseName strips directories from name and appends the MIME extension when
// name has none.
func baseName(item *picker.Item, name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		name = ""
	}
	if name == "" {
		return ""
	}
	if !strings.Contains(name, ".") {
		name += mediatypes.ExtensionForMime(item.MimeType)
	}
	return name
}

// suffixed inserts -n before the extension, or appends (n) to names without
// one.
func suffixed(name string, n int) string {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 {
		return name + "(" + strconv.Itoa(n) + ")"
	}
	return name[:dot] + "-" + strconv.Itoa(n) + name[dot:]
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
