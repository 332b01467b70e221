package resolver

import (
	"context"
	"errors"
	"io"
	"os"

	"media-picker/internal/picker"
)

// Provider columns.
const (
	ColumnID          = "_id"
	ColumnData        = "_data"
	ColumnDisplayName = "_display_name"
	ColumnMimeType    = "mime_type"
)

// Well-known collection URIs and authorities.
const (
	PublicDownloadsURI = "content://downloads/public_downloads"
	MediaImagesURI     = "content://media/external/images/media"
	MediaVideoURI      = "content://media/external/video/media"
	MediaAudioURI      = "content://media/external/audio/media"

	DownloadsDocumentsAuthority = "com.android.providers.downloads.documents"
	MediaDocumentsAuthority     = "com.android.providers.media.documents"

	// legacyGalleryPrefix references are rewritten to the modern gallery
	// package before they are queried.
	legacyGalleryPrefix = "content://com.android.gallery3d.provider"
	legacyGallery       = "com.android.gallery3d"
	modernGallery       = "com.google.android.gallery3d"

	// brokenDataAuthority returns unusable values in its data column.
	brokenDataAuthority = "com.sec.android.gallery3d.provider"
)

// ErrNoRows is returned by a Querier when the query matched nothing.
var ErrNoRows = errors.New("no rows")

// Row is one provider result row. Absent keys are null columns.
type Row map[string]string

// Get returns the value of column and whether it is non-null and non-empty.
func (r Row) Get(column string) (string, bool) {
	v, ok := r[column]
	return v, ok && v != ""
}

// Querier looks up at most one row for a content URI.
type Querier interface {
	Query(ctx context.Context, uri string, columns []string, selection string, args []string) (Row, error)
}

// Documents is the document-provider capability. Resolvers built without it
// skip document decomposition.
type Documents interface {
	IsDocumentURI(uri string) bool
	DocumentID(uri string) (string, error)
}

// StreamOpener opens the bytes behind a content URI.
type StreamOpener interface {
	// OpenFile returns a raw file handle for uri.
	OpenFile(ctx context.Context, uri string) (*os.File, error)
	// OpenStream returns a plain byte stream for uri.
	OpenStream(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Namer assigns collision-free local paths; see materializer.GenerateTargetPath.
type Namer interface {
	GenerateTargetPath(item *picker.Item) (string, error)
}
