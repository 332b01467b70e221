package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"media-picker/internal/filesystem"
	"media-picker/internal/resolver"
)

// ColumnSize is the file size column. It is served in addition to the
// columns the resolver asks for.
const ColumnSize = "_size"

var (
	// ErrNotGranted means no grant or collection covers the URI.
	ErrNotGranted = errors.New("no grant for uri")
	// ErrUnsupportedSelection means a selection other than "_id=?" was given.
	ErrUnsupportedSelection = errors.New("unsupported selection")
)

// Store implements the capabilities the resolver consumes.
var (
	_ resolver.Querier      = (*Store)(nil)
	_ resolver.Documents    = (*Store)(nil)
	_ resolver.StreamOpener = (*Store)(nil)
)

// target is what a URI points at, and whether the data column may be shown.
type target struct {
	media      Media
	exposeData bool
}

// Query returns the requested columns of the single row uri refers to.
// Collection URIs without an id accept the selection "_id=?". Document URIs
// never expose the data column; grants expose it when the grant says so.
// A URI that matches nothing the provider knows fails with ErrNotGranted.
func (s *Store) Query(ctx context.Context, uri string, columns []string, selection string, args []string) (resolver.Row, error) {
	start := time.Now()
	t, err := s.lookup(ctx, uri, selection, args)
	if err == nil {
		var row resolver.Row
		row, err = t.row(columns)
		recordQuery("query", start, err)
		return row, err
	}
	if errors.Is(err, ErrMediaNotFound) {
		recordQuery("query", start, nil)
		return nil, resolver.ErrNoRows
	}
	recordQuery("query", start, err)
	return nil, err
}

func (t target) row(columns []string) (resolver.Row, error) {
	row := make(resolver.Row, len(columns))
	for _, c := range columns {
		switch c {
		case resolver.ColumnID:
			if t.media.ID > 0 {
				row[c] = strconv.FormatInt(t.media.ID, 10)
			}
		case resolver.ColumnData:
			if t.exposeData {
				row[c] = t.media.Data
			}
		case resolver.ColumnDisplayName:
			row[c] = t.media.DisplayName
		case resolver.ColumnMimeType:
			if t.media.MimeType != "" {
				row[c] = t.media.MimeType
			}
		case ColumnSize:
			row[c] = strconv.FormatInt(t.media.Size, 10)
		default:
			return nil, fmt.Errorf("no such column: %s", c)
		}
	}
	return row, nil
}

// IsDocumentURI implements resolver.Documents.
func (s *Store) IsDocumentURI(uri string) bool {
	return IsDocumentURI(uri)
}

// DocumentID implements resolver.Documents.
func (s *Store) DocumentID(uri string) (string, error) {
	return DocumentID(uri)
}

// OpenFile opens the file behind uri. Grants that hide the data column
// still allow opening the file.
func (s *Store) OpenFile(ctx context.Context, uri string) (*os.File, error) {
	t, err := s.lookup(ctx, uri, "", nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	return filesystem.OpenWithRetry(t.media.Data, filesystem.DefaultRetryConfig())
}

// OpenStream opens the bytes behind uri as a plain stream.
func (s *Store) OpenStream(ctx context.Context, uri string) (io.ReadCloser, error) {
	f, err := s.OpenFile(ctx, uri)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// lookup finds the row uri points at.
func (s *Store) lookup(ctx context.Context, uri, selection string, args []string) (target, error) {
	if coll, id, ok := parseCollectionURI(uri); ok {
		switch {
		case id == "" && selection == resolver.ColumnID+"=?" && len(args) == 1:
			id = args[0]
		case selection != "":
			return target{}, fmt.Errorf("%w: %q", ErrUnsupportedSelection, selection)
		case id == "":
			return target{}, ErrMediaNotFound
		}
		m, err := s.byID(ctx, coll, id)
		return target{media: m, exposeData: true}, err
	}

	if authority, docID, err := splitDocumentURI(uri); err == nil {
		coll, id, raw, err := documentTarget(authority, docID)
		if err != nil {
			return target{}, err
		}
		if raw != "" {
			return target{media: Media{Collection: coll, Data: raw, DisplayName: filepath.Base(raw)}}, nil
		}
		m, err := s.byID(ctx, coll, id)
		return target{media: m}, err
	}

	return s.granted(ctx, uri)
}

func (s *Store) byID(ctx context.Context, collection, id string) (Media, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return Media{}, ErrMediaNotFound
	}
	return s.GetMedia(ctx, collection, n)
}

func (s *Store) granted(ctx context.Context, uri string) (target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT ` + mediaColumns + `, g.expose_data
	FROM grants g JOIN media m ON m.id = g.media_id
	WHERE g.uri = ?`

	var expose bool
	m, err := scanMedia(s.db.QueryRowContext(ctx, query, uri), &expose)
	if errors.Is(err, ErrMediaNotFound) {
		return target{}, fmt.Errorf("%w: %s", ErrNotGranted, uri)
	}
	if err != nil {
		return target{}, err
	}
	return target{media: m, exposeData: expose}, nil
}
