package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"media-picker/internal/metrics"
)

// Collections a media row can belong to.
const (
	CollectionImages    = "images"
	CollectionVideo     = "video"
	CollectionAudio     = "audio"
	CollectionDownloads = "downloads"
)

// Collections lists every collection in a stable order.
var Collections = []string{CollectionImages, CollectionVideo, CollectionAudio, CollectionDownloads}

// ErrMediaNotFound is returned when no media row matches.
var ErrMediaNotFound = errors.New("media not found")

// Media is one registered file.
type Media struct {
	ID          int64     `json:"id"`
	Collection  string    `json:"collection"`
	Data        string    `json:"data"`
	DisplayName string    `json:"displayName"`
	MimeType    string    `json:"mimeType,omitempty"`
	Size        int64     `json:"size"`
	DateAdded   time.Time `json:"dateAdded"`
}

// URI returns the collection content URI of m.
func (m Media) URI() string {
	return ContentURI(m.Collection, m.ID)
}

// Grant maps a foreign content URI onto a media row. When ExposeData is
// false, queries through the grant do not return the data column.
type Grant struct {
	URI        string    `json:"uri"`
	MediaID    int64     `json:"mediaId"`
	ExposeData bool      `json:"exposeData"`
	CreatedAt  time.Time `json:"createdAt"`
}

const upsertMediaQuery = `
	INSERT INTO media (collection, data, display_name, mime_type, size, seen_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(data) DO UPDATE SET
		collection = excluded.collection,
		display_name = excluded.display_name,
		mime_type = excluded.mime_type,
		size = excluded.size,
		seen_at = excluded.seen_at
	RETURNING id, date_added
`

// upsertMedia inserts or refreshes m within tx and fills in its ID.
func upsertMedia(ctx context.Context, tx *sql.Tx, m *Media, seenAt int64) error {
	var added int64
	err := tx.QueryRowContext(ctx, upsertMediaQuery,
		m.Collection, m.Data, m.DisplayName, nullString(m.MimeType), m.Size, seenAt,
	).Scan(&m.ID, &added)
	if err != nil {
		return err
	}
	m.DateAdded = time.Unix(added, 0)
	return nil
}

// AddMedia registers a single file, refreshing the row when the path is
// already known. m.ID and m.DateAdded are set on success.
func (s *Store) AddMedia(ctx context.Context, m *Media) (err error) {
	start := time.Now()
	defer func() { recordQuery("insert_media", start, err) }()

	if m.Collection == "" {
		m.Collection = CollectionFor(m.Data)
	}

	tx, err := s.BeginBatch(ctx)
	if err != nil {
		return err
	}
	err = upsertMedia(ctx, tx, m, time.Now().UnixNano())
	return s.EndBatch(tx, err)
}

const mediaColumns = `m.id, m.collection, m.data, m.display_name, COALESCE(m.mime_type, ''), m.size, m.date_added`

type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(row scanner, extra ...any) (Media, error) {
	var m Media
	var added int64
	dest := append([]any{&m.ID, &m.Collection, &m.Data, &m.DisplayName, &m.MimeType, &m.Size, &added}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, ErrMediaNotFound
		}
		return m, err
	}
	m.DateAdded = time.Unix(added, 0)
	return m, nil
}

// GetMedia returns the row with id in collection. An empty collection
// matches any.
func (s *Store) GetMedia(ctx context.Context, collection string, id int64) (Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT ` + mediaColumns + ` FROM media m WHERE m.id = ? AND (? = '' OR m.collection = ?)`
	return scanMedia(s.db.QueryRowContext(ctx, query, id, collection, collection))
}

// MediaByPath returns the row registered for the file at path. Relative
// paths are resolved against the working directory, as Register does.
func (s *Store) MediaByPath(ctx context.Context, path string) (Media, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT ` + mediaColumns + ` FROM media m WHERE m.data = ?`
	return scanMedia(s.db.QueryRowContext(ctx, query, path))
}

// ListMedia returns up to limit rows of collection, newest first. An empty
// collection lists all of them.
func (s *Store) ListMedia(ctx context.Context, collection string, limit int) ([]Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + mediaColumns + ` FROM media m
	WHERE (? = '' OR m.collection = ?)
	ORDER BY m.id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, collection, collection, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PutGrant maps uri onto the media row mediaID, replacing any earlier grant
// for the same URI.
func (s *Store) PutGrant(ctx context.Context, uri string, mediaID int64, exposeData bool) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_grant", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO grants (uri, media_id, expose_data) VALUES (?, ?, ?)
	ON CONFLICT(uri) DO UPDATE SET
		media_id = excluded.media_id,
		expose_data = excluded.expose_data
	`, uri, mediaID, exposeData)
	if err != nil {
		return fmt.Errorf("grant %s: %w", uri, err)
	}
	return nil
}

// RevokeGrant removes the grant for uri. It reports whether one existed.
func (s *Store) RevokeGrant(ctx context.Context, uri string) (removed bool, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_grant", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM grants WHERE uri = ?`, uri)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Grants lists every grant.
func (s *Store) Grants(ctx context.Context) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT uri, media_id, expose_data, created_at FROM grants ORDER BY uri`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var g Grant
		var created int64
		if err := rows.Scan(&g.URI, &g.MediaID, &g.ExposeData, &created); err != nil {
			return nil, err
		}
		g.CreatedAt = time.Unix(created, 0)
		out = append(out, g)
	}
	return out, rows.Err()
}

// deleteUnseen removes rows under root that were not refreshed since cutoff.
func deleteUnseen(ctx context.Context, tx *sql.Tx, root string, cutoff int64) (int64, error) {
	prefix := root + "/"
	res, err := tx.ExecContext(ctx,
		`DELETE FROM media WHERE seen_at < ? AND substr(data, 1, length(?)) = ?`,
		cutoff, prefix, prefix,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats counts rows per collection and grants. It implements
// metrics.StatsProvider.
func (s *Store) Stats() (stats metrics.Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	stats.Collections = make(map[string]int, len(Collections))
	for _, c := range Collections {
		stats.Collections[c] = 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT collection, COUNT(*) FROM media GROUP BY collection`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var coll string
		var n int
		if err := rows.Scan(&coll, &n); err != nil {
			return stats, err
		}
		stats.Collections[coll] = n
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grants`).Scan(&stats.Grants)
	return stats, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
