// Package resolver turns picked references into locally readable paths.
//
// A reference is a local path, a file:// URI, an http(s) URL or a content://
// URI. Content URIs go through up to four strategies in order: a direct
// column lookup, document decomposition, a copy through a file handle and a
// copy through a plain stream. The first strategy that leaves the item on a
// non-content path wins. Whatever happens, a percent-decoding pass runs
// last.
//
// Resolution never fails an item. An item that is still a content URI after
// every strategy is left for the materializer to reject.
package resolver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"media-picker/internal/filesystem"
	"media-picker/internal/logging"
	"media-picker/internal/mediatypes"
	"media-picker/internal/metrics"
	"media-picker/internal/picker"
)

// Config wires the capabilities a Resolver uses. Any of Querier, Documents
// and Streams may be nil, which disables the strategies that need it.
type Config struct {
	Querier   Querier
	Documents Documents
	Streams   StreamOpener
	Namer     Namer

	// HTTPClient is used for http(s) references. When nil a client with
	// HTTPTimeout is created; a zero timeout means no timeout.
	HTTPClient  *http.Client
	HTTPTimeout time.Duration
}

// Resolver implements the resolution stage. It holds no per-item state and
// may be shared by concurrent batches.
type Resolver struct {
	querier Querier
	docs    Documents
	streams StreamOpener
	namer   Namer
	client  *http.Client
}

// New creates a Resolver from cfg.
func New(cfg Config) *Resolver {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Resolver{
		querier: cfg.Querier,
		docs:    cfg.Documents,
		streams: cfg.Streams,
		namer:   cfg.Namer,
		client:  client,
	}
}

type strategy struct {
	name string
	run  func(ctx context.Context, item *picker.Item) error
}

// Resolve moves item.ResolvedPath as close to a local file as possible. The
// returned result is Skipped for items that were already resolved, Degraded
// when the item is left unresolved, and Done otherwise.
func (r *Resolver) Resolve(ctx context.Context, item *picker.Item) picker.Result {
	if item.Resolved() && item.ResolvedPath != item.QueryReference {
		return picker.Skipped(picker.StageResolve)
	}

	ref := item.QueryReference
	var lastErr error

	switch {
	case strings.HasPrefix(ref, "file://") || strings.HasPrefix(ref, "/"):
		r.resolveLocal(item)
		metrics.ResolutionAttempts.WithLabelValues("file", "resolved").Inc()

	case strings.HasPrefix(ref, "http"):
		if err := r.download(ctx, item); err != nil {
			lastErr = picker.Wrap(picker.ErrResolution, picker.StageResolve, "download", err)
			metrics.ResolutionAttempts.WithLabelValues("http", "error").Inc()
			logging.Warn("resolver: download of %s failed: %v", ref, err)
		} else {
			metrics.ResolutionAttempts.WithLabelValues("http", "resolved").Inc()
		}

	case picker.IsContentURI(ref):
		lastErr = r.resolveContent(ctx, item)
	}

	r.decodePath(item)

	if picker.IsContentURI(item.ResolvedPath) {
		if lastErr == nil {
			lastErr = picker.Wrap(picker.ErrResolution, picker.StageResolve, "content", picker.ErrUnresolved)
		}
		logging.Warn("resolver: %s is still unresolved", ref)
		return picker.Degraded(picker.StageResolve, lastErr)
	}
	if lastErr != nil {
		return picker.Degraded(picker.StageResolve, lastErr)
	}

	logging.Debug("resolver: %s -> %s (%s)", ref, item.ResolvedPath, item.MimeType)
	return picker.Done(picker.StageResolve)
}

func (r *Resolver) resolveLocal(item *picker.Item) {
	item.SetResolvedPath(strings.TrimPrefix(item.QueryReference, "file://"))
	name := path.Base(item.ResolvedPath)
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	item.DisplayName = name
	item.SetMimeType(mediatypes.GuessFromPath(item.ResolvedPath, item.Kind))
}

func (r *Resolver) resolveContent(ctx context.Context, item *picker.Item) error {
	var strategies []strategy
	if r.querier != nil {
		strategies = append(strategies, strategy{"column", r.fromColumns})
		if r.docs != nil {
			strategies = append(strategies, strategy{"document", r.fromDocument})
		}
	}
	if r.streams != nil && r.namer != nil {
		strategies = append(strategies,
			strategy{"descriptor", r.fromDescriptor},
			strategy{"stream", r.fromStream},
		)
	}

	var lastErr error
	for _, s := range strategies {
		if !picker.IsContentURI(item.ResolvedPath) {
			break
		}

		err := s.run(ctx, item)
		switch {
		case !picker.IsContentURI(item.ResolvedPath):
			metrics.ResolutionAttempts.WithLabelValues(s.name, "resolved").Inc()
			logging.Debug("resolver: %s resolved %s", s.name, item.QueryReference)
		case err != nil:
			lastErr = picker.Wrap(picker.ErrResolution, picker.StageResolve, s.name, err)
			metrics.ResolutionAttempts.WithLabelValues(s.name, "error").Inc()
			logging.Debug("resolver: %s failed for %s: %v", s.name, item.QueryReference, err)
		default:
			metrics.ResolutionAttempts.WithLabelValues(s.name, "fallthrough").Inc()
		}
	}
	return lastErr
}

// fromColumns queries the provider for the data, display name and MIME
// columns of the reference itself.
func (r *Resolver) fromColumns(ctx context.Context, item *picker.Item) error {
	uri := item.QueryReference
	if strings.HasPrefix(uri, legacyGalleryPrefix) {
		uri = strings.Replace(uri, legacyGallery, modernGallery, 1)
	}
	item.SetResolvedPath(uri)

	row, err := r.querier.Query(ctx, uri, []string{ColumnData, ColumnDisplayName, ColumnMimeType}, "", nil)
	if errors.Is(err, ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	if !strings.Contains(uri, brokenDataAuthority) {
		if p, ok := row.Get(ColumnData); ok {
			item.SetResolvedPath(localPath(p))
		}
	}
	if name, ok := row.Get(ColumnDisplayName); ok {
		item.DisplayName = norm.NFC.String(name)
	}
	if m, ok := row.Get(ColumnMimeType); ok {
		item.SetMimeType(m)
	}
	return nil
}

// fromDocument decomposes document URIs into collection queries.
func (r *Resolver) fromDocument(ctx context.Context, item *picker.Item) error {
	uri := item.ResolvedPath

	target, selection, args := uri, "", []string(nil)
	if r.docs.IsDocumentURI(uri) {
		switch authority(uri) {
		case DownloadsDocumentsAuthority:
			id, err := r.docs.DocumentID(uri)
			if err != nil {
				return err
			}
			if raw, ok := strings.CutPrefix(id, "raw:"); ok {
				r.adopt(item, raw)
				return nil
			}
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return fmt.Errorf("downloads document id %q: %w", id, err)
			}
			target = PublicDownloadsURI + "/" + strconv.FormatInt(n, 10)

		case MediaDocumentsAuthority:
			id, err := r.docs.DocumentID(uri)
			if err != nil {
				return err
			}
			kind, num, ok := strings.Cut(id, ":")
			if !ok {
				return fmt.Errorf("media document id %q has no type", id)
			}
			switch kind {
			case "image":
				target = MediaImagesURI
			case "video":
				target = MediaVideoURI
			case "audio":
				target = MediaAudioURI
			default:
				return fmt.Errorf("media document type %q is not supported", kind)
			}
			selection, args = ColumnID+"=?", []string{num}
		}
	}

	row, err := r.querier.Query(ctx, target, []string{ColumnData}, selection, args)
	if errors.Is(err, ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if p, ok := row.Get(ColumnData); ok {
		r.adopt(item, p)
	}
	return nil
}

func (r *Resolver) adopt(item *picker.Item, p string) {
	p = localPath(p)
	if item.SetResolvedPath(p) {
		item.SetMimeType(mediatypes.GuessFromPath(p, item.Kind))
	}
}

// fromDescriptor copies the content behind a raw file handle.
func (r *Resolver) fromDescriptor(ctx context.Context, item *picker.Item) error {
	f, err := r.streams.OpenFile(ctx, item.ResolvedPath)
	if err != nil {
		return err
	}
	defer closeQuietly(f, item.ResolvedPath)

	return r.copyStream(item, bufio.NewReader(f))
}

// fromStream copies the content behind a plain stream.
func (r *Resolver) fromStream(ctx context.Context, item *picker.Item) error {
	rc, err := r.streams.OpenStream(ctx, item.ResolvedPath)
	if err != nil {
		return err
	}
	defer closeQuietly(rc, item.ResolvedPath)

	return r.copyStream(item, bufio.NewReader(rc))
}

func (r *Resolver) copyStream(item *picker.Item, br *bufio.Reader) error {
	sniffed, err := mediatypes.SniffReader(br)
	if err != nil {
		return err
	}
	if !mediatypes.IsConcrete(item.MimeType) && sniffed != "" {
		item.SetMimeType(sniffed)
	}

	target, err := r.namer.GenerateTargetPath(item)
	if err != nil {
		return err
	}

	n, err := filesystem.WriteStream(target, br)
	if err != nil {
		return err
	}
	metrics.DownloadBytes.Add(float64(n))

	item.SetResolvedPath(target)
	if !mediatypes.IsConcrete(item.MimeType) {
		item.SetMimeType(mediatypes.GuessFromPath(target, item.Kind))
	}
	return nil
}

// decodePath adopts the percent-decoded form of the resolved path when it
// differs. Malformed escapes leave the path unchanged.
func (r *Resolver) decodePath(item *picker.Item) {
	decoded, err := url.PathUnescape(item.ResolvedPath)
	if err != nil {
		logging.Debug("resolver: cannot decode %s: %v", item.ResolvedPath, err)
		return
	}
	if decoded != item.ResolvedPath {
		item.SetResolvedPath(decoded)
	}
}

func localPath(p string) string {
	return strings.TrimPrefix(p, "file://")
}

func authority(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Host
}
