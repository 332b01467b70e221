package provider

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"media-picker/internal/mediatypes"
	"media-picker/internal/resolver"
)

var collectionURIs = map[string]string{
	CollectionImages:    resolver.MediaImagesURI,
	CollectionVideo:     resolver.MediaVideoURI,
	CollectionAudio:     resolver.MediaAudioURI,
	CollectionDownloads: resolver.PublicDownloadsURI,
}

// document id prefixes used by the media documents authority
var documentTypes = map[string]string{
	CollectionImages: "image",
	CollectionVideo:  "video",
	CollectionAudio:  "audio",
}

// CollectionFor picks the collection a file belongs to from its extension.
func CollectionFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case mediatypes.ImageExtensions[ext]:
		return CollectionImages
	case mediatypes.VideoExtensions[ext]:
		return CollectionVideo
	case mediatypes.AudioExtensions[ext]:
		return CollectionAudio
	default:
		return CollectionDownloads
	}
}

// CollectionURI returns the content URI of a collection, or "" for an
// unknown collection.
func CollectionURI(collection string) string {
	return collectionURIs[collection]
}

// ContentURI returns the content URI of row id in collection.
func ContentURI(collection string, id int64) string {
	return CollectionURI(collection) + "/" + strconv.FormatInt(id, 10)
}

// DocumentURI returns the document-provider URI for m: downloads are
// addressed by id, other collections by "<type>:<id>".
func DocumentURI(m Media) string {
	if t, ok := documentTypes[m.Collection]; ok {
		return documentURI(resolver.MediaDocumentsAuthority, t+":"+strconv.FormatInt(m.ID, 10))
	}
	return documentURI(resolver.DownloadsDocumentsAuthority, strconv.FormatInt(m.ID, 10))
}

func documentURI(authority, docID string) string {
	return "content://" + authority + "/document/" + url.PathEscape(docID)
}

// parseCollectionURI splits uri into a collection and an optional row id.
func parseCollectionURI(uri string) (collection, id string, ok bool) {
	uri = stripQuery(uri)
	for coll, base := range collectionURIs {
		if uri == base {
			return coll, "", true
		}
		if rest, found := strings.CutPrefix(uri, base+"/"); found && rest != "" && !strings.Contains(rest, "/") {
			return coll, rest, true
		}
	}
	return "", "", false
}

// IsDocumentURI reports whether uri is a document URI of one of the
// document authorities this provider serves.
func IsDocumentURI(uri string) bool {
	_, _, err := splitDocumentURI(uri)
	return err == nil
}

// DocumentID returns the decoded document id of uri.
func DocumentID(uri string) (string, error) {
	_, id, err := splitDocumentURI(uri)
	return id, err
}

func splitDocumentURI(uri string) (authority, id string, err error) {
	rest, ok := strings.CutPrefix(stripQuery(uri), "content://")
	if !ok {
		return "", "", fmt.Errorf("not a content uri: %s", uri)
	}
	authority, path, _ := strings.Cut(rest, "/")
	if authority != resolver.DownloadsDocumentsAuthority && authority != resolver.MediaDocumentsAuthority {
		return "", "", fmt.Errorf("not a document authority: %s", authority)
	}
	raw, ok := strings.CutPrefix(path, "document/")
	if !ok || raw == "" || strings.Contains(raw, "/") {
		return "", "", fmt.Errorf("not a document uri: %s", uri)
	}
	id, err = url.PathUnescape(raw)
	if err != nil {
		return "", "", fmt.Errorf("document id %q: %w", raw, err)
	}
	return authority, id, nil
}

// documentTarget maps a document id onto a collection and row id. Downloads
// documents may also carry a raw path, returned as rawPath.
func documentTarget(authority, docID string) (collection, id, rawPath string, err error) {
	if authority == resolver.DownloadsDocumentsAuthority {
		if p, ok := strings.CutPrefix(docID, "raw:"); ok {
			return CollectionDownloads, "", p, nil
		}
		return CollectionDownloads, docID, "", nil
	}

	t, num, ok := strings.Cut(docID, ":")
	if !ok {
		return "", "", "", fmt.Errorf("media document id %q has no type", docID)
	}
	for coll, prefix := range documentTypes {
		if prefix == t {
			return coll, num, "", nil
		}
	}
	return "", "", "", fmt.Errorf("media document type %q is not supported", t)
}

func stripQuery(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		return uri[:i]
	}
	return uri
}
