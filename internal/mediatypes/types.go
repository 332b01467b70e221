package mediatypes

import (
	"path"
	"strings"
)

// Kind is the coarse media category a picked reference was requested as.
type Kind string

const (
	// KindImage is a still image.
	KindImage Kind = "image"
	// KindVideo is a video clip.
	KindVideo Kind = "video"
	// KindFile is any other document.
	KindFile Kind = "file"
)

// ParseKind maps a user-supplied kind name onto a Kind. Unknown names map to KindFile.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "images", "photo":
		return KindImage
	case "video", "videos", "movie":
		return KindVideo
	default:
		return KindFile
	}
}

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".svg":  true,
	".ico":  true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// AudioExtensions maps file extensions to whether they are audio formats.
// Audio is not a picker Kind but the provider files it in its own collection.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	// Audio
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",

	// Documents
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".html": "text/html",
	".csv":  "text/csv",
	".json": "application/json",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".apk":  "application/vnd.android.package-archive",
}

// canonicalExtensions picks one extension per MIME type when several map to it.
var canonicalExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/tiff": ".tiff",
	"video/mpeg": ".mpeg",
	"text/plain": ".txt",
}

// GetKind returns the Kind for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
func GetKind(ext string) Kind {
	if ImageExtensions[ext] {
		return KindImage
	}
	if VideoExtensions[ext] {
		return KindVideo
	}
	return KindFile
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// ExtensionForMime returns the file extension (with leading dot) for a MIME
// type, or "" when none can be derived. Wildcards never yield an extension.
func ExtensionForMime(mime string) string {
	mime = Normalize(mime)
	if mime == "" || IsWildcard(mime) {
		return ""
	}
	if ext, ok := canonicalExtensions[mime]; ok {
		return ext
	}
	for ext, m := range MimeTypes {
		if m == mime {
			return ext
		}
	}
	_, sub, ok := strings.Cut(mime, "/")
	if !ok || !isToken(sub) {
		return ""
	}
	return "." + sub
}

// ExtensionFromPath extracts the lowercase extension (without dot) from a
// path or URL, ignoring any query string or fragment. Returns "" when the
// last segment has no usable extension.
func ExtensionFromPath(p string) string {
	if i := strings.IndexByte(p, '#'); i >= 0 {
		p = p[:i]
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	base := path.Base(p)
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 || dot == len(base)-1 {
		return ""
	}
	ext := strings.ToLower(base[dot+1:])
	if !isToken(ext) {
		return ""
	}
	return ext
}

// GuessFromPath guesses a MIME type from the extension of p.
//
// For KindFile only known extensions produce a result. For images and videos
// the result is always "<kind>/<ext>", normalised through the extension table
// when the extension is known, and "<kind>/*" when there is no extension.
func GuessFromPath(p string, kind Kind) string {
	ext := ExtensionFromPath(p)
	known, isKnown := MimeTypes["."+ext]
	if kind == KindFile || kind == "" {
		if ext != "" && isKnown {
			return known
		}
		return ""
	}
	if ext == "" {
		return string(kind) + "/*"
	}
	if isKnown && strings.HasPrefix(known, string(kind)+"/") {
		return known
	}
	return string(kind) + "/" + ext
}

// Normalize lowercases a MIME type and strips any parameters.
func Normalize(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// IsWildcard reports whether mime is a placeholder such as "image/*".
func IsWildcard(mime string) bool {
	return strings.HasSuffix(Normalize(mime), "/*")
}

// IsConcrete reports whether mime is set and not a wildcard.
func IsConcrete(mime string) bool {
	m := Normalize(mime)
	return m != "" && !strings.HasSuffix(m, "/*")
}

// Prefer returns the MIME type that should be stored when candidate is
// offered while current is held. Concrete types win over wildcards and an
// empty candidate never clears current.
func Prefer(current, candidate string) string {
	candidate = Normalize(candidate)
	if candidate == "" {
		return current
	}
	if IsWildcard(candidate) && IsConcrete(current) {
		return current
	}
	return candidate
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
