package resolver

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-picker/internal/mediatypes"
	"media-picker/internal/picker"
)

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newMediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	pngData := pngBytes(t)
	jpegData := jpegBytes(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngData)
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(jpegData)
	})
	mux.HandleFunc("/post", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><head>
<meta property="og:title" content="A post">
<meta property="og:image" content="/img.png">
</head><body>hello</body></html>`))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><meta property="og:image" content="/loop"></head></html>`))
	})
	mux.HandleFunc("/bare", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>nothing</title></head></html>`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload(t *testing.T) {
	srv := newMediaServer(t)

	tests := []struct {
		name     string
		path     string
		kind     mediatypes.Kind
		wantMime string
		wantExt  string
	}{
		{"png by extension", "/img.png", mediatypes.KindImage, "image/png", ".png"},
		{"sniffed jpeg", "/blob", mediatypes.KindImage, "image/jpeg", ".jpg"},
		{"og image followed", "/post", mediatypes.KindImage, "image/png", ".png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			namer, dir := newNamer(t)
			r := New(Config{Namer: namer})

			item := picker.NewItem(srv.URL+tt.path, tt.kind)
			res := r.Resolve(context.Background(), item)

			if res.Status != picker.StatusDone {
				t.Fatalf("status = %v (%v)", res.Status, res.Err)
			}
			if filepath.Dir(item.ResolvedPath) != dir {
				t.Errorf("ResolvedPath = %q, want inside %q", item.ResolvedPath, dir)
			}
			if filepath.Ext(item.ResolvedPath) != tt.wantExt {
				t.Errorf("extension of %q, want %q", item.ResolvedPath, tt.wantExt)
			}
			if item.MimeType != tt.wantMime {
				t.Errorf("MimeType = %q, want %q", item.MimeType, tt.wantMime)
			}
			if info, err := os.Stat(item.ResolvedPath); err != nil || info.Size() == 0 {
				t.Errorf("downloaded file missing or empty: %v", err)
			}
		})
	}
}

func TestDownloadFailureLeavesItemUntouched(t *testing.T) {
	srv := newMediaServer(t)

	for _, p := range []string{"/missing.png", "/loop", "/bare"} {
		t.Run(p, func(t *testing.T) {
			namer, dir := newNamer(t)
			r := New(Config{Namer: namer})

			item := picker.NewItem(srv.URL+p, mediatypes.KindImage)
			item.MimeType = "image/*"
			item.DisplayName = "keep-me"

			res := r.Resolve(context.Background(), item)

			if res.Status != picker.StatusDegraded || !errors.Is(res.Err, picker.ErrResolution) {
				t.Errorf("result = %+v, want degraded resolution failure", res)
			}
			if item.ResolvedPath != srv.URL+p {
				t.Errorf("ResolvedPath = %q, want query reference", item.ResolvedPath)
			}
			if item.MimeType != "image/*" || item.DisplayName != "keep-me" {
				t.Errorf("item mutated: mime=%q name=%q", item.MimeType, item.DisplayName)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("files left behind: %v", entries)
			}
		})
	}
}

func TestPublicClientRefusesLocalAddresses(t *testing.T) {
	srv := newMediaServer(t)
	namer, dir := newNamer(t)
	r := New(Config{Namer: namer, HTTPClient: PublicClient(5 * time.Second)})

	item := picker.NewItem(srv.URL+"/img.png", mediatypes.KindImage)
	res := r.Resolve(context.Background(), item)

	if res.Status != picker.StatusDegraded || !errors.Is(res.Err, ErrBlockedAddress) {
		t.Errorf("result = %+v, want degraded with blocked address", res)
	}
	if item.ResolvedPath != item.QueryReference {
		t.Errorf("ResolvedPath = %q", item.ResolvedPath)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("files left behind: %v", entries)
	}
}

func TestPublicOnly(t *testing.T) {
	tests := []struct {
		address string
		blocked bool
	}{
		{"127.0.0.1:80", true},
		{"[::1]:443", true},
		{"10.1.2.3:80", true},
		{"192.168.0.10:8080", true},
		{"169.254.169.254:80", true},
		{"0.0.0.0:80", true},
		{"93.184.216.34:443", false},
		{"[2606:2800:220:1:248:1893:25c8:1946]:443", false},
	}
	for _, tt := range tests {
		err := publicOnly("tcp", tt.address, nil)
		if got := errors.Is(err, ErrBlockedAddress); got != tt.blocked {
			t.Errorf("publicOnly(%q) = %v, want blocked %v", tt.address, err, tt.blocked)
		}
	}
}

func TestDownloadMime(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		kind    mediatypes.Kind
		sniffed string
		header  string
		want    string
	}{
		{"extension wins", "http://h/a.png", mediatypes.KindImage, "image/jpeg", "", "image/png"},
		{"sniffed beats wildcard", "http://h/a", mediatypes.KindImage, "image/gif", "", "image/gif"},
		{"header used last", "http://h/a", mediatypes.KindVideo, "", "video/webm", "video/webm"},
		{"octet stream ignored", "http://h/a", mediatypes.KindImage, "", "application/octet-stream", "image/*"},
		{"host is not an extension", "http://example.com", mediatypes.KindImage, "", "", "image/*"},
		{"file kind unknown", "http://h/a", mediatypes.KindFile, "", "", ""},
		{"query ignored", "http://h/a.jpg?w=100", mediatypes.KindImage, "", "", "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := downloadMime(tt.url, tt.kind, tt.sniffed, tt.header); got != tt.want {
				t.Errorf("downloadMime() = %q, want %q", got, tt.want)
			}
		})
	}
}
