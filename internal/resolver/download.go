package resolver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"

	"media-picker/internal/filesystem"
	"media-picker/internal/logging"
	"media-picker/internal/mediatypes"
	"media-picker/internal/metrics"
	"media-picker/internal/picker"
)

// maxPageBytes bounds how much of an HTML page is parsed for og: tags.
const maxPageBytes = 2 << 20

// ErrBlockedAddress is returned when a download would connect to a
// loopback, private, link-local or unspecified address.
var ErrBlockedAddress = errors.New("address not allowed")

// PublicClient returns an HTTP client that only connects to public
// addresses. The check runs on the resolved address of every dial, so
// redirects and DNS answers pointing inwards are refused too.
func PublicClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 30 * time.Second, Control: publicOnly}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: transport}
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// download fetches an http(s) reference into a generated local file. On
// failure the item is restored to its state before the call.
func (r *Resolver) download(ctx context.Context, item *picker.Item) error {
	if r.namer == nil {
		return fmt.Errorf("no target namer configured")
	}

	saved := *item
	err := r.fetch(ctx, item, item.QueryReference, true)
	if err != nil {
		results := item.Results
		*item = saved
		item.Results = results
	}
	return err
}

func (r *Resolver) fetch(ctx context.Context, item *picker.Item, rawURL string, followPage bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer closeQuietly(resp.Body, rawURL)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}

	br := bufio.NewReader(resp.Body)
	sniffed, err := mediatypes.SniffReader(br)
	if err != nil {
		return err
	}
	header := mediatypes.Normalize(resp.Header.Get("Content-Type"))

	isPage := sniffed == "text/html" || (sniffed == "" && header == "text/html")
	if isPage && item.Kind != mediatypes.KindFile {
		if !followPage {
			return fmt.Errorf("%s is an HTML page", rawURL)
		}
		next, err := pageMediaURL(br, rawURL, item.Kind)
		if err != nil {
			return err
		}
		logging.Debug("resolver: following %s from %s", next, rawURL)
		return r.fetch(ctx, item, next, false)
	}

	item.SetMimeType(downloadMime(rawURL, item.Kind, sniffed, header))

	target, err := r.namer.GenerateTargetPath(item)
	if err != nil {
		return err
	}

	n, err := filesystem.WriteStream(target, br)
	if err != nil {
		return err
	}
	metrics.DownloadBytes.Add(float64(n))
	logging.Debug("resolver: downloaded %d bytes from %s to %s", n, rawURL, target)

	item.SetResolvedPath(target)
	return nil
}

// downloadMime derives a MIME type from the URL extension, then the
// response content, then the Content-Type header. Images and videos fall back
// to "<kind>/*".
func downloadMime(rawURL string, kind mediatypes.Kind, sniffed, header string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	guess := mediatypes.GuessFromPath(p, kind)
	if mediatypes.IsConcrete(guess) {
		return guess
	}
	if sniffed != "" {
		return sniffed
	}
	if mediatypes.IsConcrete(header) && header != "application/octet-stream" && header != "text/html" {
		return header
	}
	return guess
}

// pageMediaURL returns the absolute og:video or og:image URL declared by an
// HTML page.
func pageMediaURL(r io.Reader, pageURL string, kind mediatypes.Kind) (string, error) {
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(r, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", pageURL, err)
	}

	properties := []string{"og:image", "og:image:url", "og:image:secure_url"}
	if kind == mediatypes.KindVideo {
		properties = []string{"og:video", "og:video:url", "og:video:secure_url"}
	}

	for _, prop := range properties {
		content, ok := doc.Find(`meta[property="` + prop + `"]`).First().Attr("content")
		if !ok || content == "" {
			continue
		}
		base, err := url.Parse(pageURL)
		if err != nil {
			return "", err
		}
		ref, err := url.Parse(content)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String(), nil
	}
	return "", fmt.Errorf("%s declares no %s", pageURL, properties[0])
}

func closeQuietly(c io.Closer, name string) {
	if err := c.Close(); err != nil {
		logging.Debug("resolver: close %s: %v", name, err)
	}
}
