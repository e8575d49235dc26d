package datasheet

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// Fetcher downloads datasheets into a Store.
type Fetcher struct {
	store   *Store
	client  *http.Client
	maxSize int64
}

// NewFetcher builds a fetcher with its own timeout-bounded client.
func NewFetcher(store *Store, timeout time.Duration, maxSize int64) *Fetcher {
	return &Fetcher{
		store:   store,
		client:  &http.Client{Timeout: timeout},
		maxSize: maxSize,
	}
}

// Fetch downloads url and stores the content, returning the content hash
// and the stored extension.
func (f *Fetcher) Fetch(ctx context.Context, url string) (sha, ext string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("build datasheet request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch datasheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch datasheet: unexpected status %s", resp.Status)
	}

	// Read one byte past the cap so an oversized document is detected
	// rather than silently truncated.
	content, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return "", "", fmt.Errorf("read datasheet: %w", err)
	}
	if int64(len(content)) > f.maxSize {
		return "", "", fmt.Errorf("datasheet exceeds %d byte limit", f.maxSize)
	}
	if len(content) == 0 {
		return "", "", fmt.Errorf("fetch datasheet: empty response")
	}

	ext = extensionFor(resp.Header.Get("Content-Type"))
	sha, err = f.store.Put(content, ext)
	if err != nil {
		return "", "", err
	}
	return sha, ext, nil
}

// extensionFor maps a response content type to a file extension,
// defaulting to .pdf since that is what datasheet links overwhelmingly
// serve (often with a wrong or missing content type).
func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".pdf"
	}
	switch strings.ToLower(mt) {
	case "text/html":
		return ".html"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".pdf"
	}
}
