package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	appLog "daycal/internal/log"
)

const (
	defaultLookupTimeout = 10 * time.Second
	maxDescriptionBytes  = 1 << 20
)

// Lookup returns descriptive text for an event. Implementations must not
// fail: when no text is available they return fallback.
type Lookup interface {
	Describe(ctx context.Context, url, fallback string) string
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, url, fallback string) string

func (f LookupFunc) Describe(ctx context.Context, url, fallback string) string {
	return f(ctx, url, fallback)
}

// Fallback is a Lookup that never leaves the process.
type Fallback struct{}

func (Fallback) Describe(_ context.Context, _, fallback string) string {
	return fallback
}

// cacheEntry holds HTTP cache metadata for a single description URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// memoEntry is the result of the first fetch of a URL within this process.
type memoEntry struct {
	once sync.Once
	text string
	err  error
}

// HTTPLookup fetches plain-text descriptions over HTTP.
//
// Each URL is fetched at most once per HTTPLookup, since a rule's
// description is shared by all of its years. When cacheDir is set, bodies
// are kept on disk and revalidated with ETag / Last-Modified.
type HTTPLookup struct {
	client   *http.Client
	timeout  time.Duration
	cacheDir string

	mu   sync.Mutex
	memo map[string]*memoEntry
}

// NewHTTPLookup creates a lookup with a per-request timeout. An empty
// cacheDir disables the disk cache.
func NewHTTPLookup(cacheDir string, timeout time.Duration) *HTTPLookup {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &HTTPLookup{
		client:   &http.Client{},
		timeout:  timeout,
		cacheDir: cacheDir,
		memo:     make(map[string]*memoEntry),
	}
}

// Describe returns the trimmed response body for url, or fallback on any
// transport error, non-2xx status, timeout or empty body.
func (l *HTTPLookup) Describe(ctx context.Context, url, fallback string) string {
	if url == "" {
		return fallback
	}

	l.mu.Lock()
	m, ok := l.memo[url]
	if !ok {
		m = &memoEntry{}
		l.memo[url] = m
	}
	l.mu.Unlock()

	m.once.Do(func() {
		m.text, m.err = l.fetch(ctx, url)
		if m.err != nil {
			appLog.Error("description lookup degraded to fallback", m.err, "url", url)
		}
	})

	if m.err != nil {
		// Failures are not remembered; a later call may retry.
		l.mu.Lock()
		if l.memo[url] == m {
			delete(l.memo, url)
		}
		l.mu.Unlock()
		return fallback
	}
	if m.text == "" {
		return fallback
	}
	return m.text
}

func (l *HTTPLookup) fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var (
		cachePath  string
		meta       cacheEntry
		cachedBody []byte
	)
	if l.cacheDir != "" {
		cachePath = l.cachePathForURL(url)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return "", err
		}
		meta, _ = loadCacheMeta(cachePath)
		cachedBody, _ = loadCacheBody(cachePath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	// Conditional headers only make sense when there is a body to reuse.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && len(cachedBody) > 0:
		appLog.Debug("description not modified; using cache", "url", url)
		return strings.TrimSpace(string(cachedBody)), nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptionBytes))
		if err != nil {
			return "", err
		}
		if cachePath != "" {
			newMeta := cacheEntry{
				URL:          url,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveCache(cachePath, newMeta, body); err != nil {
				// Log but still return the freshly fetched body.
				appLog.Error("description cache save failed", err, "url", url)
			}
		}
		appLog.Debug("description fetched", "url", url, "status", resp.StatusCode, "bytes", len(body))
		return strings.TrimSpace(string(body)), nil

	default:
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}
}

func (l *HTTPLookup) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// Use first 16 hex chars as directory name.
	return filepath.Join(l.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.txt"))
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	if cachePath == "" {
		return errors.New("empty cache path")
	}

	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.txt"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}
