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
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "holidaycal/internal/log"
)

var (
	// ErrAllSourcesFailed is returned when neither a proxy nor the cache
	// produced a body.
	ErrAllSourcesFailed = errors.New("all proxies failed to fetch the calendar; the URL may be blocked or invalid")
	// ErrNotCalendar is returned for a body without BEGIN:VCALENDAR.
	ErrNotCalendar = errors.New("invalid calendar file format or content; the URL might be blocked or invalid")
)

// DefaultProxies is the ordered proxy chain. {url} is replaced by the
// query-escaped target URL.
var DefaultProxies = []string{
	"https://corsproxy.io/?{url}",
	"https://api.allorigins.win/raw?url={url}",
	"https://api.codetabs.com/v1/proxy?quest={url}",
}

// Source represents a single ICS subscription source.
type Source struct {
	// ID is an internal identifier (e.g. the subscription name).
	ID string
	// URL is the ICS endpoint as entered by the user.
	URL string
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if we reused cached body due to 304 or failure
	Via       string // request URL that produced the body
}

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher fetches ICS feeds through a proxy chain with HTTP caching
// (ETag / Last-Modified) and a disk-backed cache.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	proxies  []string
}

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

// WithProxies replaces the proxy chain. An empty chain fetches directly.
func WithProxies(proxies []string) FetcherOption {
	return func(f *Fetcher) {
		f.proxies = append([]string(nil), proxies...)
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// NewFetcher creates a new ICS Fetcher.
//
// cacheDir is the base directory where per-URL cache subdirectories and
// metadata are stored. An empty cacheDir disables the disk cache.
func NewFetcher(cacheDir string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
		proxies:  DefaultProxies,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NormalizeURL rewrites webcal:// to https:// and Outlook published .html
// calendar links to their .ics form.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}
	if strings.Contains(u, "outlook.office365.com") && strings.HasSuffix(u, ".html") {
		u = strings.TrimSuffix(u, ".html") + ".ics"
	}
	return u
}

// candidates returns the request URLs to try for target, in order.
func (f *Fetcher) candidates(target string) []string {
	if len(f.proxies) == 0 {
		return []string{target}
	}
	out := make([]string, 0, len(f.proxies))
	for _, p := range f.proxies {
		out = append(out, strings.ReplaceAll(p, "{url}", url.QueryEscape(target)))
	}
	return out
}

// FetchAll fetches all given sources and returns individual results.
// Errors for individual sources are logged and returned in the error slice.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	errs := make([]error, 0)

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, err)
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		results = append(results, res)
	}

	return results, errs
}

// FetchOne normalizes the source URL and tries each proxy in turn. The first
// 200 response wins. When every attempt fails, a cached body is used if one
// exists.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	target := NormalizeURL(src.URL)
	if target == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}
	src.URL = target

	cachePath := f.cachePathForURL(target)
	var meta cacheEntry
	var cachedBody []byte
	if cachePath != "" {
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return FetchResult{}, err
		}
		meta, _ = f.loadCacheMeta(cachePath)
		cachedBody, _ = f.loadCacheBody(cachePath)
	}

	var lastErr error
	for _, reqURL := range f.candidates(target) {
		if err := ctx.Err(); err != nil {
			return FetchResult{}, err
		}

		res, err := f.attempt(ctx, src, reqURL, meta, cachedBody, cachePath)
		if err == nil {
			return res, nil
		}
		lastErr = err
		appLog.Debug("ics fetch attempt failed", "id", src.ID, "via", redactURL(reqURL), "err", err.Error())
	}

	if len(cachedBody) > 0 {
		appLog.Error("ics fetch failed, using cached body", lastErr, "id", src.ID, "url", redactURL(target))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	}
	return FetchResult{}, fmt.Errorf("%w: %v", ErrAllSourcesFailed, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, src Source, reqURL string, meta cacheEntry, cachedBody []byte, cachePath string) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return FetchResult{}, err
	}

	// Conditional headers only make sense when we can serve the cached body.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("ics fetch start", "id", src.ID, "url", redactURL(src.URL), "via", redactURL(reqURL))

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		if cachePath != "" {
			newMeta := cacheEntry{
				URL:          src.URL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := f.saveCache(cachePath, newMeta, body); err != nil {
				// Log but still return the freshly fetched body.
				appLog.Error("ics cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
			}
		}

		appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{Source: src, Body: body, Via: reqURL}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("ics fetch not modified; using cache", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true, Via: reqURL}, nil

	default:
		return FetchResult{}, fmt.Errorf("%s failed (%d)", hostOf(reqURL), resp.StatusCode)
	}
}

func (f *Fetcher) cachePathForURL(u string) string {
	if f.cacheDir == "" || u == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(u))
	// Use first 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
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

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

func hostOf(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "request"
	}
	return parsed.Host
}

// redactURL hides sensitive parts of an ICS URL for logging purposes:
//
//	https://example.com/path/to/private.ics?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
