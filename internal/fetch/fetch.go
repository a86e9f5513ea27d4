// Package fetch downloads publication dumps. Downloads honour robots.txt,
// are rate limited per host, use conditional requests against the
// previous download, and are published atomically.
package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/pubcredit/internal/ledger"
	"github.com/ppiankov/pubcredit/internal/model"
	"github.com/ppiankov/pubcredit/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids the download
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError is a non-success HTTP response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

func (e *StatusError) transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

const maxAttempts = 3

// replaced in tests
var fetchSleepFunc = time.Sleep

// Fetcher downloads dumps
type Fetcher struct {
	client    *http.Client
	userAgent string
	robots    *RobotsChecker
	limiter   *worker.Limiter
	meta      *MetaStore // nil disables conditional requests
	logger    *slog.Logger
}

// New creates a fetcher from configuration. An empty cache dir falls back
// to the user cache directory; when none exists conditional requests are
// disabled.
func New(cfg model.FetchConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	dir := cfg.CacheDir
	if dir == "" {
		if base, err := os.UserCacheDir(); err == nil {
			dir = filepath.Join(base, "pubcredit")
		}
	}
	var meta *MetaStore
	if dir != "" {
		meta = NewMetaStore(dir)
	}

	return &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		robots:    NewRobotsChecker(client, cfg.UserAgent, time.Hour),
		limiter:   worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		meta:      meta,
		logger:    logger,
	}
}

// Request describes one download
type Request struct {
	URL       string
	Dest      string
	VerifyMD5 bool // compare against URL+".md5"
	Force     bool // skip the conditional request
}

// Result describes a finished download
type Result struct {
	Path        string
	NotModified bool
	Bytes       int64
	Digest      string // blake3 of the stored file
	MD5         string // empty unless verified
}

// Fetch downloads req.URL to req.Dest. A 304 response keeps the existing
// file. On any error Dest is left untouched.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	allowed, delay, err := f.robots.CanFetch(ctx, req.URL)
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{}, fmt.Errorf("%s: %w", req.URL, ErrDisallowed)
	}
	if delay > 0 {
		if host, err := hostOf(req.URL); err == nil {
			f.limiter.SetHostDelay(host, delay)
		}
	}

	var wantMD5 string
	if req.VerifyMD5 {
		if wantMD5, err = f.checksum(ctx, req.URL+".md5"); err != nil {
			return Result{}, fmt.Errorf("checksum: %w", err)
		}
	}

	prev, conditional := f.previous(req)
	resp, err := f.getWithRetry(ctx, req.URL, func(r *http.Request) {
		if !conditional {
			return
		}
		if prev.ETag != "" {
			r.Header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			r.Header.Set("If-Modified-Since", prev.LastModified)
		}
	})
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		if !conditional {
			return Result{}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
		}
		f.logger.Info("dump not modified", "url", req.URL, "path", req.Dest)
		return Result{Path: req.Dest, NotModified: true, Bytes: prev.Bytes, Digest: prev.Digest}, nil
	}

	hasher := md5.New()
	pub, err := ledger.Publish(req.Dest, func(w io.Writer) error {
		if _, err := io.Copy(io.MultiWriter(w, hasher), resp.Body); err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if wantMD5 == "" {
			return nil
		}
		if got := hex.EncodeToString(hasher.Sum(nil)); got != wantMD5 {
			return fmt.Errorf("md5 mismatch: got %s, want %s", got, wantMD5)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if f.meta != nil {
		m := Meta{
			URL:          req.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Bytes:        pub.Bytes,
			Digest:       pub.Digest,
			FetchedAt:    time.Now().UTC(),
		}
		if err := f.meta.Set(m); err != nil {
			f.logger.Warn("could not store fetch metadata", "url", req.URL, "error", err)
		}
	}

	f.logger.Info("dump fetched", "url", req.URL, "path", pub.Path, "bytes", pub.Bytes)
	return Result{Path: pub.Path, Bytes: pub.Bytes, Digest: pub.Digest, MD5: wantMD5}, nil
}

// previous returns metadata usable for a conditional request: the file
// must still exist with the recorded size
func (f *Fetcher) previous(req Request) (Meta, bool) {
	if f.meta == nil || req.Force {
		return Meta{}, false
	}
	m, ok := f.meta.Get(req.URL)
	if !ok || (m.ETag == "" && m.LastModified == "") {
		return Meta{}, false
	}
	info, err := os.Stat(req.Dest)
	if err != nil || info.Size() != m.Bytes {
		return Meta{}, false
	}
	return m, true
}

// checksum fetches an md5sum-style file and returns its hex digest
func (f *Fetcher) checksum(ctx context.Context, rawURL string) (string, error) {
	resp, err := f.getWithRetry(ctx, rawURL, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return "", errors.New("empty checksum file")
	}
	sum := strings.ToLower(fields[0])
	if _, err := hex.DecodeString(sum); err != nil || len(sum) != 2*md5.Size {
		return "", fmt.Errorf("malformed checksum %q", fields[0])
	}
	return sum, nil
}

// getWithRetry issues a GET, retrying transport errors and transient
// statuses with exponential backoff. 2xx and 304 responses are returned
// open; other statuses are errors.
func (f *Fetcher) getWithRetry(ctx context.Context, rawURL string, decorate func(*http.Request)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(time.Duration(1<<(attempt-1)) * time.Second)
		}
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", f.userAgent)
		if decorate != nil {
			decorate(req)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("fetch: %w", err)
			f.logger.Debug("fetch attempt failed", "url", rawURL, "attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode == http.StatusNotModified || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
			return resp, nil
		}

		_ = resp.Body.Close()
		serr := &StatusError{Code: resp.StatusCode, Status: resp.Status}
		if !serr.transient() {
			return nil, serr
		}
		lastErr = serr
		f.logger.Debug("fetch attempt failed", "url", rawURL, "attempt", attempt+1, "status", resp.StatusCode)
	}
	return nil, lastErr
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}
