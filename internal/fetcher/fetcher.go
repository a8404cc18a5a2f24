// Package fetcher downloads recipe and social pages over HTTP, optionally
// through a headless browser.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brewbook/internal/config"
	"brewbook/pkg/types"
)

// ErrFetchFailed marks network failures and non-2xx responses.
var ErrFetchFailed = errors.New("fetch failed")

const (
	defaultFetchTimeout = 10 * time.Second
	defaultMaxBodyBytes = 5 << 20

	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.8"
)

// Fetcher retrieves one page for the scraper.
type Fetcher interface {
	Fetch(ctx context.Context, req types.FetchRequest) (*types.Page, error)
}

// Options controls HTTP fetching behaviour.
type Options struct {
	UserAgent    string
	Headers      map[string]string
	Timeout      time.Duration
	MaxBodyBytes int64
	ProxyURL     string
}

// OptionsFromConfig maps scrape configuration onto fetch options.
func OptionsFromConfig(cfg config.ScrapeConfig) Options {
	return Options{
		UserAgent:    cfg.UserAgent,
		Headers:      cfg.Headers,
		Timeout:      cfg.RequestTimeout.Duration,
		MaxBodyBytes: cfg.MaxBodyBytes,
		ProxyURL:     cfg.ProxyURL,
	}
}

// HTTPFetcher performs plain GET requests with a browser-like header set.
type HTTPFetcher struct {
	client  *http.Client
	headers http.Header
	limit   int64
}

// NewHTTPFetcher builds a fetcher with its own transport.
func NewHTTPFetcher(opts Options) (*HTTPFetcher, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	limit := opts.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	transport, err := newTransport(opts.ProxyURL)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Accept", acceptHTML)
	headers.Set("Accept-Language", acceptLanguage)
	headers.Set("Accept-Encoding", supportedEncodings)
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		headers.Set("User-Agent", ua)
	}
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}

	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout, Transport: transport},
		headers: headers,
		limit:   limit,
	}, nil
}

func newTransport(proxy string) (*http.Transport, error) {
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          50,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		// Decoding is done here so brotli bodies are handled like gzip.
		DisableCompression: true,
	}
	if proxy = strings.TrimSpace(proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return transport, nil
}

// Fetch downloads req.URL. Non-2xx statuses and oversized bodies fail with ErrFetchFailed.
func (f *HTTPFetcher) Fetch(ctx context.Context, req types.FetchRequest) (*types.Page, error) {
	if req.URL == nil {
		return nil, errors.New("fetch request has no url")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header = f.headers.Clone()

	start := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d %s", ErrFetchFailed, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	body, err := decodeBody(resp, f.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	return &types.Page{
		URL:             req.URL,
		FinalURL:        finalURL,
		Body:            body,
		ContentType:     resp.Header.Get("Content-Type"),
		StatusCode:      resp.StatusCode,
		Headers:         maps.Clone(resp.Header),
		FetchedAt:       time.Now(),
		ResponseLatency: time.Since(start),
	}, nil
}

// Client exposes the underlying HTTP client, shared with robots.txt checks and image downloads.
func (f *HTTPFetcher) Client() *http.Client {
	if f == nil {
		return nil
	}
	return f.client
}

// Renderer executes JavaScript and returns the rendered DOM.
type Renderer interface {
	Render(ctx context.Context, req types.FetchRequest) (*types.Page, error)
}

// Composite sends render requests to a browser and everything else, including
// failed renders, to plain HTTP.
type Composite struct {
	http     Fetcher
	renderer Renderer
	logger   *slog.Logger
}

// NewComposite builds a composite fetcher. renderer may be nil.
func NewComposite(httpFetcher Fetcher, renderer Renderer, logger *slog.Logger) *Composite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composite{http: httpFetcher, renderer: renderer, logger: logger}
}

// Fetch renders when asked and a renderer is configured, otherwise downloads.
func (c *Composite) Fetch(ctx context.Context, req types.FetchRequest) (*types.Page, error) {
	if req.Render && c.renderer != nil {
		page, err := c.renderer.Render(ctx, req)
		if err == nil {
			return page, nil
		}
		c.logger.Warn("render failed; using plain http", "url", req.URL.String(), "error", err)
	}
	req.Render = false
	return c.http.Fetch(ctx, req)
}
