package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"brewbook/internal/config"
	"brewbook/pkg/types"
)

const (
	// Social platforms inject their Open Graph tags client-side; the title is the last to land.
	defaultPreviewSelector = `meta[property="og:title"]`
	defaultRenderTimeout   = 45 * time.Second
	defaultSettleDelay     = 250 * time.Millisecond
	fallbackBrowserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124 Safari/537.36"
)

// RenderOptions configures headless rendering of social post pages.
type RenderOptions struct {
	Timeout         time.Duration
	PreviewSelector string
	// PreviewWait bounds how long to wait for PreviewSelector before capturing anyway.
	PreviewWait  time.Duration
	SettleDelay  time.Duration
	UserAgent    string
	MaxBodyBytes int64
	Headful      bool
	Sessions     int
}

// RenderOptionsFromConfig maps rendering configuration onto renderer options.
func RenderOptionsFromConfig(cfg config.RenderingConfig, userAgent string, maxBodyBytes int64) RenderOptions {
	return RenderOptions{
		Timeout:         cfg.Timeout.Duration,
		PreviewSelector: cfg.WaitForSelector,
		UserAgent:       userAgent,
		MaxBodyBytes:    maxBodyBytes,
		Headful:         cfg.DisableHeadless,
		Sessions:        cfg.ConcurrentSessions,
	}
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.Timeout <= 0 {
		o.Timeout = defaultRenderTimeout
	}
	if strings.TrimSpace(o.PreviewSelector) == "" {
		o.PreviewSelector = defaultPreviewSelector
	}
	if o.PreviewWait <= 0 || o.PreviewWait > o.Timeout {
		o.PreviewWait = o.Timeout / 2
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = defaultSettleDelay
	}
	if strings.TrimSpace(o.UserAgent) == "" {
		o.UserAgent = fallbackBrowserAgent
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.Sessions <= 0 {
		o.Sessions = 1
	}
	return o
}

// ChromedpRenderer loads social posts in headless Chrome so their preview
// metadata exists in the captured DOM.
type ChromedpRenderer struct {
	opts   RenderOptions
	slots  chan struct{}
	logger *slog.Logger
}

// NewChromedpRenderer builds a renderer that runs at most opts.Sessions browsers at once.
func NewChromedpRenderer(opts RenderOptions, logger *slog.Logger) *ChromedpRenderer {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromedpRenderer{
		opts:   opts,
		slots:  make(chan struct{}, opts.Sessions),
		logger: logger.With("component", "renderer"),
	}
}

// Render captures the DOM of req.URL once its preview tags appear or the preview wait runs out.
func (r *ChromedpRenderer) Render(ctx context.Context, req types.FetchRequest) (*types.Page, error) {
	if req.URL == nil {
		return nil, errors.New("render request has no url")
	}
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	target := req.URL.String()
	logger := r.logger.With("url", target)

	var dom, location string
	start := time.Now()
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(target),
		r.waitForPreview(logger),
		chromedp.Sleep(r.opts.SettleDelay),
		chromedp.OuterHTML("html", &dom, chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: render %s: %w", ErrFetchFailed, target, err)
	}

	if int64(len(dom)) > r.opts.MaxBodyBytes {
		dom = dom[:r.opts.MaxBodyBytes]
	}
	final := req.URL
	if parsed, perr := url.Parse(location); perr == nil && location != "" {
		final = parsed
	}
	elapsed := time.Since(start)
	logger.Debug("rendered page", "final_url", final.String(), "bytes", len(dom), "elapsed", elapsed)

	return &types.Page{
		URL:             req.URL,
		FinalURL:        final,
		Body:            []byte(dom),
		ContentType:     "text/html; charset=utf-8",
		StatusCode:      200,
		FetchedAt:       time.Now(),
		Rendered:        true,
		ResponseLatency: elapsed,
	}, nil
}

// waitForPreview waits for the preview selector without failing the render when it never shows up;
// pages without Open Graph tags still carry a usable title and body.
func (r *ChromedpRenderer) waitForPreview(logger *slog.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, r.opts.PreviewWait)
		defer cancel()
		err := chromedp.WaitReady(r.opts.PreviewSelector, chromedp.ByQuery).Do(waitCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Debug("preview selector not found", "selector", r.opts.PreviewSelector, "error", err)
		return nil
	})
}

func (r *ChromedpRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", !r.opts.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent(r.opts.UserAgent),
	}
}

func (r *ChromedpRenderer) acquire(ctx context.Context) error {
	select {
	case r.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ChromedpRenderer) release() { <-r.slots }
