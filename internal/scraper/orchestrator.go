// Package scraper drives robots checks, fetching, and extraction for submitted URLs.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"brewbook/internal/extract"
	"brewbook/internal/fetcher"
	"brewbook/pkg/types"
)

// ErrPolicyDenied is returned when robots.txt disallows a URL and enforcement is on.
var ErrPolicyDenied = errors.New("robots.txt disallows this url")

// ErrInvalidURL marks input that is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid url")

// PolicyChecker decides whether a URL may be fetched.
type PolicyChecker interface {
	Check(ctx context.Context, rawURL string) types.RobotsDecision
}

// ContentExtractor turns a page body into extracted content for a route.
type ContentExtractor interface {
	Extract(route extract.Route, body []byte) (types.ExtractedContent, error)
}

// SourceStore persists a record of every successfully scraped page.
type SourceStore interface {
	UpsertExternalSource(ctx context.Context, src types.ExternalSource) error
}

// Observer receives scrape outcomes, typically for metrics.
type Observer interface {
	ObserveScrape(category types.ContentCategory, outcome string, elapsed time.Duration)
	ObserveRobotsDenied(enforced bool)
}

// Options configures an Orchestrator.
type Options struct {
	// EnforceDisallow fails a URL that robots.txt disallows. When false the
	// denial is logged and the page is scraped anyway.
	EnforceDisallow bool
	// BatchDelay is the pause between consecutive URLs of a batch.
	BatchDelay time.Duration
	// RenderSocial asks the fetcher to render social pages with a browser.
	RenderSocial bool
	Limiter      *DomainLimiter
	Sources      SourceStore
	Observer     Observer
	Logger       *slog.Logger
}

// Orchestrator scrapes URLs one at a time.
type Orchestrator struct {
	robots    PolicyChecker
	fetcher   fetcher.Fetcher
	extractor ContentExtractor
	opts      Options
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New constructs an Orchestrator.
func New(robots PolicyChecker, f fetcher.Fetcher, extractor ContentExtractor, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		robots:    robots,
		fetcher:   f,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// ScrapeBatch scrapes urls sequentially, pausing between them. The result
// slice has one entry per input URL in input order; a failing URL never
// affects its siblings.
func (o *Orchestrator) ScrapeBatch(ctx context.Context, urls []string) []types.ScrapeResult {
	results := make([]types.ScrapeResult, 0, len(urls))
	for i, raw := range urls {
		if i > 0 && o.opts.BatchDelay > 0 {
			if err := o.sleep(ctx, o.opts.BatchDelay); err != nil {
				results = append(results, failedResult(raw, err))
				continue
			}
		}
		if err := ctx.Err(); err != nil {
			results = append(results, failedResult(raw, err))
			continue
		}
		results = append(results, o.ScrapeOne(ctx, raw))
	}
	return results
}

// ScrapeOne runs the robots check, fetch, and extraction for one URL. Every
// failure, including a panic in extraction, is reported in the result.
func (o *Orchestrator) ScrapeOne(ctx context.Context, rawURL string) (result types.ScrapeResult) {
	start := o.now()
	rawURL = strings.TrimSpace(rawURL)
	result.Source.URL = rawURL

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("scrape panicked", "url", rawURL, "panic", r)
			result.Success = false
			result.Data = nil
			result.Error = fmt.Sprintf("internal error: %v", r)
		}
		outcome := "success"
		if !result.Success {
			outcome = "failure"
		}
		if o.opts.Observer != nil {
			o.opts.Observer.ObserveScrape(result.Source.ContentType, outcome, o.now().Sub(start))
		}
	}()

	target, err := parseTarget(rawURL)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	domain := strings.ToLower(target.Hostname())
	category := extract.Classify(domain)
	result.Source.Domain = domain
	result.Source.ContentType = category

	logger := o.logger.With("url", rawURL, "domain", domain)

	decision := o.robots.Check(ctx, target.String())
	result.Source.RobotsAllowed = decision.Allowed
	if !decision.Allowed {
		if o.opts.Observer != nil {
			o.opts.Observer.ObserveRobotsDenied(o.opts.EnforceDisallow)
		}
		if o.opts.EnforceDisallow {
			logger.Info("robots.txt disallows url, skipping")
			result.Error = ErrPolicyDenied.Error()
			return result
		}
		logger.Warn("robots.txt disallows url, scraping anyway because robots.enforce_disallow is off")
	}

	if decision.CrawlDelay > 0 {
		logger.Debug("honouring crawl delay", "delay", decision.CrawlDelay.String())
		if err := o.sleep(ctx, decision.CrawlDelay); err != nil {
			result.Error = err.Error()
			return result
		}
	}
	if err := o.opts.Limiter.Wait(ctx, domain); err != nil {
		result.Error = err.Error()
		return result
	}

	route := extract.RouteFor(category)
	page, err := o.fetcher.Fetch(ctx, types.FetchRequest{
		URL:    target,
		Render: route == extract.RouteSocial && o.opts.RenderSocial,
	})
	if err != nil {
		logger.Warn("fetch failed", "error", err)
		result.Error = err.Error()
		return result
	}

	content, err := o.extractor.Extract(route, page.Body)
	if err != nil {
		logger.Warn("extraction failed", "error", err)
		result.Error = err.Error()
		return result
	}
	if content.Empty() {
		logger.Info("no recipe content found", "route", string(route))
	}

	o.recordSource(ctx, logger, result.Source, content)

	result.Success = true
	result.Data = &content
	return result
}

func (o *Orchestrator) recordSource(ctx context.Context, logger *slog.Logger, src types.SourceInfo, content types.ExtractedContent) {
	if o.opts.Sources == nil {
		return
	}
	err := o.opts.Sources.UpsertExternalSource(ctx, types.ExternalSource{
		URL:           src.URL,
		Domain:        src.Domain,
		Title:         content.Title,
		Excerpt:       content.Excerpt,
		ContentType:   src.ContentType,
		RobotsAllowed: src.RobotsAllowed,
		LastScraped:   o.now().UTC(),
	})
	if err != nil {
		logger.Warn("record external source failed", "error", err)
	}
}

func parseTarget(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, target.Scheme)
	}
	if target.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return target, nil
}

func failedResult(rawURL string, err error) types.ScrapeResult {
	return types.ScrapeResult{
		Error:  err.Error(),
		Source: types.SourceInfo{URL: rawURL},
	}
}
