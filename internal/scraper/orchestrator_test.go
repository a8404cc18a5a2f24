package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewbook/internal/config"
	"brewbook/internal/extract"
	"brewbook/internal/fetcher"
	"brewbook/pkg/types"
)

const recipePage = `<html><head><title>Iced Latte</title><meta name="description" content="Cold and creamy"></head>
<body><h2>Ingredients</h2><ul><li>2 shots espresso</li><li>1 cup milk</li></ul>
<h2>Steps</h2><ol><li>Pull the espresso shots.</li><li>Pour over ice and add milk.</li></ol></body></html>`

type fakeRobots struct {
	decisions map[string]types.RobotsDecision
	checked   []string
}

func (f *fakeRobots) Check(ctx context.Context, rawURL string) types.RobotsDecision {
	f.checked = append(f.checked, rawURL)
	if d, ok := f.decisions[rawURL]; ok {
		return d
	}
	return types.RobotsDecision{Allowed: true}
}

type fakeFetcher struct {
	bodies  map[string]string
	renders []bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, req types.FetchRequest) (*types.Page, error) {
	f.renders = append(f.renders, req.Render)
	body, ok := f.bodies[req.URL.String()]
	if !ok {
		return nil, fmt.Errorf("%w: HTTP 404 Not Found", fetcher.ErrFetchFailed)
	}
	return &types.Page{URL: req.URL, Body: []byte(body), StatusCode: 200}, nil
}

type fakeSources struct {
	saved []types.ExternalSource
	err   error
}

func (f *fakeSources) UpsertExternalSource(ctx context.Context, src types.ExternalSource) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, src)
	return nil
}

type panicExtractor struct{}

func (panicExtractor) Extract(extract.Route, []byte) (types.ExtractedContent, error) {
	panic("boom")
}

type countingObserver struct {
	outcomes map[string]int
	denied   int
}

func (c *countingObserver) ObserveScrape(_ types.ContentCategory, outcome string, _ time.Duration) {
	if c.outcomes == nil {
		c.outcomes = map[string]int{}
	}
	c.outcomes[outcome]++
}

func (c *countingObserver) ObserveRobotsDenied(bool) { c.denied++ }

type harness struct {
	orch    *Orchestrator
	robots  *fakeRobots
	fetch   *fakeFetcher
	sources *fakeSources
	sleeps  []time.Duration
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		robots:  &fakeRobots{decisions: map[string]types.RobotsDecision{}},
		fetch:   &fakeFetcher{bodies: map[string]string{}},
		sources: &fakeSources{},
	}
	if opts.Sources == nil {
		opts.Sources = h.sources
	}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	h.orch = New(h.robots, h.fetch, extract.New(config.Default().Preprocess), opts)
	h.orch.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	return h
}

func TestScrapeOneSuccess(t *testing.T) {
	h := newHarness(t, Options{})
	h.fetch.bodies["https://coffeecopycat.com/iced-latte"] = recipePage

	res := h.orch.ScrapeOne(context.Background(), "https://coffeecopycat.com/iced-latte")

	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Data)
	assert.Equal(t, "Iced Latte", res.Data.Title)
	assert.Equal(t, []string{"2 shots espresso", "1 cup milk"}, res.Data.Ingredients)
	assert.Equal(t, types.SourceInfo{
		URL:           "https://coffeecopycat.com/iced-latte",
		Domain:        "coffeecopycat.com",
		ContentType:   types.CategoryBlog,
		RobotsAllowed: true,
	}, res.Source)

	require.Len(t, h.sources.saved, 1)
	assert.Equal(t, "Iced Latte", h.sources.saved[0].Title)
	assert.Equal(t, types.CategoryBlog, h.sources.saved[0].ContentType)
}

func TestScrapeOneRobotsDeniedEnforced(t *testing.T) {
	obs := &countingObserver{}
	h := newHarness(t, Options{EnforceDisallow: true, Observer: obs})
	u := "https://example.org/private"
	h.robots.decisions[u] = types.RobotsDecision{Allowed: false}
	h.fetch.bodies[u] = recipePage

	res := h.orch.ScrapeOne(context.Background(), u)

	assert.False(t, res.Success)
	assert.False(t, res.Source.RobotsAllowed)
	assert.Equal(t, ErrPolicyDenied.Error(), res.Error)
	assert.Empty(t, h.fetch.renders, "page must not be fetched")
	assert.Equal(t, 1, obs.denied)
	assert.Equal(t, 1, obs.outcomes["failure"])
}

func TestScrapeOneRobotsDeniedBypassed(t *testing.T) {
	h := newHarness(t, Options{EnforceDisallow: false})
	u := "https://example.org/private"
	h.robots.decisions[u] = types.RobotsDecision{Allowed: false}
	h.fetch.bodies[u] = recipePage

	res := h.orch.ScrapeOne(context.Background(), u)

	assert.True(t, res.Success)
	assert.False(t, res.Source.RobotsAllowed)
	assert.Equal(t, types.CategoryOther, res.Source.ContentType)
	assert.Len(t, res.Data.Steps, 2)
}

func TestScrapeOneHonoursCrawlDelay(t *testing.T) {
	h := newHarness(t, Options{})
	u := "https://slowfood.com/r"
	h.robots.decisions[u] = types.RobotsDecision{Allowed: true, CrawlDelay: 3 * time.Second}
	h.fetch.bodies[u] = recipePage

	res := h.orch.ScrapeOne(context.Background(), u)
	require.True(t, res.Success)
	assert.Equal(t, []time.Duration{3 * time.Second}, h.sleeps)
}

func TestScrapeOneSocialRoute(t *testing.T) {
	h := newHarness(t, Options{RenderSocial: true})
	u := "https://www.instagram.com/p/abc"
	h.fetch.bodies[u] = `<html><head><meta property="og:title" content="Dalgona"><meta property="og:description" content="whipped"></head>
<body><ul><li>2 tbsp instant coffee</li></ul></body></html>`

	res := h.orch.ScrapeOne(context.Background(), u)

	require.True(t, res.Success)
	assert.Equal(t, types.CategorySocial, res.Source.ContentType)
	assert.Equal(t, "Dalgona", res.Data.Title)
	assert.Empty(t, res.Data.Ingredients)
	assert.Equal(t, []bool{true}, h.fetch.renders)
}

func TestScrapeOneFailures(t *testing.T) {
	h := newHarness(t, Options{})

	for _, raw := range []string{"", "ftp://example.com/x", "https://", "::not a url"} {
		res := h.orch.ScrapeOne(context.Background(), raw)
		assert.False(t, res.Success, raw)
		assert.Contains(t, res.Error, "invalid url", raw)
	}

	res := h.orch.ScrapeOne(context.Background(), "https://example.com/missing")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "404")
	assert.Empty(t, h.sources.saved)
}

func TestScrapeOneSourceFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, Options{Sources: &fakeSources{err: errors.New("db down")}})
	h.fetch.bodies["https://example.com/r"] = recipePage

	res := h.orch.ScrapeOne(context.Background(), "https://example.com/r")
	assert.True(t, res.Success)
}

func TestScrapeOneRecoversPanics(t *testing.T) {
	h := newHarness(t, Options{})
	h.orch.extractor = panicExtractor{}
	h.fetch.bodies["https://example.com/r"] = recipePage

	res := h.orch.ScrapeOne(context.Background(), "https://example.com/r")
	assert.False(t, res.Success)
	assert.Nil(t, res.Data)
	assert.Contains(t, res.Error, "boom")
}

func TestScrapeBatchIsolatesFailuresAndKeepsOrder(t *testing.T) {
	h := newHarness(t, Options{BatchDelay: time.Second})
	urls := []string{
		"https://a.example.com/1",
		"https://b.example.com/broken",
		"https://c.example.com/3",
	}
	h.fetch.bodies[urls[0]] = recipePage
	h.fetch.bodies[urls[2]] = recipePage

	results := h.orch.ScrapeBatch(context.Background(), urls)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, urls[i], res.Source.URL)
	}
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, h.sleeps)
	assert.Equal(t, urls, h.robots.checked)
}

func TestScrapeBatchCancelled(t *testing.T) {
	h := newHarness(t, Options{BatchDelay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := h.orch.ScrapeBatch(ctx, []string{"https://a.example.com", "https://b.example.com"})
	require.Len(t, results, 2)
	for _, res := range results {
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "context canceled")
	}
	assert.Empty(t, h.robots.checked)
}

func TestDomainLimiter(t *testing.T) {
	assert.Nil(t, NewDomainLimiter(config.RateLimitConfig{}))
	var nilLimiter *DomainLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "example.com"))

	limiter := NewDomainLimiter(config.RateLimitConfig{Requests: 1, Window: config.DurationFrom(time.Hour)})
	require.NotNil(t, limiter)
	require.NoError(t, limiter.Wait(context.Background(), "example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "EXAMPLE.com"))
	assert.NoError(t, limiter.Wait(context.Background(), "other.com"))
}
