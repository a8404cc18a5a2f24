package robots

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewbook/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func robotsServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestChecker(cfg config.RobotsConfig) *Checker {
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultBotUserAgent
	}
	return NewChecker(cfg, nil, quietLogger())
}

func TestCheckDisallowedPath(t *testing.T) {
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private\nCrawl-delay: 2\n", nil)
	checker := newTestChecker(config.RobotsConfig{})

	denied := checker.Check(context.Background(), srv.URL+"/private/latte")
	assert.False(t, denied.Allowed)
	assert.Equal(t, 2*time.Second, denied.CrawlDelay)

	allowed := checker.Check(context.Background(), srv.URL+"/recipes/latte")
	assert.True(t, allowed.Allowed)
	assert.Equal(t, 2*time.Second, allowed.CrawlDelay)
}

func TestCheckUsesPrefixNotSubstring(t *testing.T) {
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private\n", nil)
	checker := newTestChecker(config.RobotsConfig{})

	decision := checker.Check(context.Background(), srv.URL+"/recipes/private-reserve")
	assert.True(t, decision.Allowed)
}

func TestCheckAgentSpecificGroup(t *testing.T) {
	body := "User-agent: BrewBookBot\nDisallow: /\n\nUser-agent: *\nAllow: /\n"
	srv := robotsServer(t, http.StatusOK, body, nil)
	checker := newTestChecker(config.RobotsConfig{})

	assert.False(t, checker.Check(context.Background(), srv.URL+"/anything").Allowed)
}

func TestCheckMergesWildcardAndAgentGroups(t *testing.T) {
	body := "User-agent: *\nDisallow: /private\nCrawl-delay: 5\n\nUser-agent: BrewBookBot\nDisallow: /tmp\nCrawl-delay: 1\n"
	srv := robotsServer(t, http.StatusOK, body, nil)
	checker := newTestChecker(config.RobotsConfig{})

	wildcardRule := checker.Check(context.Background(), srv.URL+"/private/recipe")
	assert.False(t, wildcardRule.Allowed)
	assert.Equal(t, 5*time.Second, wildcardRule.CrawlDelay)

	agentRule := checker.Check(context.Background(), srv.URL+"/tmp/draft")
	assert.False(t, agentRule.Allowed)

	open := checker.Check(context.Background(), srv.URL+"/recipes/mocha")
	assert.True(t, open.Allowed)
	assert.Equal(t, 5*time.Second, open.CrawlDelay)
}

func TestCheckFailsOpen(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound, body: "User-agent: *\nDisallow: /\n"},
		{name: "server error", status: http.StatusInternalServerError, body: "User-agent: *\nDisallow: /\n"},
		{name: "forbidden", status: http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := robotsServer(t, tc.status, tc.body, nil)
			decision := newTestChecker(config.RobotsConfig{}).Check(context.Background(), srv.URL+"/x")
			assert.True(t, decision.Allowed)
			assert.Zero(t, decision.CrawlDelay)
		})
	}
}

func TestCheckUnreachableHostFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	decision := newTestChecker(config.RobotsConfig{}).Check(context.Background(), target+"/x")
	assert.True(t, decision.Allowed)
}

func TestCheckOverrideSkipsFetch(t *testing.T) {
	var hits int32
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /\n", &hits)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	checker := newTestChecker(config.RobotsConfig{Overrides: []string{u.Hostname()}})
	assert.True(t, checker.Check(context.Background(), srv.URL+"/x").Allowed)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestCheckRefetchesWithoutCache(t *testing.T) {
	var hits int32
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow:\n", &hits)
	checker := newTestChecker(config.RobotsConfig{})

	checker.Check(context.Background(), srv.URL+"/a")
	checker.Check(context.Background(), srv.URL+"/b")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCheckCachesWithTTL(t *testing.T) {
	var hits int32
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow:\n", &hits)
	checker := newTestChecker(config.RobotsConfig{CacheTTL: config.DurationFrom(time.Minute)})
	now := time.Now()
	checker.now = func() time.Time { return now }

	checker.Check(context.Background(), srv.URL+"/a")
	checker.Check(context.Background(), srv.URL+"/b")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	now = now.Add(2 * time.Minute)
	checker.Check(context.Background(), srv.URL+"/c")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	u, _ := url.Parse(srv.URL)
	checker.Purge(u.Host)
	checker.Check(context.Background(), srv.URL+"/d")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestAgentToken(t *testing.T) {
	assert.Equal(t, "BrewBookBot", agentToken("BrewBookBot/1.0 (+https://brewbook.app/bot)"))
	assert.Equal(t, "plain", agentToken("plain"))
}

func TestCheckCollapsesConcurrentFetches(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		_, _ = io.WriteString(w, "User-agent: *\nDisallow: /private\n")
	}))
	t.Cleanup(srv.Close)
	checker := newTestChecker(config.RobotsConfig{CacheTTL: config.DurationFrom(time.Minute)})

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = checker.Check(context.Background(), srv.URL+"/private/mocha").Allowed
		}()
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, []bool{false, false, false, false}, results)
	assert.LessOrEqual(t, atomic.LoadInt32(&hits), int32(2))
}

func TestOverrideIgnoresWWWPrefix(t *testing.T) {
	checker := newTestChecker(config.RobotsConfig{Overrides: []string{"www.Example.com"}})
	assert.True(t, checker.trusted["example.com"])
	assert.True(t, checker.Check(context.Background(), "https://example.com/recipes").Allowed)
}
