// Package robots decides whether the scraper may fetch a URL.
package robots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"brewbook/internal/config"
	"brewbook/pkg/types"
)

const maxRobotsBytes = 512 << 10

// Checker evaluates robots.txt rules for the scraper's user agent.
//
// Disallow rules from the "*" group and the bot's own group both apply and use
// path-prefix matching, so "/private" blocks "/private/x" but not "/recipes/private". Any failure to obtain rules is
// treated as allow-all.
type Checker struct {
	client    *http.Client
	userAgent string
	product   string
	ttl       time.Duration
	trusted   map[string]bool
	logger    *slog.Logger
	now       func() time.Time

	inflight singleflight.Group
	mu       sync.RWMutex
	hosts    map[string]hostRules
}

type hostRules struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

// NewChecker constructs a robots checker. A nil client gets one with the configured timeout.
func NewChecker(cfg config.RobotsConfig, client *http.Client, logger *slog.Logger) *Checker {
	if client == nil {
		timeout := cfg.Timeout.Duration
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = config.DefaultBotUserAgent
	}

	trusted := make(map[string]bool, len(cfg.Overrides))
	for _, host := range cfg.Overrides {
		if host = normalizeHost(host); host != "" {
			trusted[host] = true
		}
	}

	return &Checker{
		client:    client,
		userAgent: userAgent,
		product:   agentToken(userAgent),
		ttl:       cfg.CacheTTL.Duration,
		trusted:   trusted,
		logger:    logger.With("component", "robots"),
		now:       time.Now,
		hosts:     make(map[string]hostRules),
	}
}

// Check reports whether rawURL may be fetched and the crawl delay to honour.
func (c *Checker) Check(ctx context.Context, rawURL string) types.RobotsDecision {
	open := types.RobotsDecision{Allowed: true}

	target, err := url.Parse(rawURL)
	if err != nil || !target.IsAbs() || target.Host == "" {
		c.logger.Debug("unparseable url, allowing", "url", rawURL)
		return open
	}
	if c.trusted[normalizeHost(target.Hostname())] {
		return open
	}

	data, err := c.lookup(ctx, target)
	if err != nil {
		c.logger.Debug("robots.txt unavailable, allowing", "host", target.Host, "error", err)
		return open
	}
	// Rules from the bot's own group and the "*" group both apply; the longer crawl delay wins.
	path := requestPath(target)
	decision := open
	for _, group := range []*robotstxt.Group{data.FindGroup(c.product), data.FindGroup("*")} {
		if group == nil {
			continue
		}
		decision.Allowed = decision.Allowed && group.Test(path)
		decision.CrawlDelay = max(decision.CrawlDelay, group.CrawlDelay)
	}
	return decision
}

// lookup returns cached rules for the host or downloads them, collapsing concurrent downloads.
func (c *Checker) lookup(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	key := strings.ToLower(target.Host)
	if data, ok := c.cached(key); ok {
		return data, nil
	}

	v, err, _ := c.inflight.Do(key, func() (any, error) {
		data, err := c.download(ctx, target.Scheme+"://"+target.Host+"/robots.txt")
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.hosts[key] = hostRules{data: data, expires: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotstxt.RobotsData), nil
}

func (c *Checker) cached(key string) (*robotstxt.RobotsData, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.hosts[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expires) {
		return nil, false
	}
	return entry.data, true
}

// download treats every non-2xx status as missing rules.
func (c *Checker) download(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", robotsURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("get %s: status %d", robotsURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}

// Purge evicts cached rules for a host (host[:port]).
func (c *Checker) Purge(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return
	}
	c.mu.Lock()
	delete(c.hosts, host)
	c.mu.Unlock()
}

func requestPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
}

// agentToken reduces a full user-agent string to the product token robots.txt groups match on.
func agentToken(userAgent string) string {
	token := userAgent
	if idx := strings.IndexAny(token, " /("); idx > 0 {
		token = token[:idx]
	}
	return strings.TrimSpace(token)
}
