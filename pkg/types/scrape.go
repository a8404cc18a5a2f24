package types

import (
	"encoding/json"
	"time"
)

// ContentCategory labels a domain by the kind of content it usually serves.
type ContentCategory string

const (
	CategorySocial     ContentCategory = "social"
	CategoryRecipeSite ContentCategory = "recipe_site"
	CategoryBlog       ContentCategory = "blog"
	CategoryOther      ContentCategory = "other"
)

// RobotsDecision is the outcome of evaluating a site's robots policy for one URL.
type RobotsDecision struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// MarshalJSON reports the crawl delay in seconds.
func (d RobotsDecision) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Allowed           bool    `json:"allowed"`
		CrawlDelaySeconds float64 `json:"crawl_delay_seconds"`
	}{d.Allowed, d.CrawlDelay.Seconds()})
}

// ExtractedContent is the best-effort recipe data pulled out of one page.
// Title and Excerpt are always present, possibly empty.
type ExtractedContent struct {
	Title       string   `json:"title"`
	Excerpt     string   `json:"excerpt"`
	Ingredients []string `json:"ingredients,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	PrepTime    string   `json:"prep_time,omitempty"`
	TotalTime   string   `json:"total_time,omitempty"`
	Servings    string   `json:"servings,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Cuisine     string   `json:"cuisine,omitempty"`
	Course      string   `json:"course,omitempty"`
	// Structured is true when the content came from an embedded schema.org Recipe.
	Structured bool `json:"structured"`
}

// Empty reports whether nothing beyond title and excerpt was found.
func (c ExtractedContent) Empty() bool {
	return len(c.Ingredients) == 0 && len(c.Steps) == 0
}

// SourceInfo describes where a scrape result came from.
type SourceInfo struct {
	URL           string          `json:"url"`
	Domain        string          `json:"domain"`
	ContentType   ContentCategory `json:"content_type"`
	RobotsAllowed bool            `json:"robots_allowed"`
}

// ScrapeResult is the independent outcome of scraping one URL.
type ScrapeResult struct {
	Success bool              `json:"success"`
	Data    *ExtractedContent `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Source  SourceInfo        `json:"source"`
}

// ExternalSource is the persisted record of a scraped page.
type ExternalSource struct {
	URL           string          `json:"url" db:"url"`
	Domain        string          `json:"domain" db:"domain"`
	Title         string          `json:"title" db:"title"`
	Excerpt       string          `json:"excerpt" db:"excerpt"`
	ContentType   ContentCategory `json:"content_type" db:"content_type"`
	RobotsAllowed bool            `json:"robots_allowed" db:"robots_txt_allowed"`
	LastScraped   time.Time       `json:"last_scraped" db:"last_scraped"`
}
