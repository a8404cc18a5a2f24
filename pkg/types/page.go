package types

import (
	"net/http"
	"net/url"
	"time"
)

// FetchRequest describes a single page download.
type FetchRequest struct {
	URL *url.URL
	// Render asks for a JavaScript-rendered DOM when a renderer is configured.
	Render bool
}

// Page represents the fetched content.
type Page struct {
	URL             *url.URL
	FinalURL        *url.URL
	Body            []byte
	ContentType     string
	StatusCode      int
	Headers         http.Header
	FetchedAt       time.Time
	Rendered        bool
	ResponseLatency time.Duration
}
