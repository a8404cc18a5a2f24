// Package extract turns fetched recipe pages into ExtractedContent.
package extract

import (
	"brewbook/internal/config"
	"brewbook/pkg/types"
)

// Extractor runs the route-specific extraction for a page body.
type Extractor struct {
	cleaner *Cleaner
}

// New constructs an Extractor.
func New(cfg config.PreprocessConfig) *Extractor {
	return &Extractor{cleaner: NewCleaner(cfg)}
}

// Extract applies the extractor chosen by route. Structured data is always
// attempted before heuristics on the recipe route. An error is returned only
// when the body cannot be parsed as HTML at all.
func (e *Extractor) Extract(route Route, body []byte) (types.ExtractedContent, error) {
	doc, err := ParseHTML(body)
	if err != nil {
		return types.ExtractedContent{}, err
	}
	if route == RouteSocial {
		return SocialPreview(doc), nil
	}

	if structured, ok := FromStructuredData(doc); ok {
		if structured.Title == "" {
			structured.Title = firstText(doc, titleStrategies)
		}
		if structured.Excerpt == "" {
			structured.Excerpt = firstText(doc, excerptStrategies)
		}
		return *structured, nil
	}
	return Heuristic(e.cleaner.Clean(doc)), nil
}
