package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"brewbook/internal/config"
)

// ParseHTML builds a queryable document from a page body.
func ParseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Cleaner strips noisy nodes before the heuristic scan.
type Cleaner struct {
	opts config.PreprocessConfig
}

// NewCleaner constructs a cleaner from configuration.
func NewCleaner(cfg config.PreprocessConfig) *Cleaner {
	return &Cleaner{opts: cfg}
}

var noiseSelectors = "script,noscript,style,iframe,svg,template,link[rel='stylesheet']"

// Clean returns a copy of doc without scripts, styles, and configured ad containers.
// The input document is left untouched so structured data can still be read from it.
func (c *Cleaner) Clean(doc *goquery.Document) *goquery.Document {
	clone := goquery.CloneDocument(doc)
	clone.Find(noiseSelectors).Remove()

	if c == nil || !c.opts.RemoveAds {
		return clone
	}
	for _, sel := range c.opts.AdSelectors {
		clone.Find(sel).Remove()
	}
	for _, cls := range c.opts.ExtraDropClasses {
		cls = strings.TrimPrefix(strings.TrimSpace(cls), ".")
		if cls == "" {
			continue
		}
		clone.Find("." + cls).Remove()
	}
	return clone
}

var blockLevelTags = map[string]struct{}{
	"p":          {},
	"div":        {},
	"section":    {},
	"article":    {},
	"header":     {},
	"footer":     {},
	"h1":         {},
	"h2":         {},
	"h3":         {},
	"h4":         {},
	"h5":         {},
	"h6":         {},
	"ul":         {},
	"ol":         {},
	"li":         {},
	"table":      {},
	"figure":     {},
	"figcaption": {},
}

// isLeafBlock reports whether node holds no nested block-level element, so
// its text is not a concatenation of several candidates.
func isLeafBlock(node *html.Node) bool {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			continue
		}
		if _, ok := blockLevelTags[child.Data]; ok {
			return false
		}
		if !isLeafBlock(child) {
			return false
		}
	}
	return true
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func selectionText(sel *goquery.Selection) string {
	return normalizeWhitespace(sel.Text())
}

func metaContent(doc *goquery.Document, selector string) string {
	value, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(value)
}
