package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"brewbook/pkg/types"
)

// textStrategy yields a candidate string field, or "" when it finds nothing.
type textStrategy func(doc *goquery.Document) string

// listStrategy yields a candidate list field, or nil when it finds nothing.
type listStrategy func(doc *goquery.Document) []string

// leafRule filters free-floating elements for the fallback scan. keywords
// match anywhere in the text; words must stand alone so "frozen" is not "oz".
type leafRule struct {
	minLen, maxLen int
	keywords       []string
	words          *regexp.Regexp
	limit          int
}

var (
	ingredientHeading = regexp.MustCompile(`(?i)ingredients?|what you[’']ll need|you[’']ll need`)
	stepHeading       = regexp.MustCompile(`(?i)instructions?|directions?|how to|steps?|method`)

	ingredientRule = leafRule{
		minLen:   10,
		maxLen:   200,
		keywords: []string{"cup", "tbsp", "tsp", "ounce", "gram", "pound"},
		words:    regexp.MustCompile(`(?:^|[^a-z])(?:oz|ml|shots?)(?:[^a-z]|$)`),
		limit:    20,
	}
	stepRule = leafRule{
		minLen:   20,
		maxLen:   500,
		keywords: []string{"step", "add", "mix", "pour", "stir", "heat"},
		words:    regexp.MustCompile(`(?:^|[^a-z])(?:brew(?:s|ed|ing)?|shakes?|shaking|whisk(?:s|ed|ing)?|combine[sd]?|combining|serve[sd]?|serving)(?:[^a-z]|$)`),
		limit:    15,
	}

	// leafKinds are scanned in order; the first kind with any match wins.
	leafKinds = []string{"li", "p", "div"}
)

var (
	titleStrategies = []textStrategy{
		func(doc *goquery.Document) string { return selectionText(doc.Find("title").First()) },
	}
	excerptStrategies = []textStrategy{
		func(doc *goquery.Document) string { return metaContent(doc, `meta[name="description"]`) },
	}
	ingredientStrategies = []listStrategy{
		headingScoped(ingredientHeading),
		leafScan(ingredientRule),
	}
	stepStrategies = []listStrategy{
		headingScoped(stepHeading),
		leafScan(stepRule),
	}
)

// Heuristic approximates recipe content from raw markup. It never fails;
// fields it cannot find are left empty. Pass the document through a Cleaner
// first to keep scripts and ads out of the scan.
func Heuristic(doc *goquery.Document) types.ExtractedContent {
	if doc == nil {
		return types.ExtractedContent{}
	}
	content := types.ExtractedContent{
		Title:       firstText(doc, titleStrategies),
		Excerpt:     firstText(doc, excerptStrategies),
		Ingredients: firstList(doc, ingredientStrategies),
		Steps:       firstList(doc, stepStrategies),
	}
	applyMetadata(&content, doc.Find("body").Text())
	return content
}

// SocialPreview reads only the title and excerpt that social platforms expose.
func SocialPreview(doc *goquery.Document) types.ExtractedContent {
	if doc == nil {
		return types.ExtractedContent{}
	}
	return types.ExtractedContent{
		Title: firstText(doc, []textStrategy{
			func(doc *goquery.Document) string { return metaContent(doc, `meta[property="og:title"]`) },
			titleStrategies[0],
		}),
		Excerpt: firstText(doc, []textStrategy{
			func(doc *goquery.Document) string { return metaContent(doc, `meta[property="og:description"]`) },
			excerptStrategies[0],
		}),
		ImageURL: metaContent(doc, `meta[property="og:image"]`),
	}
}

func firstText(doc *goquery.Document, strategies []textStrategy) string {
	for _, s := range strategies {
		if v := s(doc); v != "" {
			return v
		}
	}
	return ""
}

func firstList(doc *goquery.Document, strategies []listStrategy) []string {
	for _, s := range strategies {
		if v := s(doc); len(v) > 0 {
			return v
		}
	}
	return nil
}

// headingScoped collects list items that follow a matching section heading, up to the next one.
// h1 is skipped: it is usually the page title, which may itself read "How to make...".
func headingScoped(heading *regexp.Regexp) listStrategy {
	return func(doc *goquery.Document) []string {
		var (
			items      []string
			collecting bool
		)
		doc.Find("h2,h3,h4,h5,h6,li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if goquery.NodeName(s) != "li" {
				if collecting && len(items) > 0 {
					return false
				}
				collecting = heading.MatchString(selectionText(s))
				return true
			}
			if !collecting {
				return true
			}
			if text := selectionText(s); text != "" {
				items = append(items, text)
			}
			return true
		})
		return items
	}
}

// leafScan keeps elements whose text looks like a field entry by length and keywords.
func leafScan(rule leafRule) listStrategy {
	return func(doc *goquery.Document) []string {
		for _, kind := range leafKinds {
			var matches []string
			doc.Find(kind).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if kind == "div" && !isLeafBlock(s.Get(0)) {
					return true
				}
				text := selectionText(s)
				if rule.accepts(text) {
					matches = append(matches, text)
				}
				return len(matches) < rule.limit
			})
			if len(matches) > 0 {
				return matches
			}
		}
		return nil
	}
}

func (r leafRule) accepts(text string) bool {
	n := len([]rune(text))
	if n < r.minLen || n > r.maxLen {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "http") {
		return false
	}
	return containsAny(lower, r.keywords) || (r.words != nil && r.words.MatchString(lower))
}
