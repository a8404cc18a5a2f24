package extract

import (
	"strings"

	"brewbook/pkg/types"
)

// Route selects the extraction path for a page.
type Route string

const (
	// RouteSocial extracts only a preview (title and excerpt).
	RouteSocial Route = "social"
	// RouteRecipe tries structured data first, then heuristics.
	RouteRecipe Route = "recipe"
)

// Keyword sets are checked in order; the first set containing a substring of the domain wins.
var (
	socialKeywords = []string{"instagram", "tiktok", "twitter", "facebook", "pinterest"}
	blogKeywords   = []string{"blog", "medium.com", "wordpress.com", "substack.com", "coffeecopycat.com"}
	recipeKeywords = []string{"recipe", "food", "cooking", "kitchen", "barista"}
)

// Classify labels a domain by substring heuristics. It has no side effects.
func Classify(domain string) types.ContentCategory {
	domain = strings.ToLower(strings.TrimSpace(domain))
	switch {
	case containsAny(domain, socialKeywords):
		return types.CategorySocial
	case containsAny(domain, blogKeywords):
		return types.CategoryBlog
	case containsAny(domain, recipeKeywords):
		return types.CategoryRecipeSite
	default:
		return types.CategoryOther
	}
}

// RouteFor decides which extractor handles a category. Blog and Other pages
// share the recipe path with RecipeSite.
func RouteFor(category types.ContentCategory) Route {
	if category == types.CategorySocial {
		return RouteSocial
	}
	return RouteRecipe
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
