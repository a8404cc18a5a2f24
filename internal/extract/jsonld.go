package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"brewbook/pkg/types"
)

// FromStructuredData maps the first schema.org Recipe found in the page's
// JSON-LD blocks. Missing or malformed blocks yield (nil, false).
func FromStructuredData(doc *goquery.Document) (*types.ExtractedContent, bool) {
	if doc == nil {
		return nil, false
	}
	var found *types.ExtractedContent
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return true
		}
		node, ok := findRecipeNode(payload)
		if !ok {
			return true
		}
		content := mapRecipeNode(node)
		found = &content
		return false
	})
	return found, found != nil
}

func findRecipeNode(data any) (map[string]any, bool) {
	switch v := data.(type) {
	case map[string]any:
		if hasRecipeType(v["@type"]) {
			return v, true
		}
		if graph, ok := v["@graph"]; ok {
			if node, ok := findRecipeNode(graph); ok {
				return node, true
			}
		}
		if entity, ok := v["mainEntity"]; ok {
			if node, ok := findRecipeNode(entity); ok {
				return node, true
			}
		}
	case []any:
		for _, item := range v {
			if node, ok := findRecipeNode(item); ok {
				return node, true
			}
		}
	}
	return nil, false
}

func hasRecipeType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "Recipe")
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, "Recipe") {
				return true
			}
		}
	}
	return false
}

func mapRecipeNode(m map[string]any) types.ExtractedContent {
	return types.ExtractedContent{
		Title:       normalizeWhitespace(stringValue(m["name"])),
		Excerpt:     normalizeWhitespace(stringValue(m["description"])),
		Ingredients: stringList(m["recipeIngredient"]),
		Steps:       instructionList(m["recipeInstructions"]),
		ImageURL:    firstImage(m["image"]),
		PrepTime:    stringValue(m["prepTime"]),
		TotalTime:   stringValue(m["totalTime"]),
		Servings:    joinedValue(m["recipeYield"]),
		Difficulty:  joinedValue(m["recipeDifficulty"]),
		Cuisine:     joinedValue(m["recipeCuisine"]),
		Course:      joinedValue(m["recipeCategory"]),
		Structured:  true,
	}
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// joinedValue flattens a scalar or an array of scalars.
func joinedValue(v any) string {
	list, ok := v.([]any)
	if !ok {
		return stringValue(v)
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		if s := stringValue(item); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func stringList(v any) []string {
	var out []string
	switch val := v.(type) {
	case string:
		if s := normalizeWhitespace(val); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range val {
			if s := normalizeWhitespace(stringValue(item)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// instructionList normalises recipeInstructions to plain strings. Objects
// contribute their text, falling back to name; sections are flattened.
func instructionList(v any) []string {
	var steps []string
	switch val := v.(type) {
	case string:
		if s := normalizeWhitespace(val); s != "" {
			steps = append(steps, s)
		}
	case []any:
		for _, item := range val {
			steps = append(steps, instructionList(item)...)
		}
	case map[string]any:
		if nested, ok := val["itemListElement"]; ok {
			return instructionList(nested)
		}
		text := normalizeWhitespace(stringValue(val["text"]))
		if text == "" {
			text = normalizeWhitespace(stringValue(val["name"]))
		}
		if text != "" {
			steps = append(steps, text)
		}
	}
	return steps
}

func firstImage(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		if u := stringValue(val["url"]); u != "" {
			return u
		}
		return stringValue(val["@id"])
	case []any:
		for _, item := range val {
			if u := firstImage(item); u != "" {
				return u
			}
		}
	}
	return ""
}
