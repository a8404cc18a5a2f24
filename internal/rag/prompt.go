package rag

import (
	"fmt"
	"strings"

	"brewbook/pkg/types"
)

const (
	// DefaultCount is the number of recipes generated when a request does not say.
	DefaultCount = 3
	// MaxCount bounds a single generation call.
	MaxCount = 10
	// SimilarLimit is how many reference recipes are retrieved for a prompt.
	SimilarLimit = 3

	maxImagePromptRunes = 1000
)

const generationSystemPrompt = "You are an expert barista and mixologist specializing in coffee, matcha, ube, and tea drinks. " +
	"Generate creative, detailed recipes with precise measurements and clear steps. " +
	"Always return valid JSON matching the specified schema."

const drinkOfDaySystemPrompt = "You are an expert barista. Generate one seasonal specialty drink recipe. " +
	"Return exactly one recipe with title, description, tags, type, temperature, ingredients, steps, " +
	"difficulty, prep_time_minutes, total_time_minutes, servings, equipment, seasonal_tags, and flavor_profile."

// schemaFields are the reply keys the parser depends on.
var schemaFields = []string{
	"title", "description", "tags", "type", "temperature", "ingredients", "steps",
	"difficulty", "prep_time_minutes", "total_time_minutes", "servings",
	"equipment", "seasonal_tags", "flavor_profile",
}

// BuildPrompt renders the generation prompt. The output depends only on its inputs.
func BuildPrompt(req types.GenerationRequest, seed *types.Recipe, similar []types.Recipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d creative drink recipes.", normalizeCount(req.Count))

	if ingredients := nonBlank(req.Ingredients); len(ingredients) > 0 {
		fmt.Fprintf(&b, " Use these ingredients: %s.", strings.Join(ingredients, ", "))
	}
	if style := strings.TrimSpace(req.Style); style != "" {
		fmt.Fprintf(&b, " Style: %s.", style)
	}
	if req.Type != "" {
		fmt.Fprintf(&b, " Type: %s.", req.Type)
	}
	if req.Temperature != "" {
		fmt.Fprintf(&b, " Temperature: %s.", req.Temperature)
	}

	if seed != nil {
		fmt.Fprintf(&b, "\n\nSeed Recipe for inspiration:\nTitle: %s\nIngredients: %s\nSteps: %s",
			seed.Title, strings.Join(seed.Ingredients, ", "), strings.Join(seed.Steps, " | "))
	}

	if len(similar) > 0 {
		b.WriteString("\n\nSimilar recipes for reference:\n")
		for i, r := range similar {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, r.Title, strings.Join(r.Ingredients, ", "))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(closingBlock(req))
	return b.String()
}

// closingBlock describes the exact reply shape expected from the model.
func closingBlock(req types.GenerationRequest) string {
	recipeType := req.Type
	if recipeType == "" {
		recipeType = types.RecipeCoffee
	}
	temperature := req.Temperature
	if temperature == "" {
		temperature = types.TemperatureHot
	}
	return fmt.Sprintf(`Return JSON with this exact structure:
{
  "recipes": [
    {
      "title": "Recipe Name",
      "description": "Brief description",
      "tags": ["tag1", "tag2"],
      "type": "%s",
      "temperature": "%s",
      "ingredients": ["2 tbsp ingredient", "1 cup ingredient"],
      "steps": ["Step 1", "Step 2"],
      "difficulty": "medium",
      "prep_time_minutes": 5,
      "total_time_minutes": 10,
      "servings": 1,
      "equipment": ["equipment1", "equipment2"],
      "seasonal_tags": ["summer", "winter"],
      "flavor_profile": ["sweet", "spicy"]
    }
  ]
}`, recipeType, temperature)
}

// SearchQuery joins the free-text request fields used for retrieval.
func SearchQuery(req types.GenerationRequest) string {
	parts := nonBlank(req.Ingredients)
	for _, s := range []string{req.Style, string(req.Type), string(req.Temperature)} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// EmbeddingText is the text a recipe is indexed under.
func EmbeddingText(r types.Recipe) string {
	parts := []string{r.Title, r.Description}
	parts = append(parts, r.Tags...)
	parts = append(parts, r.Ingredients...)
	parts = append(parts, r.Steps...)
	parts = append(parts, string(r.Type), string(r.Temperature))
	parts = append(parts, r.FlavorProfile...)
	parts = append(parts, r.SeasonalTags...)
	return strings.Join(nonBlank(parts), " ")
}

// ImagePrompt renders the image prompt for a recipe, capped at 1000 characters.
func ImagePrompt(r types.Recipe, style string) string {
	if strings.TrimSpace(style) == "" {
		style = defaultImageStyle
	}
	var b strings.Builder
	fmt.Fprintf(&b, "A beautiful, appetizing photo of a %s drink: %s.", r.Type, r.Title)
	if desc := strings.TrimSpace(r.Description); desc != "" {
		b.WriteString(" ")
		b.WriteString(desc)
	}
	fmt.Fprintf(&b, " Style: %s. Professional food photography, perfect lighting, appealing presentation.", strings.TrimSpace(style))

	prompt := []rune(b.String())
	if len(prompt) > maxImagePromptRunes {
		prompt = prompt[:maxImagePromptRunes]
	}
	return string(prompt)
}

func drinkOfDayPrompt(seed string) string {
	return "Generate a seasonal specialty coffee, matcha, ube, or tea drink. Seed: " + seed
}

func normalizeCount(n int) int {
	if n <= 0 {
		return DefaultCount
	}
	if n > MaxCount {
		return MaxCount
	}
	return n
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
