package types

import (
	"strings"
	"time"
)

// RecipeType is the drink family of a recipe.
type RecipeType string

const (
	RecipeCoffee RecipeType = "coffee"
	RecipeMatcha RecipeType = "matcha"
	RecipeUbe    RecipeType = "ube"
	RecipeTea    RecipeType = "tea"
)

// Valid reports whether t is a known recipe type.
func (t RecipeType) Valid() bool {
	switch t {
	case RecipeCoffee, RecipeMatcha, RecipeUbe, RecipeTea:
		return true
	}
	return false
}

// Temperature is the serving temperature of a drink.
type Temperature string

const (
	TemperatureHot  Temperature = "hot"
	TemperatureIced Temperature = "iced"
)

// Valid reports whether t is a known temperature.
func (t Temperature) Valid() bool {
	return t == TemperatureHot || t == TemperatureIced
}

// Difficulty grades how hard a recipe is to make.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// NormalizeEnum lower-cases and trims a raw enum value.
func NormalizeEnum(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Recipe is a user-facing drink recipe. JSON names follow the generation reply contract.
type Recipe struct {
	ID               string      `json:"id,omitempty"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Tags             []string    `json:"tags"`
	Type             RecipeType  `json:"type"`
	Temperature      Temperature `json:"temperature"`
	Ingredients      []string    `json:"ingredients"`
	Steps            []string    `json:"steps"`
	Difficulty       Difficulty  `json:"difficulty,omitempty"`
	PrepTimeMinutes  *int        `json:"prep_time_minutes,omitempty"`
	TotalTimeMinutes *int        `json:"total_time_minutes,omitempty"`
	Servings         *int        `json:"servings,omitempty"`
	Equipment        []string    `json:"equipment"`
	SeasonalTags     []string    `json:"seasonal_tags"`
	FlavorProfile    []string    `json:"flavor_profile"`
	ImageURL         string      `json:"image_url,omitempty"`
	VideoURL         string      `json:"video_url,omitempty"`
	AuthorID         string      `json:"author_id,omitempty"`
	SourceURL        string      `json:"source_url,omitempty"`
	CreatedAt        time.Time   `json:"created_at,omitzero"`
	UpdatedAt        time.Time   `json:"updated_at,omitzero"`
}

// HasTag reports whether the recipe carries tag, ignoring case.
func (r Recipe) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// GenerationRequest carries the caller's inputs for recipe generation.
type GenerationRequest struct {
	SeedRecipeID string      `json:"seed_recipe_id,omitempty"`
	Ingredients  []string    `json:"ingredients,omitempty"`
	Style        string      `json:"style,omitempty"`
	Type         RecipeType  `json:"type,omitempty"`
	Temperature  Temperature `json:"temperature,omitempty"`
	Count        int         `json:"count,omitempty"`
}

// HasSubject reports whether the request names a seed, ingredients, or a style.
func (r GenerationRequest) HasSubject() bool {
	if strings.TrimSpace(r.SeedRecipeID) != "" || strings.TrimSpace(r.Style) != "" {
		return true
	}
	for _, ing := range r.Ingredients {
		if strings.TrimSpace(ing) != "" {
			return true
		}
	}
	return false
}

// GenerationResult is the ephemeral output of one generation call.
type GenerationResult struct {
	Recipes        []Recipe `json:"recipes"`
	SeedRecipe     *Recipe  `json:"seed_recipe,omitempty"`
	SimilarRecipes []Recipe `json:"similar_recipes"`
	TokensUsed     int64    `json:"tokens_used"`
	Model          string   `json:"model,omitempty"`
}

// Generation is a stored record of a seeded generation call.
type Generation struct {
	ID               string    `json:"id"`
	Prompt           string    `json:"prompt"`
	SeedRecipeID     string    `json:"seed_recipe_id,omitempty"`
	GeneratedRecipes []Recipe  `json:"generated_recipes"`
	ModelUsed        string    `json:"model_used"`
	TokensUsed       int64     `json:"tokens_used"`
	CreatedAt        time.Time `json:"created_at"`
}
