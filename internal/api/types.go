package api

import (
	"context"
	"time"

	"brewbook/internal/rag"
	"brewbook/internal/storage"
	"brewbook/pkg/types"
)

// Scraper runs a sequential scrape batch.
type Scraper interface {
	ScrapeBatch(ctx context.Context, urls []string) []types.ScrapeResult
}

// Importer turns successful scrape results into stored recipes.
type Importer interface {
	Import(ctx context.Context, results []types.ScrapeResult) []types.Recipe
}

// Generator runs a recipe generation.
type Generator interface {
	Generate(ctx context.Context, req types.GenerationRequest) (types.GenerationResult, error)
}

// ImageGenerator attaches a generated image to a stored recipe.
type ImageGenerator interface {
	Generate(ctx context.Context, recipeID, style string) (string, error)
}

// Searcher answers semantic queries and indexes new recipes.
type Searcher interface {
	Search(ctx context.Context, query string, filter storage.VectorFilter) ([]types.Recipe, error)
	Index(ctx context.Context, recipe types.Recipe) error
}

// Remixer generates and stores variations of a recipe.
type Remixer interface {
	Remix(ctx context.Context, recipeID string, count int, authorID string) (rag.RemixResult, error)
}

// DrinkOfDay resolves the featured drink.
type DrinkOfDay interface {
	Get(ctx context.Context) (types.Recipe, error)
}

// RecipeStore is the persistence behind the recipe and history routes.
type RecipeStore interface {
	GetRecipe(ctx context.Context, id string) (types.Recipe, error)
	InsertRecipe(ctx context.Context, recipe types.Recipe) (types.Recipe, error)
	UpdateRecipe(ctx context.Context, recipe types.Recipe) (types.Recipe, error)
	DeleteRecipe(ctx context.Context, id string) error
	ListRecipes(ctx context.Context, params storage.ListParams) ([]types.Recipe, error)
	ListExternalSources(ctx context.Context, limit int) ([]types.ExternalSource, error)
	GenerationsForSeed(ctx context.Context, seedID string) ([]types.Generation, error)
}

// SavedStore keeps each user's bookmarked recipes.
type SavedStore interface {
	SaveRecipe(ctx context.Context, userID, recipeID string) error
	UnsaveRecipe(ctx context.Context, userID, recipeID string) error
	SavedRecipes(ctx context.Context, userID string) ([]types.Recipe, error)
	IsSaved(ctx context.Context, userID, recipeID string) (bool, error)
}

// HTTPObserver records request latency by route.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// ScrapeRequest is the body of POST /api/scrape.
type ScrapeRequest struct {
	URLs []string `json:"urls"`
	Save bool     `json:"save,omitempty"`
}

// ScrapeResponse summarises a scrape batch.
type ScrapeResponse struct {
	Success      bool                 `json:"success"`
	Scraped      int                  `json:"scraped"`
	Successful   int                  `json:"successful"`
	Saved        int                  `json:"saved"`
	Results      []types.ScrapeResult `json:"results"`
	SavedRecipes []types.Recipe       `json:"saved_recipes"`
}

// GenerateImageRequest is the body of POST /api/generate-image.
type GenerateImageRequest struct {
	RecipeID string `json:"recipe_id"`
	Style    string `json:"style,omitempty"`
}

// GenerateImageResponse carries the stored image URL.
type GenerateImageResponse struct {
	ImageURL string `json:"image_url"`
}

// RemixRequest is the optional body of POST /api/recipes/{id}/remix.
type RemixRequest struct {
	Count int `json:"count,omitempty"`
}

// SearchResponse lists semantic search matches, best first.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []types.Recipe `json:"results"`
}

// RecipeListResponse is one page of recipes.
type RecipeListResponse struct {
	Recipes []types.Recipe `json:"recipes"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// SavedStatus reports whether the caller has bookmarked a recipe.
type SavedStatus struct {
	RecipeID string `json:"recipe_id"`
	Saved    bool   `json:"saved"`
}

// SavedListResponse lists the caller's bookmarked recipes.
type SavedListResponse struct {
	Recipes []types.Recipe `json:"recipes"`
	Count   int            `json:"count"`
}

// DrinkOfDayResponse wraps the featured drink.
type DrinkOfDayResponse struct {
	Drink types.Recipe `json:"drink"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
