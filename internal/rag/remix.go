package rag

import (
	"context"
	"fmt"
	"log/slog"

	"brewbook/pkg/types"
)

// RemixTag marks recipes produced by a remix.
const RemixTag = "remix"

// Remixer generates variations of a stored recipe and saves them.
type Remixer struct {
	pipeline *Pipeline
	recipes  RecipeStore
	indexer  Indexer
	logger   *slog.Logger
}

// NewRemixer constructs a Remixer. indexer may be nil.
func NewRemixer(pipeline *Pipeline, recipes RecipeStore, indexer Indexer, logger *slog.Logger) *Remixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remixer{pipeline: pipeline, recipes: recipes, indexer: indexer, logger: logger}
}

// RemixResult is the original recipe and the remixes that were stored.
type RemixResult struct {
	Original types.Recipe   `json:"original_recipe"`
	Remixes  []types.Recipe `json:"remixed_recipes"`
}

// Remix seeds a generation with the recipe, its type, and its temperature,
// then stores each result under authorID. Recipes that fail validation or
// storage are skipped and index failures only logged.
func (r *Remixer) Remix(ctx context.Context, recipeID string, count int, authorID string) (RemixResult, error) {
	original, err := r.recipes.GetRecipe(ctx, recipeID)
	if err != nil {
		return RemixResult{}, fmt.Errorf("load recipe: %w", err)
	}
	if count <= 0 {
		count = DefaultCount
	}

	generated, err := r.pipeline.generate(ctx, "remix", types.GenerationRequest{
		SeedRecipeID: original.ID,
		Type:         original.Type,
		Temperature:  original.Temperature,
		Count:        count,
	})
	if err != nil {
		return RemixResult{}, err
	}

	stored := make([]types.Recipe, 0, len(generated.Recipes))
	for _, recipe := range generated.Recipes {
		if !recipe.HasTag(RemixTag) {
			recipe.Tags = append(recipe.Tags, RemixTag)
		}
		recipe.AuthorID = authorID
		recipe.Normalize()
		if err := recipe.Validate(); err != nil {
			r.logger.Warn("skipping invalid remix", "seed_recipe_id", original.ID, "title", recipe.Title, "error", err)
			continue
		}
		saved, err := r.recipes.InsertRecipe(ctx, recipe)
		if err != nil {
			r.logger.Warn("store remixed recipe failed", "seed_recipe_id", original.ID, "title", recipe.Title, "error", err)
			continue
		}
		if r.indexer != nil {
			if err := r.indexer.Index(ctx, saved); err != nil {
				r.logger.Warn("index remixed recipe failed", "recipe_id", saved.ID, "error", err)
			}
		}
		stored = append(stored, saved)
	}
	return RemixResult{Original: original, Remixes: stored}, nil
}
