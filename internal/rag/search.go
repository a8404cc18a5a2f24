package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"brewbook/internal/llm"
	"brewbook/internal/storage"
	"brewbook/pkg/types"
)

// DefaultSearchLimit applies when a search does not set a limit.
const DefaultSearchLimit = 5

// Searcher embeds text and queries the vector index.
type Searcher struct {
	embedder llm.Embedder
	index    storage.VectorIndex
	recipes  RecipeStore
	logger   *slog.Logger
}

// NewSearcher constructs a Searcher.
func NewSearcher(embedder llm.Embedder, index storage.VectorIndex, recipes RecipeStore, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{embedder: embedder, index: index, recipes: recipes, logger: logger}
}

// Search returns the recipes nearest to query, best match first.
func (s *Searcher) Search(ctx context.Context, query string, filter storage.VectorFilter) ([]types.Recipe, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultSearchLimit
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.index.Search(ctx, vector, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return []types.Recipe{}, nil
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.RecipeID)
	}
	found, err := s.recipes.GetRecipes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load search results: %w", err)
	}

	byID := make(map[string]types.Recipe, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	ranked := make([]types.Recipe, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			s.logger.Debug("vector hit without recipe row", "recipe_id", id)
			continue
		}
		ranked = append(ranked, r)
	}
	return ranked, nil
}

// Index embeds the recipe's searchable text and upserts it.
func (s *Searcher) Index(ctx context.Context, recipe types.Recipe) error {
	if recipe.ID == "" {
		return fmt.Errorf("index recipe: missing id")
	}
	text := EmbeddingText(recipe)
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed recipe %s: %w", recipe.ID, err)
	}
	if err := s.index.Upsert(ctx, storage.VectorRecord{
		RecipeID:    recipe.ID,
		Type:        recipe.Type,
		Temperature: recipe.Temperature,
		Content:     text,
		Vector:      vector,
	}); err != nil {
		return fmt.Errorf("upsert recipe %s: %w", recipe.ID, err)
	}
	return nil
}
