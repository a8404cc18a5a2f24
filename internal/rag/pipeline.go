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

// PipelineOptions tunes the generation call.
type PipelineOptions struct {
	Temperature float64
	MaxTokens   int64
	Observer    Observer
	Logger      *slog.Logger
}

// Pipeline generates recipes grounded on a seed and on similar stored recipes.
type Pipeline struct {
	recipes RecipeStore
	history GenerationStore
	similar SimilarFinder
	text    llm.TextGenerator

	temperature float64
	maxTokens   int64
	observer    Observer
	logger      *slog.Logger
}

// NewPipeline constructs a Pipeline. history and similar may be nil.
func NewPipeline(recipes RecipeStore, history GenerationStore, similar SimilarFinder, text llm.TextGenerator, opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = 0.8
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &Pipeline{
		recipes:     recipes,
		history:     history,
		similar:     similar,
		text:        text,
		temperature: temperature,
		maxTokens:   maxTokens,
		observer:    observerOrNop(opts.Observer),
		logger:      logger,
	}
}

// ValidateRequest normalises req and rejects requests without a seed,
// ingredients, or style, or with unknown enum values.
func ValidateRequest(req types.GenerationRequest) (types.GenerationRequest, error) {
	if !req.HasSubject() {
		return req, fmt.Errorf("%w: at least one of ingredients, seed_recipe_id, or style must be provided", ErrInvalidRequest)
	}
	req.SeedRecipeID = strings.TrimSpace(req.SeedRecipeID)
	req.Style = strings.TrimSpace(req.Style)
	req.Ingredients = nonBlank(req.Ingredients)
	if req.Type != "" {
		req.Type = types.RecipeType(types.NormalizeEnum(string(req.Type)))
		if !req.Type.Valid() {
			return req, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, req.Type)
		}
	}
	if req.Temperature != "" {
		req.Temperature = types.Temperature(types.NormalizeEnum(string(req.Temperature)))
		if !req.Temperature.Valid() {
			return req, fmt.Errorf("%w: unknown temperature %q", ErrInvalidRequest, req.Temperature)
		}
	}
	if req.Count < 0 {
		return req, fmt.Errorf("%w: count must not be negative", ErrInvalidRequest)
	}
	req.Count = normalizeCount(req.Count)
	return req, nil
}

// Generate runs one generation. Nothing is persisted except the history row
// of a seeded call; the caller decides which recipes to keep.
func (p *Pipeline) Generate(ctx context.Context, req types.GenerationRequest) (types.GenerationResult, error) {
	return p.generate(ctx, "generate", req)
}

func (p *Pipeline) generate(ctx context.Context, kind string, req types.GenerationRequest) (result types.GenerationResult, err error) {
	var tokens int64
	defer func() { p.observer.ObserveGeneration(kind, err, tokens) }()

	req, err = ValidateRequest(req)
	if err != nil {
		return result, err
	}

	var seed *types.Recipe
	if req.SeedRecipeID != "" {
		recipe, err := p.recipes.GetRecipe(ctx, req.SeedRecipeID)
		if err != nil {
			return result, fmt.Errorf("load seed recipe: %w", err)
		}
		seed = &recipe
	}

	similar := p.findSimilar(ctx, req)
	prompt := BuildPrompt(req, seed, similar)

	resp, err := p.text.Generate(ctx, llm.TextRequest{
		System:      generationSystemPrompt,
		Prompt:      prompt,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return result, fmt.Errorf("generate recipes: %w", err)
	}
	tokens = resp.TokensUsed

	recipes, err := ParseRecipes(resp.Text, req)
	if err != nil {
		p.logger.Warn("generation reply rejected", "model", resp.Model, "error", err)
		return result, err
	}

	if seed != nil {
		p.recordHistory(ctx, prompt, seed.ID, recipes, resp)
	}

	if similar == nil {
		similar = []types.Recipe{}
	}
	return types.GenerationResult{
		Recipes:        recipes,
		SeedRecipe:     seed,
		SimilarRecipes: similar,
		TokensUsed:     resp.TokensUsed,
		Model:          resp.Model,
	}, nil
}

func (p *Pipeline) findSimilar(ctx context.Context, req types.GenerationRequest) []types.Recipe {
	if p.similar == nil {
		return nil
	}
	query := SearchQuery(req)
	if query == "" {
		return nil
	}
	similar, err := p.similar.Search(ctx, query, storage.VectorFilter{
		Type:        req.Type,
		Temperature: req.Temperature,
		Limit:       SimilarLimit,
	})
	if err != nil {
		p.logger.Warn("similar recipe lookup failed, generating without references", "error", err)
		return nil
	}
	return similar
}

func (p *Pipeline) recordHistory(ctx context.Context, prompt, seedID string, recipes []types.Recipe, resp llm.TextResponse) {
	if p.history == nil {
		return
	}
	_, err := p.history.InsertGeneration(ctx, types.Generation{
		Prompt:           prompt,
		SeedRecipeID:     seedID,
		GeneratedRecipes: recipes,
		ModelUsed:        resp.Model,
		TokensUsed:       resp.TokensUsed,
	})
	if err != nil {
		p.logger.Warn("record generation history failed", "seed_recipe_id", seedID, "error", err)
	}
}
