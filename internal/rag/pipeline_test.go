package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewbook/internal/storage"
	"brewbook/pkg/types"
)

func TestValidateRequest(t *testing.T) {
	_, err := ValidateRequest(types.GenerationRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = ValidateRequest(types.GenerationRequest{Ingredients: []string{" ", ""}})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = ValidateRequest(types.GenerationRequest{Style: "cozy", Type: "soda"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = ValidateRequest(types.GenerationRequest{Style: "cozy", Temperature: "lukewarm"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = ValidateRequest(types.GenerationRequest{Style: "cozy", Count: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req, err := ValidateRequest(types.GenerationRequest{
		Ingredients: []string{" maple ", ""},
		Type:        " Matcha",
		Temperature: "ICED",
		Count:       40,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"maple"}, req.Ingredients)
	assert.Equal(t, types.RecipeMatcha, req.Type)
	assert.Equal(t, types.TemperatureIced, req.Temperature)
	assert.Equal(t, MaxCount, req.Count)
}

func TestPipelineRejectsEmptyRequestWithoutModelCall(t *testing.T) {
	text := &fakeText{replies: []string{oneRecipeReply}}
	obs := &recordingObserver{}
	p := NewPipeline(newFakeRecipes(), nil, nil, text, PipelineOptions{Observer: obs})

	_, err := p.Generate(context.Background(), types.GenerationRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, text.requests)
	assert.Equal(t, []string{"generate:error"}, obs.generations)
}

func TestPipelineGenerateWithSeedAndSimilar(t *testing.T) {
	seed := types.Recipe{ID: "seed-1", Title: "Classic Ube Latte", Ingredients: []string{"ube", "milk"}, Steps: []string{"Mix"}}
	recipes := newFakeRecipes(seed)
	history := &fakeHistory{}
	similar := &fakeSimilar{recipes: []types.Recipe{{ID: "sim-1", Title: "Ube Frappe", Ingredients: []string{"ube", "ice"}}}}
	text := &fakeText{replies: []string{oneRecipeReply}}
	obs := &recordingObserver{}
	p := NewPipeline(recipes, history, similar, text, PipelineOptions{Observer: obs})

	result, err := p.Generate(context.Background(), types.GenerationRequest{
		SeedRecipeID: "seed-1",
		Ingredients:  []string{"coconut"},
		Type:         types.RecipeUbe,
		Count:        1,
	})
	require.NoError(t, err)

	require.Len(t, result.Recipes, 1)
	assert.Equal(t, "Ube Cloud Latte", result.Recipes[0].Title)
	require.NotNil(t, result.SeedRecipe)
	assert.Equal(t, "seed-1", result.SeedRecipe.ID)
	require.Len(t, result.SimilarRecipes, 1)
	assert.Equal(t, int64(321), result.TokensUsed)
	assert.Equal(t, "test-model", result.Model)

	require.Len(t, text.requests, 1)
	req := text.requests[0]
	assert.Equal(t, generationSystemPrompt, req.System)
	assert.InDelta(t, 0.8, req.Temperature, 1e-9)
	assert.Equal(t, int64(2000), req.MaxTokens)
	assert.Contains(t, req.Prompt, "Seed Recipe for inspiration:\nTitle: Classic Ube Latte")
	assert.Contains(t, req.Prompt, "1. Ube Frappe: ube, ice")

	assert.Equal(t, []string{"coconut ube"}, similar.queries)
	assert.Equal(t, storage.VectorFilter{Type: types.RecipeUbe, Limit: SimilarLimit}, similar.filters[0])

	require.Len(t, history.rows, 1)
	assert.Equal(t, "seed-1", history.rows[0].SeedRecipeID)
	assert.Equal(t, req.Prompt, history.rows[0].Prompt)
	assert.Equal(t, int64(321), history.rows[0].TokensUsed)

	assert.Empty(t, recipes.inserted)
	assert.Equal(t, []string{"generate:ok"}, obs.generations)
	assert.Equal(t, int64(321), obs.tokens)
}

func TestPipelineToleratesSearchAndHistoryFailures(t *testing.T) {
	seed := types.Recipe{ID: "seed-1", Title: "Seed"}
	history := &fakeHistory{err: errors.New("db down")}
	similar := &fakeSimilar{err: errors.New("index down")}
	text := &fakeText{replies: []string{oneRecipeReply}}
	p := NewPipeline(newFakeRecipes(seed), history, similar, text, PipelineOptions{})

	result, err := p.Generate(context.Background(), types.GenerationRequest{SeedRecipeID: "seed-1", Style: "cozy"})
	require.NoError(t, err)
	assert.Len(t, result.Recipes, 1)
	assert.NotNil(t, result.SimilarRecipes)
	assert.Empty(t, result.SimilarRecipes)
	assert.NotContains(t, text.requests[0].Prompt, "Similar recipes")
}

func TestPipelineWithoutSeedSkipsHistory(t *testing.T) {
	history := &fakeHistory{}
	text := &fakeText{replies: []string{oneRecipeReply}}
	p := NewPipeline(newFakeRecipes(), history, nil, text, PipelineOptions{Temperature: 0.3, MaxTokens: 500})

	result, err := p.Generate(context.Background(), types.GenerationRequest{Style: "cozy"})
	require.NoError(t, err)
	assert.Nil(t, result.SeedRecipe)
	assert.Empty(t, history.rows)
	assert.InDelta(t, 0.3, text.requests[0].Temperature, 1e-9)
	assert.Equal(t, int64(500), text.requests[0].MaxTokens)
}

func TestPipelineErrors(t *testing.T) {
	t.Run("unknown seed", func(t *testing.T) {
		text := &fakeText{replies: []string{oneRecipeReply}}
		p := NewPipeline(newFakeRecipes(), nil, nil, text, PipelineOptions{})
		_, err := p.Generate(context.Background(), types.GenerationRequest{SeedRecipeID: "missing"})
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.Empty(t, text.requests)
	})

	t.Run("model failure", func(t *testing.T) {
		p := NewPipeline(newFakeRecipes(), nil, nil, &fakeText{err: errors.New("overloaded")}, PipelineOptions{})
		_, err := p.Generate(context.Background(), types.GenerationRequest{Style: "cozy"})
		assert.ErrorContains(t, err, "overloaded")
	})

	t.Run("unparseable reply", func(t *testing.T) {
		obs := &recordingObserver{}
		p := NewPipeline(newFakeRecipes(), nil, nil, &fakeText{replies: []string{"Sorry, I can't."}}, PipelineOptions{Observer: obs})
		_, err := p.Generate(context.Background(), types.GenerationRequest{Style: "cozy"})
		assert.ErrorIs(t, err, ErrGenerationParse)
		assert.Equal(t, []string{"generate:error"}, obs.generations)
		assert.Equal(t, int64(321), obs.tokens)
	})
}
