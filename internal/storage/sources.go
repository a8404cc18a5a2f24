package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"brewbook/pkg/types"
)

// UpsertExternalSource records a scraped page, keyed by URL.
func (r *Repository) UpsertExternalSource(ctx context.Context, src types.ExternalSource) error {
	if src.LastScraped.IsZero() {
		src.LastScraped = r.now().UTC()
	}
	query := `
		INSERT INTO external_sources (url, domain, title, excerpt, content_type, robots_txt_allowed, last_scraped)
		VALUES (:url, :domain, :title, :excerpt, :content_type, :robots_txt_allowed, :last_scraped)
		ON CONFLICT (url) DO UPDATE SET
			domain = EXCLUDED.domain,
			title = EXCLUDED.title,
			excerpt = EXCLUDED.excerpt,
			content_type = EXCLUDED.content_type,
			robots_txt_allowed = EXCLUDED.robots_txt_allowed,
			last_scraped = EXCLUDED.last_scraped`
	if _, err := r.db.NamedExecContext(ctx, query, src); err != nil {
		return fmt.Errorf("upsert external source: %w", err)
	}
	return nil
}

// ListExternalSources returns the most recently scraped pages.
func (r *Repository) ListExternalSources(ctx context.Context, limit int) ([]types.ExternalSource, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	var sources []types.ExternalSource
	query := `SELECT url, domain, title, excerpt, content_type, robots_txt_allowed, last_scraped
		FROM external_sources ORDER BY last_scraped DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &sources, query, limit); err != nil {
		return nil, fmt.Errorf("list external sources: %w", err)
	}
	return sources, nil
}

// InsertGeneration stores a generation history row.
func (r *Repository) InsertGeneration(ctx context.Context, gen types.Generation) (types.Generation, error) {
	recipes, err := json.Marshal(gen.GeneratedRecipes)
	if err != nil {
		return types.Generation{}, fmt.Errorf("encode generated recipes: %w", err)
	}
	if gen.ID == "" {
		gen.ID = uuid.NewString()
	}
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = r.now().UTC()
	}
	var seed any
	if gen.SeedRecipeID != "" {
		seed = gen.SeedRecipeID
	}
	query := `INSERT INTO recipe_generations
		(id, prompt, seed_recipe_id, generated_recipes, model_used, tokens_used, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := r.db.ExecContext(ctx, query,
		gen.ID, gen.Prompt, seed, recipes, gen.ModelUsed, gen.TokensUsed, gen.CreatedAt,
	); err != nil {
		return types.Generation{}, fmt.Errorf("insert generation: %w", err)
	}
	return gen, nil
}

type generationRow struct {
	ID               string    `db:"id"`
	Prompt           string    `db:"prompt"`
	SeedRecipeID     *string   `db:"seed_recipe_id"`
	GeneratedRecipes []byte    `db:"generated_recipes"`
	ModelUsed        string    `db:"model_used"`
	TokensUsed       int64     `db:"tokens_used"`
	CreatedAt        time.Time `db:"created_at"`
}

// GenerationsForSeed lists the history rows generated from a seed recipe, newest first.
func (r *Repository) GenerationsForSeed(ctx context.Context, seedID string) ([]types.Generation, error) {
	if _, err := uuid.Parse(seedID); err != nil {
		return []types.Generation{}, nil
	}
	var rows []generationRow
	query := `SELECT id, prompt, seed_recipe_id, generated_recipes, model_used, tokens_used, created_at
		FROM recipe_generations WHERE seed_recipe_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, seedID); err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	out := make([]types.Generation, 0, len(rows))
	for _, row := range rows {
		gen := types.Generation{
			ID:         row.ID,
			Prompt:     row.Prompt,
			ModelUsed:  row.ModelUsed,
			TokensUsed: row.TokensUsed,
			CreatedAt:  row.CreatedAt,
		}
		if row.SeedRecipeID != nil {
			gen.SeedRecipeID = *row.SeedRecipeID
		}
		if err := json.Unmarshal(row.GeneratedRecipes, &gen.GeneratedRecipes); err != nil {
			return nil, fmt.Errorf("decode generation %s: %w", row.ID, err)
		}
		out = append(out, gen)
	}
	return out, nil
}
