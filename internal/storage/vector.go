package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"brewbook/pkg/types"
)

// VectorRecord is one recipe embedding with the fields searches filter on.
type VectorRecord struct {
	RecipeID    string
	Type        types.RecipeType
	Temperature types.Temperature
	Content     string
	Vector      []float32
}

// VectorFilter narrows a nearest-neighbour search.
type VectorFilter struct {
	Type        types.RecipeType
	Temperature types.Temperature
	Limit       int
}

// VectorHit is a search match; higher scores are closer.
type VectorHit struct {
	RecipeID string
	Score    float64
}

// VectorIndex stores recipe embeddings and answers similarity queries.
type VectorIndex interface {
	Upsert(ctx context.Context, rec VectorRecord) error
	Search(ctx context.Context, vector []float32, filter VectorFilter) ([]VectorHit, error)
}

// PgVectorIndex keeps embeddings in the recipe_embeddings table of the main database.
type PgVectorIndex struct {
	db        *sqlx.DB
	dimension int
}

// NewPgVectorIndex constructs a pgvector-backed index.
func NewPgVectorIndex(db *sqlx.DB, dimension int) *PgVectorIndex {
	return &PgVectorIndex{db: db, dimension: dimension}
}

// Upsert writes or replaces the embedding of a recipe.
func (p *PgVectorIndex) Upsert(ctx context.Context, rec VectorRecord) error {
	if err := checkDimension(p.dimension, rec.Vector); err != nil {
		return err
	}
	query := `INSERT INTO recipe_embeddings (recipe_id, embedding, content_for_embedding, updated_at)
		VALUES ($1, $2::vector, $3, now())
		ON CONFLICT (recipe_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			content_for_embedding = EXCLUDED.content_for_embedding,
			updated_at = EXCLUDED.updated_at`
	if _, err := p.db.ExecContext(ctx, query, rec.RecipeID, vectorLiteral(rec.Vector), rec.Content); err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Search orders embeddings by cosine distance to vector.
func (p *PgVectorIndex) Search(ctx context.Context, vector []float32, filter VectorFilter) ([]VectorHit, error) {
	if err := checkDimension(p.dimension, vector); err != nil {
		return nil, err
	}
	query := `SELECT e.recipe_id, 1 - (e.embedding <=> $1::vector) AS score
		FROM recipe_embeddings e
		JOIN recipes r ON r.id = e.recipe_id
		WHERE ($2 = '' OR r.type = $2) AND ($3 = '' OR r.temperature = $3)
		ORDER BY e.embedding <=> $1::vector
		LIMIT $4`
	var rows []struct {
		RecipeID string  `db:"recipe_id"`
		Score    float64 `db:"score"`
	}
	if err := p.db.SelectContext(ctx, &rows, query,
		vectorLiteral(vector), string(filter.Type), string(filter.Temperature), searchLimit(filter.Limit),
	); err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	hits := make([]VectorHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, VectorHit{RecipeID: row.RecipeID, Score: row.Score})
	}
	return hits, nil
}

// vectorLiteral renders a pgvector text literal such as [0.1,0.2].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func checkDimension(want int, v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("empty embedding")
	}
	if want > 0 && len(v) != want {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", want, len(v))
	}
	return nil
}

func searchLimit(n int) int {
	if n <= 0 {
		return 5
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}
