package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	pq "github.com/lib/pq"

	"brewbook/pkg/types"
)

// ErrNoUser is returned when a saved-recipe operation has no user id.
var ErrNoUser = errors.New("user id required")

// SaveRecipe bookmarks a recipe for a user. Saving twice is a no-op.
func (r *Repository) SaveRecipe(ctx context.Context, userID, recipeID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrNoUser
	}
	if _, err := uuid.Parse(recipeID); err != nil {
		return fmt.Errorf("save recipe %q: %w", recipeID, ErrNotFound)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO saved_recipes (user_id, recipe_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, recipe_id) DO NOTHING`,
		userID, recipeID, r.now().UTC())
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqForeignKey {
		return fmt.Errorf("save recipe %q: %w", recipeID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("save recipe %q: %w", recipeID, err)
	}
	return nil
}

// UnsaveRecipe removes a bookmark. ErrNotFound means the recipe was not saved.
func (r *Repository) UnsaveRecipe(ctx context.Context, userID, recipeID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrNoUser
	}
	if _, err := uuid.Parse(recipeID); err != nil {
		return fmt.Errorf("unsave recipe %q: %w", recipeID, ErrNotFound)
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM saved_recipes WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID)
	return requireRows("unsave recipe "+recipeID, result, err)
}

// SavedRecipes lists a user's bookmarked recipes, most recently saved first.
func (r *Repository) SavedRecipes(ctx context.Context, userID string) ([]types.Recipe, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNoUser
	}
	var rows []recipeRow
	query := `SELECT ` + qualified("r", recipeColumns) + ` FROM saved_recipes s
		JOIN recipes r ON r.id = s.recipe_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("saved recipes: %w", err)
	}
	return toRecipes(rows), nil
}

// IsSaved reports whether a user has bookmarked a recipe.
func (r *Repository) IsSaved(ctx context.Context, userID, recipeID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, ErrNoUser
	}
	if _, err := uuid.Parse(recipeID); err != nil {
		return false, nil
	}
	var saved bool
	err := r.db.GetContext(ctx, &saved,
		`SELECT EXISTS (SELECT 1 FROM saved_recipes WHERE user_id = $1 AND recipe_id = $2)`,
		userID, recipeID)
	if err != nil {
		return false, fmt.Errorf("is saved %q: %w", recipeID, err)
	}
	return saved, nil
}

// qualified prefixes every column of a comma separated list with alias.
func qualified(alias, columns string) string {
	fields := strings.Split(columns, ",")
	for i, f := range fields {
		fields[i] = alias + "." + strings.TrimSpace(f)
	}
	return strings.Join(fields, ", ")
}
