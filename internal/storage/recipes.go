package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	pq "github.com/lib/pq"

	"brewbook/pkg/types"
)

const recipeColumns = `id, title, description, tags, type, temperature, ingredients, steps,
	difficulty, prep_time_minutes, total_time_minutes, servings, equipment, seasonal_tags,
	flavor_profile, image_url, video_url, author_id, source_url, created_at, updated_at`

const (
	// DefaultListLimit applies when a listing does not set a limit.
	DefaultListLimit = 20
	// MaxListLimit bounds a single page of results.
	MaxListLimit = 100
)

type recipeRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Tags             pq.StringArray `db:"tags"`
	Type             string         `db:"type"`
	Temperature      string         `db:"temperature"`
	Ingredients      pq.StringArray `db:"ingredients"`
	Steps            pq.StringArray `db:"steps"`
	Difficulty       sql.NullString `db:"difficulty"`
	PrepTimeMinutes  sql.NullInt64  `db:"prep_time_minutes"`
	TotalTimeMinutes sql.NullInt64  `db:"total_time_minutes"`
	Servings         sql.NullInt64  `db:"servings"`
	Equipment        pq.StringArray `db:"equipment"`
	SeasonalTags     pq.StringArray `db:"seasonal_tags"`
	FlavorProfile    pq.StringArray `db:"flavor_profile"`
	ImageURL         string         `db:"image_url"`
	VideoURL         string         `db:"video_url"`
	AuthorID         string         `db:"author_id"`
	SourceURL        string         `db:"source_url"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r recipeRow) toRecipe() types.Recipe {
	recipe := types.Recipe{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Tags:          nonNil(r.Tags),
		Type:          types.RecipeType(r.Type),
		Temperature:   types.Temperature(r.Temperature),
		Ingredients:   nonNil(r.Ingredients),
		Steps:         nonNil(r.Steps),
		Difficulty:    types.Difficulty(r.Difficulty.String),
		Equipment:     nonNil(r.Equipment),
		SeasonalTags:  nonNil(r.SeasonalTags),
		FlavorProfile: nonNil(r.FlavorProfile),
		ImageURL:      r.ImageURL,
		VideoURL:      r.VideoURL,
		AuthorID:      r.AuthorID,
		SourceURL:     r.SourceURL,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	recipe.PrepTimeMinutes = intPtr(r.PrepTimeMinutes)
	recipe.TotalTimeMinutes = intPtr(r.TotalTimeMinutes)
	recipe.Servings = intPtr(r.Servings)
	return recipe
}

// recipeArgs returns the column values of a recipe in recipeColumns order,
// without id and the timestamps.
func recipeArgs(r types.Recipe) []any {
	return []any{
		r.Title,
		r.Description,
		pq.StringArray(nonNil(r.Tags)),
		string(r.Type),
		string(r.Temperature),
		pq.StringArray(nonNil(r.Ingredients)),
		pq.StringArray(nonNil(r.Steps)),
		nullString(string(r.Difficulty)),
		nullInt(r.PrepTimeMinutes),
		nullInt(r.TotalTimeMinutes),
		nullInt(r.Servings),
		pq.StringArray(nonNil(r.Equipment)),
		pq.StringArray(nonNil(r.SeasonalTags)),
		pq.StringArray(nonNil(r.FlavorProfile)),
		r.ImageURL,
		r.VideoURL,
		r.AuthorID,
		r.SourceURL,
	}
}

// ListParams filters and pages a recipe listing.
type ListParams struct {
	Type        types.RecipeType
	Temperature types.Temperature
	Tag         string
	Limit       int
	Offset      int
}

// Repository is the Postgres-backed store for recipes, external sources,
// and generation history.
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRepository wraps an open database.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// GetRecipe loads one recipe.
func (r *Repository) GetRecipe(ctx context.Context, id string) (types.Recipe, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Recipe{}, fmt.Errorf("get recipe %q: %w", id, ErrNotFound)
	}
	var row recipeRow
	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return types.Recipe{}, notFound("get recipe "+id, err)
	}
	return row.toRecipe(), nil
}

// GetRecipes loads the recipes with the given ids in no particular order.
// Unknown ids are skipped.
func (r *Repository) GetRecipes(ctx context.Context, ids []string) ([]types.Recipe, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []types.Recipe{}, nil
	}
	var rows []recipeRow
	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE id = ANY($1::uuid[])`
	if err := r.db.SelectContext(ctx, &rows, query, pq.StringArray(valid)); err != nil {
		return nil, fmt.Errorf("get recipes: %w", err)
	}
	return toRecipes(rows), nil
}

// InsertRecipe stores a new recipe and returns it with id and timestamps.
func (r *Repository) InsertRecipe(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	now := r.now().UTC()
	args := append([]any{uuid.NewString()}, recipeArgs(recipe)...)
	args = append(args, now, now)

	query := `INSERT INTO recipes (` + recipeColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING ` + recipeColumns

	var row recipeRow
	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		return types.Recipe{}, fmt.Errorf("insert recipe: %w", err)
	}
	return row.toRecipe(), nil
}

// UpdateRecipe overwrites every editable column of an existing recipe.
func (r *Repository) UpdateRecipe(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	if _, err := uuid.Parse(recipe.ID); err != nil {
		return types.Recipe{}, fmt.Errorf("update recipe %q: %w", recipe.ID, ErrNotFound)
	}
	args := append(recipeArgs(recipe), r.now().UTC(), recipe.ID)
	query := `UPDATE recipes SET
		title = $1, description = $2, tags = $3, type = $4, temperature = $5,
		ingredients = $6, steps = $7, difficulty = $8, prep_time_minutes = $9,
		total_time_minutes = $10, servings = $11, equipment = $12, seasonal_tags = $13,
		flavor_profile = $14, image_url = $15, video_url = $16, author_id = $17,
		source_url = $18, updated_at = $19
		WHERE id = $20
		RETURNING ` + recipeColumns

	var row recipeRow
	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		return types.Recipe{}, notFound("update recipe "+recipe.ID, err)
	}
	return row.toRecipe(), nil
}

// DeleteRecipe removes a recipe and, through the foreign key, its embedding.
func (r *Repository) DeleteRecipe(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete recipe %q: %w", id, ErrNotFound)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	return requireRows("delete recipe "+id, result, err)
}

// SetImageURL replaces a recipe's image.
func (r *Repository) SetImageURL(ctx context.Context, id, imageURL string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("set image url %q: %w", id, ErrNotFound)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE recipes SET image_url = $2, updated_at = $3 WHERE id = $1`,
		id, imageURL, r.now().UTC())
	return requireRows("set image url "+id, result, err)
}

// LatestTagged returns the newest recipe carrying tag created at or after since.
func (r *Repository) LatestTagged(ctx context.Context, tag string, since time.Time) (types.Recipe, error) {
	var row recipeRow
	query := `SELECT ` + recipeColumns + ` FROM recipes
		WHERE $1 = ANY(tags) AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, tag, since); err != nil {
		return types.Recipe{}, notFound("latest recipe tagged "+tag, err)
	}
	return row.toRecipe(), nil
}

// ListRecipes pages through recipes, newest first.
func (r *Repository) ListRecipes(ctx context.Context, params ListParams) ([]types.Recipe, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if params.Type != "" {
		add("type = $%d", string(params.Type))
	}
	if params.Temperature != "" {
		add("temperature = $%d", string(params.Temperature))
	}
	if tag := strings.TrimSpace(params.Tag); tag != "" {
		add("$%d = ANY(tags)", tag)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + recipeColumns + ` FROM recipes`)
	if len(where) > 0 {
		b.WriteString(` WHERE ` + strings.Join(where, " AND "))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&b, ` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var rows []recipeRow
	if err := r.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return toRecipes(rows), nil
}

func toRecipes(rows []recipeRow) []types.Recipe {
	out := make([]types.Recipe, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecipe())
	}
	return out
}

func requireRows(op string, result sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
