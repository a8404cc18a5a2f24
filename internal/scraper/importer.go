package scraper

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"brewbook/pkg/types"
)

// RecipeWriter inserts recipes and returns the stored copy.
type RecipeWriter interface {
	InsertRecipe(ctx context.Context, recipe types.Recipe) (types.Recipe, error)
}

// RecipeIndexer makes a stored recipe searchable.
type RecipeIndexer interface {
	Index(ctx context.Context, recipe types.Recipe) error
}

// Importer saves usable scrape results as recipes.
type Importer struct {
	recipes RecipeWriter
	indexer RecipeIndexer
	logger  *slog.Logger
}

// NewImporter constructs an Importer. indexer may be nil.
func NewImporter(recipes RecipeWriter, indexer RecipeIndexer, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{recipes: recipes, indexer: indexer, logger: logger}
}

// Import stores every successful result that has both ingredients and steps.
// Individual insert failures are logged and skipped.
func (im *Importer) Import(ctx context.Context, results []types.ScrapeResult) []types.Recipe {
	var saved []types.Recipe
	for _, res := range results {
		recipe, ok := RecipeFromResult(res)
		if !ok {
			continue
		}
		stored, err := im.recipes.InsertRecipe(ctx, recipe)
		if err != nil {
			im.logger.Warn("save scraped recipe failed", "url", res.Source.URL, "error", err)
			continue
		}
		if im.indexer != nil {
			if err := im.indexer.Index(ctx, stored); err != nil {
				im.logger.Warn("index scraped recipe failed", "recipe_id", stored.ID, "error", err)
			}
		}
		saved = append(saved, stored)
	}
	return saved
}

// RecipeFromResult converts a scrape result into a recipe draft. Results
// without ingredients or steps are not recipes.
func RecipeFromResult(res types.ScrapeResult) (types.Recipe, bool) {
	if !res.Success || res.Data == nil {
		return types.Recipe{}, false
	}
	data := res.Data
	if len(data.Ingredients) == 0 || len(data.Steps) == 0 {
		return types.Recipe{}, false
	}

	title := strings.TrimSpace(data.Title)
	if len([]rune(title)) < 2 {
		title = "Recipe from " + res.Source.Domain
	}
	difficulty := types.Difficulty(types.NormalizeEnum(data.Difficulty))
	if !difficulty.Valid() {
		difficulty = types.DifficultyMedium
	}
	servings := leadingInt(data.Servings)
	if servings <= 0 {
		servings = 1
	}

	recipe := types.Recipe{
		Title:         title,
		Description:   data.Excerpt,
		Tags:          []string{"scraped", string(res.Source.ContentType)},
		Type:          types.RecipeCoffee,
		Temperature:   types.TemperatureIced,
		Ingredients:   append([]string(nil), data.Ingredients...),
		Steps:         append([]string(nil), data.Steps...),
		Difficulty:    difficulty,
		Servings:      types.IntPtr(servings),
		Equipment:     []string{},
		SeasonalTags:  []string{},
		FlavorProfile: []string{},
		SourceURL:     res.Source.URL,
	}
	if m := ParseMinutes(data.PrepTime); m > 0 {
		recipe.PrepTimeMinutes = types.IntPtr(m)
	}
	if m := ParseMinutes(data.TotalTime); m > 0 {
		recipe.TotalTimeMinutes = types.IntPtr(m)
	}
	if strings.HasPrefix(data.ImageURL, "http://") || strings.HasPrefix(data.ImageURL, "https://") {
		recipe.ImageURL = data.ImageURL
	}
	return recipe, true
}

var isoDuration = regexp.MustCompile(`(?i)^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseMinutes reads an ISO-8601 duration ("PT1H5M") or a bare number of minutes.
func ParseMinutes(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if m := isoDuration.FindStringSubmatch(raw); m != nil {
		days, _ := strconv.Atoi(m[1])
		hours, _ := strconv.Atoi(m[2])
		minutes, _ := strconv.Atoi(m[3])
		seconds, _ := strconv.Atoi(m[4])
		total := days*24*60 + hours*60 + minutes
		if seconds >= 30 {
			total++
		}
		return total
	}
	return leadingInt(raw)
}

func leadingInt(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		return 0
	}
	return n
}
