package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"brewbook/internal/llm"
	"brewbook/internal/storage"
	"brewbook/pkg/types"
)

// DrinkOfDayTag marks the stored drink of the day.
const DrinkOfDayTag = "drink-of-day"

const (
	drinkOfDayTemperature = 0.7
	drinkOfDayMaxTokens   = 1000
)

// DrinkCache holds the current drink of the day with its own expiry.
type DrinkCache interface {
	Get(ctx context.Context) (types.Recipe, bool, error)
	Set(ctx context.Context, recipe types.Recipe) error
}

// DrinkOfDay resolves the daily featured drink from cache, storage, or a fresh generation.
type DrinkOfDay struct {
	cache    DrinkCache
	recipes  RecipeStore
	indexer  Indexer
	text     llm.TextGenerator
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewDrinkOfDay constructs a DrinkOfDay. indexer may be nil.
func NewDrinkOfDay(cache DrinkCache, recipes RecipeStore, indexer Indexer, text llm.TextGenerator, observer Observer, logger *slog.Logger) *DrinkOfDay {
	if logger == nil {
		logger = slog.Default()
	}
	return &DrinkOfDay{
		cache:    cache,
		recipes:  recipes,
		indexer:  indexer,
		text:     text,
		observer: observerOrNop(observer),
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the cached drink when fresh, otherwise today's stored drink,
// otherwise a newly generated and stored one.
func (d *DrinkOfDay) Get(ctx context.Context) (types.Recipe, error) {
	recipe, ok, err := d.cache.Get(ctx)
	if err != nil {
		d.logger.Warn("drink of the day cache read failed", "error", err)
	}
	if ok {
		d.observer.ObserveDrinkOfDay("cache")
		return recipe, nil
	}
	return d.Refresh(ctx)
}

// Refresh skips the cache, resolves the drink from storage or generation, and
// caches it.
func (d *DrinkOfDay) Refresh(ctx context.Context) (types.Recipe, error) {
	now := d.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	recipe, err := d.recipes.LatestTagged(ctx, DrinkOfDayTag, today)
	switch {
	case err == nil:
		d.observer.ObserveDrinkOfDay("storage")
		d.store(ctx, recipe)
		return recipe, nil
	case !errors.Is(err, storage.ErrNotFound):
		d.logger.Warn("lookup stored drink of the day failed", "error", err)
	}

	recipe, err = d.generate(ctx, today)
	if err != nil {
		return types.Recipe{}, err
	}
	d.observer.ObserveDrinkOfDay("generated")
	d.store(ctx, recipe)
	return recipe, nil
}

func (d *DrinkOfDay) generate(ctx context.Context, day time.Time) (recipe types.Recipe, err error) {
	var tokens int64
	defer func() { d.observer.ObserveGeneration("drink_of_day", err, tokens) }()

	resp, err := d.text.Generate(ctx, llm.TextRequest{
		System:      drinkOfDaySystemPrompt,
		Prompt:      drinkOfDayPrompt(day.Format("2006-01-02")),
		Temperature: drinkOfDayTemperature,
		MaxTokens:   drinkOfDayMaxTokens,
	})
	if err != nil {
		return types.Recipe{}, fmt.Errorf("generate drink of the day: %w", err)
	}
	tokens = resp.TokensUsed

	parsed, err := ParseRecipes(resp.Text, types.GenerationRequest{})
	if err != nil {
		return types.Recipe{}, err
	}
	drink := parsed[0]
	if !drink.HasTag(DrinkOfDayTag) {
		drink.Tags = append(drink.Tags, DrinkOfDayTag)
	}
	drink.AuthorID = ""
	drink.Normalize()
	if err := drink.Validate(); err != nil {
		return types.Recipe{}, fmt.Errorf("%w: %w", ErrGenerationParse, err)
	}

	stored, err := d.recipes.InsertRecipe(ctx, drink)
	if err != nil {
		return types.Recipe{}, fmt.Errorf("store drink of the day: %w", err)
	}
	if d.indexer != nil {
		if err := d.indexer.Index(ctx, stored); err != nil {
			d.logger.Warn("index drink of the day failed", "recipe_id", stored.ID, "error", err)
		}
	}
	return stored, nil
}

func (d *DrinkOfDay) store(ctx context.Context, recipe types.Recipe) {
	if err := d.cache.Set(ctx, recipe); err != nil {
		d.logger.Warn("drink of the day cache write failed", "error", err)
	}
}
