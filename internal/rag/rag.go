// Package rag builds retrieval-augmented generation prompts and runs the
// generation, search, image, remix, and drink-of-the-day flows.
package rag

import (
	"context"
	"errors"
	"time"

	"brewbook/internal/storage"
	"brewbook/pkg/types"
)

// ErrInvalidRequest is returned for requests rejected before any model call.
var ErrInvalidRequest = errors.New("invalid generation request")

// RecipeStore is the recipe persistence used by the flows in this package.
type RecipeStore interface {
	GetRecipe(ctx context.Context, id string) (types.Recipe, error)
	GetRecipes(ctx context.Context, ids []string) ([]types.Recipe, error)
	InsertRecipe(ctx context.Context, recipe types.Recipe) (types.Recipe, error)
	SetImageURL(ctx context.Context, id, imageURL string) error
	LatestTagged(ctx context.Context, tag string, since time.Time) (types.Recipe, error)
}

// GenerationStore records seeded generation calls.
type GenerationStore interface {
	InsertGeneration(ctx context.Context, gen types.Generation) (types.Generation, error)
}

// SimilarFinder retrieves recipes close to a free-text query.
type SimilarFinder interface {
	Search(ctx context.Context, query string, filter storage.VectorFilter) ([]types.Recipe, error)
}

// Indexer makes a stored recipe searchable.
type Indexer interface {
	Index(ctx context.Context, recipe types.Recipe) error
}

// Observer receives generation outcomes, typically for metrics.
type Observer interface {
	ObserveGeneration(kind string, err error, tokens int64)
	ObserveImage(err error)
	ObserveDrinkOfDay(source string)
}

type nopObserver struct{}

func (nopObserver) ObserveGeneration(string, error, int64) {}
func (nopObserver) ObserveImage(error)                     {}
func (nopObserver) ObserveDrinkOfDay(string)               {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
