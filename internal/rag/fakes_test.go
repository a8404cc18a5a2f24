package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"brewbook/internal/llm"
	"brewbook/internal/storage"
	"brewbook/pkg/types"
)

type fakeRecipes struct {
	mu        sync.Mutex
	byID      map[string]types.Recipe
	inserted  []types.Recipe
	images    map[string]string
	insertErr func(types.Recipe) error
	imageErr  error
	latest    *types.Recipe
	latestErr error
	since     time.Time
	nextID    int
}

func newFakeRecipes(recipes ...types.Recipe) *fakeRecipes {
	f := &fakeRecipes{byID: map[string]types.Recipe{}, images: map[string]string{}}
	for _, r := range recipes {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeRecipes) GetRecipe(_ context.Context, id string) (types.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return types.Recipe{}, fmt.Errorf("get recipe %s: %w", id, storage.ErrNotFound)
	}
	return r, nil
}

func (f *fakeRecipes) GetRecipes(_ context.Context, ids []string) ([]types.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Recipe
	// Reverse order so callers must re-rank.
	for i := len(ids) - 1; i >= 0; i-- {
		if r, ok := f.byID[ids[i]]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecipes) InsertRecipe(_ context.Context, recipe types.Recipe) (types.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		if err := f.insertErr(recipe); err != nil {
			return types.Recipe{}, err
		}
	}
	f.nextID++
	recipe.ID = fmt.Sprintf("saved-%d", f.nextID)
	f.byID[recipe.ID] = recipe
	f.inserted = append(f.inserted, recipe)
	return recipe, nil
}

func (f *fakeRecipes) SetImageURL(_ context.Context, id, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageErr != nil {
		return f.imageErr
	}
	f.images[id] = imageURL
	return nil
}

func (f *fakeRecipes) LatestTagged(_ context.Context, tag string, since time.Time) (types.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	if f.latestErr != nil {
		return types.Recipe{}, f.latestErr
	}
	if f.latest != nil {
		return *f.latest, nil
	}
	return types.Recipe{}, fmt.Errorf("latest %s: %w", tag, storage.ErrNotFound)
}

type fakeHistory struct {
	rows []types.Generation
	err  error
}

func (f *fakeHistory) InsertGeneration(_ context.Context, gen types.Generation) (types.Generation, error) {
	if f.err != nil {
		return types.Generation{}, f.err
	}
	f.rows = append(f.rows, gen)
	return gen, nil
}

type fakeSimilar struct {
	recipes []types.Recipe
	err     error
	queries []string
	filters []storage.VectorFilter
}

func (f *fakeSimilar) Search(_ context.Context, query string, filter storage.VectorFilter) ([]types.Recipe, error) {
	f.queries = append(f.queries, query)
	f.filters = append(f.filters, filter)
	return f.recipes, f.err
}

type fakeText struct {
	replies  []string
	err      error
	requests []llm.TextRequest
}

func (f *fakeText) Generate(_ context.Context, req llm.TextRequest) (llm.TextResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return llm.TextResponse{}, f.err
	}
	if len(f.replies) == 0 {
		return llm.TextResponse{}, errors.New("no scripted reply")
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return llm.TextResponse{Text: reply, Model: "test-model", TokensUsed: 321}, nil
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	texts   []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0.1, 0.2}, nil
}

type fakeIndex struct {
	hits     []storage.VectorHit
	err      error
	upserted []storage.VectorRecord
	filters  []storage.VectorFilter
}

func (f *fakeIndex) Upsert(_ context.Context, rec storage.VectorRecord) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, rec)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, filter storage.VectorFilter) ([]storage.VectorHit, error) {
	f.filters = append(f.filters, filter)
	return f.hits, f.err
}

type fakeIndexer struct {
	indexed []types.Recipe
	err     error
}

func (f *fakeIndexer) Index(_ context.Context, recipe types.Recipe) error {
	f.indexed = append(f.indexed, recipe)
	return f.err
}

type fakeImages struct {
	url      string
	err      error
	requests []llm.ImageRequest
}

func (f *fakeImages) GenerateImage(_ context.Context, req llm.ImageRequest) (string, error) {
	f.requests = append(f.requests, req)
	return f.url, f.err
}

type fakeArchiver struct {
	url string
	err error
}

func (f *fakeArchiver) Archive(_ context.Context, key, sourceURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url + "/" + key, nil
}

type fakeCache struct {
	value  *types.Recipe
	getErr error
	setErr error
	sets   int
}

func (f *fakeCache) Get(context.Context) (types.Recipe, bool, error) {
	if f.getErr != nil {
		return types.Recipe{}, false, f.getErr
	}
	if f.value == nil {
		return types.Recipe{}, false, nil
	}
	return *f.value, true, nil
}

func (f *fakeCache) Set(_ context.Context, recipe types.Recipe) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.value = &recipe
	return nil
}

type recordingObserver struct {
	generations []string
	imageErrs   []error
	drinks      []string
	tokens      int64
}

func (o *recordingObserver) ObserveGeneration(kind string, err error, tokens int64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.generations = append(o.generations, kind+":"+outcome)
	o.tokens += tokens
}

func (o *recordingObserver) ObserveImage(err error) { o.imageErrs = append(o.imageErrs, err) }

func (o *recordingObserver) ObserveDrinkOfDay(source string) { o.drinks = append(o.drinks, source) }

const oneRecipeReply = `{"recipes":[{"title":"Ube Cloud Latte","description":"Purple and fluffy","tags":["ube"],` +
	`"type":"ube","temperature":"iced","ingredients":["2 tbsp ube halaya","1 cup oat milk"],` +
	`"steps":["Whisk","Pour"],"difficulty":"easy","prep_time_minutes":5,"total_time_minutes":10,` +
	`"servings":1,"equipment":["whisk"],"seasonal_tags":["summer"],"flavor_profile":["sweet"]}]}`
