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

func TestImageServiceGenerate(t *testing.T) {
	recipes := newFakeRecipes(types.Recipe{ID: "r1", Title: "Ube Latte", Type: types.RecipeUbe})
	images := &fakeImages{url: "https://tmp.example.com/img.png"}
	obs := &recordingObserver{}
	svc := NewImageService(recipes, images, ImageOptions{DefaultStyle: "pastel", Observer: obs})

	url, err := svc.Generate(context.Background(), "r1", "")
	require.NoError(t, err)
	assert.Equal(t, "https://tmp.example.com/img.png", url)
	assert.Equal(t, url, recipes.images["r1"])
	require.Len(t, images.requests, 1)
	assert.Contains(t, images.requests[0].Prompt, "Style: pastel.")
	assert.Equal(t, []error{nil}, obs.imageErrs)

	_, err = svc.Generate(context.Background(), "r1", "neon noir")
	require.NoError(t, err)
	assert.Contains(t, images.requests[1].Prompt, "Style: neon noir.")
}

func TestImageServiceArchives(t *testing.T) {
	recipes := newFakeRecipes(types.Recipe{ID: "r1", Title: "Ube Latte"})
	images := &fakeImages{url: "https://tmp.example.com/img.png"}

	svc := NewImageService(recipes, images, ImageOptions{Archiver: &fakeArchiver{url: "https://media.example.com"}})
	url, err := svc.Generate(context.Background(), "r1", "")
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/r1", url)
	assert.Equal(t, url, recipes.images["r1"])

	svc = NewImageService(recipes, images, ImageOptions{Archiver: &fakeArchiver{err: errors.New("bucket gone")}})
	url, err = svc.Generate(context.Background(), "r1", "")
	require.NoError(t, err)
	assert.Equal(t, "https://tmp.example.com/img.png", url)
}

func TestImageServiceErrors(t *testing.T) {
	recipes := newFakeRecipes(types.Recipe{ID: "r1", Title: "Ube Latte"})

	_, err := NewImageService(recipes, &fakeImages{}, ImageOptions{}).Generate(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	images := &fakeImages{}
	_, err = NewImageService(recipes, images, ImageOptions{}).Generate(context.Background(), "nope", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, images.requests)

	obs := &recordingObserver{}
	images = &fakeImages{err: errors.New("content policy")}
	_, err = NewImageService(recipes, images, ImageOptions{Observer: obs}).Generate(context.Background(), "r1", "")
	assert.ErrorContains(t, err, "content policy")
	assert.Len(t, images.requests, 1)
	require.Len(t, obs.imageErrs, 1)
	assert.Error(t, obs.imageErrs[0])

	recipes.imageErr = errors.New("write failed")
	url, err := NewImageService(recipes, &fakeImages{url: "https://tmp/x.png"}, ImageOptions{}).Generate(context.Background(), "r1", "")
	require.NoError(t, err)
	assert.Equal(t, "https://tmp/x.png", url)
}
