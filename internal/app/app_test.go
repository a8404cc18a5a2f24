package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewbook/internal/config"
	"brewbook/internal/metrics"
	"brewbook/internal/storage"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.LoggingConfig{Level: "warn", Structured: true}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)

	buf.Reset()
	logger, err = NewLogger(config.LoggingConfig{}, &buf)
	require.NoError(t, err)
	logger.Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")

	_, err = NewLogger(config.LoggingConfig{Level: "verbose"}, &buf)
	assert.Error(t, err)
}

func TestNewWithoutBackends(t *testing.T) {
	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(context.Background(), &cfg, logger)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Scraper, "scraping needs no backing store")
	assert.Nil(t, a.DB)
	assert.Nil(t, a.Recipes)
	assert.Nil(t, a.Index)
	assert.Nil(t, a.Pipeline)
	assert.Nil(t, a.DrinkOfDay)

	deps := a.APIDependencies()
	assert.NotNil(t, deps.Scraper)
	assert.NotNil(t, deps.Metrics)
	assert.Nil(t, deps.Importer)
	assert.Nil(t, deps.Generator)
	assert.Nil(t, deps.Searcher)
	assert.Nil(t, deps.Recipes)
	assert.Nil(t, deps.Saved)
	assert.Nil(t, deps.DrinkOfDay)
}

func TestAPIDependenciesLeaveMissingServicesNil(t *testing.T) {
	a := &App{Metrics: metrics.New()}
	deps := a.APIDependencies()
	assert.Nil(t, deps.Scraper)
	assert.Nil(t, deps.Images)
	assert.Nil(t, deps.Remixer)
	assert.NotNil(t, deps.Observer)

	a.Recipes = &storage.Repository{}
	deps = a.APIDependencies()
	assert.NotNil(t, deps.Recipes)
	assert.NotNil(t, deps.Saved)
}

func TestCloseRunsClosersInReverse(t *testing.T) {
	var order []int
	a := &App{}
	for i := 1; i <= 3; i++ {
		a.closers = append(a.closers, func() error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, a.Close())
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.NoError(t, a.Close())
}
