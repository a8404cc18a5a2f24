package drinkcache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewbook/pkg/types"
)

func sampleDrink() types.Recipe {
	return types.Recipe{
		ID:          "d1",
		Title:       "Maple Oat Latte",
		Tags:        []string{"drink-of-day"},
		Type:        types.RecipeCoffee,
		Temperature: types.TemperatureHot,
		Ingredients: []string{"2 shots espresso", "1 cup oat milk"},
		Steps:       []string{"Pull espresso.", "Steam milk and pour."},
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	cache := NewMemory(6 * time.Hour)
	cache.now = func() time.Time { return clock }

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, cache.ExpiresAt().IsZero())

	require.NoError(t, cache.Set(ctx, sampleDrink()))
	assert.Equal(t, clock.Add(6*time.Hour), cache.ExpiresAt())

	clock = clock.Add(5*time.Hour + 59*time.Minute)
	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Maple Oat Latte", got.Title)

	clock = clock.Add(time.Minute)
	_, ok, _ = cache.Get(ctx)
	assert.False(t, ok)
}

func TestMemoryDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewMemory(0).ttl)
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	cache := newRedis(db, "", time.Hour)

	drink := sampleDrink()
	data, err := json.Marshal(drink)
	require.NoError(t, err)

	mock.ExpectSet(defaultRedisKey, string(data), time.Hour).SetVal("OK")
	require.NoError(t, cache.Set(ctx, drink))

	mock.ExpectGet(defaultRedisKey).SetVal(string(data))
	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, drink, got)

	mock.ExpectGet(defaultRedisKey).RedisNil()
	_, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisErrors(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	cache := newRedis(db, "custom", 0)
	assert.Equal(t, DefaultTTL, cache.ttl)

	mock.ExpectGet("custom").SetErr(errors.New("connection refused"))
	_, ok, err := cache.Get(ctx)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "redis get custom")

	mock.ExpectGet("custom").SetVal("{not json")
	_, ok, err = cache.Get(ctx)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "decode cached drink")

	mock.ExpectPing().SetErr(redis.ErrClosed)
	assert.Error(t, cache.Ping(ctx))

	require.NoError(t, mock.ExpectationsWereMet())
}
