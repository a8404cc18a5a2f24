package drinkcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"brewbook/internal/config"
	"brewbook/pkg/types"
)

const defaultRedisKey = "brewbook:drink-of-day"

// Redis stores the drink of the day as JSON under one key with a TTL, so
// every instance pointing at the same server sees the same drink.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis connects to the server named in cfg.
func NewRedis(cfg config.CacheConfig) (*Redis, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return newRedis(client, cfg.RedisKey, cfg.DrinkOfDayTTL.Duration), nil
}

func newRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	if strings.TrimSpace(key) == "" {
		key = defaultRedisKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Get returns the cached recipe; a missing key is a miss, not an error.
func (r *Redis) Get(ctx context.Context) (types.Recipe, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return types.Recipe{}, false, nil
	}
	if err != nil {
		return types.Recipe{}, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	var recipe types.Recipe
	if err := json.Unmarshal([]byte(raw), &recipe); err != nil {
		return types.Recipe{}, false, fmt.Errorf("decode cached drink: %w", err)
	}
	return recipe, true, nil
}

// Set stores recipe with the configured TTL.
func (r *Redis) Set(ctx context.Context, recipe types.Recipe) error {
	data, err := json.Marshal(recipe)
	if err != nil {
		return fmt.Errorf("encode drink: %w", err)
	}
	if err := r.client.Set(ctx, r.key, string(data), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
