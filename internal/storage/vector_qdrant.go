package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"brewbook/internal/config"
)

// QdrantIndex keeps recipe embeddings in one Qdrant collection.
type QdrantIndex struct {
	endpoint   string
	apiKey     string
	collection string
	dimension  int
	logger     *slog.Logger

	httpClient *http.Client

	mu      sync.Mutex
	ensured bool
}

// NewQdrantIndex initialises a Qdrant-backed VectorIndex.
func NewQdrantIndex(cfg config.VectorDBConfig, logger *slog.Logger) (*QdrantIndex, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("qdrant endpoint not configured")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant dimension must be > 0")
	}
	collection := strings.TrimSpace(cfg.Index)
	if collection == "" {
		collection = "recipes"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QdrantIndex{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		collection: collection,
		dimension:  cfg.Dimension,
		logger:     logger,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Upsert stores the embedding under the recipe id with type and temperature as payload.
func (q *QdrantIndex) Upsert(ctx context.Context, rec VectorRecord) error {
	if err := checkDimension(q.dimension, rec.Vector); err != nil {
		return err
	}
	if err := q.ensureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	body := map[string]any{
		"points": []any{map[string]any{
			"id":     rec.RecipeID,
			"vector": rec.Vector,
			"payload": map[string]any{
				"recipe_id":   rec.RecipeID,
				"type":        string(rec.Type),
				"temperature": string(rec.Temperature),
				"content":     rec.Content,
			},
		}},
	}
	if err := q.do(ctx, http.MethodPut, q.collectionURL()+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

type qdrantSearchResponse struct {
	Result []struct {
		ID    any     `json:"id"`
		Score float64 `json:"score"`
	} `json:"result"`
}

// Search returns the closest points, filtered on the payload.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, filter VectorFilter) ([]VectorHit, error) {
	if err := checkDimension(q.dimension, vector); err != nil {
		return nil, err
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        searchLimit(filter.Limit),
		"with_payload": false,
	}
	var must []any
	if filter.Type != "" {
		must = append(must, map[string]any{"key": "type", "match": map[string]any{"value": string(filter.Type)}})
	}
	if filter.Temperature != "" {
		must = append(must, map[string]any{"key": "temperature", "match": map[string]any{"value": string(filter.Temperature)}})
	}
	if len(must) > 0 {
		body["filter"] = map[string]any{"must": must}
	}

	var parsed qdrantSearchResponse
	if err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/search", body, &parsed); err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	hits := make([]VectorHit, 0, len(parsed.Result))
	for _, point := range parsed.Result {
		hits = append(hits, VectorHit{RecipeID: fmt.Sprint(point.ID), Score: point.Score})
	}
	return hits, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ensured {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}
	err := q.do(ctx, http.MethodPut, q.collectionURL(), body, nil)
	if err != nil && !strings.Contains(err.Error(), "status 409") {
		return err
	}
	q.ensured = true
	q.logger.Debug("qdrant collection ready", "collection", q.collection, "dimension", q.dimension)
	return nil
}

func (q *QdrantIndex) do(ctx context.Context, method, target string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal qdrant payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d body %s", resp.StatusCode, string(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}
	return nil
}

func (q *QdrantIndex) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", q.endpoint, url.PathEscape(q.collection))
}
