package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"brewbook/internal/config"
)

// ElasticIndex keeps recipe embeddings in an Elasticsearch dense_vector field
// and searches them with approximate kNN.
type ElasticIndex struct {
	client    *es.Client
	index     string
	dimension int
	logger    *slog.Logger

	mu      sync.Mutex
	ensured bool
}

// NewElasticIndex initialises an Elasticsearch-backed VectorIndex.
func NewElasticIndex(cfg config.VectorDBConfig, logger *slog.Logger) (*ElasticIndex, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("elasticsearch endpoint not configured")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("elasticsearch dimension must be > 0")
	}
	client, err := es.NewClient(es.Config{
		Addresses: []string{endpoint},
		APIKey:    strings.TrimSpace(cfg.APIKey),
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	index := strings.TrimSpace(cfg.Index)
	if index == "" {
		index = "recipes"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ElasticIndex{client: client, index: index, dimension: cfg.Dimension, logger: logger}, nil
}

// Upsert indexes the embedding document under the recipe id.
func (e *ElasticIndex) Upsert(ctx context.Context, rec VectorRecord) error {
	if err := checkDimension(e.dimension, rec.Vector); err != nil {
		return err
	}
	if err := e.ensureIndex(ctx); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	doc, err := json.Marshal(map[string]any{
		"recipe_id":   rec.RecipeID,
		"type":        string(rec.Type),
		"temperature": string(rec.Temperature),
		"content":     rec.Content,
		"embedding":   rec.Vector,
	})
	if err != nil {
		return fmt.Errorf("marshal embedding document: %w", err)
	}
	res, err := e.client.Index(e.index, bytes.NewReader(doc),
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(rec.RecipeID),
		e.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("index embedding: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index embedding", res)
	}
	return nil
}

type elasticSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID    string  `json:"_id"`
			Score float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a kNN query with term filters on type and temperature.
func (e *ElasticIndex) Search(ctx context.Context, vector []float32, filter VectorFilter) ([]VectorHit, error) {
	if err := checkDimension(e.dimension, vector); err != nil {
		return nil, err
	}
	limit := searchLimit(filter.Limit)
	knn := map[string]any{
		"field":          "embedding",
		"query_vector":   vector,
		"k":              limit,
		"num_candidates": limit * 10,
	}
	var terms []any
	if filter.Type != "" {
		terms = append(terms, map[string]any{"term": map[string]any{"type": string(filter.Type)}})
	}
	if filter.Temperature != "" {
		terms = append(terms, map[string]any{"term": map[string]any{"temperature": string(filter.Temperature)}})
	}
	if len(terms) > 0 {
		knn["filter"] = map[string]any{"bool": map[string]any{"filter": terms}}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]any{
		"knn":     knn,
		"size":    limit,
		"_source": false,
	}); err != nil {
		return nil, fmt.Errorf("encode knn query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return []VectorHit{}, nil
	}
	if res.IsError() {
		return nil, responseError("knn search", res)
	}

	var parsed elasticSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode knn response: %w", err)
	}
	hits := make([]VectorHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, VectorHit{RecipeID: h.ID, Score: h.Score})
	}
	return hits, nil
}

func (e *ElasticIndex) ensureIndex(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ensured {
		return nil
	}
	mapping, err := json.Marshal(map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"recipe_id":   map[string]any{"type": "keyword"},
				"type":        map[string]any{"type": "keyword"},
				"temperature": map[string]any{"type": "keyword"},
				"content":     map[string]any{"type": "text"},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       e.dimension,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal index mapping: %w", err)
	}
	res, err := e.client.Indices.Create(e.index,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(bytes.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if !strings.Contains(string(body), "resource_already_exists_exception") {
			return fmt.Errorf("create index returned error [%d]: %s", res.StatusCode, string(body))
		}
	}
	e.ensured = true
	e.logger.Debug("elasticsearch index ready", "index", e.index, "dimension", e.dimension)
	return nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("%s returned error [%d]: %s", op, res.StatusCode, string(body))
}
