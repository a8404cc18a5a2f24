package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"brewbook/internal/config"
)

const defaultOpenAITimeout = 30 * time.Second

// newOpenAIClient builds an SDK client for an OpenAI-compatible endpoint. Retries are
// disabled so a failed call surfaces once.
func newOpenAIClient(baseURL, apiKey string, timeout time.Duration) (openai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return openai.Client{}, ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = defaultOpenAITimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return openai.NewClient(opts...), nil
}

// OpenAIEmbedder implements Embedder with the embeddings endpoint.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder constructs an embedder from configuration.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	client, err := newOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout.Duration)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	return &OpenAIEmbedder{client: client, model: cfg.Model, dimension: cfg.Dimension}, nil
}

// Embed returns the embedding of text. The vector length is checked against
// the configured dimension.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embeddings: empty input")
	}
	params := openai.EmbeddingNewParams{
		Model:          openai.EmbeddingModel(e.model),
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embeddings: response has no data")
	}
	raw := resp.Data[0].Embedding
	if e.dimension > 0 && len(raw) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimension, len(raw))
	}
	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v)
	}
	return vector, nil
}

// OpenAIImageGenerator implements ImageGenerator with the image generation endpoint.
type OpenAIImageGenerator struct {
	client openai.Client
	model  string
	size   string
}

// NewOpenAIImageGenerator constructs an image generator from configuration.
func NewOpenAIImageGenerator(cfg config.ImageConfig) (*OpenAIImageGenerator, error) {
	client, err := newOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout.Duration)
	if err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	return &OpenAIImageGenerator{client: client, model: cfg.Model, size: cfg.Size}, nil
}

// GenerateImage makes a single request and returns the first image URL as the endpoint sent it.
func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	size := req.Size
	if size == "" {
		size = g.size
	}
	params := openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(g.model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	}
	if size != "" {
		params.Size = openai.ImageGenerateParamsSize(size)
	}

	resp, err := g.client.Images.Generate(ctx, params)
	if err != nil {
		return "", fmt.Errorf("images: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("images: response has no images")
	}
	return resp.Data[0].URL, nil
}
