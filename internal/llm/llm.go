// Package llm wraps the hosted model endpoints used for generation,
// embeddings, and images.
package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when an endpoint has no API key.
var ErrNotConfigured = errors.New("model endpoint not configured")

// TextRequest is a single-turn completion request.
type TextRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// TextResponse is the text reply plus usage accounting.
type TextResponse struct {
	Text       string
	Model      string
	TokensUsed int64
}

// TextGenerator produces a completion for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, req TextRequest) (TextResponse, error)
}

// Embedder maps text to a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ImageRequest asks for one image.
type ImageRequest struct {
	Prompt string
	Size   string
}

// ImageGenerator produces an image and returns where it can be downloaded.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}
