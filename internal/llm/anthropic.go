package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"brewbook/internal/config"
)

// AnthropicGenerator implements TextGenerator with the Messages API.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicGenerator constructs a generator from configuration. Retries are
// disabled: a failed call is reported to the caller.
func NewAnthropicGenerator(cfg config.LLMConfig) (*AnthropicGenerator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrNotConfigured)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout.Duration}),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &AnthropicGenerator{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Generate sends one user turn and concatenates the text blocks of the reply.
func (g *AnthropicGenerator) Generate(ctx context.Context, req TextRequest) (TextResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return TextResponse{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return TextResponse{}, fmt.Errorf("anthropic messages: reply has no text content")
	}
	return TextResponse{
		Text:       text.String(),
		Model:      string(msg.Model),
		TokensUsed: msg.Usage.InputTokens + msg.Usage.OutputTokens,
	}, nil
}
