package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"brewbook/internal/config"
	"brewbook/internal/llm"
)

const defaultImageStyle = config.DefaultImageStyle

// ImageArchiver copies a temporary image URL into durable storage and returns
// the durable URL.
type ImageArchiver interface {
	Archive(ctx context.Context, key, sourceURL string) (string, error)
}

// ImageService generates and attaches recipe images.
type ImageService struct {
	recipes  RecipeStore
	images   llm.ImageGenerator
	archiver ImageArchiver
	style    string
	observer Observer
	logger   *slog.Logger
}

// ImageOptions configures an ImageService.
type ImageOptions struct {
	DefaultStyle string
	// Archiver is optional; without it the endpoint's URL is stored as is.
	Archiver ImageArchiver
	Observer Observer
	Logger   *slog.Logger
}

// NewImageService constructs an ImageService.
func NewImageService(recipes RecipeStore, images llm.ImageGenerator, opts ImageOptions) *ImageService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	style := strings.TrimSpace(opts.DefaultStyle)
	if style == "" {
		style = defaultImageStyle
	}
	return &ImageService{
		recipes:  recipes,
		images:   images,
		archiver: opts.Archiver,
		style:    style,
		observer: observerOrNop(opts.Observer),
		logger:   logger,
	}
}

// Generate makes one image call for the recipe and stores the resulting URL
// on it. The call is not retried and the URL is not validated.
func (s *ImageService) Generate(ctx context.Context, recipeID, style string) (imageURL string, err error) {
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return "", fmt.Errorf("%w: recipe_id is required", ErrInvalidRequest)
	}
	recipe, err := s.recipes.GetRecipe(ctx, recipeID)
	if err != nil {
		return "", fmt.Errorf("load recipe: %w", err)
	}
	if strings.TrimSpace(style) == "" {
		style = s.style
	}

	defer func() { s.observer.ObserveImage(err) }()
	imageURL, err = s.images.GenerateImage(ctx, llm.ImageRequest{Prompt: ImagePrompt(recipe, style)})
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}

	if s.archiver != nil {
		archived, archiveErr := s.archiver.Archive(ctx, recipeID, imageURL)
		if archiveErr != nil {
			s.logger.Warn("archive generated image failed, keeping temporary url", "recipe_id", recipeID, "error", archiveErr)
		} else {
			imageURL = archived
		}
	}

	if err := s.recipes.SetImageURL(ctx, recipeID, imageURL); err != nil {
		s.logger.Warn("update recipe image url failed", "recipe_id", recipeID, "error", err)
	}
	return imageURL, nil
}
