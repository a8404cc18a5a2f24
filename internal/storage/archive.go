package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"brewbook/internal/config"
)

// Archiver downloads short-lived image URLs and stores them in a MediaStore.
type Archiver struct {
	store        MediaStore
	client       *http.Client
	maxSizeBytes int64
	allowed      map[string]struct{}
	logger       *slog.Logger
}

// NewArchiver builds an Archiver. A nil client uses a 30 second timeout.
func NewArchiver(store MediaStore, client *http.Client, cfg config.MediaConfig, logger *slog.Logger) *Archiver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedContentTypes))
	for _, ct := range cfg.AllowedContentTypes {
		allowed[strings.ToLower(strings.TrimSpace(ct))] = struct{}{}
	}
	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = 8 * 1024 * 1024
	}
	return &Archiver{store: store, client: client, maxSizeBytes: maxSize, allowed: allowed, logger: logger}
}

// Archive fetches sourceURL and saves it under key, returning the durable URL.
func (a *Archiver) Archive(ctx context.Context, key, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download image: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	mediaType = strings.ToLower(mediaType)
	if len(a.allowed) > 0 {
		if _, ok := a.allowed[mediaType]; !ok {
			return "", fmt.Errorf("content type %q not allowed", contentType)
		}
	}
	if resp.ContentLength > a.maxSizeBytes {
		return "", fmt.Errorf("image exceeds limit of %d bytes", a.maxSizeBytes)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxSizeBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > a.maxSizeBytes {
		return "", fmt.Errorf("image exceeds limit of %d bytes", a.maxSizeBytes)
	}

	stored, err := a.store.SaveImage(ctx, ImageDocument{
		Key:         key,
		Data:        data,
		ContentType: mediaType,
		SourceURL:   sourceURL,
	})
	if err != nil {
		return "", err
	}
	a.logger.Debug("image archived", "key", key, "bytes", len(data), "url", stored)
	return stored, nil
}
