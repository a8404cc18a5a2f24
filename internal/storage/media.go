package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ImageDocument is a downloaded image ready to be archived.
type ImageDocument struct {
	// Key groups images by owner, usually the recipe id.
	Key         string
	Data        []byte
	ContentType string
	SourceURL   string
}

// MediaStore persists image binaries and returns a durable URL for them.
type MediaStore interface {
	SaveImage(ctx context.Context, image ImageDocument) (string, error)
}

// FileMediaStore keeps generated drink images under a local directory.
type FileMediaStore struct {
	root      string
	publicURL string
}

// NewFileMediaStore creates root if needed. Saved images are addressed as
// publicBaseURL joined with their relative path.
func NewFileMediaStore(root, publicBaseURL string) (*FileMediaStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("media directory must be provided")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &FileMediaStore{root: root, publicURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// SaveImage writes the image once per content hash and returns its public URL.
func (s *FileMediaStore) SaveImage(ctx context.Context, image ImageDocument) (string, error) {
	if len(image.Data) == 0 {
		return "", errors.New("empty image")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := objectKey(image)
	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create media subdir: %w", err)
	}

	fh, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	switch {
	case errors.Is(err, fs.ErrExist):
		// Same hash, same bytes.
	case err != nil:
		return "", fmt.Errorf("create media file: %w", err)
	default:
		_, werr := fh.Write(image.Data)
		if cerr := fh.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(dest)
			return "", fmt.Errorf("write media file: %w", werr)
		}
	}
	return s.publicURL + "/" + key, nil
}

// objectKey derives a content-addressed path such as recipes/<key>/ab/cdef.png.
func objectKey(image ImageDocument) string {
	sum := sha256.Sum256(image.Data)
	digest := hex.EncodeToString(sum[:])
	name := digest[2:]
	if ext := pickImageExtension(image.ContentType, image.SourceURL); ext != "" {
		name += "." + ext
	}
	owner := strings.Trim(strings.ReplaceAll(strings.TrimSpace(image.Key), "/", "-"), ".")
	if owner == "" {
		owner = "unowned"
	}
	return path.Join("recipes", owner, digest[:2], name)
}

var preferredImageExt = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// pickImageExtension prefers the content type and falls back to the URL path.
func pickImageExtension(contentType, sourceURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := preferredImageExt[mediaType]; ok {
			return ext
		}
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			return strings.TrimPrefix(exts[0], ".")
		}
	}
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if len(ext) > 5 {
		return ""
	}
	return ext
}
