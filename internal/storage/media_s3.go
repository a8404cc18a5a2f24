package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"brewbook/internal/config"
)

// s3API is the subset of the S3 client used for archiving.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3MediaStore uploads images to an S3-compatible bucket.
type S3MediaStore struct {
	client        s3API
	bucket        string
	publicBaseURL string
}

// NewS3MediaStore loads AWS credentials from the environment and targets cfg.Bucket.
func NewS3MediaStore(ctx context.Context, cfg config.MediaConfig) (*S3MediaStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("media bucket must be provided")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3MediaStore(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newS3MediaStore(client s3API, bucket, publicBaseURL string) *S3MediaStore {
	return &S3MediaStore{client: client, bucket: bucket, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// SaveImage uploads the image and returns its public URL, or an s3:// URI
// when no public base URL is configured.
func (s *S3MediaStore) SaveImage(ctx context.Context, image ImageDocument) (string, error) {
	if len(image.Data) == 0 {
		return "", fmt.Errorf("empty image")
	}
	key := objectKey(image)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(image.Data),
	}
	if image.ContentType != "" {
		input.ContentType = aws.String(image.ContentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if s.publicBaseURL == "" {
		return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
	}
	return s.publicBaseURL + "/" + key, nil
}

// NewMediaStore selects the media backend. It returns nil when archiving is disabled.
func NewMediaStore(ctx context.Context, cfg config.MediaConfig) (MediaStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "", "file":
		return NewFileMediaStore(cfg.Directory, cfg.PublicBaseURL)
	case "s3":
		return NewS3MediaStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported media backend %q", cfg.Backend)
	}
}
