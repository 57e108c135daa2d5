// Package s3blob stores menu photos and generated dish images in an
// S3-compatible bucket, keyed per scan so a scan's artifacts can be
// released together on deletion.
package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/config"
)

// BlobStore wraps an S3 client with the bucket and key layout used by the
// scan pipeline.
type BlobStore struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// New creates a BlobStore from the application storage configuration.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*BlobStore, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket cannot be empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With("component", "blob_store"),
	}, nil
}

// MenuKey returns the object key for a scan's uploaded menu photo.
func MenuKey(scanID uuid.UUID) string {
	return fmt.Sprintf("scans/%s/menu.jpg", scanID)
}

// DishKey returns the object key for a dish's generated image.
func DishKey(scanID, dishID uuid.UUID, mimeType string) string {
	return fmt.Sprintf("scans/%s/dishes/%s%s", scanID, dishID, extensionFor(mimeType))
}

// ScanPrefix returns the key prefix under which all of a scan's artifacts
// live.
func ScanPrefix(scanID uuid.UUID) string {
	return fmt.Sprintf("scans/%s/", scanID)
}

// extensionFor maps an image MIME type to a file extension. Defaults to
// .png, which is what the image providers return.
func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Put uploads an object.
func (b *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		b.logger.Error("failed to put object", "key", key, "error", err)
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	b.logger.Debug("object stored", "key", key, "bytes", len(data))
	return nil
}

// Get downloads an object, returning its bytes and content type.
func (b *BlobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		b.logger.Error("failed to get object", "key", key, "error", err)
		return nil, "", fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer func() {
		_ = out.Body.Close()
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object %s: %w", key, err)
	}

	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}

	return data, contentType, nil
}

// DeletePrefix removes every object under the given key prefix. Used to
// release a scan's stored blobs when the scan is deleted.
func (b *BlobStore) DeletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects under %s: %w", prefix, err)
		}

		if len(page.Contents) == 0 {
			continue
		}

		identifiers := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, object := range page.Contents {
			identifiers = append(identifiers, types.ObjectIdentifier{Key: object.Key})
		}

		_, err = b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: identifiers},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects under %s: %w", prefix, err)
		}

		deleted += len(identifiers)
	}

	b.logger.Info("released stored blobs", "prefix", prefix, "count", deleted)
	return nil
}
