// Package s3store implements storage.ObjectStore on Amazon S3.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/jackzampolin/chaptercast/internal/storage"
)

// API is the subset of the S3 client used by Store.
type API interface {
	manager.DownloadAPIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config configures a Store.
type Config struct {
	Client API
	// PartSize overrides the downloader part size (default 5 MiB).
	PartSize int64
	Logger   *slog.Logger
}

// Store downloads and deletes S3 objects.
type Store struct {
	client     API
	downloader *manager.Downloader
	logger     *slog.Logger
}

// New creates an S3-backed store.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	downloader := manager.NewDownloader(cfg.Client, func(d *manager.Downloader) {
		if cfg.PartSize > 0 {
			d.PartSize = cfg.PartSize
		}
		// Chapters are fetched one at a time.
		d.Concurrency = 1
	})

	return &Store{
		client:     cfg.Client,
		downloader: downloader,
		logger:     cfg.Logger,
	}, nil
}

// Download fetches bucket/key into localPath. A partial file is removed on failure.
func (s *Store) Download(ctx context.Context, bucket, key, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	closeErr := f.Close()
	if err != nil {
		_ = os.Remove(localPath)
		return mapError("download", err)
	}
	if closeErr != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("failed to close %s: %w", localPath, closeErr)
	}

	s.logger.Debug("downloaded object", "bucket", bucket, "key", key, "bytes", n)
	return nil
}

// Delete removes bucket/key.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError("delete", err)
	}
	return nil
}

// mapError labels S3 failures with their error code and maps missing
// objects to storage.ErrNotFound.
func mapError(op string, err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("S3 %s error: %w: %w", op, storage.ErrNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "NotFound" {
			return fmt.Errorf("S3 %s error (%s): %w: %w", op, apiErr.ErrorCode(), storage.ErrNotFound, err)
		}
		return fmt.Errorf("S3 %s error (%s): %w", op, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("S3 %s error: %w", op, err)
}

var _ storage.ObjectStore = (*Store)(nil)
