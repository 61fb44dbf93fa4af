package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/infra/config"
)

var ErrRemoveFailed = errors.New("failed to remove object")

// bucketClient is the subset of *minio.Client used here.
type bucketClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinIOStorage removes post images from an S3-compatible bucket.
type MinIOStorage struct {
	client bucketClient
	bucket string
}

// NewMinIOStorage connects to the bucket and creates it when missing.
func NewMinIOStorage(ctx context.Context, cfg config.StorageSettings) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newMinIOStorage(ctx, client, cfg.Bucket)
}

func newMinIOStorage(ctx context.Context, client bucketClient, bucket string) (*MinIOStorage, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
	}
	return &MinIOStorage{client: client, bucket: bucket}, nil
}

// Remove deletes an object. Empty keys are ignored.
func (s *MinIOStorage) Remove(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRemoveFailed, key, err)
	}
	return nil
}

// NopStorage is used when object storage is disabled.
type NopStorage struct {
	logger *zap.Logger
}

func NewNopStorage(log *zap.Logger) *NopStorage {
	if log == nil {
		log = zap.NewNop()
	}
	return &NopStorage{logger: log}
}

func (s *NopStorage) Remove(_ context.Context, key string) error {
	if key != "" {
		s.logger.Debug("object storage disabled, skipping remove", zap.String("key", key))
	}
	return nil
}

// New returns the configured storage backend.
func New(ctx context.Context, cfg config.StorageSettings, log *zap.Logger) (port.ObjectStorage, error) {
	if !cfg.Enabled {
		return NewNopStorage(log), nil
	}
	return NewMinIOStorage(ctx, cfg)
}

var (
	_ port.ObjectStorage = (*MinIOStorage)(nil)
	_ port.ObjectStorage = (*NopStorage)(nil)
)
