package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/imagevault/backend/internal/config"
	"github.com/imagevault/backend/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Client targets AWS S3 (or any region-aware S3 endpoint). Without static
// keys it falls back to IAM instance credentials.
type S3Client struct {
	client         *minio.Client
	bucket         string
	region         string
	publicEndpoint string
	useSSL         bool
}

func NewS3Client(cfg config.S3Config) (*S3Client, error) {
	var creds *credentials.Credentials
	if cfg.AccessKey == "" {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &S3Client{
		client:         client,
		bucket:         cfg.Bucket,
		region:         cfg.Region,
		publicEndpoint: cfg.PublicEndpoint,
		useSSL:         cfg.UseSSL,
	}, nil
}

func (s *S3Client) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (StoredObject, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("s3_put_failed", err, map[string]interface{}{
			"key":          key,
			"size":         size,
			"content_type": contentType,
			"bucket":       s.bucket,
		})
		return StoredObject{}, err
	}

	logger.Info("s3_put_success", map[string]interface{}{
		"key":    key,
		"size":   info.Size,
		"bucket": s.bucket,
	})

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}

	return StoredObject{
		URL:    objectURL(scheme, s.publicEndpoint, s.bucket, key),
		Key:    key,
		Size:   info.Size,
		Format: DetectFormat(contentType, key),
	}, nil
}

func (s *S3Client) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("s3_remove_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
		return err
	}
	logger.Info("s3_remove_success", map[string]interface{}{
		"key":    key,
		"bucket": s.bucket,
	})
	return nil
}

func (s *S3Client) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", s.bucket, err)
	}
	return nil
}
