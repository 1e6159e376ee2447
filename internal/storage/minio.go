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

type MinIOClient struct {
	client         *minio.Client
	bucket         string
	publicEndpoint string
	useSSL         bool
}

func NewMinIOClient(cfg config.MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOClient{
		client:         client,
		bucket:         cfg.Bucket,
		publicEndpoint: cfg.PublicEndpoint,
		useSSL:         cfg.UseSSL,
	}, nil
}

func (m *MinIOClient) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (StoredObject, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("minio_put_failed", err, map[string]interface{}{
			"key":          key,
			"size":         size,
			"content_type": contentType,
			"bucket":       m.bucket,
		})
		return StoredObject{}, err
	}

	logger.Info("minio_put_success", map[string]interface{}{
		"key":    key,
		"size":   info.Size,
		"bucket": m.bucket,
	})

	scheme := "http"
	if m.useSSL {
		scheme = "https"
	}

	return StoredObject{
		URL:    objectURL(scheme, m.publicEndpoint, m.bucket, key),
		Key:    key,
		Size:   info.Size,
		Format: DetectFormat(contentType, key),
	}, nil
}

func (m *MinIOClient) Remove(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("minio_remove_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": m.bucket,
		})
		return err
	}
	logger.Info("minio_remove_success", map[string]interface{}{
		"key":    key,
		"bucket": m.bucket,
	})
	return nil
}

func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}
