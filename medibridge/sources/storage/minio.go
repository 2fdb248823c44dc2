package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"medibridge/medibridge/config"
	"medibridge/medibridge/utils/logging"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// AudioStore keeps uploaded voice notes.
type AudioStore interface {
	UploadAudio(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

type MinIOClient struct {
	client   *minio.Client
	bucket   string
	endpoint string
	secure   bool
}

func NewMinIOClient(ctx context.Context, cfg config.Config) (*MinIOClient, error) {
	bucket := cfg.MinIOBucket
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		logging.AppLogger.Info("created audio bucket", zap.String("bucket", bucket))
	}
	return &MinIOClient{client: client, bucket: bucket, endpoint: cfg.MinIOEndpoint, secure: cfg.MinIOUseSSL}, nil
}

// AudioKey names an upload audio/<uuid>.<ext>, keeping the client's extension when it has one.
func AudioKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = ".webm"
	}
	return path.Join("audio", uuid.NewString()+ext)
}

// UploadAudio stores the clip and returns the URL it is reachable at.
func (m *MinIOClient) UploadAudio(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := AudioKey(filename)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return m.objectURL(key), nil
}

func (m *MinIOClient) objectURL(key string) string {
	scheme := "http"
	if m.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.endpoint, m.bucket, key)
}
