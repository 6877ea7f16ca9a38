package library

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/anilpdv/video-downloader/internal/errors"
)

// maxConcurrentUploads bounds mirror traffic so uploads never starve
// active downloads of bandwidth.
const maxConcurrentUploads = 2

// MirrorConfig holds the connection settings for the S3-compatible mirror.
type MirrorConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Mirror copies finished files into S3-compatible object storage. It is
// optional; a nil *Mirror is a no-op.
type Mirror struct {
	client *minio.Client
	bucket string
	sem    *semaphore.Weighted
}

// NewMirror creates a mirror client.
func NewMirror(cfg *MirrorConfig) (*Mirror, error) {
	// minio-go expects host:port, not a URL
	endpoint := cfg.Endpoint
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Mirror{
		client: client,
		bucket: cfg.Bucket,
		sem:    semaphore.NewWeighted(maxConcurrentUploads),
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (m *Mirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
		}
	}
	return nil
}

// Upload copies a local file to the mirror under the given key, retrying
// transient storage failures.
func (m *Mirror) Upload(ctx context.Context, localPath, key string) error {
	if m == nil {
		return nil
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)

	return apperrors.Retry(ctx, apperrors.StorageRetryConfig(), func(ctx context.Context) error {
		_, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{
			ContentType: contentTypeFor(localPath),
		})
		if err != nil {
			return apperrors.StorageError(fmt.Sprintf("failed to upload %s: %v", key, err))
		}
		return nil
	})
}

// Ping checks if the mirror is reachable.
func (m *Mirror) Ping(ctx context.Context) error {
	if m == nil {
		return nil
	}
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}
