package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
	"github.com/yungbote/wayfarer-backend/internal/platform/objectstore"
)

const objectIOTimeout = 2 * time.Minute

// ArtifactBucket stores model artifacts in one GCS bucket under an optional prefix.
type ArtifactBucket struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	prefix string
}

var _ objectstore.Store = (*ArtifactBucket)(nil)

func NewArtifactBucket(ctx context.Context, log *logger.Logger, cfg ObjectStorageConfig) (*ArtifactBucket, error) {
	if err := ValidateObjectStorageConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	client, err := newStorageClientForMode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	serviceLog := log.With("service", "ArtifactBucket")
	serviceLog.Info("Artifact storage initialized",
		"mode", cfg.Mode,
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
		"emulator_host", cfg.EmulatorHost,
	)
	return &ArtifactBucket{
		log:    serviceLog,
		client: client,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

func newStorageClientForMode(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
		// the storage client only switches to emulator mode through this variable
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx,
			option.WithoutAuthentication(),
			option.WithEndpoint(endpoint+"/storage/v1/"),
		)
	default:
		return nil, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
}

func (b *ArtifactBucket) objectName(key string) (string, error) {
	key, err := objectstore.CleanKey(key)
	if err != nil {
		return "", err
	}
	if b.prefix == "" {
		return key, nil
	}
	return path.Join(b.prefix, key), nil
}

func (b *ArtifactBucket) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	name, err := b.objectName(key)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, objectIOTimeout)
	defer cancel()

	w := b.client.Bucket(b.bucket).Object(name).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	b.log.Debug("artifact uploaded", "bucket", b.bucket, "object", name)
	return fmt.Sprintf("gs://%s/%s", b.bucket, name), nil
}

func (b *ArtifactBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := b.objectName(key)
	if err != nil {
		return nil, err
	}
	// the reader outlives this call; cancel runs when it is closed
	ctx2, cancel := context.WithTimeout(ctx, objectIOTimeout)
	r, err := b.client.Bucket(b.bucket).Object(name).NewReader(ctx2)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", objectstore.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (b *ArtifactBucket) Close() error {
	return b.client.Close()
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}
