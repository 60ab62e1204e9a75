package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/wayfarer-backend/internal/platform/gcp"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
	"github.com/yungbote/wayfarer-backend/internal/platform/objectstore"
)

var newArtifactBucket = func(ctx context.Context, log *logger.Logger, cfg gcp.ObjectStorageConfig) (artifactBackend, error) {
	return gcp.NewArtifactBucket(ctx, log, cfg)
}

type artifactBackend interface {
	objectstore.Store
	Close() error
}

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingBucket       StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "artifact storage bootstrap failed"
	}
	return fmt.Sprintf(
		"artifact storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveArtifactStore picks the local directory store unless a bucket is
// configured. The returned close func is never nil.
func resolveArtifactStore(ctx context.Context, log *logger.Logger, cfg ArtifactConfig) (objectstore.Store, func() error, error) {
	noop := func() error { return nil }
	if strings.TrimSpace(cfg.Bucket) == "" {
		store, err := objectstore.NewLocalStore(cfg.Dir)
		if err != nil {
			return nil, noop, fmt.Errorf("init local artifact store: %w", err)
		}
		log.Info("Selecting artifact storage provider", "mode", "local", "dir", cfg.Dir)
		return store, noop, nil
	}

	mode, err := gcp.ParseObjectStorageMode(cfg.StorageMode, cfg.EmulatorHost)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(cfg, err)
		log.Error("Artifact storage provider selection failed", "mode", cfg.StorageMode, "error", classified)
		return nil, noop, classified
	}
	storageCfg := gcp.ObjectStorageConfig{
		Mode:         mode,
		Bucket:       strings.TrimSpace(cfg.Bucket),
		Prefix:       strings.TrimSpace(cfg.Prefix),
		EmulatorHost: strings.TrimSpace(cfg.EmulatorHost),
	}
	log.Info(
		"Selecting artifact storage provider",
		"mode", storageCfg.Mode,
		"bucket", storageCfg.Bucket,
		"emulator_host", storageCfg.EmulatorHost,
	)

	bucket, err := newArtifactBucket(ctx, log, storageCfg)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(cfg, err)
		log.Error(
			"Artifact storage provider bootstrap failed",
			"mode", storageCfg.Mode,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, noop, classified
	}
	return bucket, bucket.Close, nil
}

func classifyStorageProviderBootstrapError(cfg ArtifactConfig, err error) error {
	out := &StorageProviderBootstrapError{
		Code:         StorageProviderBootstrapErrorConnectFailed,
		Mode:         cfg.StorageMode,
		EmulatorHost: cfg.EmulatorHost,
		Cause:        err,
	}
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			out.Code = StorageProviderBootstrapErrorInvalidMode
		case gcp.ObjectStorageConfigErrorMissingBucket:
			out.Code = StorageProviderBootstrapErrorMissingBucket
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			out.Code = StorageProviderBootstrapErrorMissingEmulatorHost
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			out.Code = StorageProviderBootstrapErrorInvalidEmulatorHost
		}
	}
	return out
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return StorageProviderBootstrapErrorConnectFailed
}
