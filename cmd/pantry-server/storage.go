package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pantry/internal/config"
	"github.com/prn-tf/pantry/internal/storage"
	"github.com/prn-tf/pantry/internal/storage/filesystem"
	"github.com/prn-tf/pantry/internal/storage/minio"
	"github.com/prn-tf/pantry/internal/storage/s3"
)

// newStorage creates the image backend selected by storage.backend.
func newStorage(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case config.StorageFilesystem:
		return filesystem.New(filesystem.Config{
			DataDir:  cfg.DataDir,
			MediaURL: cfg.MediaURL,
		}, logger)
	case config.StorageS3:
		return s3.New(ctx, cfg.S3, logger)
	case config.StorageMinIO:
		return minio.New(ctx, cfg.MinIO, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// localMediaPath returns the URL path the API server must serve images
// under. Only the filesystem backend needs it, and only when its media URL
// points back at this server.
func localMediaPath(cfg config.StorageConfig) (string, bool) {
	if cfg.Backend != config.StorageFilesystem {
		return "", false
	}
	u, err := url.Parse(cfg.MediaURL)
	if err != nil || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "", false
	}
	return u.Path, true
}
