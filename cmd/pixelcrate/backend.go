package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/pixelcrate/pixelcrate/internal/config"
	"github.com/pixelcrate/pixelcrate/internal/storage"
	"github.com/pixelcrate/pixelcrate/internal/storage/local"
	"github.com/pixelcrate/pixelcrate/internal/storage/s3"
)

// buildBackend selects the storage backend from config. Cloud mode
// without credentials degrades to an explicit not-configured backend
// instead of refusing to start.
func buildBackend(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if !cfg.CloudMode {
		return local.New(cfg.DataDir)
	}

	if !cfg.CloudConfigured() {
		color.Yellow("⚠ cloud mode enabled but credentials are missing; storage endpoints will answer 503")
		return storage.Unconfigured{}, nil
	}

	client, err := s3.New(ctx, &s3.Opts{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("init blob store client: %w", err)
	}
	return client, nil
}
