package store

import (
	"context"
	"fmt"

	"vertebrae-go/internal/config"
	"vertebrae-go/internal/vertebrae"
)

// NewStoreFromConfig creates a Store implementation based on the store
// config type. destination is the top-level destination root, used by the
// filesystem backend.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig, destination string) (vertebrae.Store, error) {
	switch cfg.Type {
	case "filesystem", "":
		if destination == "" {
			return nil, fmt.Errorf("filesystem store requires destination to be set")
		}
		return NewFileSystemStore(destination)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
