// internal/results/open.go
package results

import (
	"context"
	"fmt"

	"github.com/mwiater/llmeval/internal/appconfig"
)

// Open returns the store selected by the storage configuration.
func Open(ctx context.Context, cfg appconfig.Config) (Store, error) {
	switch cfg.StorageBackend() {
	case appconfig.StorageFile:
		return NewFileStore(cfg.ResultsDir()), nil
	case appconfig.StorageS3:
		store, err := NewS3Store(ctx, S3Options{
			Bucket:   cfg.Storage.Bucket,
			Prefix:   cfg.Storage.Prefix,
			Region:   cfg.Storage.Region,
			Endpoint: cfg.Storage.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", appconfig.ErrConfig, cfg.Storage.Backend)
	}
}
