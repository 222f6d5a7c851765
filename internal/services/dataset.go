package services

import (
	"context"
	"fmt"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
)

// DatasetStore receives curated part files. Implementations append only:
// a part path is written at most once and existing data is never replaced.
type DatasetStore interface {
	// WritePart stores one part file at a dataset-relative path like
	// "patient/tenant_guid=T1/_export_timestamp=20250101/part-<uuid>.ndjson"
	WritePart(ctx context.Context, relPath string, data []byte) error

	// Location returns the dataset location registered in the catalog for
	// a resource type (absolute path or s3:// URL)
	Location(resourceType string) string

	// Close releases the underlying client
	Close() error
}

// NewDatasetStore constructs the dataset backend selected in config
func NewDatasetStore(cfg models.DatasetConfig, retry models.RetryConfig, logger *lib.Logger) (DatasetStore, error) {
	switch cfg.Backend {
	case models.DatasetBackendLocal:
		return NewLocalDataset(cfg.Root, logger)
	case models.DatasetBackendS3:
		return NewMinioDataset(cfg, retry, logger)
	default:
		return nil, fmt.Errorf("unrecognized dataset backend: %s", cfg.Backend)
	}
}
