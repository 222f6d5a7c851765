package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
)

// ErrTableExists is returned by CreateTable when the table is already in
// the catalog. The synchronizer falls back to UpdateTable on it.
var ErrTableExists = errors.New("table already exists")

// CatalogStore is the table catalog the pipeline keeps in sync with the
// curated dataset. One table per resource type.
type CatalogStore interface {
	// CreateTable registers a new table. Returns ErrTableExists (possibly
	// wrapped) when a table with the same database and name is present.
	CreateTable(ctx context.Context, table models.TableDescription) error

	// UpdateTable replaces only the columns, partition keys, and location
	// of an existing table. Storage format fields recorded at creation
	// are left untouched.
	UpdateTable(ctx context.Context, database, name string, update models.TableUpdate) error

	// GetTable fetches a table definition for inspection
	GetTable(ctx context.Context, database, name string) (*models.TableDescription, error)

	// ListTables returns the table names registered in a database
	ListTables(ctx context.Context, database string) ([]string, error)

	// Close releases the underlying connection or client
	Close() error
}

// NewCatalogStore constructs the catalog backend selected in config
func NewCatalogStore(cfg models.CatalogConfig, retry models.RetryConfig, logger *lib.Logger) (CatalogStore, error) {
	switch cfg.Backend {
	case models.CatalogBackendSQLite:
		return NewSQLiteCatalog(cfg.Path, logger)
	case models.CatalogBackendHTTP:
		if cfg.URL == "" {
			return nil, lib.ErrMissingCatalogURL()
		}
		httpClient := NewHTTPClient(defaultCatalogTimeout, retry, logger)
		return NewHTTPCatalog(cfg.URL, httpClient, logger), nil
	default:
		return nil, fmt.Errorf("unrecognized catalog backend: %s", cfg.Backend)
	}
}
