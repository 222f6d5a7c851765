package pipeline

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
	"github.com/thirdopinion/fhirlake/internal/services"
)

// DeriveTableColumns computes the catalog schema for a tagged batch: the
// union of top-level field names across all records, sorted by name. The
// tenant partition column and the export timestamp are excluded because
// they are registered as partition keys, not table columns. The processing
// date stays a regular column.
func DeriveTableColumns(tagged []lib.FHIRResource, tenantKey string) []models.Column {
	// Track first observed non-null type per field; nulls leave the type
	// open until a later record pins it
	types := make(map[string]string)

	for _, record := range tagged {
		for name, value := range record {
			if name == tenantKey || name == models.ColumnExportTimestamp {
				continue
			}
			if current, seen := types[name]; seen && current != "" {
				continue
			}
			types[name] = columnType(value)
		}
	}

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]models.Column, 0, len(names))
	for _, name := range names {
		colType := types[name]
		if colType == "" {
			// Field was null in every record
			colType = models.ColumnTypeString
		}
		columns = append(columns, models.Column{Name: name, Type: colType})
	}
	return columns
}

// columnType maps a decoded JSON value onto a catalog column type.
// encoding/json decodes every number as float64, so numbers become double.
func columnType(value interface{}) string {
	switch value.(type) {
	case nil:
		return ""
	case string:
		return models.ColumnTypeString
	case float64:
		return models.ColumnTypeDouble
	case bool:
		return models.ColumnTypeBoolean
	default:
		// Objects and arrays are serialized to JSON strings
		return models.ColumnTypeString
	}
}

// SyncCatalog registers or refreshes the catalog table for a resource type.
// A new table is created with the full storage descriptor; an existing one
// only gets its columns, partition keys and location refreshed so the
// format recorded at creation survives. Catalog failures are logged and
// swallowed: the curated data is already on storage, and a diverged catalog
// entry is repaired by the next run that reaches this point.
func SyncCatalog(ctx context.Context, store services.CatalogStore, database string, resourceType string, columns []models.Column, tenantKey string, location string, logger *lib.Logger) {
	tableName := strings.ToLower(resourceType)

	partitionKeys := []models.Column{
		{Name: tenantKey, Type: models.ColumnTypeString},
		{Name: models.ColumnExportTimestamp, Type: models.ColumnTypeString},
	}

	table := models.NewTableDescription(database, tableName, columns, partitionKeys, location)

	err := store.CreateTable(ctx, table)
	if err == nil {
		logger.Info("Catalog table created",
			"database", database,
			"table", tableName,
			"columns", len(columns))
		return
	}

	if errors.Is(err, services.ErrTableExists) {
		if updateErr := store.UpdateTable(ctx, database, tableName, table.Update()); updateErr != nil {
			logger.Error("Catalog update failed",
				"database", database,
				"table", tableName,
				"error", updateErr)
			return
		}
		logger.Info("Catalog table updated",
			"database", database,
			"table", tableName,
			"columns", len(columns))
		return
	}

	logger.Error("Catalog create failed",
		"database", database,
		"table", tableName,
		"error", err)
}
