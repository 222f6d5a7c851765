package services_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdopinion/fhirlake/internal/models"
	"github.com/thirdopinion/fhirlake/internal/services"
)

// newSQLiteCatalog opens a throwaway catalog database for one test
func newSQLiteCatalog(t *testing.T) *services.SQLiteCatalog {
	t.Helper()
	catalog, err := services.NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"), newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = catalog.Close()
	})
	return catalog
}

// patientTable builds a representative table definition
func patientTable() models.TableDescription {
	return models.NewTableDescription(
		"healthlake_analytics",
		"patient",
		[]models.Column{
			{Name: "id", Type: models.ColumnTypeString},
			{Name: "active", Type: models.ColumnTypeBoolean},
		},
		[]models.Column{
			{Name: "tenant_guid", Type: models.ColumnTypeString},
			{Name: "_export_timestamp", Type: models.ColumnTypeString},
		},
		"/data/curated/patient",
	)
}

func TestSQLiteCatalog_CreateAndGet(t *testing.T) {
	catalog := newSQLiteCatalog(t)
	ctx := context.Background()
	table := patientTable()

	err := catalog.CreateTable(ctx, table)
	require.NoError(t, err)

	stored, err := catalog.GetTable(ctx, table.Database, table.Name)
	require.NoError(t, err)

	assert.Equal(t, table.Database, stored.Database)
	assert.Equal(t, table.Name, stored.Name)
	assert.Equal(t, table.Columns, stored.Columns)
	assert.Equal(t, table.PartitionKeys, stored.PartitionKeys)
	assert.Equal(t, table.Location, stored.Location)
	assert.Equal(t, models.TableInputFormat, stored.InputFormat)
	assert.Equal(t, models.TableSerdeLibrary, stored.SerdeLibrary)
	assert.Equal(t, "parquet", stored.Parameters["classification"])
	assert.False(t, stored.CreatedAt.IsZero(), "Creation timestamp should be recorded")
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestSQLiteCatalog_CreateDuplicate(t *testing.T) {
	catalog := newSQLiteCatalog(t)
	ctx := context.Background()
	table := patientTable()

	require.NoError(t, catalog.CreateTable(ctx, table))

	err := catalog.CreateTable(ctx, table)

	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrTableExists, "Duplicate create should be recognizable for the update fallback")
	assert.Contains(t, err.Error(), "healthlake_analytics.patient")
}

func TestSQLiteCatalog_UpdatePreservesStorageFormats(t *testing.T) {
	catalog := newSQLiteCatalog(t)
	ctx := context.Background()
	table := patientTable()
	require.NoError(t, catalog.CreateTable(ctx, table))

	created, err := catalog.GetTable(ctx, table.Database, table.Name)
	require.NoError(t, err)

	// Later export adds a column and moves the table location
	update := models.TableUpdate{
		Columns: append(table.Columns, models.Column{
			Name: "birthDate", Type: models.ColumnTypeString,
		}),
		PartitionKeys: table.PartitionKeys,
		Location:      "/data/curated/v2/patient",
	}
	require.NoError(t, catalog.UpdateTable(ctx, table.Database, table.Name, update))

	stored, err := catalog.GetTable(ctx, table.Database, table.Name)
	require.NoError(t, err)

	assert.Len(t, stored.Columns, 3)
	assert.True(t, stored.HasColumn("birthDate"))
	assert.Equal(t, "/data/curated/v2/patient", stored.Location)

	// Formats recorded at creation must survive the update
	assert.Equal(t, models.TableInputFormat, stored.InputFormat)
	assert.Equal(t, models.TableOutputFormat, stored.OutputFormat)
	assert.Equal(t, models.TableSerdeLibrary, stored.SerdeLibrary)
	assert.Equal(t, created.CreatedAt, stored.CreatedAt)
	assert.True(t, stored.UpdatedAt.After(created.UpdatedAt) || stored.UpdatedAt.Equal(created.UpdatedAt))
}

func TestSQLiteCatalog_UpdateMissingTable(t *testing.T) {
	catalog := newSQLiteCatalog(t)

	err := catalog.UpdateTable(context.Background(), "healthlake_analytics", "ghost", models.TableUpdate{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteCatalog_GetMissingTable(t *testing.T) {
	catalog := newSQLiteCatalog(t)

	_, err := catalog.GetTable(context.Background(), "healthlake_analytics", "ghost")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteCatalog_ListTables(t *testing.T) {
	catalog := newSQLiteCatalog(t)
	ctx := context.Background()

	// Tables in two databases; listing is per-database and sorted
	for _, name := range []string{"patient", "observation", "condition"} {
		table := patientTable()
		table.Name = name
		require.NoError(t, catalog.CreateTable(ctx, table))
	}
	other := patientTable()
	other.Database = "scratch"
	other.Name = "patient"
	require.NoError(t, catalog.CreateTable(ctx, other))

	names, err := catalog.ListTables(ctx, "healthlake_analytics")
	require.NoError(t, err)
	assert.Equal(t, []string{"condition", "observation", "patient"}, names)

	names, err = catalog.ListTables(ctx, "scratch")
	require.NoError(t, err)
	assert.Equal(t, []string{"patient"}, names)

	names, err = catalog.ListTables(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, names)
}
