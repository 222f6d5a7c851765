package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
)

// SQLiteCatalog persists table definitions in an embedded SQLite file.
// This is the default backend: no external catalog service required.
type SQLiteCatalog struct {
	db     *sql.DB
	logger *lib.Logger
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS catalog_tables (
	database_name  TEXT NOT NULL,
	table_name     TEXT NOT NULL,
	columns        TEXT NOT NULL,
	partition_keys TEXT NOT NULL,
	location       TEXT NOT NULL,
	input_format   TEXT NOT NULL,
	output_format  TEXT NOT NULL,
	serde_library  TEXT NOT NULL,
	table_type     TEXT NOT NULL,
	parameters     TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL,
	PRIMARY KEY (database_name, table_name)
)`

// NewSQLiteCatalog opens (or creates) the catalog database file.
// Opens in WAL mode with busy timeout for concurrent access.
func NewSQLiteCatalog(path string, logger *lib.Logger) (*SQLiteCatalog, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}

	// Sensible pool settings for an embedded catalog
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	if _, err := db.Exec(catalogSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}

	return &SQLiteCatalog{db: db, logger: logger}, nil
}

// CreateTable inserts a new table definition. The existence check and the
// insert share one transaction so concurrent creators cannot both succeed.
func (c *SQLiteCatalog) CreateTable(ctx context.Context, table models.TableDescription) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_tables WHERE database_name = ? AND table_name = ?`,
		table.Database, table.Name,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check table existence: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%s.%s: %w", table.Database, table.Name, ErrTableExists)
	}

	columns, err := json.Marshal(table.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	partitionKeys, err := json.Marshal(table.PartitionKeys)
	if err != nil {
		return fmt.Errorf("marshal partition keys: %w", err)
	}
	parameters, err := json.Marshal(table.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO catalog_tables
			(database_name, table_name, columns, partition_keys, location,
			 input_format, output_format, serde_library, table_type, parameters,
			 created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		table.Database, table.Name, string(columns), string(partitionKeys), table.Location,
		table.InputFormat, table.OutputFormat, table.SerdeLibrary, table.TableType, string(parameters),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert table definition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit table definition: %w", err)
	}

	c.logger.Debug("Catalog table created", "database", table.Database, "table", table.Name)
	return nil
}

// UpdateTable replaces columns, partition keys, and location of an
// existing table. The stored storage format fields are not touched.
func (c *SQLiteCatalog) UpdateTable(ctx context.Context, database, name string, update models.TableUpdate) error {
	columns, err := json.Marshal(update.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	partitionKeys, err := json.Marshal(update.PartitionKeys)
	if err != nil {
		return fmt.Errorf("marshal partition keys: %w", err)
	}

	result, err := c.db.ExecContext(ctx,
		`UPDATE catalog_tables
		 SET columns = ?, partition_keys = ?, location = ?, updated_at = ?
		 WHERE database_name = ? AND table_name = ?`,
		string(columns), string(partitionKeys), update.Location, time.Now().UTC(),
		database, name,
	)
	if err != nil {
		return fmt.Errorf("update table definition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("table %s.%s not found", database, name)
	}

	c.logger.Debug("Catalog table updated", "database", database, "table", name)
	return nil
}

// GetTable fetches a table definition
func (c *SQLiteCatalog) GetTable(ctx context.Context, database, name string) (*models.TableDescription, error) {
	var (
		table         models.TableDescription
		columns       string
		partitionKeys string
		parameters    string
	)

	err := c.db.QueryRowContext(ctx,
		`SELECT database_name, table_name, columns, partition_keys, location,
			input_format, output_format, serde_library, table_type, parameters,
			created_at, updated_at
		 FROM catalog_tables
		 WHERE database_name = ? AND table_name = ?`,
		database, name,
	).Scan(
		&table.Database, &table.Name, &columns, &partitionKeys, &table.Location,
		&table.InputFormat, &table.OutputFormat, &table.SerdeLibrary, &table.TableType, &parameters,
		&table.CreatedAt, &table.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("table %s.%s not found", database, name)
	}
	if err != nil {
		return nil, fmt.Errorf("query table definition: %w", err)
	}

	if err := json.Unmarshal([]byte(columns), &table.Columns); err != nil {
		return nil, fmt.Errorf("parse stored columns: %w", err)
	}
	if err := json.Unmarshal([]byte(partitionKeys), &table.PartitionKeys); err != nil {
		return nil, fmt.Errorf("parse stored partition keys: %w", err)
	}
	if err := json.Unmarshal([]byte(parameters), &table.Parameters); err != nil {
		return nil, fmt.Errorf("parse stored parameters: %w", err)
	}

	return &table, nil
}

// ListTables returns the table names registered in a database
func (c *SQLiteCatalog) ListTables(ctx context.Context, database string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT table_name FROM catalog_tables WHERE database_name = ? ORDER BY table_name`,
		database,
	)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return names, nil
}

// Close releases the database handle
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
