package models

import "time"

// ProjectConfig is the top-level configuration for the fhirlake pipeline
type ProjectConfig struct {
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`
	Dataset  DatasetConfig  `yaml:"dataset" json:"dataset"`
	Catalog  CatalogConfig  `yaml:"catalog" json:"catalog"`
	Retry    RetryConfig    `yaml:"retry" json:"retry"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	StateDir string         `yaml:"state_dir" json:"state_dir"`
}

// PipelineConfig controls tagging and orchestration behavior
type PipelineConfig struct {
	MultiTenant        bool   `yaml:"multi_tenant" json:"multi_tenant"`                 // false tags every record as "default"
	TenantPartitionKey string `yaml:"tenant_partition_key" json:"tenant_partition_key"` // Column carrying the tenant value
	ExportPath         string `yaml:"export_path" json:"export_path"`                   // Root of the bulk export (NDJSON files)
	Workers            int    `yaml:"workers" json:"workers"`                           // Resource types processed concurrently (1 = sequential)
	JobTimeoutSeconds  int    `yaml:"job_timeout_seconds" json:"job_timeout_seconds"`   // Per-resource-type timeout, 0 disables
}

// DatasetBackend selects where curated part files land
type DatasetBackend string

const (
	DatasetBackendLocal DatasetBackend = "local"
	DatasetBackendS3    DatasetBackend = "s3"
)

// DatasetConfig contains curated dataset destination settings
type DatasetConfig struct {
	Backend   DatasetBackend `yaml:"backend" json:"backend"`
	Root      string         `yaml:"root" json:"root"` // Local directory or object key prefix
	Bucket    string         `yaml:"bucket" json:"bucket"`
	Endpoint  string         `yaml:"endpoint" json:"endpoint"`
	AccessKey string         `yaml:"access_key" json:"access_key"`
	SecretKey string         `yaml:"secret_key" json:"secret_key"`
	UseSSL    bool           `yaml:"use_ssl" json:"use_ssl"`
}

// CatalogBackend selects the table catalog implementation
type CatalogBackend string

const (
	CatalogBackendSQLite CatalogBackend = "sqlite"
	CatalogBackendHTTP   CatalogBackend = "http"
)

// CatalogConfig contains catalog store settings
type CatalogConfig struct {
	Backend  CatalogBackend `yaml:"backend" json:"backend"`
	Database string         `yaml:"database" json:"database"` // Logical database tables belong to
	Path     string         `yaml:"path" json:"path"`         // SQLite file (sqlite backend)
	URL      string         `yaml:"url" json:"url"`           // Catalog service base URL (http backend)
}

// RetryConfig controls retry behavior for transient errors
type RetryConfig struct {
	MaxAttempts      int   `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoffMs int64 `yaml:"initial_backoff_ms" json:"initial_backoff_ms"`
	MaxBackoffMs     int64 `yaml:"max_backoff_ms" json:"max_backoff_ms"`
}

// MetricsConfig controls Prometheus metric export
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	PushgatewayURL string `yaml:"pushgateway_url" json:"pushgateway_url"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() ProjectConfig {
	return ProjectConfig{
		Pipeline: PipelineConfig{
			MultiTenant:        true,
			TenantPartitionKey: "tenant_guid",
			ExportPath:         "",
			Workers:            1,
			JobTimeoutSeconds:  0,
		},
		Dataset: DatasetConfig{
			Backend: DatasetBackendLocal,
			Root:    "./curated",
		},
		Catalog: CatalogConfig{
			Backend:  CatalogBackendSQLite,
			Database: "healthlake_analytics",
			Path:     "./catalog.db",
		},
		Retry: RetryConfig{
			MaxAttempts:      3,
			InitialBackoffMs: 1000,
			MaxBackoffMs:     30000,
		},
		Metrics: MetricsConfig{
			Enabled:        false,
			PushgatewayURL: "",
		},
		StateDir: "./state",
	}
}

// JobTimeout returns the per-resource-type timeout as a duration (0 = none)
func (c *PipelineConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// SingleTenantValue is the tenant tag applied to every record when
// multi-tenant processing is disabled
const SingleTenantValue = "default"

// Metadata columns stamped onto every curated record. The export timestamp
// doubles as a partition key; the processing date stays a regular column.
const (
	ColumnExportTimestamp = "_export_timestamp"
	ColumnProcessingDate  = "_processing_date"
)
