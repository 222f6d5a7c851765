package models

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Validate checks if a PipelineRun has valid fields
func (r *PipelineRun) Validate() error {
	// Validate RunID is a valid UUID
	if r.RunID == "" {
		return errors.New("run_id is required")
	}
	if _, err := uuid.Parse(r.RunID); err != nil {
		return fmt.Errorf("invalid run_id: must be a valid UUID: %w", err)
	}

	// Validate Source is not empty
	if r.Source == "" {
		return errors.New("source is required")
	}

	// Validate ExportTimestamp is not empty (partition value for every record)
	if r.ExportTimestamp == "" {
		return errors.New("export_timestamp is required")
	}

	// Validate RunStatus is recognized
	if !IsValidRunStatus(r.Status) {
		return fmt.Errorf("invalid status: %s", r.Status)
	}

	// Validate every resource job belongs to the roster
	for _, job := range r.Jobs {
		if !IsRosterResourceType(job.ResourceType) {
			return fmt.Errorf("resource type '%s' is not in the processing roster", job.ResourceType)
		}
		if err := job.Validate(); err != nil {
			return fmt.Errorf("job %s: %w", job.ResourceType, err)
		}
	}

	return nil
}

// Validate checks if a ResourceJob has valid fields
func (j *ResourceJob) Validate() error {
	// Validate resource type is present
	if j.ResourceType == "" {
		return errors.New("resource_type is required")
	}

	// Validate stage is recognized
	if !IsValidStage(j.Stage) {
		return fmt.Errorf("invalid stage: %s", j.Stage)
	}

	// Validate counters are non-negative
	if j.RowsRead < 0 {
		return errors.New("rows_read cannot be negative")
	}
	if j.RowsWritten < 0 {
		return errors.New("rows_written cannot be negative")
	}
	if j.RetryCount < 0 {
		return errors.New("retry_count cannot be negative")
	}

	// Validate StartedAt is set once the job left pending
	if j.Stage != StagePending && j.StartedAt == nil {
		return errors.New("started_at must be set once the job has started")
	}

	// Validate FinishedAt is set for terminal stages
	if j.Stage.IsTerminal() && j.FinishedAt == nil {
		return errors.New("finished_at must be set when the job is terminal")
	}

	return nil
}

// Validate checks if an ExportFile has valid fields
func (f *ExportFile) Validate() error {
	// Validate file name ends with .ndjson
	if !IsValidExportFile(f.FileName) {
		return errors.New("file_name must end with .ndjson")
	}

	// Validate file path is safe (no path traversal)
	if !IsSafePath(f.FilePath) {
		return fmt.Errorf("unsafe file_path detected: %s", f.FilePath)
	}

	// Validate file size is positive
	if f.FileSize <= 0 {
		return errors.New("file_size must be greater than 0")
	}

	// Validate line count is non-negative
	if f.LineCount < 0 {
		return errors.New("line_count cannot be negative")
	}

	return nil
}

// Validate checks if a ProjectConfig has valid fields
func (c *ProjectConfig) Validate() error {
	// Validate tenant partition column is named
	if c.Pipeline.TenantPartitionKey == "" {
		return errors.New("tenant_partition_key is required")
	}

	// Validate worker pool bounds
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.JobTimeoutSeconds < 0 {
		return fmt.Errorf("job_timeout_seconds must be >= 0, got %d", c.Pipeline.JobTimeoutSeconds)
	}

	// Validate dataset backend settings
	switch c.Dataset.Backend {
	case DatasetBackendLocal:
		if c.Dataset.Root == "" {
			return errors.New("dataset root is required for local backend")
		}
	case DatasetBackendS3:
		if c.Dataset.Bucket == "" {
			return errors.New("dataset bucket is required for s3 backend")
		}
		if c.Dataset.Endpoint == "" {
			return errors.New("dataset endpoint is required for s3 backend")
		}
	default:
		return fmt.Errorf("unrecognized dataset backend: %s", c.Dataset.Backend)
	}

	// Validate catalog backend settings
	if c.Catalog.Database == "" {
		return errors.New("catalog database is required")
	}
	switch c.Catalog.Backend {
	case CatalogBackendSQLite:
		if c.Catalog.Path == "" {
			return errors.New("catalog path is required for sqlite backend")
		}
	case CatalogBackendHTTP:
		if c.Catalog.URL == "" {
			return errors.New("catalog url is required for http backend")
		}
		if _, err := url.Parse(c.Catalog.URL); err != nil {
			return fmt.Errorf("invalid catalog url: %w", err)
		}
	default:
		return fmt.Errorf("unrecognized catalog backend: %s", c.Catalog.Backend)
	}

	// Validate retry configuration
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		return errors.New("max_attempts must be between 1 and 10")
	}
	if c.Retry.InitialBackoffMs <= 0 {
		return errors.New("initial_backoff_ms must be positive")
	}
	if c.Retry.MaxBackoffMs <= 0 {
		return errors.New("max_backoff_ms must be positive")
	}
	if c.Retry.InitialBackoffMs >= c.Retry.MaxBackoffMs {
		return errors.New("initial_backoff_ms must be less than max_backoff_ms")
	}

	// Validate pushgateway URL when metrics push is configured
	if c.Metrics.PushgatewayURL != "" {
		if _, err := url.Parse(c.Metrics.PushgatewayURL); err != nil {
			return fmt.Errorf("invalid pushgateway_url: %w", err)
		}
	}

	// Validate state_dir is not empty
	if c.StateDir == "" {
		return errors.New("state_dir is required")
	}

	return nil
}
