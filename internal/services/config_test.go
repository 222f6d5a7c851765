package services_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdopinion/fhirlake/internal/models"
	"github.com/thirdopinion/fhirlake/internal/services"
)

// writeConfigFile writes a YAML config into a temp dir and returns its path.
// Every config points state_dir at the temp dir so loading never touches
// the working directory.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fhirlake.yaml")
	content = content + "\nstate_dir: " + dir + "/state\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_FullFile(t *testing.T) {
	configPath := writeConfigFile(t, `
pipeline:
  multi_tenant: false
  tenant_partition_key: org_id
  export_path: /data/export
  workers: 4
  job_timeout_seconds: 600

dataset:
  backend: s3
  bucket: curated
  endpoint: localhost:9000
  access_key: minioadmin
  secret_key: minioadmin
  use_ssl: true

catalog:
  backend: http
  database: healthlake_analytics
  url: http://catalog.internal:8080

retry:
  max_attempts: 5
  initial_backoff_ms: 500
  max_backoff_ms: 10000

metrics:
  enabled: true
  pushgateway_url: http://pushgateway:9091
`)

	config, err := services.LoadConfig(configPath)
	require.NoError(t, err)

	assert.False(t, config.Pipeline.MultiTenant)
	assert.Equal(t, "org_id", config.Pipeline.TenantPartitionKey)
	assert.Equal(t, "/data/export", config.Pipeline.ExportPath)
	assert.Equal(t, 4, config.Pipeline.Workers)
	assert.Equal(t, 600, config.Pipeline.JobTimeoutSeconds)

	assert.Equal(t, models.DatasetBackendS3, config.Dataset.Backend)
	assert.Equal(t, "curated", config.Dataset.Bucket)
	assert.Equal(t, "localhost:9000", config.Dataset.Endpoint)
	assert.True(t, config.Dataset.UseSSL)

	assert.Equal(t, models.CatalogBackendHTTP, config.Catalog.Backend)
	assert.Equal(t, "healthlake_analytics", config.Catalog.Database)
	assert.Equal(t, "http://catalog.internal:8080", config.Catalog.URL)

	assert.Equal(t, 5, config.Retry.MaxAttempts)
	assert.Equal(t, int64(500), config.Retry.InitialBackoffMs)
	assert.Equal(t, int64(10000), config.Retry.MaxBackoffMs)

	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, "http://pushgateway:9091", config.Metrics.PushgatewayURL)
}

func TestLoadConfig_PartialFileGetsDefaults(t *testing.T) {
	configPath := writeConfigFile(t, `
pipeline:
  export_path: /data/export
`)

	config, err := services.LoadConfig(configPath)
	require.NoError(t, err)

	// Explicit value from the file
	assert.Equal(t, "/data/export", config.Pipeline.ExportPath)

	// Everything else falls back to defaults
	defaults := models.DefaultConfig()
	assert.Equal(t, defaults.Pipeline.MultiTenant, config.Pipeline.MultiTenant)
	assert.Equal(t, defaults.Pipeline.TenantPartitionKey, config.Pipeline.TenantPartitionKey)
	assert.Equal(t, defaults.Pipeline.Workers, config.Pipeline.Workers)
	assert.Equal(t, defaults.Dataset.Backend, config.Dataset.Backend)
	assert.Equal(t, defaults.Catalog.Backend, config.Catalog.Backend)
	assert.Equal(t, defaults.Catalog.Database, config.Catalog.Database)
	assert.Equal(t, defaults.Retry.MaxAttempts, config.Retry.MaxAttempts)
}

func TestLoadConfig_CreatesStateDir(t *testing.T) {
	configPath := writeConfigFile(t, "")

	config, err := services.LoadConfig(configPath)
	require.NoError(t, err)

	info, err := os.Stat(config.StateDir)
	require.NoError(t, err, "State directory should be created on load")
	assert.True(t, info.IsDir())
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fhirlake.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: [unclosed"), 0644))

	_, err := services.LoadConfig(path)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	configPath := writeConfigFile(t, `
retry:
  max_attempts: 99
`)

	_, err := services.LoadConfig(configPath)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "max_attempts")
}
