package services

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"github.com/thirdopinion/fhirlake/internal/models"
)

// LoadConfig loads configuration from file and merges with CLI flags
// Priority order (highest to lowest):
//  1. CLI flags (via viper overrides)
//  2. Environment variables
//  3. Configuration file
//  4. Default values
func LoadConfig(configFile string) (*models.ProjectConfig, error) {
	// Set config file path if provided
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Search for config in standard locations
		viper.SetConfigName("fhirlake")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/fhirlake")
		viper.AddConfigPath("/etc/fhirlake")
	}

	// Enable environment variable override with FHIRLAKE_ prefix
	viper.SetEnvPrefix("FHIRLAKE")
	viper.AutomaticEnv()

	// Register defaults so missing keys fall back sensibly regardless of
	// whether a config file exists
	defaults := models.DefaultConfig()
	viper.SetDefault("pipeline.multi_tenant", defaults.Pipeline.MultiTenant)
	viper.SetDefault("pipeline.tenant_partition_key", defaults.Pipeline.TenantPartitionKey)
	viper.SetDefault("pipeline.workers", defaults.Pipeline.Workers)
	viper.SetDefault("pipeline.job_timeout_seconds", defaults.Pipeline.JobTimeoutSeconds)
	viper.SetDefault("dataset.backend", string(defaults.Dataset.Backend))
	viper.SetDefault("dataset.root", defaults.Dataset.Root)
	viper.SetDefault("catalog.backend", string(defaults.Catalog.Backend))
	viper.SetDefault("catalog.database", defaults.Catalog.Database)
	viper.SetDefault("catalog.path", defaults.Catalog.Path)
	viper.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	viper.SetDefault("retry.initial_backoff_ms", defaults.Retry.InitialBackoffMs)
	viper.SetDefault("retry.max_backoff_ms", defaults.Retry.MaxBackoffMs)
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("state_dir", defaults.StateDir)

	// Read config file (optional - don't fail if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but couldn't be read
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - defaults and env vars apply
	}

	// Build config manually from viper values
	// (Viper.Unmarshal has issues with nested structs in some versions)
	config := models.ProjectConfig{
		Pipeline: models.PipelineConfig{
			MultiTenant:        viper.GetBool("pipeline.multi_tenant"),
			TenantPartitionKey: viper.GetString("pipeline.tenant_partition_key"),
			ExportPath:         viper.GetString("pipeline.export_path"),
			Workers:            viper.GetInt("pipeline.workers"),
			JobTimeoutSeconds:  viper.GetInt("pipeline.job_timeout_seconds"),
		},
		Dataset: models.DatasetConfig{
			Backend:   models.DatasetBackend(viper.GetString("dataset.backend")),
			Root:      viper.GetString("dataset.root"),
			Bucket:    viper.GetString("dataset.bucket"),
			Endpoint:  viper.GetString("dataset.endpoint"),
			AccessKey: viper.GetString("dataset.access_key"),
			SecretKey: viper.GetString("dataset.secret_key"),
			UseSSL:    viper.GetBool("dataset.use_ssl"),
		},
		Catalog: models.CatalogConfig{
			Backend:  models.CatalogBackend(viper.GetString("catalog.backend")),
			Database: viper.GetString("catalog.database"),
			Path:     viper.GetString("catalog.path"),
			URL:      viper.GetString("catalog.url"),
		},
		Retry: models.RetryConfig{
			MaxAttempts:      viper.GetInt("retry.max_attempts"),
			InitialBackoffMs: viper.GetInt64("retry.initial_backoff_ms"),
			MaxBackoffMs:     viper.GetInt64("retry.max_backoff_ms"),
		},
		Metrics: models.MetricsConfig{
			Enabled:        viper.GetBool("metrics.enabled"),
			PushgatewayURL: viper.GetString("metrics.pushgateway_url"),
		},
		StateDir: viper.GetString("state_dir"),
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure the state directory exists and is writable
	if err := os.MkdirAll(config.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &config, nil
}

// GetConfigFilePath returns the path to the config file that was loaded
func GetConfigFilePath() string {
	return viper.ConfigFileUsed()
}

// SetConfigValue allows runtime override of config values
// Useful for CLI flag overrides
func SetConfigValue(key string, value interface{}) {
	viper.Set(key, value)
}
