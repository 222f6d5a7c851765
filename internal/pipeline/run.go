package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thirdopinion/fhirlake/internal/models"
	"github.com/thirdopinion/fhirlake/internal/services"
)

// CreateRun initializes a new curation run over one export batch
// Returns the created run with generated UUID and one pending job per
// requested resource type, in roster order
func CreateRun(source string, exportTimestamp string, resourceTypes []string, config models.ProjectConfig) (*models.PipelineRun, error) {
	// Generate unique run ID
	runID := uuid.New().String()

	// Initialize jobs from the resolved resource type list
	jobs := models.InitializeJobs(resourceTypes)

	run := &models.PipelineRun{
		RunID:           runID,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
		Source:          source,
		ExportTimestamp: exportTimestamp,
		MultiTenant:     config.Pipeline.MultiTenant,
		DatasetRoot:     describeDatasetRoot(config.Dataset),
		Status:          models.RunStatusPending,
		Jobs:            jobs,
		Config:          config,
		ErrorMessage:    "",
	}

	// Validate the run
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create valid run: %w", err)
	}

	// Save initial run state
	if err := services.SaveRunState(config.StateDir, run); err != nil {
		return nil, fmt.Errorf("failed to save initial run state: %w", err)
	}

	return run, nil
}

// describeDatasetRoot renders the curated dataset destination for run metadata
func describeDatasetRoot(cfg models.DatasetConfig) string {
	if cfg.Backend == models.DatasetBackendS3 {
		prefix := strings.Trim(cfg.Root, "/")
		if prefix != "" {
			return fmt.Sprintf("s3://%s/%s", cfg.Bucket, prefix)
		}
		return fmt.Sprintf("s3://%s", cfg.Bucket)
	}
	return cfg.Root
}

// LoadRun loads an existing run from disk
func LoadRun(stateDir string, runID string) (*models.PipelineRun, error) {
	return services.LoadRunState(stateDir, runID)
}

// UpdateRun updates run state on disk
// Uses pure functions to create new run instances before saving
func UpdateRun(stateDir string, run *models.PipelineRun) error {
	run.UpdatedAt = time.Now()
	return services.SaveRunState(stateDir, run)
}

// StartRun transitions the run to running status
func StartRun(run *models.PipelineRun) *models.PipelineRun {
	updatedRun := models.UpdateRunStatus(*run, models.RunStatusRunning)
	return &updatedRun
}

// CompleteRun marks the run as completed
func CompleteRun(run *models.PipelineRun) *models.PipelineRun {
	updatedRun := models.UpdateRunStatus(*run, models.RunStatusCompleted)
	return &updatedRun
}

// FailRun marks the run as failed with an error message
func FailRun(run *models.PipelineRun, errorMsg string) *models.PipelineRun {
	updatedRun := models.AddRunError(*run, errorMsg)
	return &updatedRun
}

// CountOutcomes tallies terminal job stages for completion reporting
func CountOutcomes(run *models.PipelineRun) (done int, failed int, skipped int) {
	for _, job := range run.Jobs {
		switch job.Stage {
		case models.StageDone:
			done++
		case models.StageFailed:
			failed++
		case models.StageSkipped:
			skipped++
		}
	}
	return done, failed, skipped
}

// GetRunSummary returns a human-readable summary of the run
func GetRunSummary(run *models.PipelineRun) string {
	// Finished runs report their recorded duration, live runs the elapsed time
	duration := time.Since(run.CreatedAt)
	if run.Status == models.RunStatusCompleted || run.Status == models.RunStatusFailed {
		duration = run.UpdatedAt.Sub(run.CreatedAt)
	}

	done, failed, skipped := CountOutcomes(run)

	summary := fmt.Sprintf("Run %s\n", run.RunID)
	summary += fmt.Sprintf("Status: %s\n", run.Status)
	summary += fmt.Sprintf("Source: %s\n", run.Source)
	summary += fmt.Sprintf("Export Timestamp: %s\n", run.ExportTimestamp)
	summary += fmt.Sprintf("Dataset: %s\n", run.DatasetRoot)
	summary += fmt.Sprintf("Resource Types: %d done, %d failed, %d skipped\n", done, failed, skipped)
	summary += fmt.Sprintf("Duration: %v\n", duration.Round(time.Second))

	if run.ErrorMessage != "" {
		summary += fmt.Sprintf("Error: %s\n", run.ErrorMessage)
	}

	return summary
}
