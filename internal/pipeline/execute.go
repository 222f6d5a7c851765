package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/metrics"
	"github.com/thirdopinion/fhirlake/internal/models"
	"github.com/thirdopinion/fhirlake/internal/services"
)

// Runner executes a curation run against injected backends
type Runner struct {
	Source  services.ExportSource
	Dataset services.DatasetStore
	Catalog services.CatalogStore
	Tagger  *Tagger
	Logger  *lib.Logger

	// Progress, when set, receives each resource job as it reaches a
	// terminal stage. Called from worker goroutines when workers > 1.
	Progress func(models.ResourceJob)
}

// NewRunner wires a Runner from configuration-backed services
func NewRunner(source services.ExportSource, dataset services.DatasetStore, catalog services.CatalogStore, tagger *Tagger, logger *lib.Logger) *Runner {
	return &Runner{
		Source:  source,
		Dataset: dataset,
		Catalog: catalog,
		Tagger:  tagger,
		Logger:  logger,
	}
}

// jobInputs holds the per-run values shared by every worker.
// Immutable for the duration of the run.
type jobInputs struct {
	runID           string
	exportTimestamp string
	tenantKey       string
	database        string
	jobTimeout      time.Duration
}

// ExecuteRun processes every resource job of the run and returns the run
// with all jobs in a terminal stage. A failing resource type never stops
// the others; per-type outcomes live on the returned run. The returned
// error reports run-level problems only, not per-type failures.
func (r *Runner) ExecuteRun(ctx context.Context, run *models.PipelineRun) (*models.PipelineRun, error) {
	startTime := time.Now()
	stateDir := run.Config.StateDir

	current := StartRun(run)
	if err := UpdateRun(stateDir, current); err != nil {
		return current, fmt.Errorf("failed to save run state: %w", err)
	}

	workers := current.Config.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(current.Jobs) {
		workers = len(current.Jobs)
	}

	inputs := jobInputs{
		runID:           current.RunID,
		exportTimestamp: current.ExportTimestamp,
		tenantKey:       current.Config.Pipeline.TenantPartitionKey,
		database:        current.Config.Catalog.Database,
		jobTimeout:      current.Config.Pipeline.JobTimeout(),
	}

	// Jobs advance inside workers; every run mutation and save goes
	// through this one mutex
	var mu sync.Mutex
	apply := func(job models.ResourceJob) {
		mu.Lock()
		defer mu.Unlock()
		*current = models.ReplaceJob(*current, job)
		if err := services.SaveRunState(stateDir, current); err != nil {
			r.Logger.Error("Failed to save run state", "run_id", current.RunID, "error", err)
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, job := range current.Jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job models.ResourceJob) {
			defer wg.Done()
			defer func() { <-sem }()

			final := r.executeResourceJob(ctx, inputs, job, apply)
			apply(final)
			metrics.IncreaseJobsTotalMetric(final.ResourceType, string(final.Stage))

			if r.Progress != nil {
				r.Progress(final)
			}
		}(job)
	}
	wg.Wait()

	duration := time.Since(startTime)
	done, failed, skipped := CountOutcomes(current)

	metrics.UpdateRunDurationMetric(duration.Seconds())
	lib.LogRunCompleted(r.Logger, current.RunID, done, failed, skipped, duration)

	if failed > 0 {
		*current = models.AddRunError(*current,
			fmt.Sprintf("%d of %d resource types failed", failed, len(current.Jobs)))
	} else {
		*current = models.UpdateRunStatus(*current, models.RunStatusCompleted)
	}

	if err := UpdateRun(stateDir, current); err != nil {
		return current, fmt.Errorf("failed to save run state: %w", err)
	}

	return current, nil
}

// executeResourceJob advances one resource job through its stages and
// returns it in a terminal stage. The report callback publishes
// intermediate stages for run status inspection.
func (r *Runner) executeResourceJob(ctx context.Context, inputs jobInputs, job models.ResourceJob, report func(models.ResourceJob)) models.ResourceJob {
	if inputs.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inputs.jobTimeout)
		defer cancel()
	}

	resourceType := job.ResourceType
	startTime := time.Now()

	// Read the export while the job is still pending so a type without
	// data is skipped instead of failed
	resources, fileCount, err := services.LoadResources(ctx, r.Source, resourceType, r.Logger)
	if err != nil {
		job = models.AdvanceJob(job, models.StageTagging)
		errorType := classifyJobError(err)
		lib.LogStageFailed(r.Logger, string(models.StageTagging), resourceType, inputs.runID, err, errorType == models.ErrorTypeTransient)
		return models.FailJob(job, errorType, err.Error(), 0)
	}

	if len(resources) == 0 {
		r.Logger.Info("No data found, skipping",
			"resource_type", resourceType,
			"files", fileCount)
		return models.SkipJob(job)
	}

	// Tagging
	job = models.AdvanceJob(job, models.StageTagging)
	report(job)
	lib.LogStageStart(r.Logger, string(models.StageTagging), resourceType, inputs.runID)
	tagged := r.Tagger.Tag(resources, resourceType, inputs.exportTimestamp)
	lib.LogStageComplete(r.Logger, string(models.StageTagging), resourceType, inputs.runID, len(tagged), time.Since(startTime))

	// Writing
	job = models.AdvanceJob(job, models.StageWriting)
	report(job)
	writeStart := time.Now()
	lib.LogStageStart(r.Logger, string(models.StageWriting), resourceType, inputs.runID)
	result, err := WriteDataset(ctx, r.Dataset, tagged, resourceType, inputs.tenantKey, inputs.exportTimestamp, r.Logger)
	if err != nil {
		errorType := classifyJobError(err)
		lib.LogStageFailed(r.Logger, string(models.StageWriting), resourceType, inputs.runID, err, errorType == models.ErrorTypeTransient)
		return models.FailJob(job, errorType, err.Error(), 0)
	}
	lib.LogStageComplete(r.Logger, string(models.StageWriting), resourceType, inputs.runID, result.RowsWritten, time.Since(writeStart))

	// Syncing; catalog failures are swallowed inside SyncCatalog
	job = models.AdvanceJob(job, models.StageSyncing)
	report(job)
	lib.LogStageStart(r.Logger, string(models.StageSyncing), resourceType, inputs.runID)
	columns := DeriveTableColumns(tagged, inputs.tenantKey)
	SyncCatalog(ctx, r.Catalog, inputs.database, resourceType, columns, inputs.tenantKey, result.Location, r.Logger)

	job = models.CompleteJob(job, len(resources), result.RowsWritten, result.Location)
	lib.LogStageComplete(r.Logger, string(models.StageDone), resourceType, inputs.runID, result.RowsWritten, time.Since(startTime))

	return job
}

// classifyJobError determines whether a stage error warrants automatic retry
func classifyJobError(err error) models.ErrorType {
	if err == nil {
		return models.ErrorTypeNonTransient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorTypeTransient
	}

	var lakeErr *lib.LakeError
	if errors.As(err, &lakeErr) {
		if lakeErr.IsRetryable {
			return models.ErrorTypeTransient
		}
		return models.ErrorTypeNonTransient
	}

	if lib.IsNetworkError(err) {
		return models.ErrorTypeTransient
	}

	return models.ErrorTypeNonTransient
}
