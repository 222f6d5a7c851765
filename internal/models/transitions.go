package models

import "time"

// UpdateRunStatus creates a new PipelineRun with updated status
// Pure function - returns new instance, does not mutate original
func UpdateRunStatus(run PipelineRun, status RunStatus) PipelineRun {
	run.Status = status
	run.UpdatedAt = time.Now()
	return run
}

// AddRunError creates a new PipelineRun with error message
// Pure function - returns new instance
func AddRunError(run PipelineRun, errorMsg string) PipelineRun {
	run.ErrorMessage = errorMsg
	run.Status = RunStatusFailed
	run.UpdatedAt = time.Now()
	return run
}

// AdvanceJob creates a new ResourceJob moved to the given stage
// Pure function - returns new instance
func AdvanceJob(job ResourceJob, stage Stage) ResourceJob {
	if job.StartedAt == nil {
		now := time.Now()
		job.StartedAt = &now
	}
	job.Stage = stage
	return job
}

// CompleteJob creates a new ResourceJob in the done stage with final counts
// Pure function - returns new instance
func CompleteJob(job ResourceJob, rowsRead, rowsWritten int, location string) ResourceJob {
	now := time.Now()
	job.Stage = StageDone
	job.FinishedAt = &now
	job.RowsRead = rowsRead
	job.RowsWritten = rowsWritten
	job.Location = location
	return job
}

// SkipJob creates a new ResourceJob in the skipped stage
// Pure function - returns new instance
func SkipJob(job ResourceJob) ResourceJob {
	now := time.Now()
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	job.Stage = StageSkipped
	job.FinishedAt = &now
	return job
}

// FailJob creates a new ResourceJob in the failed stage with error details
// Pure function - returns new instance
func FailJob(job ResourceJob, errorType ErrorType, errorMsg string, httpStatus int) ResourceJob {
	now := time.Now()
	job.Stage = StageFailed
	job.FinishedAt = &now
	job.LastError = &StageError{
		Type:       errorType,
		Message:    errorMsg,
		HTTPStatus: httpStatus,
		Timestamp:  now,
	}
	return job
}

// IncrementJobRetry creates a new ResourceJob with incremented retry count
// Pure function - returns new instance
func IncrementJobRetry(job ResourceJob) ResourceJob {
	job.RetryCount++
	return job
}

// ReplaceJob replaces a resource job in the run's job list
// Pure function - returns new run instance with updated jobs
func ReplaceJob(run PipelineRun, updatedJob ResourceJob) PipelineRun {
	newJobs := make([]ResourceJob, len(run.Jobs))
	copy(newJobs, run.Jobs)

	for i, job := range newJobs {
		if job.ResourceType == updatedJob.ResourceType {
			newJobs[i] = updatedJob
			break
		}
	}

	run.Jobs = newJobs
	run.UpdatedAt = time.Now()
	return run
}

// InitializeJobs creates the initial job list for the given resource types
// Pure function - creates new job instances
func InitializeJobs(resourceTypes []string) []ResourceJob {
	jobs := make([]ResourceJob, len(resourceTypes))
	for i, resourceType := range resourceTypes {
		jobs[i] = ResourceJob{
			ResourceType: resourceType,
			Stage:        StagePending,
			StartedAt:    nil,
			FinishedAt:   nil,
			RowsRead:     0,
			RowsWritten:  0,
			RetryCount:   0,
			LastError:    nil,
		}
	}
	return jobs
}

// GetJobByResourceType finds a job by resource type in the run's job list
// Pure function - returns copy of job if found
func GetJobByResourceType(run PipelineRun, resourceType string) (ResourceJob, bool) {
	for _, job := range run.Jobs {
		if job.ResourceType == resourceType {
			return job, true
		}
	}
	return ResourceJob{}, false
}

// IsRunFinished checks if every resource job reached a terminal stage
// Pure function - no mutations
func IsRunFinished(run PipelineRun) bool {
	if len(run.Jobs) == 0 {
		return false
	}

	for _, job := range run.Jobs {
		if !job.Stage.IsTerminal() {
			return false
		}
	}
	return true
}

// HasFailedJobs checks if any resource job failed
// Pure function - no mutations
func HasFailedJobs(run PipelineRun) bool {
	for _, job := range run.Jobs {
		if job.Stage == StageFailed {
			return true
		}
	}
	return false
}
