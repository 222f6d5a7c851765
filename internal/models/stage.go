package models

import (
	"fmt"
	"time"
)

// ResourceJob tracks the curation of one FHIR resource type within a run
type ResourceJob struct {
	ResourceType string      `json:"resource_type"`
	Stage        Stage       `json:"stage"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
	RowsRead     int         `json:"rows_read"`
	RowsWritten  int         `json:"rows_written"`
	Location     string      `json:"location,omitempty"`
	RetryCount   int         `json:"retry_count"`
	LastError    *StageError `json:"last_error,omitempty"`
}

// Stage defines the curation stages a resource type moves through
type Stage string

const (
	StagePending Stage = "pending"
	StageTagging Stage = "tagging"
	StageWriting Stage = "writing"
	StageSyncing Stage = "syncing"
	StageDone    Stage = "done"
	StageFailed  Stage = "failed"
	StageSkipped Stage = "skipped" // No source data for this resource type
)

// StageError captures error details for a failed resource job
type StageError struct {
	Type       ErrorType `json:"type"` // "transient" | "non_transient"
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *StageError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("HTTP %d: %s", e.HTTPStatus, e.Message)
	}
	return e.Message
}

// ErrorType classifies errors for retry strategy
type ErrorType string

const (
	ErrorTypeTransient    ErrorType = "transient"     // Network, 5xx, timeout - automatic retry
	ErrorTypeNonTransient ErrorType = "non_transient" // 4xx, malformed data - manual intervention
)

// IsValidStage checks if the stage is recognized
func IsValidStage(s Stage) bool {
	switch s {
	case StagePending, StageTagging, StageWriting, StageSyncing, StageDone, StageFailed, StageSkipped:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a stage transition is valid
// Valid transitions:
//
//	pending -> tagging | skipped
//	tagging -> writing | failed
//	writing -> syncing | failed
//	syncing -> done | failed
func (s Stage) CanTransitionTo(next Stage) bool {
	switch s {
	case StagePending:
		return next == StageTagging || next == StageSkipped
	case StageTagging:
		return next == StageWriting || next == StageFailed
	case StageWriting:
		return next == StageSyncing || next == StageFailed
	case StageSyncing:
		return next == StageDone || next == StageFailed
	case StageDone, StageFailed, StageSkipped:
		return false // Terminal states
	default:
		return false
	}
}

// IsTerminal reports whether the stage is a final outcome
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed || s == StageSkipped
}

// IsRetryable determines if a stage error should trigger automatic retry
func (e StageError) IsRetryable(maxRetries int, currentRetries int) bool {
	return e.Type == ErrorTypeTransient && currentRetries < maxRetries
}

// IsTransientHTTPStatus classifies HTTP status codes for retry logic
func IsTransientHTTPStatus(status int) bool {
	// 5xx server errors are transient (service might recover)
	if status >= 500 && status < 600 {
		return true
	}
	// 408 Request Timeout, 429 Too Many Requests are transient
	if status == 408 || status == 429 {
		return true
	}
	return false
}
