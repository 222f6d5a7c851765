package models

import "time"

// ResourceTypeRoster is the fixed set of FHIR resource types a run curates,
// in processing order.
var ResourceTypeRoster = []string{
	"Patient",
	"Observation",
	"Condition",
	"MedicationRequest",
	"Procedure",
	"DiagnosticReport",
	"Encounter",
	"AllergyIntolerance",
	"Immunization",
	"CarePlan",
	"Goal",
	"MedicationStatement",
}

// IsRosterResourceType checks if the resource type belongs to the roster
func IsRosterResourceType(resourceType string) bool {
	for _, t := range ResourceTypeRoster {
		if t == resourceType {
			return true
		}
	}
	return false
}

// PipelineRun represents a single execution of the curation pipeline over
// one export batch
type PipelineRun struct {
	RunID           string        `json:"run_id"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Source          string        `json:"source"`           // Export directory or bucket prefix
	ExportTimestamp string        `json:"export_timestamp"` // Batch stamp shared by every tagged record
	MultiTenant     bool          `json:"multi_tenant"`     // false tags everything as "default"
	DatasetRoot     string        `json:"dataset_root"`     // Curated dataset location
	Status          RunStatus     `json:"status"`
	Jobs            []ResourceJob `json:"jobs"` // One per roster resource type, in order
	Config          ProjectConfig `json:"config"`
	ErrorMessage    string        `json:"error_message,omitempty"`
}

// RunStatus defines the execution state of a pipeline run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsValidRunStatus checks if the run status is recognized
func IsValidRunStatus(s RunStatus) bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if state transition is valid
// Valid transitions:
//
//	pending -> running
//	running -> completed | failed
//	failed -> running (manual retry)
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusRunning
	case RunStatusRunning:
		return next == RunStatusCompleted || next == RunStatusFailed
	case RunStatusFailed:
		return next == RunStatusRunning // Allow retry
	case RunStatusCompleted:
		return false // Terminal state
	default:
		return false
	}
}
