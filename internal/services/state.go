package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/thirdopinion/fhirlake/internal/models"
)

const (
	RunStateFileName = "run.json"
	RunsSubdir       = "runs"
)

// GetRunDir returns the directory path for a specific run
func GetRunDir(stateDir string, runID string) string {
	return filepath.Join(stateDir, RunsSubdir, runID)
}

// GetRunStatePath returns the full path to a run's state file
func GetRunStatePath(stateDir string, runID string) string {
	return filepath.Join(GetRunDir(stateDir, runID), RunStateFileName)
}

// LoadRunState reads a run's state from disk
// Returns error if file doesn't exist or can't be parsed
func LoadRunState(stateDir string, runID string) (*models.PipelineRun, error) {
	statePath := GetRunStatePath(stateDir, runID)

	// Read file
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	// Parse JSON
	var run models.PipelineRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse run state: %w", err)
	}

	// Validate loaded run
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run state loaded from disk: %w", err)
	}

	return &run, nil
}

// SaveRunState writes a run's state to disk with atomic write
// Uses temp file + rename for atomicity (prevents corruption if process dies mid-write)
func SaveRunState(stateDir string, run *models.PipelineRun) error {
	// Validate run before saving
	if err := run.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid run: %w", err)
	}

	// Ensure run directory exists
	runDir := GetRunDir(stateDir, run.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	// Marshal to JSON with indentation for human readability
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	// Write to temporary file first (atomic write pattern)
	tempFile := filepath.Join(runDir, fmt.Sprintf(".run.tmp.%s", uuid.New().String()))
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}

	// Atomic rename (overwrites existing run.json)
	statePath := GetRunStatePath(stateDir, run.RunID)
	if err := os.Rename(tempFile, statePath); err != nil {
		// Cleanup temp file on failure
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to save run state: %w", err)
	}

	return nil
}

// ListAllRuns scans the state directory and returns all run IDs
func ListAllRuns(stateDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(stateDir, RunsSubdir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var runIDs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		runID := entry.Name()

		// Verify this is a valid run (has run.json)
		statePath := GetRunStatePath(stateDir, runID)
		if _, err := os.Stat(statePath); err == nil {
			runIDs = append(runIDs, runID)
		}
	}

	return runIDs, nil
}

// DeleteRun removes a run's directory and all its data
// WARNING: This is destructive and cannot be undone
func DeleteRun(stateDir string, runID string) error {
	runDir := GetRunDir(stateDir, runID)

	// Verify run exists before deleting
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return fmt.Errorf("run not found: %s", runID)
	}

	// Remove entire run directory
	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return nil
}
