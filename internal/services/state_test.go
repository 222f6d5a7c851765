package services_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdopinion/fhirlake/internal/models"
	"github.com/thirdopinion/fhirlake/internal/services"
)

// newTestRun builds a valid run with jobs for the given resource types
func newTestRun(types ...string) *models.PipelineRun {
	if len(types) == 0 {
		types = []string{"Patient", "Observation"}
	}
	return &models.PipelineRun{
		RunID:           uuid.New().String(),
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
		Source:          "/data/export",
		ExportTimestamp: "20250601T120000Z",
		Status:          models.RunStatusPending,
		Jobs:            models.InitializeJobs(types),
	}
}

func TestSaveRunState_RoundTrip(t *testing.T) {
	stateDir := t.TempDir()
	run := newTestRun()
	run.Jobs[0].RowsRead = 42

	err := services.SaveRunState(stateDir, run)
	require.NoError(t, err, "Should save a valid run")

	loaded, err := services.LoadRunState(stateDir, run.RunID)
	require.NoError(t, err, "Should load the run back")

	assert.Equal(t, run.RunID, loaded.RunID)
	assert.Equal(t, run.Source, loaded.Source)
	assert.Equal(t, run.ExportTimestamp, loaded.ExportTimestamp)
	assert.Equal(t, run.Status, loaded.Status)
	require.Len(t, loaded.Jobs, 2)
	assert.Equal(t, 42, loaded.Jobs[0].RowsRead, "Job counters should survive the round trip")
}

func TestSaveRunState_LeavesNoTempFiles(t *testing.T) {
	stateDir := t.TempDir()
	run := newTestRun()

	// Save twice to exercise the overwrite path as well
	require.NoError(t, services.SaveRunState(stateDir, run))
	run.Status = models.RunStatusRunning
	require.NoError(t, services.SaveRunState(stateDir, run))

	entries, err := os.ReadDir(services.GetRunDir(stateDir, run.RunID))
	require.NoError(t, err)

	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), ".run.tmp."),
			"Atomic write should not leave temp file %s behind", entry.Name())
	}
}

func TestSaveRunState_RejectsInvalidRun(t *testing.T) {
	stateDir := t.TempDir()
	run := newTestRun()
	run.Status = models.RunStatus("bogus")

	err := services.SaveRunState(stateDir, run)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot save invalid run")
}

func TestLoadRunState_NotFound(t *testing.T) {
	stateDir := t.TempDir()

	_, err := services.LoadRunState(stateDir, uuid.New().String())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestLoadRunState_CorruptedJSON(t *testing.T) {
	stateDir := t.TempDir()
	runID := uuid.New().String()

	statePath := services.GetRunStatePath(stateDir, runID)
	require.NoError(t, os.MkdirAll(filepath.Dir(statePath), 0755))
	require.NoError(t, os.WriteFile(statePath, []byte("{not json"), 0644))

	_, err := services.LoadRunState(stateDir, runID)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse run state")
}

func TestLoadRunState_InvalidRunOnDisk(t *testing.T) {
	stateDir := t.TempDir()
	runID := uuid.New().String()

	// Well-formed JSON whose content fails run validation
	statePath := services.GetRunStatePath(stateDir, runID)
	require.NoError(t, os.MkdirAll(filepath.Dir(statePath), 0755))
	state := `{"run_id": "` + runID + `", "source": "/data", "export_timestamp": "20250601T120000Z", "status": "bogus"}`
	require.NoError(t, os.WriteFile(statePath, []byte(state), 0644))

	_, err := services.LoadRunState(stateDir, runID)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run state")
}

func TestListAllRuns(t *testing.T) {
	stateDir := t.TempDir()

	// Empty state dir lists nothing
	runIDs, err := services.ListAllRuns(stateDir)
	require.NoError(t, err)
	assert.Empty(t, runIDs)

	// Two saved runs are both listed
	first := newTestRun()
	second := newTestRun()
	require.NoError(t, services.SaveRunState(stateDir, first))
	require.NoError(t, services.SaveRunState(stateDir, second))

	runIDs, err = services.ListAllRuns(stateDir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.RunID, second.RunID}, runIDs)
}

func TestListAllRuns_SkipsDirsWithoutState(t *testing.T) {
	stateDir := t.TempDir()

	run := newTestRun()
	require.NoError(t, services.SaveRunState(stateDir, run))

	// A directory with no run.json is not a run
	require.NoError(t, os.MkdirAll(filepath.Join(stateDir, services.RunsSubdir, "orphan"), 0755))
	// Stray files in the runs dir are ignored
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, services.RunsSubdir, "notes.txt"), []byte("x"), 0644))

	runIDs, err := services.ListAllRuns(stateDir)
	require.NoError(t, err)
	assert.Equal(t, []string{run.RunID}, runIDs)
}

func TestDeleteRun(t *testing.T) {
	stateDir := t.TempDir()
	run := newTestRun()
	require.NoError(t, services.SaveRunState(stateDir, run))

	err := services.DeleteRun(stateDir, run.RunID)
	require.NoError(t, err)

	_, err = os.Stat(services.GetRunDir(stateDir, run.RunID))
	assert.True(t, os.IsNotExist(err), "Run directory should be gone")

	// Deleting again reports the run as missing
	err = services.DeleteRun(stateDir, run.RunID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}
