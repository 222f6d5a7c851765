package services_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/services"
)

func TestInspectExport(t *testing.T) {
	dir := t.TempDir()
	writeExportFile(t, dir, "Patient.ndjson",
		`{"resourceType":"Patient","id":"p1"}`,
		`{"resourceType":"Patient","id":"p2"}`)
	writeExportFile(t, dir, "Observation_001.ndjson",
		`{"resourceType":"Observation","id":"o1"}`)
	writeExportFile(t, dir, "notes.txt", "not an export file")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "logs"), 0755))

	files, err := services.InspectExport(dir, newTestLogger())
	require.NoError(t, err)
	require.Len(t, files, 2, "Only NDJSON files should be listed")

	// Sorted by file name
	assert.Equal(t, "Observation_001.ndjson", files[0].FileName)
	assert.Equal(t, "Observation", files[0].ResourceType)
	assert.Equal(t, 1, files[0].LineCount)

	assert.Equal(t, "Patient.ndjson", files[1].FileName)
	assert.Equal(t, "Patient", files[1].ResourceType)
	assert.Equal(t, 2, files[1].LineCount)
	assert.Greater(t, files[1].FileSize, int64(0))
	assert.False(t, files[1].CreatedAt.IsZero())
}

func TestInspectExport_SkipsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Patient.ndjson"), nil, 0644))

	files, err := services.InspectExport(dir, newTestLogger())
	require.NoError(t, err)
	assert.Empty(t, files, "Zero-byte files fail validation and are skipped")
}

func TestInspectExport_MalformedFileKeepsPartialCount(t *testing.T) {
	dir := t.TempDir()
	writeExportFile(t, dir, "Patient.ndjson",
		`{"resourceType":"Patient","id":"p1"}`,
		`{not json`)

	files, err := services.InspectExport(dir, newTestLogger())
	require.NoError(t, err, "A malformed file should not fail the inspection")
	require.Len(t, files, 1)
	assert.Equal(t, 1, files[0].LineCount, "Count should stop at the malformed line")
}

func TestInspectExport_MissingDirectory(t *testing.T) {
	_, err := services.InspectExport("/nonexistent/export", newTestLogger())
	require.Error(t, err)

	var lakeErr *lib.LakeError
	require.True(t, errors.As(err, &lakeErr))
	assert.Equal(t, lib.CategoryFileSystem, lakeErr.Category)
}

func TestInspectExport_FileInsteadOfDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Patient.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	_, err := services.InspectExport(path, newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
