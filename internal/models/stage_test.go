package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/thirdopinion/fhirlake/internal/models"
)

func TestStage_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    models.Stage
		to      models.Stage
		allowed bool
	}{
		{"Pending to tagging", models.StagePending, models.StageTagging, true},
		{"Pending to skipped (no data)", models.StagePending, models.StageSkipped, true},
		{"Pending to writing skips a stage", models.StagePending, models.StageWriting, false},
		{"Pending to failed", models.StagePending, models.StageFailed, false},
		{"Tagging to writing", models.StageTagging, models.StageWriting, true},
		{"Tagging to failed", models.StageTagging, models.StageFailed, true},
		{"Tagging to skipped", models.StageTagging, models.StageSkipped, false},
		{"Tagging to done skips stages", models.StageTagging, models.StageDone, false},
		{"Writing to syncing", models.StageWriting, models.StageSyncing, true},
		{"Writing to failed", models.StageWriting, models.StageFailed, true},
		{"Writing to done skips syncing", models.StageWriting, models.StageDone, false},
		{"Syncing to done", models.StageSyncing, models.StageDone, true},
		{"Syncing to failed", models.StageSyncing, models.StageFailed, true},
		{"Done is terminal", models.StageDone, models.StageTagging, false},
		{"Failed is terminal", models.StageFailed, models.StageTagging, false},
		{"Skipped is terminal", models.StageSkipped, models.StageTagging, false},
		{"Unknown stage", models.Stage("weird"), models.StageTagging, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStage_IsTerminal(t *testing.T) {
	assert.True(t, models.StageDone.IsTerminal())
	assert.True(t, models.StageFailed.IsTerminal())
	assert.True(t, models.StageSkipped.IsTerminal())
	assert.False(t, models.StagePending.IsTerminal())
	assert.False(t, models.StageTagging.IsTerminal())
	assert.False(t, models.StageWriting.IsTerminal())
	assert.False(t, models.StageSyncing.IsTerminal())
}

func TestIsValidStage(t *testing.T) {
	valid := []models.Stage{
		models.StagePending, models.StageTagging, models.StageWriting,
		models.StageSyncing, models.StageDone, models.StageFailed, models.StageSkipped,
	}
	for _, stage := range valid {
		assert.True(t, models.IsValidStage(stage), "%s is a known stage", stage)
	}

	assert.False(t, models.IsValidStage(models.Stage("uploading")))
	assert.False(t, models.IsValidStage(models.Stage("")))
}

func TestStageError_Error(t *testing.T) {
	withStatus := &models.StageError{
		Type:       models.ErrorTypeTransient,
		Message:    "catalog unreachable",
		HTTPStatus: 503,
		Timestamp:  time.Now(),
	}
	assert.Equal(t, "HTTP 503: catalog unreachable", withStatus.Error())

	withoutStatus := &models.StageError{
		Type:      models.ErrorTypeNonTransient,
		Message:   "malformed NDJSON",
		Timestamp: time.Now(),
	}
	assert.Equal(t, "malformed NDJSON", withoutStatus.Error())
}

func TestStageError_IsRetryable(t *testing.T) {
	transient := models.StageError{Type: models.ErrorTypeTransient}
	assert.True(t, transient.IsRetryable(3, 0))
	assert.True(t, transient.IsRetryable(3, 2))
	assert.False(t, transient.IsRetryable(3, 3), "Retry budget exhausted")

	nonTransient := models.StageError{Type: models.ErrorTypeNonTransient}
	assert.False(t, nonTransient.IsRetryable(3, 0))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	assert.True(t, models.IsTransientHTTPStatus(500))
	assert.True(t, models.IsTransientHTTPStatus(599))
	assert.True(t, models.IsTransientHTTPStatus(408))
	assert.True(t, models.IsTransientHTTPStatus(429))
	assert.False(t, models.IsTransientHTTPStatus(400))
	assert.False(t, models.IsTransientHTTPStatus(404))
	assert.False(t, models.IsTransientHTTPStatus(409))
	assert.False(t, models.IsTransientHTTPStatus(200))
	assert.False(t, models.IsTransientHTTPStatus(600))
}
