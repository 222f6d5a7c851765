package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/models"
	"github.com/thirdopinion/fhirlake/internal/pipeline"
)

func newMultiTenantTagger() *pipeline.Tagger {
	cfg := models.PipelineConfig{
		MultiTenant:        true,
		TenantPartitionKey: "tenant_guid",
	}
	return pipeline.NewTagger(cfg, newTestLogger())
}

func TestTagger_Tag_MultiTenant(t *testing.T) {
	tagger := newMultiTenantTagger()
	resources := []lib.FHIRResource{
		patientResource("p1", "tenant-a"),
		patientResource("p2", "tenant-b"),
		patientResource("p3", ""),
	}

	tagged := tagger.Tag(resources, "Patient", "20250601T120000Z")

	require.Len(t, tagged, 3)
	assert.Equal(t, "tenant-a", tagged[0]["tenant_guid"])
	assert.Equal(t, "tenant-b", tagged[1]["tenant_guid"])
	assert.Equal(t, lib.UnknownTenant, tagged[2]["tenant_guid"], "Unclaimed resources land in the unknown partition")

	for _, record := range tagged {
		assert.Equal(t, "20250601T120000Z", record[models.ColumnExportTimestamp])
	}
}

func TestTagger_Tag_SingleProcessingDatePerBatch(t *testing.T) {
	tagger := newMultiTenantTagger()
	resources := []lib.FHIRResource{
		patientResource("p1", "tenant-a"),
		patientResource("p2", "tenant-a"),
		patientResource("p3", "tenant-b"),
	}

	tagged := tagger.Tag(resources, "Patient", "20250601T120000Z")

	require.Len(t, tagged, 3)
	stamp, ok := tagged[0][models.ColumnProcessingDate].(string)
	require.True(t, ok)

	_, err := time.Parse(time.RFC3339, stamp)
	assert.NoError(t, err, "Processing date should be RFC3339")

	for _, record := range tagged {
		assert.Equal(t, stamp, record[models.ColumnProcessingDate], "One batch gets one stamp")
	}
}

func TestTagger_Tag_DoesNotMutateInput(t *testing.T) {
	tagger := newMultiTenantTagger()
	original := patientResource("p1", "tenant-a")

	tagged := tagger.Tag([]lib.FHIRResource{original}, "Patient", "20250601T120000Z")

	require.Len(t, tagged, 1)
	assert.NotContains(t, original, "tenant_guid", "Input resources stay untouched")
	assert.NotContains(t, original, models.ColumnExportTimestamp)
	assert.NotContains(t, original, models.ColumnProcessingDate)
}

func TestTagger_Tag_SingleTenantSkipsExtraction(t *testing.T) {
	cfg := models.PipelineConfig{
		MultiTenant:        false,
		TenantPartitionKey: "tenant_guid",
	}
	tagger := pipeline.NewTagger(cfg, newTestLogger())

	extractCalls := 0
	tagger.Extract = func(lib.FHIRResource) string {
		extractCalls++
		return "should-not-be-used"
	}

	tagged := tagger.Tag([]lib.FHIRResource{
		patientResource("p1", "tenant-a"),
		patientResource("p2", ""),
	}, "Patient", "20250601T120000Z")

	require.Len(t, tagged, 2)
	assert.Equal(t, models.SingleTenantValue, tagged[0]["tenant_guid"])
	assert.Equal(t, models.SingleTenantValue, tagged[1]["tenant_guid"])
	assert.Zero(t, extractCalls, "Single-tenant mode never inspects security labels")
}

func TestTagger_Tag_CustomTenantKey(t *testing.T) {
	cfg := models.PipelineConfig{
		MultiTenant:        true,
		TenantPartitionKey: "org_id",
	}
	tagger := pipeline.NewTagger(cfg, newTestLogger())

	tagged := tagger.Tag([]lib.FHIRResource{patientResource("p1", "tenant-a")}, "Patient", "20250601T120000Z")

	require.Len(t, tagged, 1)
	assert.Equal(t, "tenant-a", tagged[0]["org_id"])
	assert.NotContains(t, tagged[0], "tenant_guid")
}

func TestTagger_Tag_Empty(t *testing.T) {
	tagger := newMultiTenantTagger()

	assert.Nil(t, tagger.Tag(nil, "Patient", "20250601T120000Z"))
	assert.Nil(t, tagger.Tag([]lib.FHIRResource{}, "Patient", "20250601T120000Z"))
}
