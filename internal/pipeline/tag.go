package pipeline

import (
	"time"

	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/metrics"
	"github.com/thirdopinion/fhirlake/internal/models"
)

// Tagger stamps tenant and batch metadata onto decoded FHIR resources
// before they are written to the curated dataset
type Tagger struct {
	tenantKey   string
	multiTenant bool
	logger      *lib.Logger

	// Extract resolves the tenant for one resource. Defaults to the
	// meta.security claim lookup; replaceable for alternative claim schemes.
	// Never invoked in single-tenant mode.
	Extract func(lib.FHIRResource) string
}

// NewTagger builds a Tagger from pipeline configuration
func NewTagger(cfg models.PipelineConfig, logger *lib.Logger) *Tagger {
	return &Tagger{
		tenantKey:   cfg.TenantPartitionKey,
		multiTenant: cfg.MultiTenant,
		logger:      logger,
		Extract:     lib.ExtractTenantID,
	}
}

// Tag returns tagged copies of the given resources. Input resources are
// never mutated. The processing date is captured once per call so every
// record of the batch carries the same stamp.
func (t *Tagger) Tag(resources []lib.FHIRResource, resourceType string, exportTimestamp string) []lib.FHIRResource {
	if len(resources) == 0 {
		return nil
	}

	processingDate := time.Now().UTC().Format(time.RFC3339)

	tagged := make([]lib.FHIRResource, 0, len(resources))
	tenantCounts := make(map[string]int)

	for _, resource := range resources {
		tenant := models.SingleTenantValue
		if t.multiTenant {
			tenant = t.Extract(resource)

			if tenant == lib.UnknownTenant {
				if id, err := resource.GetID(); err == nil {
					t.logger.Debug("Resource carries no tenant claim",
						"resource_type", resourceType,
						"id", id)
				}
			}
		}

		record := resource.Clone()
		record[t.tenantKey] = tenant
		record[models.ColumnExportTimestamp] = exportTimestamp
		record[models.ColumnProcessingDate] = processingDate

		tagged = append(tagged, record)
		tenantCounts[tenant]++
	}

	for tenant, count := range tenantCounts {
		metrics.IncreaseRecordsTaggedMetric(resourceType, tenant, count)
	}

	t.logger.Debug("Tagged batch",
		"resource_type", resourceType,
		"records", len(tagged),
		"tenants", len(tenantCounts))

	return tagged
}
