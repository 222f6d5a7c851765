package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thirdopinion/fhirlake/internal/lib"
	"github.com/thirdopinion/fhirlake/internal/metrics"
	"github.com/thirdopinion/fhirlake/internal/models"
	"github.com/thirdopinion/fhirlake/internal/services"
)

// WriteResult reports what a dataset write appended for one resource type
type WriteResult struct {
	RowsWritten int
	Parts       int
	Location    string
}

// WriteDataset appends a tagged batch to the curated dataset, one part file
// per tenant partition. Existing parts are never touched; every run adds new
// uuid-named parts. Any failure here is fatal for the resource type's job.
func WriteDataset(ctx context.Context, store services.DatasetStore, tagged []lib.FHIRResource, resourceType string, tenantKey string, exportTimestamp string, logger *lib.Logger) (WriteResult, error) {
	result := WriteResult{Location: store.Location(resourceType)}

	if len(tagged) == 0 {
		return result, nil
	}

	startTime := time.Now()
	groups := groupByTenant(tagged, tenantKey)

	// Stable write order across runs
	tenants := make([]string, 0, len(groups))
	for tenant := range groups {
		tenants = append(tenants, tenant)
	}
	sort.Strings(tenants)

	for _, tenant := range tenants {
		records := groups[tenant]

		var buf bytes.Buffer
		for _, record := range records {
			if err := lib.WriteNDJSONLine(&buf, record); err != nil {
				return result, fmt.Errorf("failed to encode %s record: %w", resourceType, err)
			}
		}

		relPath := partPath(resourceType, tenantKey, tenant, exportTimestamp)
		if err := store.WritePart(ctx, relPath, buf.Bytes()); err != nil {
			return result, fmt.Errorf("failed to write partition %s=%s: %w", tenantKey, tenant, err)
		}

		result.RowsWritten += len(records)
		result.Parts++
		metrics.IncreaseRowsWrittenMetric(resourceType, len(records))

		logger.Debug("Wrote dataset part",
			"resource_type", resourceType,
			"tenant", tenant,
			"rows", len(records),
			"path", relPath)
	}

	logger.Info("Dataset write complete",
		"resource_type", resourceType,
		"rows", result.RowsWritten,
		"parts", result.Parts,
		"duration", time.Since(startTime))

	return result, nil
}

// groupByTenant splits tagged records by their tenant partition value
func groupByTenant(tagged []lib.FHIRResource, tenantKey string) map[string][]lib.FHIRResource {
	groups := make(map[string][]lib.FHIRResource)
	for _, record := range tagged {
		tenant, _ := record[tenantKey].(string)
		if tenant == "" {
			tenant = lib.UnknownTenant
		}
		groups[tenant] = append(groups[tenant], record)
	}
	return groups
}

// partPath builds the hive-style dataset-relative path for one part file
func partPath(resourceType string, tenantKey string, tenant string, exportTimestamp string) string {
	return fmt.Sprintf("%s/%s=%s/%s=%s/part-%s.ndjson",
		strings.ToLower(resourceType),
		tenantKey, tenant,
		models.ColumnExportTimestamp, exportTimestamp,
		uuid.New().String())
}
