package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	fhirlake = "fhirlake"

	// Pipeline metrics
	recordsTaggedTotal = "records_tagged_total"
	rowsWrittenTotal   = "rows_written_total"
	jobsTotal          = "jobs_total"
	runDurationSeconds = "run_duration_seconds"

	// Labels
	resourceTypeLabel = "resource_type"
	tenantLabel       = "tenant"
	outcomeLabel      = "outcome"
)

var recordsTaggedLabels = []string{
	resourceTypeLabel,
	tenantLabel,
}

var rowsWrittenLabels = []string{
	resourceTypeLabel,
}

var jobsTotalLabels = []string{
	resourceTypeLabel,
	outcomeLabel,
}

/**
* Metrics definition
**/
var recordsTaggedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: fhirlake,
		Name:      recordsTaggedTotal,
		Help:      "number of records tagged per resource type and tenant (including the unknown tenant)",
	},
	recordsTaggedLabels,
)

var rowsWrittenTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: fhirlake,
		Name:      rowsWrittenTotal,
		Help:      "number of rows appended to the curated dataset per resource type",
	},
	rowsWrittenLabels,
)

var jobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: fhirlake,
		Name:      jobsTotal,
		Help:      "number of resource type jobs by outcome (done, failed, skipped)",
	},
	jobsTotalLabels,
)

var runDurationSecondsMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: fhirlake,
		Name:      runDurationSeconds,
		Help:      "wall clock duration of the last pipeline run in seconds",
	},
)

func IncreaseRecordsTaggedMetric(resourceType string, tenant string, count int) {
	labels := prometheus.Labels{
		resourceTypeLabel: resourceType,
		tenantLabel:       tenant,
	}
	recordsTaggedTotalMetric.With(labels).Add(float64(count))
}

func IncreaseRowsWrittenMetric(resourceType string, count int) {
	labels := prometheus.Labels{
		resourceTypeLabel: resourceType,
	}
	rowsWrittenTotalMetric.With(labels).Add(float64(count))
}

func IncreaseJobsTotalMetric(resourceType string, outcome string) {
	labels := prometheus.Labels{
		resourceTypeLabel: resourceType,
		outcomeLabel:      outcome,
	}
	jobsTotalMetric.With(labels).Inc()
}

func UpdateRunDurationMetric(seconds float64) {
	runDurationSecondsMetric.Set(seconds)
}

// PushToGateway pushes all pipeline metrics to a Prometheus Pushgateway.
// Called once at the end of a run when metrics push is configured; batch
// jobs cannot be scraped, so push is the delivery path.
func PushToGateway(gatewayURL string, runID string) error {
	pusher := push.New(gatewayURL, "fhirlake_run").
		Grouping("run_id", runID).
		Collector(recordsTaggedTotalMetric).
		Collector(rowsWrittenTotalMetric).
		Collector(jobsTotalMetric).
		Collector(runDurationSecondsMetric)

	if err := pusher.Push(); err != nil {
		return fmt.Errorf("push metrics to gateway: %w", err)
	}
	return nil
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(recordsTaggedTotalMetric)
	prometheus.MustRegister(rowsWrittenTotalMetric)
	prometheus.MustRegister(jobsTotalMetric)
	prometheus.MustRegister(runDurationSecondsMetric)
}
