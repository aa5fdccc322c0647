package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion and retrieval counters, exposed on /metrics.
var (
	IngestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imaging_ingests_total",
		Help: "Instance ingestion attempts by outcome.",
	}, []string{"outcome"})

	DuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imaging_duplicate_instances_total",
		Help: "Ingestions resolved as duplicates of an existing instance.",
	})

	IngestedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imaging_ingested_bytes_total",
		Help: "Total bytes written to the content store.",
	})

	RetrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imaging_instance_retrievals_total",
		Help: "Instance blob retrievals by cache result.",
	}, []string{"cache"})

	ValidationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imaging_validation_failures_total",
		Help: "Instances whose synchronous validation produced an ERROR status.",
	})
)

// Ingest outcome label values.
const (
	OutcomeSuccess          = "success"
	OutcomeDuplicate        = "duplicate"
	OutcomeInvalidFormat    = "invalid_format"
	OutcomeExtractionFailed = "extraction_failed"
	OutcomeStorageFailure   = "storage_failure"
	OutcomeError            = "error"
)
