package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Discovery metrics
var (
	DiscoveryRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_tagger_discovery_runs_total",
			Help: "Total number of discovery passes",
		},
	)

	DiscoveryFilesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_tagger_discovery_files_seen_total",
			Help: "Total number of filesystem entries examined during discovery",
		},
	)

	DiscoveryFilesReturned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_tagger_discovery_files_returned_total",
			Help: "Total number of photo keys returned by discovery",
		},
	)

	DiscoverySkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_tagger_discovery_skipped_total",
			Help: "Total number of entries excluded during discovery",
		},
		[]string{"reason"}, // "unsupported", "unanchored", "unmodified", "walk_error"
	)

	DiscoveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_tagger_discovery_duration_seconds",
			Help:    "Duration of a discovery pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// State store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_tagger_store_queries_total",
			Help: "Total number of state store queries",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_tagger_store_query_duration_seconds",
			Help:    "State store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	InventorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_tagger_inventory_size",
			Help: "Number of photo keys in the inventory",
		},
	)

	CompletedSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_tagger_completed_size",
			Help: "Number of photo keys in the completion set",
		},
	)

	BacklogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_tagger_backlog_size",
			Help: "Number of photo keys awaiting processing",
		},
	)
)

// Annotation provider metrics
var (
	AnnotateRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_tagger_annotate_requests_total",
			Help: "Total number of annotation provider calls",
		},
		[]string{"provider", "status"},
	)

	AnnotateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_tagger_annotate_duration_seconds",
			Help:    "Annotation provider call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)
)

// Metadata writer metrics
var (
	MetadataWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_tagger_metadata_writes_total",
			Help: "Total number of metadata write attempts",
		},
		[]string{"format", "status"},
	)
)

// Batch metrics
var (
	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_tagger_batch_items_total",
			Help: "Total number of batch items by outcome",
		},
		[]string{"result"}, // "succeeded", "failed_annotate", "failed_write"
	)

	BatchRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_tagger_batch_runs_total",
			Help: "Total number of batch runs",
		},
	)

	BatchLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_tagger_batch_last_run_timestamp",
			Help: "Timestamp of the last batch run",
		},
	)

	BatchLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_tagger_batch_last_run_duration_seconds",
			Help: "Duration of the last batch run in seconds",
		},
	)

	PacerWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_tagger_pacer_wait_seconds_total",
			Help: "Total time spent waiting on the request pacer",
		},
	)
)
