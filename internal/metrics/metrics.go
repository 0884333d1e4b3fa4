// Package metrics holds the Prometheus collectors exported by notegraph.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan kinds used as the "kind" label of ScansTotal.
const (
	ScanFull    = "full"
	ScanPartial = "partial"
)

var (
	// ScansTotal counts refresh calls. Labels: kind (full, partial).
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notegraph",
		Name:      "scans_total",
		Help:      "Notebook refresh calls by kind",
	}, []string{"kind"})

	// ListingFailures counts directories that could not be listed during a scan.
	ListingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notegraph",
		Name:      "directory_listing_failures_total",
		Help:      "Directory listings that failed and were treated as empty",
	})

	// RelationRebuildDuration measures full relation rebuilds.
	RelationRebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "notegraph",
		Name:      "relation_rebuild_duration_seconds",
		Help:      "Time spent reprocessing mentions for every note",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// MentionsProcessed counts per-note mention reprocessing steps.
	MentionsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notegraph",
		Name:      "mentions_processed_total",
		Help:      "Notes whose mentions were reprocessed",
	})
)
