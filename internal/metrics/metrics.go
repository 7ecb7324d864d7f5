// Package metrics exposes Prometheus instrumentation for ingest,
// lookup and search activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Taxonomy state, set after each successful ingest.
	taxonomyEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nacex_taxonomy_entries",
		Help: "Number of taxonomy entries per level (last ingest)",
	}, []string{"level"}) // level=section|division|group|class

	ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nacex_ingest_total",
		Help: "Taxonomy ingest attempts by outcome",
	}, []string{"outcome"}) // outcome=success|rejected|failed|skipped

	ingestFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nacex_ingest_failures_total",
		Help: "Ingest failures by pipeline stage",
	}, []string{"stage"}) // stage=read|parse|validate|store|export

	ingestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nacex_ingest_duration_seconds",
		Help:    "Wall-clock time of a full ingest run",
		Buckets: prometheus.DefBuckets,
	})

	validationIssues = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nacex_validation_issues",
		Help: "Validation issues found in the last ingest, by severity",
	}, []string{"severity"}) // severity=error|warning

	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nacex_search_total",
		Help: "Search requests by outcome",
	}, []string{"outcome"}) // outcome=hit|empty|error

	cacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nacex_cache_requests_total",
		Help: "Response cache lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss

	refreshTriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nacex_refresh_triggers_total",
		Help: "Refresh trigger attempts by source and outcome",
	}, []string{"source", "outcome"}) // source=api|watcher|startup outcome=accepted|busy|throttled
)

func RecordTaxonomyCounts(sections, divisions, groups, classes int) {
	taxonomyEntries.WithLabelValues("section").Set(float64(sections))
	taxonomyEntries.WithLabelValues("division").Set(float64(divisions))
	taxonomyEntries.WithLabelValues("group").Set(float64(groups))
	taxonomyEntries.WithLabelValues("class").Set(float64(classes))
}

func IncIngest(outcome string)        { ingestTotal.WithLabelValues(outcome).Inc() }
func IncIngestFailure(stage string)   { ingestFailuresTotal.WithLabelValues(stage).Inc() }
func ObserveIngestDuration(s float64) { ingestDurationSeconds.Observe(s) }

func RecordValidationIssues(errors, warnings int) {
	validationIssues.WithLabelValues("error").Set(float64(errors))
	validationIssues.WithLabelValues("warning").Set(float64(warnings))
}

func IncSearch(outcome string) { searchTotal.WithLabelValues(outcome).Inc() }

func IncCacheHit()  { cacheTotal.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheTotal.WithLabelValues("miss").Inc() }

func IncRefreshTrigger(source, outcome string) {
	refreshTriggersTotal.WithLabelValues(source, outcome).Inc()
}
