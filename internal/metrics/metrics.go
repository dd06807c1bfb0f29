// Package metrics provides Prometheus metrics for the search engine and the
// handler that exposes them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventarr"

// Registry holds every eventarr collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	// SearchesTotal counts finished search items by terminal status.
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of search items that reached a terminal status",
		},
		[]string{"status"},
	)

	// SearchDuration tracks how long a search item spent in Searching.
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of search items from start to terminal status",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	// QueueDepth reports pending and active items.
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_items",
			Help:      "Number of search items currently pending or active",
		},
		[]string{"state"},
	)

	// SourceQueries counts source queries by outcome.
	SourceQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_queries_total",
			Help:      "Total number of release source queries",
		},
		[]string{"source", "result"},
	)

	// SourceQueryDuration tracks source query latency.
	SourceQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_query_duration_seconds",
			Help:      "Duration of release source queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// SourceDisabled is 1 while a source's breaker is open.
	SourceDisabled = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_disabled",
			Help:      "Whether a source is disabled by its circuit breaker (1=disabled)",
		},
		[]string{"source", "kind"},
	)

	// ReleasesEvaluated counts evaluated releases by decision.
	ReleasesEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "releases_evaluated_total",
			Help:      "Total number of releases evaluated, by decision",
		},
		[]string{"decision"},
	)

	// ReleasesUnmatched counts releases dropped because they matched no event.
	ReleasesUnmatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "releases_unmatched_total",
			Help:      "Total number of releases dropped for matching no tracked event",
		},
	)

	// Grabs counts grab attempts by outcome.
	Grabs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grabs_total",
			Help:      "Total number of grab attempts",
		},
		[]string{"source", "result"},
	)

	// BlocklistAdds counts blocklist additions by reason.
	BlocklistAdds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocklist_additions_total",
			Help:      "Total number of releases added to the blocklist",
		},
		[]string{"reason"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		SearchesTotal,
		SearchDuration,
		QueueDepth,
		SourceQueries,
		SourceQueryDuration,
		SourceDisabled,
		ReleasesEvaluated,
		ReleasesUnmatched,
		Grabs,
		BlocklistAdds,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// RecordSearch records a terminal search item.
func RecordSearch(status string, duration time.Duration) {
	SearchesTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		SearchDuration.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// SetQueueDepth publishes the current pending and active counts.
func SetQueueDepth(pending, active int) {
	QueueDepth.WithLabelValues("pending").Set(float64(pending))
	QueueDepth.WithLabelValues("active").Set(float64(active))
}

// RecordSourceQuery records one source query.
func RecordSourceQuery(source string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SourceQueries.WithLabelValues(source, result).Inc()
	SourceQueryDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordSourceSkipped records a query skipped because the breaker was open.
func RecordSourceSkipped(source string) {
	SourceQueries.WithLabelValues(source, "skipped").Inc()
}

// SetSourceDisabled publishes breaker state for one side of a source.
func SetSourceDisabled(source, kind string, disabled bool) {
	value := 0.0
	if disabled {
		value = 1
	}
	SourceDisabled.WithLabelValues(source, kind).Set(value)
}

// RecordEvaluation records an evaluated release.
func RecordEvaluation(approved bool) {
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	ReleasesEvaluated.WithLabelValues(decision).Inc()
}

// RecordUnmatched records releases dropped by pack matching.
func RecordUnmatched(count int) {
	if count > 0 {
		ReleasesUnmatched.Add(float64(count))
	}
}

// RecordGrab records a grab attempt.
func RecordGrab(source string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	Grabs.WithLabelValues(source, result).Inc()
}

// RecordBlock records a blocklist addition.
func RecordBlock(reason string) {
	BlocklistAdds.WithLabelValues(reason).Inc()
}
