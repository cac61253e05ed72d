package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the flat ledger service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	syncRuns        *prometheus.CounterVec
	syncFetched     prometheus.Counter
	matchesTotal    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flatledger_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatledger_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		syncRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatledger_sync_runs_total",
				Help: "Total bank sync runs by outcome.",
			},
			[]string{"status"},
		),
		syncFetched: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "flatledger_sync_transactions_fetched_total",
				Help: "Total transactions fetched from the bank feed.",
			},
		),
		matchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatledger_matches_total",
				Help: "Total matcher verdicts by match type.",
			},
			[]string{"match_type"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrSyncRun increments the sync counter with an outcome label.
func (m *Metrics) IncrSyncRun(status string) {
	m.syncRuns.WithLabelValues(status).Inc()
}

// AddSyncFetched records how many transactions a sync pulled from the feed.
func (m *Metrics) AddSyncFetched(n int) {
	m.syncFetched.Add(float64(n))
}

// IncrMatch records one matcher verdict.
func (m *Metrics) IncrMatch(matchType string) {
	m.matchesTotal.WithLabelValues(matchType).Inc()
}

// MatchCounts returns cumulative matcher verdicts by match type, read back
// from the Prometheus counters. Used by the sync status endpoint.
func (m *Metrics) MatchCounts(matchTypes ...string) map[string]int64 {
	counts := make(map[string]int64, len(matchTypes))
	for _, mt := range matchTypes {
		counts[mt] = int64(getCounterValue(m.matchesTotal, mt))
	}
	return counts
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
