package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tick loop metrics
	TickIntervalSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtimecore_tick_interval_seconds",
			Help:    "Wall time between the start of consecutive ticks",
			Buckets: []float64{0.005, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.08, 0.1, 0.2},
		},
	)

	TickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtimecore_tick_duration_seconds",
			Help:    "Time spent running pre_tick, tick hooks, and post_tick",
			Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.03, 0.04, 0.05, 0.08, 0.1},
		},
	)

	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtimecore_ticks_total",
			Help: "Total number of completed ticks",
		},
	)

	// Ingress metrics
	IngressStripeDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtimecore_ingress_stripe_depth",
			Help: "Pending datagrams waiting in an ingress stripe, by stripe index",
		},
		[]string{"stripe"},
	)

	IngressKnownPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtimecore_ingress_known_peers",
			Help: "Number of endpoints currently known to the shared ingress zone",
		},
	)

	IngressDatagramsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtimecore_ingress_datagrams_total",
			Help: "Total number of datagrams accepted into the ingress pipeline",
		},
	)

	IngressDisconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtimecore_ingress_disconnects_total",
			Help: "Total number of peers processed through the disconnect handshake",
		},
	)

	// Pool metrics
	PoolOutstanding = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtimecore_pool_outstanding",
			Help: "Objects currently leased out of a pool, by pool name",
		},
		[]string{"pool"},
	)

	PoolSlabAllocsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtimecore_pool_slab_allocs_total",
			Help: "Cumulative fresh slab allocations, by pool name",
		},
		[]string{"pool"},
	)

	// Transaction engine metrics
	TxnFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtimecore_txn_flush_duration_seconds",
			Help:    "Time taken to execute one bulk or callable batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	TxnOpsBatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtimecore_txn_ops_batched_total",
			Help: "Total number of ops dispatched, by batch kind (bulk, callable)",
		},
		[]string{"kind"},
	)

	TxnPendingCallables = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtimecore_txn_pending_callables",
			Help: "Sum of pending_callable_count across all live transactions",
		},
	)

	TxnDependencyStallsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtimecore_txn_dependency_stalls_total",
			Help: "Total number of advance() calls that stopped on an unmet dependency",
		},
	)

	// Database gateway metrics
	DBRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtimecore_db_ensure_creation_retries_total",
			Help: "Total number of duplicate-key retries in EnsureCreation",
		},
	)

	DBErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtimecore_db_errors_total",
			Help: "Total number of database driver errors and UDP read errors, by operation",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		TickIntervalSeconds,
		TickDurationSeconds,
		TicksTotal,
		IngressStripeDepth,
		IngressKnownPeers,
		IngressDatagramsTotal,
		IngressDisconnectsTotal,
		PoolOutstanding,
		PoolSlabAllocsTotal,
		TxnFlushDuration,
		TxnOpsBatchedTotal,
		TxnPendingCallables,
		TxnDependencyStallsTotal,
		DBRetriesTotal,
		DBErrorsTotal,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
