package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	kvOpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kv_op_total",
			Help: "Key-value store operations by op and result.",
		},
		[]string{"op", "result"},
	)

	kvOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kv_operation_duration_seconds",
			Help:    "Duration of key-value store operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	filterStateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_state_ops_total",
			Help: "Filter state loads, saves and resets by outcome.",
		},
		[]string{"op", "outcome"},
	)

	evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_evaluations_total",
			Help: "Predicate evaluations by filter scope.",
		},
		[]string{"scope"},
	)

	evaluationMatches = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filter_evaluation_matches",
			Help:    "Number of records left after filtering.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"scope"},
	)

	memoResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_memo_results_total",
			Help: "Evaluation memo lookups by outcome.",
		},
		[]string{"outcome"},
	)

	listingCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_cache_results_total",
			Help: "Listing cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	listingFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_fetch_total",
			Help: "Listing fetches from the record store by store and result.",
		},
		[]string{"store", "result"},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "property_invalidations_total",
			Help: "Property change events applied by op and result.",
		},
		[]string{"op", "result"},
	)

	kafkaErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_errors_total",
			Help: "Kafka producer and consumer errors by kind.",
		},
		[]string{"kind"},
	)

	collectors = []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		kvOpTotal, kvOpDurationSeconds, filterStateTotal, evaluationsTotal, evaluationMatches,
		memoResults, listingCacheResults, listingFetchTotal, invalidationsTotal, kafkaErrorsTotal,
	}
)

// Init additionally registers every collector with reg (e.g. a metrics.Provider registry).
// Collectors already present in reg are skipped. Build info stays on the default
// registry, the provider exports its own.
func Init(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

// ObserveKVOp records one key-value store call. A miss is not an error.
func ObserveKVOp(op string, err error, durationSeconds float64) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	kvOpTotal.WithLabelValues(op, res).Inc()
	kvOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

// IncFilterState counts a filter state op, outcome is one of
// ok, default, error.
func IncFilterState(op, outcome string) {
	filterStateTotal.WithLabelValues(op, outcome).Inc()
}

func ObserveEvaluation(scope string, matches int) {
	if scope == "" {
		scope = "none"
	}
	evaluationsTotal.WithLabelValues(scope).Inc()
	evaluationMatches.WithLabelValues(scope).Observe(float64(matches))
}

func IncMemoHit()  { memoResults.WithLabelValues("hit").Inc() }
func IncMemoMiss() { memoResults.WithLabelValues("miss").Inc() }

func IncListingCacheHit()  { listingCacheResults.WithLabelValues("hit").Inc() }
func IncListingCacheMiss() { listingCacheResults.WithLabelValues("miss").Inc() }

func ObserveListingFetch(store string, err error) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	listingFetchTotal.WithLabelValues(store, res).Inc()
}

func ObserveInvalidation(op string, err error) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	invalidationsTotal.WithLabelValues(op, res).Inc()
}

func IncKafkaError(kind string) {
	kafkaErrorsTotal.WithLabelValues(kind).Inc()
}
