package counter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchTotal counts full billing fetch cycles by outcome.
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metricsfox",
		Subsystem: "billing",
		Name:      "fetch_total",
		Help:      "Full billing fetch cycles by outcome.",
	}, []string{"outcome"})

	// FetchDuration tracks how long a full fetch cycle takes.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "metricsfox",
		Subsystem: "billing",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of a full billing fetch cycle in seconds.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// PagesFetched counts list pages requested from the billing provider.
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metricsfox",
		Subsystem: "billing",
		Name:      "pages_fetched_total",
		Help:      "List pages fetched from the billing provider by resource.",
	}, []string{"resource"})

	// CustomerLookupFailures counts customer email lookups that failed.
	CustomerLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "metricsfox",
		Subsystem: "billing",
		Name:      "customer_lookup_failures_total",
		Help:      "Customer email lookups that failed during a fetch.",
	})

	// EventDecodeFailures counts billing events skipped because their payload
	// could not be decoded.
	EventDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "metricsfox",
		Subsystem: "billing",
		Name:      "event_decode_failures_total",
		Help:      "Billing events skipped because their payload could not be decoded.",
	})

	// SnapshotRecords is the number of records in the current snapshot.
	SnapshotRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "metricsfox",
		Subsystem: "snapshot",
		Name:      "records",
		Help:      "Subscription records held by the current snapshot.",
	})

	// CacheRequests counts snapshot cache lookups by result (hit, miss, error).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metricsfox",
		Subsystem: "snapshot",
		Name:      "requests_total",
		Help:      "Snapshot cache lookups by result.",
	}, []string{"result"})
)
