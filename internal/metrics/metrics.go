package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tracking metrics - transaction lifecycle
var (
	TransactionsTracked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locksync_transactions_tracked_total",
		Help: "Total number of transaction hashes handed to the tracker",
	})

	ActiveTrackers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "locksync_active_trackers",
		Help: "Number of transaction trackers currently polling",
	})

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locksync_status_transitions_total",
			Help: "Total lifecycle transitions emitted by status",
		},
		[]string{"status"},
	)

	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locksync_polls_total",
		Help: "Total poll iterations across all tracked transactions",
	})

	PollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locksync_poll_failures_total",
		Help: "Total poll iterations that failed at the transport",
	})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "locksync_poll_duration_seconds",
		Help:    "Time taken by a single poll iteration",
		Buckets: prometheus.DefBuckets,
	})
)

// Decoding metrics
var (
	RecordsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locksync_records_decoded_total",
			Help: "Total update records produced by decoders, by kind",
		},
		[]string{"kind"},
	)

	DecodeMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locksync_decode_mismatches_total",
		Help: "Total payloads whose shape did not match their classified type",
	})
)

// Version binding metrics
var (
	BindingResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locksync_binding_resolutions_total",
			Help: "Total first-time binding resolutions by contract revision",
		},
		[]string{"version"},
	)

	UnknownVersions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locksync_unknown_versions_total",
		Help: "Total probes that matched no registered contract revision",
	})
)

// Enumeration metrics
var (
	PagesEnumerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locksync_pages_enumerated_total",
			Help: "Total key owner pages enumerated by strategy",
		},
		[]string{"strategy"},
	)

	OwnerLookupGaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locksync_owner_lookup_gaps_total",
		Help: "Total per-index owner lookups that resolved to a gap",
	})

	PageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "locksync_page_duration_seconds",
		Help:    "Time taken to fully enumerate one key owner page",
		Buckets: prometheus.DefBuckets,
	})
)

// Materialized view metrics
var (
	ViewLocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "locksync_view_locks",
		Help: "Number of locks currently materialized in the view",
	})

	ViewKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "locksync_view_keys",
		Help: "Number of keys currently materialized in the view",
	})

	StaleRecordsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locksync_stale_records_skipped_total",
		Help: "Total update records dropped for carrying an older block than the view",
	})

	UpsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "locksync_db_upsert_duration_seconds",
		Help:    "Time taken to persist one update record",
		Buckets: prometheus.DefBuckets,
	})
)
