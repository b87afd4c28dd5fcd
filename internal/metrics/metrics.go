package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Feed metrics
var (
	FeedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talktome_feed_events_total",
		Help: "Total number of change events received from the live feed",
	}, []string{"kind"})

	FeedConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talktome_feed_connection_state",
		Help: "Live feed connection state (1=connected, 0=disconnected)",
	})

	FeedErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talktome_feed_errors_total",
		Help: "Total number of live feed processing errors",
	})

	FeedEventsReceived = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talktome_feed_events_received",
		Help: "Change events decoded from the live feed since the client started",
	})

	FeedBytesReceived = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talktome_feed_bytes_received",
		Help: "Bytes read from the live feed since the client started, before decompression",
	})
)

// Remote API metrics
var (
	RemoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talktome_remote_requests_total",
		Help: "Total number of remote comment API requests",
	}, []string{"operation", "status"})

	RemoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "talktome_remote_request_duration_seconds",
		Help:    "Remote comment API request duration in seconds",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation"})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talktome_retries_total",
		Help: "Total number of retried remote operations",
	}, []string{"operation"})
)

// Cache metrics
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talktome_cache_hits_total",
		Help: "Total number of local comment cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talktome_cache_misses_total",
		Help: "Total number of local comment cache misses (absent, expired or corrupt)",
	})

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talktome_cache_entries",
		Help: "Number of entries in the persistent comment cache",
	})
)

// Thread metrics
var (
	CommentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talktome_comments_total",
		Help: "Total number of comment operations",
	}, []string{"operation", "result"})

	LoadTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talktome_load_timeouts_total",
		Help: "Total number of snapshot loads abandoned at the deadline",
	})

	WorkingSetComments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talktome_working_set_comments",
		Help: "Number of comments held for the mounted post",
	})

	VisibleComments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talktome_visible_comments",
		Help: "Number of comments visible to the current session",
	})
)
