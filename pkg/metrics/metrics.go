package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"service"},
	)

	// Business metrics
	RidesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rides_total",
			Help: "Total number of ride transitions by resulting status",
		},
		[]string{"service", "status"},
	)

	MatchingAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_attempts_total",
			Help: "Matching attempts by result (matched, no_driver, skipped, poison, error)",
		},
		[]string{"service", "result"},
	)

	SearchRadiusWon = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matching_search_radius",
			Help:    "Ring radius at which a driver was locked",
			Buckets: prometheus.LinearBuckets(0, 1, 21),
		},
		[]string{"service"},
	)

	ProposalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposals_total",
			Help: "Total number of order proposals sent to drivers",
		},
		[]string{"service"},
	)

	ReapedTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaped_timeouts_total",
			Help: "Total number of expired proposals reclaimed by the reaper",
		},
		[]string{"service"},
	)

	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_events_total",
			Help: "Ride events consumed from the substrate streams by outcome",
		},
		[]string{"service", "stream", "outcome"},
	)

	HeartbeatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driver_heartbeats_total",
			Help: "Total number of driver heartbeats processed",
		},
		[]string{"service"},
	)

	// Notification metrics
	NotificationsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of envelopes published to the notification bus",
		},
		[]string{"service", "channel"},
	)

	NotificationsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Total number of envelopes handed to a live WebSocket connection",
		},
		[]string{"service"},
	)

	NotificationsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Total number of envelopes dropped (slow_client, unroutable)",
		},
		[]string{"service", "reason"},
	)

	WebSocketConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"service"},
	)
)

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(service, method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(service, method, path, status).Observe(duration.Seconds())
}

// RecordStreamEvent records the outcome of one consumed stream event
func RecordStreamEvent(service, stream, outcome string) {
	StreamEventsTotal.WithLabelValues(service, stream, outcome).Inc()
}
