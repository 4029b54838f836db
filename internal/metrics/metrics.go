package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackai_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slackai_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackai_messages_created_total",
			Help: "Total messages persisted",
		},
		[]string{"kind"}, // "channel" or "direct"
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slackai_search_queries_total",
			Help: "Total search queries",
		},
	)

	// Relay metrics
	RelayConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slackai_relay_connections",
			Help: "Currently registered relay connections",
		},
	)

	RelayEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackai_relay_events_total",
			Help: "Inbound relay events by type",
		},
		[]string{"type"},
	)

	RelayDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slackai_relay_frames_delivered_total",
			Help: "Outbound frames enqueued to recipients",
		},
	)

	RelayDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackai_relay_frames_dropped_total",
			Help: "Outbound frames dropped",
		},
		[]string{"reason"}, // "queue_full" or "closed"
	)

	// Insight metrics
	AnalysesAttached = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slackai_analyses_attached_total",
			Help: "Messages annotated with insight analysis",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackai_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
