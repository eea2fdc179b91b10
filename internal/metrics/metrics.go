package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Chat metrics
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_sessions_started_total",
			Help: "Session start requests by outcome",
		},
		[]string{"outcome"}, // "created", "reused" or "no_agents"
	)

	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_messages_persisted_total",
			Help: "Total messages appended to sessions",
		},
	)

	// Realtime metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportchat_ws_connections_active",
			Help: "Currently registered WebSocket connections",
		},
	)

	EventsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_events_delivered_total",
			Help: "Room events enqueued to member connections",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_events_dropped_total",
			Help: "Room events dropped because a connection queue was full",
		},
	)

	RelayFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_relay_fallbacks_total",
			Help: "Broadcasts delivered locally after a relay publish failure",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"scope"}, // "http" or "ws"
	)

	// Infrastructure metrics
	StartLockFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_start_lock_failures_total",
			Help: "Session starts that proceeded without the per-user lock",
		},
	)
)
