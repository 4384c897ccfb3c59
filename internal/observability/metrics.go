package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: "satha", Name: "requests_created_total", Help: "Tow requests created"})

	DispatchBroadcasts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "satha", Name: "dispatch_broadcasts_total", Help: "New-request broadcasts fanned out to drivers"})

	AcceptAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "satha", Name: "accept_attempts_total", Help: "Accept attempts by outcome"},
		[]string{"outcome"},
	)

	Completions = promauto.NewCounter(prometheus.CounterOpts{Namespace: "satha", Name: "completions_total", Help: "Requests completed and settled"})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "satha", Name: "live_connections", Help: "Open websocket sessions"})

	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "satha", Name: "rooms_active", Help: "Order rooms with at least one member"})

	SocketEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "satha", Name: "socket_events_total", Help: "Inbound socket events by name"},
		[]string{"event"},
	)

	DroppedSends = promauto.NewCounter(prometheus.CounterOpts{Namespace: "satha", Name: "dropped_sends_total", Help: "Fan-out messages dropped on full session buffers"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "satha", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "satha",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
