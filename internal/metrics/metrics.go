package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mention lifecycle metrics
var (
	// MentionsCreatedTotal counts tracked mentions created.
	MentionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghostwatch_mentions_created_total",
			Help: "Total tracked mentions created",
		},
	)

	// MentionsRespondedTotal counts mentions closed by a qualifying reply.
	MentionsRespondedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghostwatch_mentions_responded_total",
			Help: "Total mentions closed by a qualifying reply",
		},
	)

	// MentionsTimedOutTotal counts mentions closed by timeout.
	MentionsTimedOutTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghostwatch_mentions_timed_out_total",
			Help: "Total mentions closed by timeout",
		},
	)

	// PendingTimers tracks the size of the live timer set.
	PendingTimers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ghostwatch_pending_timers",
			Help: "Currently armed timeout timers",
		},
	)

	// TimerFireErrors counts timer callbacks that failed against the store.
	TimerFireErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghostwatch_timer_fire_errors_total",
			Help: "Timer callbacks that failed to resolve their mention",
		},
	)
)

// Transport metrics
var (
	// WebhookRequestsTotal counts inbound webhook deliveries by outcome.
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghostwatch_webhook_requests_total",
			Help: "Inbound webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	// DedupDroppedTotal counts redelivered events dropped by the deduper.
	DedupDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghostwatch_dedup_dropped_total",
			Help: "Redelivered webhook events dropped by deduplication",
		},
	)
)

// Redis metrics
var (
	// CircuitBreakerStateChanges tracks circuit breaker state transitions.
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghostwatch_circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ghostwatch_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Broadcast metrics
var (
	// FeedConnectedClients tracks connected live-feed websocket clients.
	FeedConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ghostwatch_feed_connected_clients",
			Help: "Connected live-feed websocket clients",
		},
	)

	// FeedSlowClientsEvicted counts clients evicted for full send buffers.
	FeedSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghostwatch_feed_slow_clients_evicted_total",
			Help: "Live-feed clients evicted due to full send buffer",
		},
	)

	// FeedEventsDroppedTotal counts lifecycle events dropped because the hub
	// command channel was full.
	FeedEventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghostwatch_feed_events_dropped_total",
			Help: "Lifecycle events dropped due to a full hub command channel",
		},
	)
)
