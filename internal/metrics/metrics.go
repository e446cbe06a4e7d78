package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session Metrics
var (
	// ActiveSessions tracks the number of channels with a running ingestion session
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_sessions",
			Help: "Number of channels with an active ingestion session",
		},
	)

	// SessionStartsTotal tracks session start attempts by result
	SessionStartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_session_starts_total",
			Help: "Total session start attempts by result (success/error)",
		},
		[]string{"result"},
	)

	// SessionConnectorErrors tracks unrecoverable connector failures after activation
	SessionConnectorErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_session_connector_errors_total",
			Help: "Total unrecoverable connector failures on active sessions",
		},
	)
)

// Enrichment Metrics
var (
	// MessagesEnriched tracks enriched chat messages by result
	MessagesEnriched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_enriched_total",
			Help: "Total chat messages processed by the enrichment pipeline by result (ok/dropped)",
		},
		[]string{"result"},
	)

	// EnrichmentDuration tracks enrichment pipeline latency
	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_enrichment_duration_seconds",
			Help:    "Enrichment pipeline duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
	)
)

// Emote Directory Metrics
var (
	// EmoteFetchesTotal tracks external emote source fetches by source and status
	EmoteFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emote_fetches_total",
			Help: "Total emote source fetches by source and status (ok/empty/error/circuit_open)",
		},
		[]string{"source", "status"},
	)

	// GlobalEmoteCacheReloads tracks explicit invalidations of the global emote cache
	GlobalEmoteCacheReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emote_global_cache_reloads_total",
			Help: "Total explicit invalidations of the global emote cache",
		},
	)

	// EmoteCircuitState tracks circuit breaker state per emote source (0=closed, 1=half-open, 2=open)
	EmoteCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "emote_source_circuit_state",
			Help: "Emote source circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)
)

// Broadcast Metrics
var (
	// ConnectedSubscribers tracks total connected dashboard subscribers
	ConnectedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_connected_subscribers",
			Help: "Total connected dashboard subscribers across all channels",
		},
	)

	// SlowSubscribersEvicted tracks subscribers evicted because their send buffer filled
	SlowSubscribersEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_slow_subscribers_evicted_total",
			Help: "Total subscribers evicted due to a full send buffer",
		},
	)

	// EventsBroadcast tracks events fanned out by kind
	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_events_total",
			Help: "Total events broadcast by kind",
		},
		[]string{"kind"},
	)
)

// WebSocket Metrics
var (
	// WebSocketConnectionsTotal tracks connection attempts by result
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connection attempts by result (success/error/rejected)",
		},
		[]string{"result"},
	)

	// WebSocketConnectionsRejected tracks rejected connection attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total WebSocket connections rejected by reason (rate_limit/per_ip_limit/global_limit)",
		},
		[]string{"reason"},
	)
)

// Sentiment Catalog Metrics
var (
	// CatalogEntries tracks the current number of entries in the sentiment catalog
	CatalogEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentiment_catalog_entries",
			Help: "Current number of entries in the emote sentiment catalog",
		},
	)

	// CatalogReloads tracks catalog reloads by result
	CatalogReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_catalog_reloads_total",
			Help: "Total sentiment catalog reloads by result (success/error)",
		},
		[]string{"result"},
	)
)
