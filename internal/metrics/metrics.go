package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamview_active_sessions",
		Help: "Number of live negotiation sessions (0 or 1)",
	})
)

// Counters
var (
	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamview_reconnects_total",
		Help: "Total reset/reconnect attempts",
	})
	RelayDroppedCandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamview_relay_dropped_candidates_total",
		Help: "Remote ICE candidates dropped by the relay-only policy",
	})
	NegotiationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamview_negotiation_failures_total",
		Help: "Offer creation or local description failures",
	})
	MediaAcquireFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamview_media_acquire_failures_total",
		Help: "Local media acquisition failures (connection proceeds without tracks)",
	})
	SignalingMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamview_signaling_messages_total",
		Help: "Signaling messages by direction and type",
	}, []string{"direction", "type"})
	ConnectionStateChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamview_connection_state_changes_total",
		Help: "Peer connection state transitions by reported state",
	}, []string{"state"})
	ICEStateChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamview_ice_state_changes_total",
		Help: "ICE connection state transitions by reported state",
	}, []string{"state"})
	PlaybackStartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamview_playback_starts_total",
		Help: "Presentation target playback starts",
	})
	PresentationReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamview_presentation_reloads_total",
		Help: "Presentation target reloads forced by disconnected/failed states",
	})
)

// Histograms
var (
	NegotiationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamview_negotiation_duration_ms",
		Help:    "Time from session creation to the connected state in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
	})
)
