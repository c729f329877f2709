package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the Prometheus collectors exported by an odin process,
// covering both the server (sessions, subscribe outcomes) and the client
// (reconnects) roles (SPEC_FULL.md §2 "Metrics").
type Registry struct {
	Sessions gaugeVec
	Codec    codecCounters
	Session  sessionCounters
	Client   clientCounters
}

type gaugeVec struct {
	ActiveSessions prometheus.Gauge
	LiveHandles    prometheus.Gauge
}

// codecCounters breaks codec warnings out per cause rather than one
// generic counter (SPEC_FULL.md §6 "Structured codec-warning counters"),
// mirroring the teacher's per-cause AcceptErrors/BroadcastDropped split.
type codecCounters struct {
	WireTypeMismatch  prometheus.Counter
	BadTupleLength    prometheus.Counter
	UnknownSubtype    prometheus.Counter
	UnknownField      prometheus.Counter
	MessagesEncoded   prometheus.Counter
	MessagesDecoded   prometheus.Counter
}

type sessionCounters struct {
	SubscribeFailures   prometheus.Counter
	AuthenticateFailures prometheus.Counter
	SendQueueDropped    prometheus.Counter
}

type clientCounters struct {
	ReconnectAttempts prometheus.Counter
	ReconnectSuccess  prometheus.Counter
}

// NewRegistry creates the Prometheus collectors used by both odin-server
// and odin-client.
func NewRegistry() *Registry {
	return &Registry{
		Sessions: gaugeVec{
			ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "odin_sessions_active",
				Help: "Number of active subscription sessions on the server",
			}),
			LiveHandles: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "odin_handles_live",
				Help: "Number of live DObject handles across all sessions",
			}),
		},
		Codec: codecCounters{
			WireTypeMismatch: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_codec_warnings_wire_type_mismatch_total",
				Help: "Deltas skipped because the wire type in the tag did not match the field's expected type",
			}),
			BadTupleLength: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_codec_warnings_bad_tuple_length_total",
				Help: "Tuple frames treated as zero-initialised due to an unexpected length",
			}),
			UnknownSubtype: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_codec_warnings_unknown_subtype_total",
				Help: "Polymorphic values skipped because their subtype id was not registered",
			}),
			UnknownField: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_codec_warnings_unknown_field_total",
				Help: "Deltas skipped because their field id was not present in the object's field table",
			}),
			MessagesEncoded: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_codec_messages_encoded_total",
				Help: "Total DObject delta/sync messages encoded",
			}),
			MessagesDecoded: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_codec_messages_decoded_total",
				Help: "Total DObject delta/sync messages decoded",
			}),
		},
		Session: sessionCounters{
			SubscribeFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_subscribe_failures_total",
				Help: "Total SubscribeFailed responses sent on the meta queue",
			}),
			AuthenticateFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_authenticate_failures_total",
				Help: "Total AuthenticateFailed responses sent on the meta queue",
			}),
			SendQueueDropped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_send_queue_dropped_total",
				Help: "Total messages dropped because a session's send queue could not absorb them",
			}),
		},
		Client: clientCounters{
			ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_client_reconnect_attempts_total",
				Help: "Total reconnect attempts made by the client connection state machine",
			}),
			ReconnectSuccess: promauto.NewCounter(prometheus.CounterOpts{
				Name: "odin_client_reconnect_success_total",
				Help: "Total reconnects that completed a successful handshake",
			}),
		},
	}
}

// Handler returns an HTTP handler exposing Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
