// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interview_transcript"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Room metrics
	RoomsTotal   prometheus.Counter
	RoomsActive  prometheus.Gauge
	RoomDuration prometheus.Histogram

	// Session event metrics
	EventsReceived    prometheus.Counter
	EventsGated       prometheus.Counter
	ConnectionChanges *prometheus.CounterVec
	SegmentsIngested  *prometheus.CounterVec
	SegmentsDropped   *prometheus.CounterVec

	// Reconciler metrics
	EntriesAppended    *prometheus.CounterVec
	DuplicatesRejected prometheus.Counter
	PendingActive      prometheus.Gauge
	PendingEvicted     prometheus.Counter
	PendingAge         prometheus.Histogram

	// Viewer metrics
	ViewersActive prometheus.Gauge
	ViewPushes    prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC metrics
	RPCTotal    *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Room metrics
		RoomsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_total",
			Help:      "Total number of interview rooms opened",
		}),
		RoomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of currently open interview rooms",
		}),
		RoomDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "room_duration_seconds",
			Help:      "Lifetime of interview rooms in seconds",
			Buckets:   []float64{10, 30, 60, 300, 600, 1200, 1800, 3600, 7200},
		}),

		// Session event metrics
		EventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of transcription events received from media sessions",
		}),
		EventsGated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_gated_total",
			Help:      "Total number of transcription events ignored because the session was not live",
		}),
		ConnectionChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_changes_total",
			Help:      "Total number of media session connection state changes",
		}, []string{"state"}),
		SegmentsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_ingested_total",
			Help:      "Total number of segments accepted by the reconciler",
		}, []string{"kind"}),
		SegmentsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_dropped_total",
			Help:      "Total number of segments dropped before reconciliation",
		}, []string{"reason"}),

		// Reconciler metrics
		EntriesAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_appended_total",
			Help:      "Total number of entries appended to final transcript logs",
		}, []string{"cause"}),
		DuplicatesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_rejected_total",
			Help:      "Total number of final candidates rejected as duplicates",
		}),
		PendingActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_utterances",
			Help:      "Number of pending utterances across all rooms",
		}),
		PendingEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_evicted_total",
			Help:      "Total number of pending utterances evicted by the staleness sweep",
		}),
		PendingAge: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pending_age_seconds",
			Help:      "Time from first partial to promotion or eviction",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 10, 30},
		}),

		// Viewer metrics
		ViewersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers_active",
			Help:      "Number of connected transcript viewers",
		}),
		ViewPushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_pushes_total",
			Help:      "Total number of transcript views pushed to viewers",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// gRPC metrics
		RPCTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls handled",
		}, []string{"method", "code"}),
		RPCDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_call_duration_seconds",
			Help:      "Duration of gRPC calls in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method"}),
	}
}

// RecordRoomOpened records a new room.
func (m *Metrics) RecordRoomOpened() {
	m.RoomsTotal.Inc()
	m.RoomsActive.Inc()
}

// RecordRoomClosed records a room being torn down.
func (m *Metrics) RecordRoomClosed(durationSeconds float64) {
	m.RoomsActive.Dec()
	m.RoomDuration.Observe(durationSeconds)
}

// RecordEvent records a transcription event and whether it was ingested.
func (m *Metrics) RecordEvent(live bool) {
	m.EventsReceived.Inc()
	if !live {
		m.EventsGated.Inc()
	}
}

// RecordConnectionChange records a media session connection state change.
func (m *Metrics) RecordConnectionChange(state string) {
	m.ConnectionChanges.WithLabelValues(state).Inc()
}

// RecordSegment records a segment accepted by the reconciler.
func (m *Metrics) RecordSegment(final bool) {
	if final {
		m.SegmentsIngested.WithLabelValues("final").Inc()
		return
	}
	m.SegmentsIngested.WithLabelValues("partial").Inc()
}

// RecordSegmentDropped records a segment dropped before reconciliation.
func (m *Metrics) RecordSegmentDropped(reason string) {
	m.SegmentsDropped.WithLabelValues(reason).Inc()
}

// RecordEntryAppended records an entry appended to a final log.
func (m *Metrics) RecordEntryAppended(cause string) {
	m.EntriesAppended.WithLabelValues(cause).Inc()
}

// RecordDuplicate records a rejected duplicate final.
func (m *Metrics) RecordDuplicate() {
	m.DuplicatesRejected.Inc()
}

// RecordPendingStarted records a new pending utterance.
func (m *Metrics) RecordPendingStarted() {
	m.PendingActive.Inc()
}

// RecordPendingEnded records a pending utterance leaving pending state.
func (m *Metrics) RecordPendingEnded(evicted bool, ageSeconds float64) {
	m.PendingActive.Dec()
	m.PendingAge.Observe(ageSeconds)
	if evicted {
		m.PendingEvicted.Inc()
	}
}

// RecordViewerConnected records a viewer joining.
func (m *Metrics) RecordViewerConnected() {
	m.ViewersActive.Inc()
}

// RecordViewerDisconnected records a viewer leaving.
func (m *Metrics) RecordViewerDisconnected() {
	m.ViewersActive.Dec()
}

// RecordViewPush records a view pushed to a viewer.
func (m *Metrics) RecordViewPush() {
	m.ViewPushes.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRPC records a handled gRPC call.
func (m *Metrics) RecordRPC(method, code string, durationSeconds float64) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(durationSeconds)
}
