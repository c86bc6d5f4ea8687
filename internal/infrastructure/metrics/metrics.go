package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openchat",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "openchat",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Stream event counter by event type
	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openchat",
			Subsystem: "server",
			Name:      "stream_events_total",
			Help:      "Total stream events written to clients",
		},
		[]string{"event_type"},
	)

	// Turn duration histogram by outcome
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "openchat",
			Subsystem: "server",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end chat turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	// Tool call counters
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openchat",
			Subsystem: "server",
			Name:      "tool_calls_total",
			Help:      "Total tool invocations",
		},
		[]string{"tool_name", "status"},
	)

	// Title generation counter
	TitleGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openchat",
			Subsystem: "server",
			Name:      "title_generations_total",
			Help:      "Total title generation attempts",
		},
		[]string{"source", "status"},
	)

	// Title backfill queue depth
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "openchat",
			Subsystem: "server",
			Name:      "title_queue_depth",
			Help:      "Title backfill queue depth",
		},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordStreamEvent records one event written to a client stream.
func RecordStreamEvent(eventType string) {
	StreamEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordTurn records a completed chat turn.
func RecordTurn(status string, durationSec float64) {
	TurnDuration.WithLabelValues(status).Observe(durationSec)
}

// RecordToolCall records a tool invocation.
func RecordToolCall(toolName, status string) {
	ToolCallsTotal.WithLabelValues(toolName, status).Inc()
}

// RecordTitleGeneration records a title generation attempt.
func RecordTitleGeneration(source, status string) {
	TitleGenerationsTotal.WithLabelValues(source, status).Inc()
}
