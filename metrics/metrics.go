// Package metrics exposes Prometheus counters for turns and stages.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voiceagent/core"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	TurnsTotal   *prometheus.CounterVec
	TurnDuration *prometheus.HistogramVec
	TurnsActive  prometheus.Gauge

	// Stage metrics
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec

	// Synthesis
	TruncationsTotal *prometheus.CounterVec

	// Audio
	UploadBytesTotal prometheus.Counter

	// Event stream subscribers
	StreamSubscribers prometheus.Gauge
}

// NewMetrics creates a Metrics instance on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "voiceagent"
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of turns by outcome",
		}, []string{"status", "error_kind"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),
		TurnsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_active",
			Help:      "Number of turns currently in the pipeline",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage", "provider"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Total number of stage failures",
		}, []string{"stage", "error_kind"}),
		TruncationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_truncations_total",
			Help:      "Replies truncated to fit the speech provider limit",
		}, []string{"provider"}),
		UploadBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_audio_bytes_total",
			Help:      "Total bytes of uploaded user audio",
		}),
		StreamSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_stream_subscribers",
			Help:      "Open stage event WebSocket connections",
		}),
	}

	registry.MustRegister(
		m.TurnsTotal,
		m.TurnDuration,
		m.TurnsActive,
		m.StageDuration,
		m.StageErrors,
		m.TruncationsTotal,
		m.UploadBytesTotal,
		m.StreamSubscribers,
	)
	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTurnStart marks a turn entering the pipeline.
func (m *Metrics) RecordTurnStart(uploadBytes int) {
	m.TurnsActive.Inc()
	m.UploadBytesTotal.Add(float64(uploadBytes))
}

// RecordTurnEnd records a finished turn.
func (m *Metrics) RecordTurnEnd(status string, kind core.ErrorKind, duration time.Duration) {
	m.TurnsActive.Dec()
	m.TurnsTotal.WithLabelValues(status, string(kind)).Inc()
	m.TurnDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStage records a finished stage. err may be nil.
func (m *Metrics) RecordStage(stage core.Stage, provider string, duration time.Duration, err error) {
	m.StageDuration.WithLabelValues(string(stage), provider).Observe(duration.Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(string(stage), string(core.KindOf(err))).Inc()
	}
}

// RecordTruncation counts a reply shortened for synthesis.
func (m *Metrics) RecordTruncation(provider string) {
	m.TruncationsTotal.WithLabelValues(provider).Inc()
}
