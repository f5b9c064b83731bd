// Package metrics exposes Prometheus instrumentation for the speech pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cortexface"

// Speech holds the speech lifecycle metrics. A nil *Speech is valid and
// records nothing.
type Speech struct {
	registry *prometheus.Registry

	UtterancesTotal   *prometheus.CounterVec
	UtteranceDuration prometheus.Histogram
	ErrorsTotal       *prometheus.CounterVec
	StallsTotal       *prometheus.CounterVec
	RejectedTotal     *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	Speaking          prometheus.Gauge
	EmotionsTotal     *prometheus.CounterVec
	ClientsConnected  prometheus.Gauge
}

// New creates the metrics on a private registry
func New() *Speech {
	registry := prometheus.NewRegistry()

	s := &Speech{
		registry: registry,
		UtterancesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "utterances_total",
				Help:      "Utterances by lifecycle stage",
			},
			[]string{"stage"},
		),
		UtteranceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "utterance_duration_seconds",
				Help:      "Time from engine start to end for completed utterances",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "speech_errors_total",
				Help:      "Speech errors by source",
			},
			[]string{"source"},
		),
		StallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "speech_stalls_total",
				Help:      "Watchdog stall detections by recovery action",
			},
			[]string{"action"},
		),
		RejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "speech_rejected_total",
				Help:      "Speak calls rejected before queueing",
			},
			[]string{"reason"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "speech_queue_depth",
				Help:      "Requests waiting behind the current utterance",
			},
		),
		Speaking: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "speech_speaking",
				Help:      "1 while an utterance is in flight",
			},
		),
		EmotionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sentiment_emotions_total",
				Help:      "Analyzer results by emotion",
			},
			[]string{"emotion"},
		),
		ClientsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bridge_clients",
				Help:      "Connected UI bridge clients",
			},
		),
	}

	registry.MustRegister(
		s.UtterancesTotal,
		s.UtteranceDuration,
		s.ErrorsTotal,
		s.StallsTotal,
		s.RejectedTotal,
		s.QueueDepth,
		s.Speaking,
		s.EmotionsTotal,
		s.ClientsConnected,
	)
	return s
}

// Registry returns the underlying registry
func (s *Speech) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

// Handler serves the registry in the Prometheus exposition format
func (s *Speech) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          s.registry,
	})
}

// RecordQueued records a request accepted into the pipeline
func (s *Speech) RecordQueued(depth int) {
	if s == nil {
		return
	}
	s.UtterancesTotal.WithLabelValues("queued").Inc()
	s.QueueDepth.Set(float64(depth))
}

// RecordStarted records an engine start event
func (s *Speech) RecordStarted() {
	if s == nil {
		return
	}
	s.UtterancesTotal.WithLabelValues("started").Inc()
	s.Speaking.Set(1)
}

// RecordEnded records a completed utterance
func (s *Speech) RecordEnded(elapsed time.Duration) {
	if s == nil {
		return
	}
	s.UtterancesTotal.WithLabelValues("ended").Inc()
	s.Speaking.Set(0)
	if elapsed > 0 {
		s.UtteranceDuration.Observe(elapsed.Seconds())
	}
}

// RecordError records an utterance failure
func (s *Speech) RecordError(source string) {
	if s == nil {
		return
	}
	s.ErrorsTotal.WithLabelValues(source).Inc()
	s.Speaking.Set(0)
}

// RecordCanceled records a hard reset
func (s *Speech) RecordCanceled() {
	if s == nil {
		return
	}
	s.UtterancesTotal.WithLabelValues("canceled").Inc()
	s.Speaking.Set(0)
	s.QueueDepth.Set(0)
}

// RecordRejected records a speak call that never reached the queue
func (s *Speech) RecordRejected(reason string) {
	if s == nil {
		return
	}
	s.RejectedTotal.WithLabelValues(reason).Inc()
}

// RecordStall records a watchdog detection and the recovery taken
func (s *Speech) RecordStall(action string) {
	if s == nil {
		return
	}
	s.StallsTotal.WithLabelValues(action).Inc()
}

// SetQueueDepth updates the pending request gauge
func (s *Speech) SetQueueDepth(depth int) {
	if s == nil {
		return
	}
	s.QueueDepth.Set(float64(depth))
}

// RecordEmotion counts one analyzer result
func (s *Speech) RecordEmotion(emotion string) {
	if s == nil {
		return
	}
	s.EmotionsTotal.WithLabelValues(emotion).Inc()
}

// SetClients updates the connected bridge client gauge
func (s *Speech) SetClients(n int) {
	if s == nil {
		return
	}
	s.ClientsConnected.Set(float64(n))
}
