// Package metrics exposes SpeakGenie session counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "speakgenie"

// Transcript outcomes.
const (
	OutcomeMatched  = "matched"
	OutcomeRetry    = "retry"
	OutcomeRejected = "rejected"
)

// Tutor outcomes.
const (
	TutorOK       = "ok"
	TutorError    = "error"
	TutorNoAPIKey = "no_api_key"
)

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	transcripts   *prometheus.CounterVec
	completions   *prometheus.CounterVec
	tutorRequests *prometheus.CounterVec
	tutorDuration prometheus.Histogram
	sessions      prometheus.Gauge
	advisories    prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transcripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Roleplay transcripts submitted, by outcome.",
		}, []string{"outcome"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_completions_total",
			Help:      "Roleplay scenarios played to the end.",
		}, []string{"scenario"}),
		tutorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tutor_requests_total",
			Help:      "Chat requests sent to the tutor, by outcome.",
		}, []string{"outcome"}),
		tutorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tutor_request_duration_seconds",
			Help:      "Tutor reply latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open websocket sessions.",
		}),
		advisories: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "text_only_advisories_total",
			Help:      "Times the text-only language notice was shown.",
		}),
	}

	m.registry.MustRegister(
		m.transcripts,
		m.completions,
		m.tutorRequests,
		m.tutorDuration,
		m.sessions,
		m.advisories,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text or OpenMetrics format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) Transcript(outcome string) {
	m.transcripts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ScenarioCompleted(scenarioID string) {
	m.completions.WithLabelValues(scenarioID).Inc()
}

func (m *Metrics) TutorRequest(outcome string, took time.Duration) {
	m.tutorRequests.WithLabelValues(outcome).Inc()
	m.tutorDuration.Observe(took.Seconds())
}

func (m *Metrics) SessionOpened() { m.sessions.Inc() }

func (m *Metrics) SessionClosed() { m.sessions.Dec() }

func (m *Metrics) AdvisoryShown() { m.advisories.Inc() }
