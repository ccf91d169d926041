// Package metrics exposes ring and playback activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/phonehack/internal/ring"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	onHook        prometheus.Counter
	rings         prometheus.Counter
	answered      prometheus.Counter
	cancelled     prometheus.Counter
	failures      prometheus.Counter
	ringing       prometheus.Gauge
	answerSeconds prometheus.Histogram
	bursts        prometheus.Histogram
	plays         prometheus.Counter
	playErrors    prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		onHook: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phonehack_on_hook_total",
			Help: "Times the handset was placed in the cradle.",
		}),
		rings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phonehack_rings_total",
			Help: "Ring sessions started.",
		}),
		answered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phonehack_answered_total",
			Help: "Ring sessions ended by the handset being lifted.",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phonehack_ring_cancellations_total",
			Help: "Ring sessions cancelled before being answered.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phonehack_ring_failures_total",
			Help: "Ring sessions ended by a hardware error.",
		}),
		ringing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "phonehack_ringing",
			Help: "1 while a ring session is in progress.",
		}),
		answerSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phonehack_answer_seconds",
			Help:    "Time from the first ring to the handset being lifted.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		bursts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phonehack_ring_bursts",
			Help:    "Bursts rung per session.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		plays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phonehack_playbacks_total",
			Help: "Sounds played to completion.",
		}),
		playErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phonehack_playback_errors_total",
			Help: "Playback attempts that failed.",
		}),
	}
	m.registry.MustRegister(
		m.onHook, m.rings, m.answered, m.cancelled, m.failures,
		m.ringing, m.answerSeconds, m.bursts, m.plays, m.playErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Ringing(ring.Session) {
	m.rings.Inc()
	m.ringing.Set(1)
}

func (m *Metrics) Ended(s ring.Session, _ error) {
	m.ringing.Set(0)
	m.bursts.Observe(float64(s.Bursts))
	switch s.State {
	case ring.StateAnswered:
		m.answered.Inc()
		m.answerSeconds.Observe(s.Duration().Seconds())
	case ring.StateCancelled:
		m.cancelled.Inc()
	default:
		m.failures.Inc()
	}
}

func (m *Metrics) OnHook(time.Time) {
	m.onHook.Inc()
}

func (m *Metrics) Played(_ string, _ time.Time, err error) {
	if err != nil {
		m.playErrors.Inc()
		return
	}
	m.plays.Inc()
}
