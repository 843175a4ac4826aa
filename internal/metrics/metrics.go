package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the agent's Prometheus collectors.
type Metrics struct {
	// SnapshotFetches counts queue snapshot fetches by result (ok, stale, superseded).
	SnapshotFetches *prometheus.CounterVec

	// FeedEvents counts change-feed prompts received for the watched barber.
	FeedEvents prometheus.Counter

	// FeedReconnects counts reconnect attempts after a feed loss.
	FeedReconnects prometheus.Counter

	// RecoveryProbes counts probe runs by outcome.
	RecoveryProbes *prometheus.CounterVec

	// EventsPublished counts engine events by type.
	EventsPublished *prometheus.CounterVec

	// LocationUploads counts distance uploads by result.
	LocationUploads *prometheus.CounterVec

	// StorageDegraded is set to 1 once the session store fell back to memory.
	StorageDegraded prometheus.Gauge

	// TicketsAhead is the number of tickets ranked ahead in the last snapshot.
	TicketsAhead prometheus.Gauge
}

// New registers the agent metrics on reg. Passing a fresh registry keeps
// tests independent of the global default.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		SnapshotFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_fetches_total",
				Help:      "Total number of queue snapshot fetches",
			},
			[]string{"result"},
		),

		FeedEvents: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_events_total",
				Help:      "Total number of change feed prompts for the watched barber",
			},
		),

		FeedReconnects: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_reconnects_total",
				Help:      "Total number of change feed reconnect attempts",
			},
		),

		RecoveryProbes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_probes_total",
				Help:      "Total number of recovery probe runs",
			},
			[]string{"outcome"},
		),

		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Total number of session events published",
			},
			[]string{"type"},
		),

		LocationUploads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "location_uploads_total",
				Help:      "Total number of distance uploads",
			},
			[]string{"result"},
		),

		StorageDegraded: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_storage_degraded",
				Help:      "1 when the session is held in memory only",
			},
		),

		TicketsAhead: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tickets_ahead",
				Help:      "Tickets ranked ahead of ours in the last snapshot",
			},
		),
	}
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry(), "nop")
}

func (m *Metrics) IncSnapshot(result string) {
	m.SnapshotFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) IncProbe(outcome string) {
	m.RecoveryProbes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncEvent(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncUpload(result string) {
	m.LocationUploads.WithLabelValues(result).Inc()
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
