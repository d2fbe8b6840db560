package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initElectionMetrics() {
	r.ElectionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "walbroadcaster_elections_total",
			Help: "Total number of leader-election rounds, by outcome",
		},
		[]string{"result"}, // decided, rejected
	)

	r.ElectionDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "walbroadcaster_election_duration_seconds",
			Help:    "Time from broadcaster start to a decided or rejected vote round",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.ElectionTerm = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "walbroadcaster_election_term",
			Help: "Current election term this broadcaster is operating under",
		},
	)
}
