package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initQuorumMetrics() {
	r.CommittedLSN = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "walbroadcaster_committed_lsn",
			Help: "Highest WAL LSN acknowledged by a quorum of safekeepers",
		},
	)

	r.QuorumSize = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "walbroadcaster_quorum_size",
			Help: "Configured quorum size",
		},
	)

	r.QueueDepth = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "walbroadcaster_queue_depth",
			Help: "Number of WAL messages currently held in the broadcast queue",
		},
	)
}
