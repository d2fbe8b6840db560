package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPeerMetrics() {
	r.PeerState = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "walbroadcaster_peer_state",
			Help: "Current FSM state for a safekeeper peer (1 for its current state, 0 otherwise)",
		},
		[]string{"peer", "state"},
	)

	r.PeerAcksTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "walbroadcaster_peer_acks_total",
			Help: "Total WAL frame acknowledgments received from a peer",
		},
		[]string{"peer"},
	)

	r.PeerReconnects = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "walbroadcaster_peer_reconnects_total",
			Help: "Total times a peer connection was reset and redialed",
		},
		[]string{"peer"},
	)

	r.PeerAckLSN = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "walbroadcaster_peer_ack_lsn",
			Help: "Highest LSN a peer has acknowledged",
		},
		[]string{"peer"},
	)
}
