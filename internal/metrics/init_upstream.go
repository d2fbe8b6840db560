package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initUpstreamMetrics() {
	r.UpstreamWALFramesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "walbroadcaster_upstream_wal_frames_total",
			Help: "Total 'w'-tagged copy-data frames received from the primary",
		},
	)

	r.UpstreamBytesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "walbroadcaster_upstream_bytes_total",
			Help: "Total WAL payload bytes received from the primary",
		},
	)

	r.UpstreamStreamActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "walbroadcaster_upstream_stream_active",
			Help: "Whether the primary replication stream is currently active (1=yes, 0=no)",
		},
	)
}
