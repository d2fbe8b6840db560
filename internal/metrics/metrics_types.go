// Package metrics is the Prometheus registry for the broadcaster: election,
// quorum, per-peer, and queue-depth instrumentation, in the same
// promauto.With(registry)-per-concern layout the teacher uses.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the broadcaster exposes on /metrics.
type Registry struct {
	// Election metrics
	ElectionsTotal    *prometheus.CounterVec
	ElectionDuration  prometheus.Histogram
	ElectionTerm      prometheus.Gauge

	// Quorum / commit metrics
	CommittedLSN prometheus.Gauge
	QuorumSize   prometheus.Gauge
	QueueDepth   prometheus.Gauge

	// Per-peer metrics
	PeerState      *prometheus.GaugeVec
	PeerAcksTotal  *prometheus.CounterVec
	PeerReconnects *prometheus.CounterVec
	PeerAckLSN     *prometheus.GaugeVec

	// Upstream metrics
	UpstreamWALFramesTotal prometheus.Counter
	UpstreamBytesTotal     prometheus.Counter
	UpstreamStreamActive   prometheus.Gauge

	// HTTP metrics (metrics/health servers)
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
	mu       sync.RWMutex
}

// NewRegistry builds a Registry with every metric initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.initElectionMetrics()
	r.initQuorumMetrics()
	r.initPeerMetrics()
	r.initUpstreamMetrics()
	r.initHTTPMetrics()

	return r
}

// PrometheusRegistry returns the underlying registry for wiring into an
// http.Handler via promhttp.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}
