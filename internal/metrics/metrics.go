package metrics

import (
	"fmt"
	"time"
)

// SetCommittedLSN records the current quorum-committed LSN.
func (r *Registry) SetCommittedLSN(lsn uint64) {
	r.CommittedLSN.Set(float64(lsn))
}

// SetQuorumSize records the configured quorum size, called once at startup.
func (r *Registry) SetQuorumSize(n int) {
	r.QuorumSize.Set(float64(n))
}

// SetPeerState resets every state gauge for peerIndex to 0 and sets the
// current one to 1, the same "reset all, set current" idiom the teacher
// uses for SetClusterRole.
func (r *Registry) SetPeerState(peerIndex int, state string) {
	peer := peerLabel(peerIndex)
	for _, s := range []string{"Offline", "Connecting", "Handshake", "Vote", "WaitVerdict", "Idle", "SendWal"} {
		val := 0.0
		if s == state {
			val = 1.0
		}
		r.PeerState.WithLabelValues(peer, s).Set(val)
	}
}

// IncAck records one WAL frame acknowledgment from peerIndex.
func (r *Registry) IncAck(peerIndex int) {
	r.PeerAcksTotal.WithLabelValues(peerLabel(peerIndex)).Inc()
}

// IncReconnect records one connection reset/redial for peerIndex.
func (r *Registry) IncReconnect(peerIndex int) {
	r.PeerReconnects.WithLabelValues(peerLabel(peerIndex)).Inc()
}

// ObserveQueueDepth records the current broadcast queue length.
func (r *Registry) ObserveQueueDepth(n int) {
	r.QueueDepth.Set(float64(n))
}

// RecordElection records the outcome of a decided or rejected vote round.
func (r *Registry) RecordElection(result string, duration time.Duration, term uint64) {
	r.ElectionsTotal.WithLabelValues(result).Inc()
	r.ElectionDuration.Observe(duration.Seconds())
	r.ElectionTerm.Set(float64(term))
}

// RecordHTTPRequest records one served HTTP request on the metrics/health
// server.
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func peerLabel(peerIndex int) string {
	return fmt.Sprintf("peer-%d", peerIndex)
}
