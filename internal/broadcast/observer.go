package broadcast

import (
	"time"
)

// Metrics is the minimal observability surface the owning loop drives.
// internal/metrics.Registry satisfies it.
type Metrics interface {
	SetCommittedLSN(lsn uint64)
	SetPeerState(peerIndex int, state string)
	IncAck(peerIndex int)
	IncReconnect(peerIndex int)
	ObserveQueueDepth(n int)
	RecordElection(result string, duration time.Duration, term uint64)
}

// StatusFeed is the minimal publish surface for observability consumers
// (the operator TUI). It never influences broadcaster decisions.
type StatusFeed interface {
	Publish(topic string, payload any)
}

type nopMetrics struct{}

func (nopMetrics) SetCommittedLSN(uint64)                       {}
func (nopMetrics) SetPeerState(int, string)                     {}
func (nopMetrics) IncAck(int)                                   {}
func (nopMetrics) IncReconnect(int)                             {}
func (nopMetrics) ObserveQueueDepth(int)                        {}
func (nopMetrics) RecordElection(string, time.Duration, uint64) {}

type nopStatusFeed struct{}

func (nopStatusFeed) Publish(string, any) {}
