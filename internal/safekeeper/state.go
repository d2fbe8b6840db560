// Package safekeeper holds the per-peer state machine driven by the owning
// event loop in internal/broadcast. Every exported method here is meant to
// be called only from that single goroutine; the package does no locking of
// its own.
package safekeeper

import (
	"github.com/pgdisagg/walbroadcaster/internal/wire"
)

// State is one node in the per-peer lifecycle:
//
//	Offline -> Connecting -> Handshake -> Vote -> WaitVerdict -> Idle <-> SendWal
//
// A peer can fall back to Offline from any state on I/O error and re-enter
// at Connecting once redialed.
type State int

const (
	Offline State = iota
	Connecting
	Handshake
	Vote
	WaitVerdict
	Idle
	SendWal
)

func (s State) String() string {
	switch s {
	case Offline:
		return "Offline"
	case Connecting:
		return "Connecting"
	case Handshake:
		return "Handshake"
	case Vote:
		return "Vote"
	case WaitVerdict:
		return "WaitVerdict"
	case Idle:
		return "Idle"
	case SendWal:
		return "SendWal"
	default:
		return "Unknown"
	}
}

// Peer is the owning loop's bookkeeping for one configured safekeeper. It
// pairs the FSM state with the sequence number of the WAL message currently
// in flight to this peer (referenced by its queue sequence number, never by
// pointer — spec.md Design Notes on avoiding raw-pointer message
// references) and the highest LSN this peer has acknowledged.
type Peer struct {
	Index   int
	Addr    string
	State   State
	Info    wire.ServerInfo
	AckLSN  uint64
	InFlightSeq uint64
	HasInFlight bool
}

// NewPeer creates a peer bookkeeping record in the Offline state, ready for
// the owning loop to start its I/O pump.
func NewPeer(index int, addr string) *Peer {
	return &Peer{Index: index, Addr: addr, State: Offline}
}

// Reset returns the peer to Offline and clears everything tied to the
// now-dead connection: handshake info, in-flight bookkeeping. AckLSN is
// deliberately kept — it is the peer's last known durable position and
// remains valid across a reconnect (spec.md §4.4 property 6: reset must be
// idempotent and must not regress an already-known ack).
func (p *Peer) Reset() {
	p.State = Offline
	p.Info = wire.ServerInfo{}
	p.HasInFlight = false
	p.InFlightSeq = 0
}

// BeginSend records that seq has been dispatched to this peer and moves it
// into SendWal.
func (p *Peer) BeginSend(seq uint64) {
	p.State = SendWal
	p.InFlightSeq = seq
	p.HasInFlight = true
}

// CompleteSend records an ack for the in-flight message and returns the
// peer to Idle.
func (p *Peer) CompleteSend(ackLSN uint64) {
	if ackLSN > p.AckLSN {
		p.AckLSN = ackLSN
	}
	p.HasInFlight = false
	p.InFlightSeq = 0
	p.State = Idle
}
