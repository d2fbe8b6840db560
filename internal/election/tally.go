// Package election implements the leader-election handshake: NodeID
// ordering, the running maximum over peers reaching the Vote state, and the
// term bump that fires once quorum peers have reported in.
package election

import "github.com/pgdisagg/walbroadcaster/internal/wire"

// Ballot tracks one voting round. It has no internal locking: like every
// other piece of broadcaster state, it is owned and mutated only by the
// single event-loop goroutine (internal/broadcast.Broadcaster.Run).
type Ballot struct {
	quorum   int
	seen     int
	best     wire.NodeID
	haveBest bool
	decided  bool
	proposal wire.NodeID
}

// NewBallot starts a fresh voting round requiring the given quorum size.
func NewBallot(quorum int) *Ballot {
	return &Ballot{quorum: quorum}
}

// Observe records that a peer has reached the Vote state and reported its
// own NodeID (from its ServerInfo). It updates the running maximum and, the
// moment the quorum-th peer arrives, bumps the term by one to mint a
// candidate strictly higher than anything observed this round.
//
// The returned bool is true exactly once per round, on the call that
// decides the proposal; Proposal is valid from that point on.
func (b *Ballot) Observe(id wire.NodeID) bool {
	if !b.haveBest || id.Compare(b.best) > 0 {
		b.best = id
		b.haveBest = true
	}
	b.seen++

	if b.decided || b.seen < b.quorum {
		return false
	}

	b.proposal = b.best
	b.proposal.Term++
	b.decided = true
	return true
}

// Decided reports whether quorum has been reached and a proposal minted.
func (b *Ballot) Decided() bool {
	return b.decided
}

// Proposal returns the term-bumped candidate NodeID this round decided on.
// Safekeepers that reach Vote after the round is decided (spec.md Open
// Question 1) are dispatched this same proposal immediately rather than
// left waiting for a round that will never come again.
func (b *Ballot) Proposal() (wire.NodeID, bool) {
	return b.proposal, b.decided
}

// CheckVerdict compares a peer's returned NodeID against the decided
// proposal. A verdict that differs means the peer has seen a higher term
// and rejects this broadcaster as a candidate; per spec.md §4.3 this is
// fatal for the whole broadcaster, not just that peer.
func (b *Ballot) CheckVerdict(verdict wire.NodeID) error {
	if verdict.Compare(b.proposal) != 0 {
		return ErrCandidateRejected
	}
	return nil
}
