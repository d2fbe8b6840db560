package election

import "errors"

// Vote and term errors, in the same grouped-sentinel style the teacher uses
// for its cluster package.
var (
	// ErrCandidateRejected means a peer returned a NodeID different from
	// the one it was offered: it has seen a higher term and this
	// broadcaster is no longer eligible to lead. This is fatal.
	ErrCandidateRejected = errors.New("election: safekeeper rejected our candidate term")
	// ErrAlreadyDecided means a caller tried to seed or bump the ballot
	// after quorum already fixed max_node_id for this round.
	ErrAlreadyDecided = errors.New("election: ballot already decided for this round")
)
