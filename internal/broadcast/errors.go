package broadcast

import "errors"

// Class 2 protocol-fatal errors, in the teacher's grouped-sentinel style.
var (
	// ErrVersionMismatch means a safekeeper reported a protocol version we
	// don't speak.
	ErrVersionMismatch = errors.New("broadcast: safekeeper protocol version mismatch")
	// ErrUnexpectedState means an event arrived for a peer that could not
	// have produced it in its current state (e.g. an ack while Offline).
	ErrUnexpectedState = errors.New("broadcast: event received in unexpected peer state")
	// ErrQuorumUnreachable means fewer safekeepers are configured than the
	// requested quorum, so no round can ever decide.
	ErrQuorumUnreachable = errors.New("broadcast: quorum size exceeds configured safekeeper count")
)

// BroadcastError wraps a Class 2 protocol-fatal condition with the peer
// index it happened on, for cmd/walbroadcaster to log and map to an exit
// code.
type BroadcastError struct {
	PeerIndex int
	Err       error
}

func (e *BroadcastError) Error() string {
	return e.Err.Error()
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}
