package broadcast

import "sort"

// CommittedLSN computes the quorum-acknowledged WAL position from each
// peer's highest contiguous ack LSN: sort ascending and take the element at
// index N-quorum, the classic majority-commit calculation (spec.md §4.5's
// GetAcknowledgedWALPosition). Peers that have never acked contribute 0.
//
// Returns 0 if quorum exceeds the number of ack LSNs given.
func CommittedLSN(ackLSNs []uint64, quorum int) uint64 {
	n := len(ackLSNs)
	if quorum <= 0 || quorum > n {
		return 0
	}
	scratch := make([]uint64, n)
	copy(scratch, ackLSNs)
	sort.Slice(scratch, func(i, j int) bool { return scratch[i] < scratch[j] })
	return scratch[n-quorum]
}
