package broadcast

import "testing"

func TestCommittedLSNBasic(t *testing.T) {
	// spec.md §8: 3 peers, quorum 2, acks {100, 200, 50} -> committed 100.
	got := CommittedLSN([]uint64{100, 200, 50}, 2)
	if got != 100 {
		t.Errorf("got %d, want 100", got)
	}
}

func TestCommittedLSNLaggingPeer(t *testing.T) {
	// One peer stuck at 0 must not block quorum-2-of-3.
	got := CommittedLSN([]uint64{500, 500, 0}, 2)
	if got != 500 {
		t.Errorf("got %d, want 500", got)
	}
}

func TestCommittedLSNQuorumExceedsPeers(t *testing.T) {
	got := CommittedLSN([]uint64{10, 20}, 3)
	if got != 0 {
		t.Errorf("got %d, want 0 when quorum > len(acks)", got)
	}
}

func TestCommittedLSNMonotonicUnderMoreAcks(t *testing.T) {
	// Property 1: committed LSN never regresses as acks accumulate.
	before := CommittedLSN([]uint64{10, 20, 0}, 2)
	after := CommittedLSN([]uint64{10, 20, 15}, 2)
	if after < before {
		t.Errorf("committed LSN regressed: %d -> %d", before, after)
	}
}
