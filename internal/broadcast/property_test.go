package broadcast

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCommittedLSNQuorumCorrectness checks spec.md §8 property 2: the
// returned LSN is one that at least `quorum` peers have acknowledged at or
// above.
func TestCommittedLSNQuorumCorrectness(t *testing.T) {
	params := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(params)

	properties.Property("committed LSN is reached by at least quorum peers", prop.ForAll(
		func(acks []uint64, quorum int) bool {
			if quorum <= 0 || quorum > len(acks) {
				return true
			}
			committed := CommittedLSN(acks, quorum)
			atOrAbove := 0
			for _, a := range acks {
				if a >= committed {
					atOrAbove++
				}
			}
			return atOrAbove >= quorum
		},
		gen.SliceOfN(5, gen.UInt64Range(0, 1<<40)),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

// TestCommittedLSNMonotoneUnderPointwiseIncrease checks spec.md §8 property
// 1: committed LSN never decreases if every peer's ack only ever increases.
func TestCommittedLSNMonotoneUnderPointwiseIncrease(t *testing.T) {
	params := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(params)

	properties.Property("commit is monotone under pointwise-increasing acks", prop.ForAll(
		func(base []uint64, deltas []uint64, quorum int) bool {
			n := len(base)
			if quorum <= 0 || quorum > n || len(deltas) < n {
				return true
			}
			increased := make([]uint64, n)
			for i := range base {
				increased[i] = base[i] + deltas[i]
			}
			return CommittedLSN(increased, quorum) >= CommittedLSN(base, quorum)
		},
		gen.SliceOfN(5, gen.UInt64Range(0, 1<<40)),
		gen.SliceOfN(5, gen.UInt64Range(0, 1<<40)),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
