package health

// UpstreamCheck reports whether the primary replication stream is active.
func UpstreamCheck(streaming func() bool) CheckFunc {
	return func() Check {
		check := Check{Name: "upstream", Details: map[string]any{}}
		up := streaming()
		check.Details["streaming"] = up
		if up {
			check.Status = StatusHealthy
			check.Message = "connected to primary"
		} else {
			check.Status = StatusDegraded
			check.Message = "primary stream not active"
		}
		return check
	}
}

// QuorumCheck reports whether enough safekeepers are Idle-or-later (past
// the vote round) to satisfy the configured quorum.
func QuorumCheck(quorumMet func() (met bool, ready, quorum int)) CheckFunc {
	return func() Check {
		check := Check{Name: "quorum", Details: map[string]any{}}
		met, ready, quorum := quorumMet()
		check.Details["ready_peers"] = ready
		check.Details["quorum"] = quorum
		if met {
			check.Status = StatusHealthy
			check.Message = "quorum reached"
		} else {
			check.Status = StatusUnhealthy
			check.Message = "quorum not reached"
		}
		return check
	}
}
