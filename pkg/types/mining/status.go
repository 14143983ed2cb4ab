package mining

// Status represents a candidate's position in the review lifecycle.
type Status string

const (
	// StatusCandidate is the initial status assigned by the aggregator.
	StatusCandidate Status = "candidate"
	// StatusApproved means a reviewer accepted the candidate for merging.
	StatusApproved Status = "approved"
	// StatusRejected means a reviewer declined the candidate. Terminal.
	StatusRejected Status = "rejected"
	// StatusMerged means the application gateway confirmed the merge. Terminal.
	StatusMerged Status = "merged"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusCandidate, StatusApproved, StatusRejected, StatusMerged:
		return true
	}
	return false
}

// Terminal reports whether a candidate in status s can never change again.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusMerged
}

// transitions holds the allowed lifecycle edges. Merged is reachable
// only from approved, after the gateway confirms the merge.
var transitions = map[Status][]Status{
	StatusCandidate: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusMerged},
}

// CanTransition reports whether moving a candidate from one status to
// another is allowed by the lifecycle.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
