package contracts

// Stage is a position in the proposal lifecycle.
type Stage string

// Lifecycle stages, in order.
const (
	StageCandidate   Stage = "CANDIDATE"
	StageProposed    Stage = "PROPOSED"
	StageVoting      Stage = "VOTING"
	StageApproved    Stage = "APPROVED"
	StageDocumented  Stage = "DOCUMENTED"
	StageImplemented Stage = "IMPLEMENTED"
	StageArchived    Stage = "ARCHIVED"
)

var transitions = map[Stage][]Stage{
	StageCandidate:   {StageProposed},
	StageProposed:    {StageVoting},
	StageVoting:      {StageApproved},
	StageApproved:    {StageDocumented},
	StageDocumented:  {StageImplemented},
	StageImplemented: {StageArchived},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Stage derives the lifecycle stage of a stored proposal.
// A stored proposal is never a Candidate; Proposed collapses into Voting
// because a proposal accepts votes as soon as it exists.
func (p Proposal) Stage(threshold int) Stage {
	switch {
	case p.Implemented && p.DesignPath == "":
		return StageArchived
	case p.Implemented:
		return StageImplemented
	case p.DesignPath != "":
		return StageDocumented
	case p.Votes >= threshold:
		return StageApproved
	default:
		return StageVoting
	}
}
