package contracts

import "time"

// Vote records one successful cast. Votes are never mutated.
type Vote struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	ProposalID string    `json:"proposalId"`
	Timestamp  time.Time `json:"timestamp"`
	Rationale  string    `json:"rationale,omitempty"`
}
