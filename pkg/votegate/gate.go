// Package votegate decides whether a single vote attempt is admissible.
//
// Validate is a pure function over the candidate vote and the caller-supplied
// history; it never reads storage, which keeps every rule unit-testable.
package votegate

import (
	"time"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
)

// Reason explains a rejection. The empty reason means the vote was admitted.
type Reason string

// Rejection reasons, in evaluation order.
const (
	ReasonNone              Reason = ""
	ReasonMissingUserID     Reason = "Missing user ID"
	ReasonMissingProposalID Reason = "Missing proposal ID"
	ReasonInvalidTimestamp  Reason = "Invalid timestamp"
	ReasonSuspiciousPattern Reason = "Suspicious voting pattern detected"
)

// MaxPriorVotes is the number of prior votes by one user in the supplied
// history at which further votes are treated as abuse.
const MaxPriorVotes = 2

// Verdict is the gate outcome.
type Verdict struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}

func reject(r Reason) Verdict {
	return Verdict{Valid: false, Reason: r}
}

// Validate runs the built-in rules in order and stops at the first failure.
// The prior-vote count spans all proposals in recentVotes.
func Validate(vote contracts.Vote, recentVotes []contracts.Vote, now time.Time) Verdict {
	if vote.UserID == "" {
		return reject(ReasonMissingUserID)
	}
	if vote.ProposalID == "" {
		return reject(ReasonMissingProposalID)
	}
	if vote.Timestamp.IsZero() || vote.Timestamp.After(now) {
		return reject(ReasonInvalidTimestamp)
	}
	if PriorVotes(vote.UserID, recentVotes) >= MaxPriorVotes {
		return reject(ReasonSuspiciousPattern)
	}
	return Verdict{Valid: true}
}

// PriorVotes counts votes cast by userID in history.
func PriorVotes(userID string, history []contracts.Vote) int {
	n := 0
	for _, v := range history {
		if v.UserID == userID {
			n++
		}
	}
	return n
}
