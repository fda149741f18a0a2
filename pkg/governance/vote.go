package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
	"github.com/Mindburn-Labs/agora/pkg/observability"
	"github.com/Mindburn-Labs/agora/pkg/store"
)

// Reason explains why a vote was not accepted. Gate reasons are passed
// through unchanged.
type Reason string

const (
	ReasonProposalNotFound Reason = "Proposal not found"
	ReasonAlreadyVoted     Reason = "User has already voted"
	ReasonRateLimited      Reason = "Rate limit exceeded"
)

// VoteResult is the outcome of CastVote. Rejections are not errors.
type VoteResult struct {
	Success  bool                `json:"success"`
	Reason   Reason              `json:"reason,omitempty"`
	Vote     *contracts.Vote     `json:"vote,omitempty"`
	Proposal *contracts.Proposal `json:"proposal,omitempty"`
	Entry    *contracts.LogEntry `json:"entry,omitempty"`
}

func rejected(r Reason) VoteResult {
	return VoteResult{Success: false, Reason: r}
}

// VoteOption customizes a single vote.
type VoteOption func(*contracts.Vote)

// WithRationale attaches a rationale to the vote.
func WithRationale(text string) VoteOption {
	return func(v *contracts.Vote) { v.Rationale = text }
}

// CastVote records a vote by userID for proposalID.
//
// An error is returned only when storage or the ledger fails; in that case
// any writes already made are reverted so the proposal counter keeps matching
// the vote collection.
func (e *Engine) CastVote(ctx context.Context, proposalID, userID string, opts ...VoteOption) (res VoteResult, err error) {
	ctx, done := e.track(ctx, "governance.cast_vote", proposalID)
	defer func() {
		done(err)
		switch {
		case err != nil:
			e.telemetry.RecordVote(ctx, observability.OutcomeFailed, "")
		case res.Success:
			e.telemetry.RecordVote(ctx, observability.OutcomeAccepted, "")
		default:
			e.telemetry.RecordVote(ctx, observability.OutcomeRejected, string(res.Reason))
			e.logger.InfoContext(ctx, "vote rejected",
				"proposal_id", proposalID, "user_id", userID, "reason", res.Reason)
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.limiter != nil {
		allowed, err := e.limiter.Allow(ctx, userID)
		if err != nil {
			return VoteResult{}, fmt.Errorf("rate limiter: %w", err)
		}
		if !allowed {
			return rejected(ReasonRateLimited), nil
		}
	}

	votes, err := e.repo.Votes(ctx)
	if err != nil {
		return VoteResult{}, fmt.Errorf("load votes: %w", err)
	}
	proposal, err := e.repo.Proposal(ctx, proposalID)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(ReasonProposalNotFound), nil
	}
	if err != nil {
		return VoteResult{}, fmt.Errorf("load proposal: %w", err)
	}

	now := e.clock().UTC()
	vote := contracts.Vote{
		ID:         e.repo.NewID(),
		UserID:     userID,
		ProposalID: proposalID,
		Timestamp:  now,
	}
	for _, opt := range opts {
		opt(&vote)
	}

	if verdict := e.gate.Validate(vote, e.recent(votes, now), now); !verdict.Valid {
		return rejected(Reason(verdict.Reason)), nil
	}
	if e.duplicate(votes, userID, proposalID) {
		return rejected(ReasonAlreadyVoted), nil
	}

	if err := e.repo.PutVote(ctx, vote); err != nil {
		return VoteResult{}, fmt.Errorf("persist vote: %w", err)
	}

	before := *proposal
	proposal.Votes = countFor(votes, proposalID) + 1
	if err := e.repo.PutProposal(ctx, *proposal); err != nil {
		e.revertVote(ctx, vote.ID)
		return VoteResult{}, fmt.Errorf("update vote count: %w", err)
	}

	details := map[string]any{"proposalId": proposalID, "votes": proposal.Votes}
	if vote.Rationale != "" {
		details["rationale"] = vote.Rationale
	}
	entry, err := e.ledger.Append(ctx, contracts.Action{
		Type:    contracts.ActionVote,
		Actor:   userID,
		Subject: proposalID,
		Details: details,
	})
	if err != nil {
		e.revertVote(ctx, vote.ID)
		if rerr := e.repo.PutProposal(ctx, before); rerr != nil {
			e.logger.ErrorContext(ctx, "rollback of vote count failed", "proposal_id", proposalID, "error", rerr)
		}
		return VoteResult{}, fmt.Errorf("record vote: %w", err)
	}

	e.logger.InfoContext(ctx, "vote cast",
		"proposal_id", proposalID, "user_id", userID, "votes", proposal.Votes)
	return VoteResult{Success: true, Vote: &vote, Proposal: proposal, Entry: entry}, nil
}

func (e *Engine) revertVote(ctx context.Context, id string) {
	if err := e.repo.DeleteVote(ctx, id); err != nil {
		e.logger.ErrorContext(ctx, "rollback of vote failed", "vote_id", id, "error", err)
	}
}

// recent returns the history the gate sees: every vote, or only those inside
// the optional look-back window.
func (e *Engine) recent(votes []contracts.Vote, now time.Time) []contracts.Vote {
	if e.recentWindow <= 0 {
		return votes
	}
	cutoff := now.Add(-e.recentWindow)
	out := make([]contracts.Vote, 0, len(votes))
	for _, v := range votes {
		if v.Timestamp.After(cutoff) {
			out = append(out, v)
		}
	}
	return out
}

func (e *Engine) duplicate(votes []contracts.Vote, userID, proposalID string) bool {
	if e.scope == ScopeGlobal {
		return hasVote(votes, userID, "")
	}
	return hasVote(votes, userID, proposalID)
}

// ResetResult reports what ResetVotes cleared.
type ResetResult struct {
	Cleared        int                 `json:"cleared"`
	ProposalsReset int                 `json:"proposalsReset"`
	Entry          *contracts.LogEntry `json:"entry,omitempty"`
}

// ResetVotes deletes every vote and zeroes every proposal counter. Running
// it on an empty vote set succeeds and reports zero. A failure part way
// leaves a state that a repeated call completes.
func (e *Engine) ResetVotes(ctx context.Context) (res ResetResult, err error) {
	ctx, done := e.telemetry.TrackOperation(ctx, "governance.reset_votes")
	defer func() { done(err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	votes, err := e.repo.Votes(ctx)
	if err != nil {
		return ResetResult{}, fmt.Errorf("load votes: %w", err)
	}
	for _, v := range votes {
		if err := e.repo.DeleteVote(ctx, v.ID); err != nil {
			return ResetResult{}, fmt.Errorf("delete vote %s: %w", v.ID, err)
		}
	}
	res.Cleared = len(votes)

	proposals, err := e.repo.Proposals(ctx)
	if err != nil {
		return ResetResult{}, fmt.Errorf("load proposals: %w", err)
	}
	for _, p := range proposals {
		if p.Votes == 0 {
			continue
		}
		p.Votes = 0
		if err := e.repo.PutProposal(ctx, p); err != nil {
			return ResetResult{}, fmt.Errorf("reset proposal %s: %w", p.ID, err)
		}
		res.ProposalsReset++
	}

	res.Entry, err = e.ledger.Append(ctx, contracts.Action{
		Type:    contracts.ActionVotesReset,
		Actor:   contracts.SystemActor,
		Details: map[string]any{"votesCleared": res.Cleared, "proposalsReset": res.ProposalsReset},
	})
	if err != nil {
		return ResetResult{}, fmt.Errorf("record reset: %w", err)
	}

	e.logger.InfoContext(ctx, "votes reset", "cleared", res.Cleared, "proposals_reset", res.ProposalsReset)
	return res, nil
}
