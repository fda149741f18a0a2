// Package governance implements proposal and vote bookkeeping on top of the
// action ledger: vote casting behind the vote gate, resets, tallies and the
// proposal lifecycle mutations driven by the pipeline.
package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
	"github.com/Mindburn-Labs/agora/pkg/ledger"
	"github.com/Mindburn-Labs/agora/pkg/observability"
	"github.com/Mindburn-Labs/agora/pkg/store"
	"github.com/Mindburn-Labs/agora/pkg/votegate"
)

var (
	ErrProposalNotFound   = errors.New("governance: proposal not found")
	ErrInvalidProposal    = errors.New("governance: invalid proposal")
	ErrAlreadyImplemented = errors.New("governance: proposal already implemented")
)

// VoteScope selects which earlier votes block a new one.
type VoteScope string

const (
	// ScopePerProposal allows one vote per user per proposal.
	ScopePerProposal VoteScope = "per_proposal"
	// ScopeGlobal allows one vote per user across all proposals.
	ScopeGlobal VoteScope = "global"
)

// ParseVoteScope parses a configured scope name.
func ParseVoteScope(s string) (VoteScope, error) {
	switch VoteScope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopePerProposal, "":
		return ScopePerProposal, nil
	case ScopeGlobal:
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("governance: unknown vote scope %q", s)
	}
}

// Engine mutates proposals and votes and records every change in the ledger.
// All mutations are serialized by mu: vote casting is a read-modify-write
// over the vote collection and the proposal counter.
type Engine struct {
	mu           sync.Mutex
	repo         *store.Repository
	ledger       *ledger.Ledger
	gate         *votegate.Gate
	limiter      Limiter
	clock        func() time.Time
	scope        VoteScope
	recentWindow time.Duration
	telemetry    *observability.Provider
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithGate replaces the default gate (built-in rules only).
func WithGate(g *votegate.Gate) Option {
	return func(e *Engine) { e.gate = g }
}

// WithClock sets the time source for vote and proposal timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithVoteScope sets which earlier votes count as duplicates.
func WithVoteScope(scope VoteScope) Option {
	return func(e *Engine) { e.scope = scope }
}

// WithRecentWindow limits the gate to votes cast within d of the new one.
// The default, zero, hands the gate the full vote history.
func WithRecentWindow(d time.Duration) Option {
	return func(e *Engine) { e.recentWindow = d }
}

// WithLimiter rate limits CastVote per user before any storage read.
func WithLimiter(l Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithTelemetry records spans and vote counters on p.
func WithTelemetry(p *observability.Provider) Option {
	return func(e *Engine) { e.telemetry = p }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine over repo that records into l.
func NewEngine(repo *store.Repository, l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		repo:         repo,
		ledger:       l,
		gate:         votegate.NewGate(nil),
		clock:        time.Now,
		scope:        ScopePerProposal,
		logger:       slog.Default().With("component", "governance"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scope reports the configured vote scope.
func (e *Engine) Scope() VoteScope { return e.scope }

// CreateProposal persists a new proposal from draft and records it.
func (e *Engine) CreateProposal(ctx context.Context, draft contracts.ProposalDraft) (_ *contracts.Proposal, err error) {
	ctx, done := e.telemetry.TrackOperation(ctx, "governance.create_proposal")
	defer func() { done(err) }()

	if strings.TrimSpace(draft.Title) == "" {
		return nil, fmt.Errorf("%w: empty title", ErrInvalidProposal)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := contracts.Proposal{
		ID:            e.repo.NewID(),
		Title:         draft.Title,
		Description:   draft.Description,
		CreatedBy:     draft.CreatedBy,
		Analysis:      draft.Analysis,
		CreatedAt:     e.clock().UTC(),
		SourceKey:     draft.SourceKey,
		SourcePostIDs: draft.SourcePostIDs,
	}
	actor := p.CreatedBy
	if actor == "" {
		actor = contracts.SystemActor
	}
	if err := e.repo.PutProposal(ctx, p); err != nil {
		return nil, fmt.Errorf("persist proposal: %w", err)
	}

	_, err = e.ledger.Append(ctx, contracts.Action{
		Type:    contracts.ActionProposalCreation,
		Actor:   actor,
		Subject: p.ID,
		Details: map[string]any{"title": p.Title, "sourceKey": p.SourceKey},
	})
	if err != nil {
		if derr := e.repo.DeleteProposal(ctx, p.ID); derr != nil {
			e.logger.ErrorContext(ctx, "rollback of proposal failed", "proposal_id", p.ID, "error", derr)
		}
		return nil, fmt.Errorf("record proposal creation: %w", err)
	}

	e.logger.InfoContext(ctx, "proposal created", "proposal_id", p.ID, "title", p.Title)
	return &p, nil
}

// Proposal returns the proposal with id, or ErrProposalNotFound.
func (e *Engine) Proposal(ctx context.Context, id string) (*contracts.Proposal, error) {
	p, err := e.repo.Proposal(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProposalNotFound, id)
	}
	return p, err
}

// Proposals returns every proposal ordered by creation time.
func (e *Engine) Proposals(ctx context.Context) ([]contracts.Proposal, error) {
	ps, err := e.repo.Proposals(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].CreatedAt.Before(ps[j].CreatedAt) })
	return ps, nil
}

// HasVoted reports whether userID has voted on any proposal.
func (e *Engine) HasVoted(ctx context.Context, userID string) (bool, error) {
	votes, err := e.repo.Votes(ctx)
	if err != nil {
		return false, err
	}
	return hasVote(votes, userID, ""), nil
}

// HasVotedFor reports whether userID has voted on proposalID.
func (e *Engine) HasVotedFor(ctx context.Context, userID, proposalID string) (bool, error) {
	votes, err := e.repo.Votes(ctx)
	if err != nil {
		return false, err
	}
	return hasVote(votes, userID, proposalID), nil
}

// Tally groups the vote collection by proposal. It is informational; the
// counter on each proposal is what approval is decided on.
func (e *Engine) Tally(ctx context.Context) (map[string]int, error) {
	votes, err := e.repo.Votes(ctx)
	if err != nil {
		return nil, err
	}
	tally := make(map[string]int)
	for _, v := range votes {
		tally[v.ProposalID]++
	}
	return tally, nil
}

// hasVote matches any proposal when proposalID is empty.
func hasVote(votes []contracts.Vote, userID, proposalID string) bool {
	for _, v := range votes {
		if v.UserID == userID && (proposalID == "" || v.ProposalID == proposalID) {
			return true
		}
	}
	return false
}

func countFor(votes []contracts.Vote, proposalID string) int {
	n := 0
	for _, v := range votes {
		if v.ProposalID == proposalID {
			n++
		}
	}
	return n
}

func (e *Engine) track(ctx context.Context, op, proposalID string) (context.Context, func(error)) {
	return e.telemetry.TrackOperation(ctx, op, observability.AttrProposalID.String(proposalID))
}
