package governance

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
)

// StatusReport partitions open pipeline proposals by the approval threshold.
type StatusReport struct {
	Threshold int                  `json:"threshold"`
	Approved  []contracts.Proposal `json:"approved"`
	Pending   []contracts.Proposal `json:"pending"`
}

// CheckStatus splits AI-originated, not yet implemented proposals into
// approved (votes >= threshold) and pending. It does not change state.
func (e *Engine) CheckStatus(ctx context.Context, threshold int) (StatusReport, error) {
	proposals, err := e.Proposals(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("load proposals: %w", err)
	}

	report := StatusReport{
		Threshold: threshold,
		Approved:  []contracts.Proposal{},
		Pending:   []contracts.Proposal{},
	}
	for _, p := range proposals {
		if !p.IsAIGenerated() || p.Implemented {
			continue
		}
		if p.Votes >= threshold {
			report.Approved = append(report.Approved, p)
		} else {
			report.Pending = append(report.Pending, p)
		}
	}
	return report, nil
}

// AttachDesignDocument records that a design document for id was written
// at path.
func (e *Engine) AttachDesignDocument(ctx context.Context, id, path string) (_ *contracts.Proposal, err error) {
	ctx, done := e.track(ctx, "governance.attach_design", id)
	defer func() { done(err) }()

	return e.mutate(ctx, id, func(p *contracts.Proposal) (contracts.Action, error) {
		p.DesignPath = path
		return contracts.Action{
			Type:    contracts.ActionDesignDocumentCreation,
			Actor:   contracts.SystemActor,
			Subject: p.ID,
			Details: map[string]any{"path": path, "title": p.Title},
		}, nil
	})
}

// MarkImplemented flags id as implemented. A proposal is implemented at
// most once; a second call returns ErrAlreadyImplemented.
func (e *Engine) MarkImplemented(ctx context.Context, id string) (_ *contracts.Proposal, err error) {
	ctx, done := e.track(ctx, "governance.mark_implemented", id)
	defer func() { done(err) }()

	return e.mutate(ctx, id, func(p *contracts.Proposal) (contracts.Action, error) {
		if p.Implemented {
			return contracts.Action{}, fmt.Errorf("%w: %s", ErrAlreadyImplemented, p.ID)
		}
		now := e.clock().UTC()
		p.Implemented = true
		p.ImplementedAt = &now
		return contracts.Action{
			Type:    contracts.ActionProposalImplementation,
			Actor:   contracts.SystemActor,
			Subject: p.ID,
			Details: map[string]any{"title": p.Title, "designPath": p.DesignPath},
		}, nil
	})
}

// ArchiveDesign clears the design pointer of id after its document has been
// removed. A proposal without a design pointer is returned unchanged and
// nothing is recorded.
func (e *Engine) ArchiveDesign(ctx context.Context, id string) (_ *contracts.Proposal, err error) {
	ctx, done := e.track(ctx, "governance.archive_design", id)
	defer func() { done(err) }()

	return e.mutate(ctx, id, func(p *contracts.Proposal) (contracts.Action, error) {
		if p.DesignPath == "" {
			return contracts.Action{}, nil
		}
		path := p.DesignPath
		p.DesignPath = ""
		return contracts.Action{
			Type:    contracts.ActionDesignDocumentDeletion,
			Actor:   contracts.SystemActor,
			Subject: p.ID,
			Details: map[string]any{"path": path},
		}, nil
	})
}

// mutate applies fn to proposal id under the engine lock, persists the
// result and appends the returned action. An action with an empty type
// means fn made no change. If the append fails the previous record is
// restored.
func (e *Engine) mutate(ctx context.Context, id string, fn func(*contracts.Proposal) (contracts.Action, error)) (*contracts.Proposal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.Proposal(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *p

	action, err := fn(p)
	if err != nil {
		return nil, err
	}
	if action.Type == "" {
		return p, nil
	}

	if err := e.repo.PutProposal(ctx, *p); err != nil {
		return nil, fmt.Errorf("persist proposal %s: %w", id, err)
	}
	if _, err := e.ledger.Append(ctx, action); err != nil {
		if rerr := e.repo.PutProposal(ctx, before); rerr != nil {
			e.logger.ErrorContext(ctx, "rollback of proposal failed", "proposal_id", id, "error", rerr)
		}
		return nil, fmt.Errorf("record %s: %w", action.Type, err)
	}

	e.logger.InfoContext(ctx, "proposal updated", "proposal_id", id, "action", action.Type)
	return p, nil
}
