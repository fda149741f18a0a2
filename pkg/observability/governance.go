package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricVotes         = "agora.votes.total"
	MetricLedgerAppends = "agora.ledger.appends.total"
	MetricCycles        = "agora.pipeline.cycles.total"
)

var (
	AttrOperation  = attribute.Key("agora.operation")
	AttrOutcome    = attribute.Key("agora.outcome")
	AttrReason     = attribute.Key("agora.reason")
	AttrActionType = attribute.Key("agora.action.type")
	AttrProposalID = attribute.Key("agora.proposal.id")
)

// Outcome values for vote and cycle counters.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeOK       = "ok"
)

// RecordVote counts a vote attempt. reason is empty for accepted votes.
func (p *Provider) RecordVote(ctx context.Context, outcome, reason string) {
	if p == nil || p.voteCounter == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrOutcome.String(outcome)}
	if reason != "" {
		attrs = append(attrs, AttrReason.String(reason))
	}
	p.voteCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAppend counts a ledger append for the given action type.
func (p *Provider) RecordAppend(ctx context.Context, actionType string) {
	if p == nil || p.appendCounter == nil {
		return
	}
	p.appendCounter.Add(ctx, 1, metric.WithAttributes(AttrActionType.String(actionType)))
}

// RecordCycle counts a finished pipeline cycle.
func (p *Provider) RecordCycle(ctx context.Context, processed bool) {
	if p == nil || p.cycleCounter == nil {
		return
	}
	outcome := OutcomeOK
	if !processed {
		outcome = OutcomeFailed
	}
	p.cycleCounter.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}
