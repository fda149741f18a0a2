package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/Mindburn-Labs/agora/pkg/artifacts"
	"github.com/Mindburn-Labs/agora/pkg/contracts"
	"github.com/Mindburn-Labs/agora/pkg/forum"
	"github.com/Mindburn-Labs/agora/pkg/governance"
	"github.com/Mindburn-Labs/agora/pkg/observability"
)

// DefaultThreshold is the vote count at which a proposal is approved.
const DefaultThreshold = 3

// ReasonDocumentMissing is reported when deleting a design document that
// is already gone.
const ReasonDocumentMissing = "Document does not exist"

// DocumentResult is the outcome of writing a design document.
type DocumentResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DeleteResult is the outcome of deleting a design document.
type DeleteResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CycleReport summarizes one ProcessCycle.
type CycleReport struct {
	Processed         bool   `json:"processed"`
	NewProposals      int    `json:"newProposals"`
	ApprovedProposals int    `json:"approvedProposals"`
	DocumentsCreated  int    `json:"documentsCreated"`
	Implemented       int    `json:"implemented"`
	Archived          int    `json:"archived"`
	Error             string `json:"error,omitempty"`
}

// Orchestrator drives proposals from discussion to archive. It holds no
// locks of its own; the engine and ledger serialize their writes, so voters
// are never blocked on generation or artifact I/O.
type Orchestrator struct {
	engine     *governance.Engine
	source     forum.Source
	detector   Detector
	drafter    *Drafter
	fs         artifacts.FS
	oracle     Oracle
	threshold  int
	agentID    string
	rationales []string
	onCycle    func(CycleReport)
	telemetry  *observability.Provider
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDetector replaces the default keyword detector.
func WithDetector(d Detector) Option {
	return func(o *Orchestrator) { o.detector = d }
}

// WithOracle sets the implementation oracle. The default is Never.
func WithOracle(or Oracle) Option {
	return func(o *Orchestrator) { o.oracle = or }
}

// WithThreshold sets the vote count at which a proposal is approved.
func WithThreshold(n int) Option {
	return func(o *Orchestrator) { o.threshold = n }
}

// WithAgent makes the pipeline vote on every proposal it creates, as
// agentID, with a rationale picked from rationales.
func WithAgent(agentID string, rationales ...string) Option {
	return func(o *Orchestrator) {
		o.agentID = agentID
		if len(rationales) > 0 {
			o.rationales = rationales
		}
	}
}

// WithCycleHook is called with every report produced by Run.
func WithCycleHook(fn func(CycleReport)) Option {
	return func(o *Orchestrator) { o.onCycle = fn }
}

// WithTelemetry records cycle spans and counters on p.
func WithTelemetry(p *observability.Provider) Option {
	return func(o *Orchestrator) { o.telemetry = p }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator that reads discussions from source, drives
// proposals through engine and writes design documents to fs.
func New(engine *governance.Engine, source forum.Source, drafter *Drafter, fs artifacts.FS, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:     engine,
		source:     source,
		detector:   NewKeywordDetector(0),
		drafter:    drafter,
		fs:         fs,
		oracle:     Never,
		threshold:  DefaultThreshold,
		rationales: DefaultRationales,
		logger:     slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DetectImprovements scans the discussion source for suggestions.
func (o *Orchestrator) DetectImprovements(ctx context.Context) ([]contracts.ImprovementSuggestion, error) {
	threads, err := o.source.Threads(ctx)
	if err != nil {
		return nil, fmt.Errorf("load discussions: %w", err)
	}
	suggestions, err := o.detector.Detect(ctx, threads)
	if err != nil {
		return nil, fmt.Errorf("detect improvements: %w", err)
	}
	return suggestions, nil
}

// CreateProposals drafts and stores a proposal per suggestion. Suggestions
// whose source already produced a proposal are skipped, so repeated cycles
// over the same discussion do not duplicate proposals.
func (o *Orchestrator) CreateProposals(ctx context.Context, suggestions []contracts.ImprovementSuggestion) ([]contracts.Proposal, error) {
	existing, err := o.engine.Proposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load proposals: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		if p.SourceKey != "" {
			seen[p.SourceKey] = true
		}
	}

	var (
		created []contracts.Proposal
		errs    []error
	)
	for _, s := range suggestions {
		if s.SourceKey != "" && seen[s.SourceKey] {
			continue
		}
		draft := o.drafter.Draft(ctx, s)
		draft.Analysis = o.drafter.Analyze(ctx, draft)

		p, err := o.engine.CreateProposal(ctx, draft)
		if err != nil {
			errs = append(errs, fmt.Errorf("create proposal %q: %w", draft.Title, err))
			continue
		}
		seen[s.SourceKey] = true
		created = append(created, *p)
	}
	return created, errors.Join(errs...)
}

// CheckStatus partitions open pipeline proposals by the threshold.
func (o *Orchestrator) CheckStatus(ctx context.Context) (governance.StatusReport, error) {
	return o.engine.CheckStatus(ctx, o.threshold)
}

// CreateDesignDocument writes the design document for p and records its
// path on the proposal. Failures are reported in the result.
func (o *Orchestrator) CreateDesignDocument(ctx context.Context, p contracts.Proposal) DocumentResult {
	docPath, err := o.documentPath(ctx, p)
	if err != nil {
		return DocumentResult{Success: false, Error: err.Error()}
	}
	if err := o.fs.MkdirAll(ctx, path.Dir(docPath)); err != nil {
		return DocumentResult{Success: false, Path: docPath, Error: err.Error()}
	}
	if err := o.fs.WriteFile(ctx, docPath, []byte(RenderDesignDocument(p))); err != nil {
		return DocumentResult{Success: false, Path: docPath, Error: err.Error()}
	}
	if _, err := o.engine.AttachDesignDocument(ctx, p.ID, docPath); err != nil {
		return DocumentResult{Success: false, Path: docPath, Error: err.Error()}
	}
	o.logger.InfoContext(ctx, "design document created", "proposal_id", p.ID, "path", docPath)
	return DocumentResult{Success: true, Path: docPath}
}

// documentPath is DesignPath(title) unless a different proposal's document
// already lives there, in which case the proposal id disambiguates.
func (o *Orchestrator) documentPath(ctx context.Context, p contracts.Proposal) (string, error) {
	docPath := DesignPath(p.Title)
	data, err := o.fs.ReadFile(ctx, docPath)
	switch {
	case errors.Is(err, artifacts.ErrNotExist):
		return docPath, nil
	case err != nil:
		return "", err
	}
	if id, ok := ExtractProposalID(string(data)); ok && id != p.ID {
		return path.Join(DesignRoot, Slug(p.Title)+"-"+shortID(p.ID), "design.md"), nil
	}
	return docPath, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// CheckImplementation asks the oracle about every documented proposal not
// yet implemented and marks the positive ones. The proposal's own design
// pointer locates the document; the id line inside it must agree.
func (o *Orchestrator) CheckImplementation(ctx context.Context) ([]contracts.Proposal, error) {
	proposals, err := o.engine.Proposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load proposals: %w", err)
	}

	var (
		implemented []contracts.Proposal
		errs        []error
	)
	for _, p := range proposals {
		if p.Implemented || p.DesignPath == "" {
			continue
		}
		data, err := o.fs.ReadFile(ctx, p.DesignPath)
		if errors.Is(err, artifacts.ErrNotExist) {
			o.logger.WarnContext(ctx, "design document missing", "proposal_id", p.ID, "path", p.DesignPath)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", p.DesignPath, err))
			continue
		}
		doc := string(data)
		if id, ok := ExtractProposalID(doc); ok && id != p.ID {
			o.logger.WarnContext(ctx, "design document belongs to another proposal",
				"proposal_id", p.ID, "path", p.DesignPath, "document_proposal_id", id)
			continue
		}

		done, err := o.oracle.Implemented(ctx, p, doc)
		if err != nil {
			errs = append(errs, fmt.Errorf("implementation check for %s: %w", p.ID, err))
			continue
		}
		if !done {
			continue
		}
		updated, err := o.engine.MarkImplemented(ctx, p.ID)
		if errors.Is(err, governance.ErrAlreadyImplemented) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		implemented = append(implemented, *updated)
	}
	return implemented, errors.Join(errs...)
}

// DeleteDesignDocument removes the document at docPath. A missing document
// is a normal outcome reported with ReasonDocumentMissing.
func (o *Orchestrator) DeleteDesignDocument(ctx context.Context, docPath string) DeleteResult {
	exists, err := o.fs.Exists(ctx, docPath)
	if err != nil {
		return DeleteResult{Success: false, Error: err.Error()}
	}
	if !exists {
		return DeleteResult{Success: false, Reason: ReasonDocumentMissing}
	}
	if err := o.fs.Delete(ctx, docPath); err != nil {
		if errors.Is(err, artifacts.ErrNotExist) {
			return DeleteResult{Success: false, Reason: ReasonDocumentMissing}
		}
		return DeleteResult{Success: false, Error: err.Error()}
	}
	return DeleteResult{Success: true}
}

// ArchiveImplemented deletes the documents of implemented proposals and
// clears their design pointers.
func (o *Orchestrator) ArchiveImplemented(ctx context.Context) (int, error) {
	proposals, err := o.engine.Proposals(ctx)
	if err != nil {
		return 0, fmt.Errorf("load proposals: %w", err)
	}

	var (
		archived int
		errs     []error
	)
	for _, p := range proposals {
		if !p.Implemented || p.DesignPath == "" {
			continue
		}
		res := o.DeleteDesignDocument(ctx, p.DesignPath)
		if !res.Success && res.Reason != ReasonDocumentMissing {
			errs = append(errs, fmt.Errorf("delete %s: %s", p.DesignPath, res.Error))
			continue
		}
		if _, err := o.engine.ArchiveDesign(ctx, p.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		archived++
	}
	return archived, errors.Join(errs...)
}

// CastAgentVote votes for p as the configured agent. Without an agent it
// does nothing and reports no success.
func (o *Orchestrator) CastAgentVote(ctx context.Context, p contracts.Proposal) (governance.VoteResult, error) {
	if o.agentID == "" {
		return governance.VoteResult{}, nil
	}
	rationale := o.drafter.SelectRationale(ctx, p, o.rationales)
	return o.engine.CastVote(ctx, p.ID, o.agentID, governance.WithRationale(rationale))
}

// ProcessCycle runs one sweep: detect, propose, check status, document
// approved proposals, check implementation and archive. It never fails;
// problems are reported in the returned report.
func (o *Orchestrator) ProcessCycle(ctx context.Context) (report CycleReport) {
	ctx, done := o.telemetry.TrackOperation(ctx, "pipeline.process_cycle")
	start := time.Now()

	err := o.runCycle(ctx, &report)
	report.Processed = err == nil
	if err != nil {
		report.Error = err.Error()
		o.logger.ErrorContext(ctx, "cycle failed", "error", err)
	} else {
		o.logger.InfoContext(ctx, "cycle complete",
			"new_proposals", report.NewProposals,
			"approved", report.ApprovedProposals,
			"documents", report.DocumentsCreated,
			"implemented", report.Implemented,
			"archived", report.Archived,
			"duration", time.Since(start),
		)
	}
	o.telemetry.RecordCycle(ctx, report.Processed)
	done(err)
	return report
}

func (o *Orchestrator) runCycle(ctx context.Context, report *CycleReport) error {
	suggestions, err := o.DetectImprovements(ctx)
	if err != nil {
		return err
	}

	var errs []error
	created, err := o.CreateProposals(ctx, suggestions)
	report.NewProposals = len(created)
	if err != nil {
		errs = append(errs, err)
	}
	for _, p := range created {
		if _, err := o.CastAgentVote(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("agent vote on %s: %w", p.ID, err))
		}
	}

	status, err := o.CheckStatus(ctx)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	report.ApprovedProposals = len(status.Approved)

	for _, p := range status.Approved {
		if p.DesignPath != "" {
			continue
		}
		res := o.CreateDesignDocument(ctx, p)
		if !res.Success {
			errs = append(errs, fmt.Errorf("design document for %s: %s", p.ID, res.Error))
			continue
		}
		report.DocumentsCreated++
	}

	implemented, err := o.CheckImplementation(ctx)
	report.Implemented = len(implemented)
	if err != nil {
		errs = append(errs, err)
	}

	report.Archived, err = o.ArchiveImplemented(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run processes a cycle immediately and then every interval until ctx is
// done.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("pipeline: interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report := o.ProcessCycle(ctx)
		if o.onCycle != nil {
			o.onCycle(report)
		}
		select {
		case <-ctx.Done():
			o.logger.InfoContext(ctx, "pipeline stopped")
			return nil
		case <-ticker.C:
		}
	}
}
