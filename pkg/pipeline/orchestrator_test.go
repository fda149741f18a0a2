package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Mindburn-Labs/agora/pkg/artifacts"
	"github.com/Mindburn-Labs/agora/pkg/contracts"
	"github.com/Mindburn-Labs/agora/pkg/forum"
	"github.com/Mindburn-Labs/agora/pkg/governance"
	"github.com/Mindburn-Labs/agora/pkg/ledger"
	"github.com/Mindburn-Labs/agora/pkg/llm"
	"github.com/Mindburn-Labs/agora/pkg/store"
)

type harness struct {
	repo   *store.Repository
	ledger *ledger.Ledger
	engine *governance.Engine
	fs     *artifacts.MemFS
	orch   *Orchestrator
}

func darkModeThreads() forum.Static {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return forum.Static{{
		ID:    "t1",
		Title: "Dark mode",
		Posts: []contracts.Post{
			{ID: "p1", ThreadID: "t1", Content: "We need a dark mode", CreatedAt: at},
			{ID: "p2", ThreadID: "t1", Content: "It would be nice for night shifts", CreatedAt: at.Add(time.Minute)},
		},
	}}
}

func newHarness(t *testing.T, source forum.Source, gen llm.Generator, opts ...Option) *harness {
	t.Helper()
	repo := store.NewRepository(store.NewMemoryStore())
	l := ledger.New(repo)
	engine := governance.NewEngine(repo, l)
	drafter, err := NewDrafter(gen, nil)
	require.NoError(t, err)
	fs := artifacts.NewMemFS()
	return &harness{
		repo:   repo,
		ledger: l,
		engine: engine,
		fs:     fs,
		orch:   New(engine, source, drafter, fs, opts...),
	}
}

func TestProcessCycleFullLifecycle(t *testing.T) {
	ctx := context.Background()
	gen := scripted(`{"title": "Dark mode", "description": "Offer a dark theme"}`, validAnalysis, "1")
	h := newHarness(t, darkModeThreads(), gen,
		WithThreshold(1), WithAgent("agora-agent"), WithOracle(Always))

	report := h.orch.ProcessCycle(ctx)
	assert.Equal(t, CycleReport{
		Processed:         true,
		NewProposals:      1,
		ApprovedProposals: 1,
		DocumentsCreated:  1,
		Implemented:       1,
		Archived:          1,
	}, report)

	proposals, err := h.engine.Proposals(ctx)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	p := proposals[0]
	assert.True(t, p.Implemented)
	assert.Empty(t, p.DesignPath)
	assert.Equal(t, 1, p.Votes)
	require.NotNil(t, p.Analysis)
	assert.Equal(t, 8, p.Analysis.Feasibility)
	assert.Empty(t, h.fs.Paths())

	entries, err := h.ledger.Entries(ctx)
	require.NoError(t, err)
	var types []contracts.ActionType
	for _, e := range entries {
		types = append(types, e.Action.Type)
	}
	assert.Equal(t, []contracts.ActionType{
		contracts.ActionProposalCreation,
		contracts.ActionVote,
		contracts.ActionDesignDocumentCreation,
		contracts.ActionProposalImplementation,
		contracts.ActionDesignDocumentDeletion,
	}, types)
	assert.Equal(t, DefaultRationales[0], entries[1].Action.Details["rationale"])

	verify, err := h.ledger.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, verify.Valid)

	again := h.orch.ProcessCycle(ctx)
	assert.True(t, again.Processed)
	assert.Zero(t, again.NewProposals)
	assert.Zero(t, again.ApprovedProposals)
}

func TestProcessCycleWaitsForVotesAndImplementation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, darkModeThreads(), llm.Unavailable, WithThreshold(2))

	report := h.orch.ProcessCycle(ctx)
	require.True(t, report.Processed, report.Error)
	assert.Equal(t, 1, report.NewProposals)
	assert.Zero(t, report.ApprovedProposals)

	proposals, err := h.engine.Proposals(ctx)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	p := proposals[0]
	assert.Equal(t, "Dark mode", p.Title, "falls back to the thread title")
	assert.Equal(t, FallbackAnalysis(), p.Analysis)

	for _, u := range []string{"alice", "bob"} {
		res, err := h.engine.CastVote(ctx, p.ID, u)
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	report = h.orch.ProcessCycle(ctx)
	require.True(t, report.Processed, report.Error)
	assert.Equal(t, 1, report.ApprovedProposals)
	assert.Equal(t, 1, report.DocumentsCreated)
	assert.Zero(t, report.Implemented)
	assert.Equal(t, []string{"designs/dark-mode/design.md"}, h.fs.Paths())

	doc, err := h.fs.ReadFile(ctx, "designs/dark-mode/design.md")
	require.NoError(t, err)
	id, ok := ExtractProposalID(string(doc))
	require.True(t, ok)
	assert.Equal(t, p.ID, id)

	report = h.orch.ProcessCycle(ctx)
	require.True(t, report.Processed, report.Error)
	assert.Zero(t, report.DocumentsCreated, "document already attached")
}

func TestProcessCycleReportsFailures(t *testing.T) {
	failing := sourceFunc(func(context.Context) ([]contracts.Thread, error) {
		return nil, errors.New("forum offline")
	})
	h := newHarness(t, failing, llm.Unavailable)

	report := h.orch.ProcessCycle(context.Background())
	assert.False(t, report.Processed)
	assert.Contains(t, report.Error, "forum offline")
}

type sourceFunc func(context.Context) ([]contracts.Thread, error)

func (f sourceFunc) Threads(ctx context.Context) ([]contracts.Thread, error) { return f(ctx) }

func TestDeleteDesignDocumentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, forum.Static{}, llm.Unavailable)
	const doc = "designs/x/design.md"
	require.NoError(t, h.fs.WriteFile(ctx, doc, []byte("x")))

	assert.Equal(t, DeleteResult{Success: true}, h.orch.DeleteDesignDocument(ctx, doc))
	assert.Equal(t, DeleteResult{Success: false, Reason: ReasonDocumentMissing}, h.orch.DeleteDesignDocument(ctx, doc))
}

func TestCreateDesignDocumentAvoidsCollisions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, forum.Static{}, llm.Unavailable)

	a, err := h.engine.CreateProposal(ctx, contracts.ProposalDraft{Title: "Same title", CreatedBy: contracts.CreatorAI})
	require.NoError(t, err)
	b, err := h.engine.CreateProposal(ctx, contracts.ProposalDraft{Title: "Same title", CreatedBy: contracts.CreatorAI})
	require.NoError(t, err)

	ra := h.orch.CreateDesignDocument(ctx, *a)
	rb := h.orch.CreateDesignDocument(ctx, *b)
	require.True(t, ra.Success, ra.Error)
	require.True(t, rb.Success, rb.Error)
	assert.Equal(t, "designs/same-title/design.md", ra.Path)
	assert.NotEqual(t, ra.Path, rb.Path)

	// Rewriting a's document keeps its path.
	again := h.orch.CreateDesignDocument(ctx, *a)
	assert.Equal(t, ra.Path, again.Path)
}

func TestCreateDesignDocumentReportsWriteFailure(t *testing.T) {
	ctx := context.Background()
	repo := store.NewRepository(store.NewMemoryStore())
	engine := governance.NewEngine(repo, ledger.New(repo))
	drafter, err := NewDrafter(nil, nil)
	require.NoError(t, err)
	orch := New(engine, forum.Static{}, drafter, brokenFS{artifacts.NewMemFS()})

	p, err := engine.CreateProposal(ctx, contracts.ProposalDraft{Title: "A"})
	require.NoError(t, err)

	res := orch.CreateDesignDocument(ctx, *p)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "read-only")

	stored, err := engine.Proposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.DesignPath)
}

type brokenFS struct{ *artifacts.MemFS }

func (brokenFS) WriteFile(context.Context, string, []byte) error {
	return errors.New("read-only filesystem")
}

func TestCheckImplementationSkipsForeignDocuments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, forum.Static{}, llm.Unavailable, WithOracle(Always))

	p, err := h.engine.CreateProposal(ctx, contracts.ProposalDraft{Title: "A", CreatedBy: contracts.CreatorAI})
	require.NoError(t, err)
	_, err = h.engine.AttachDesignDocument(ctx, p.ID, "designs/a/design.md")
	require.NoError(t, err)
	require.NoError(t, h.fs.WriteFile(ctx, "designs/a/design.md",
		[]byte(RenderDesignDocument(contracts.Proposal{ID: "someone-else", Title: "A"}))))

	done, err := h.orch.CheckImplementation(ctx)
	require.NoError(t, err)
	assert.Empty(t, done)

	require.NoError(t, h.fs.Delete(ctx, "designs/a/design.md"))
	done, err = h.orch.CheckImplementation(ctx)
	require.NoError(t, err)
	assert.Empty(t, done, "missing document is skipped")
}

func TestCastAgentVoteWithoutAgent(t *testing.T) {
	h := newHarness(t, forum.Static{}, llm.Unavailable)
	res, err := h.orch.CastAgentVote(context.Background(), contracts.Proposal{ID: "p"})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		reports []CycleReport
	)
	h := newHarness(t, darkModeThreads(), llm.Unavailable, WithCycleHook(func(r CycleReport) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, r)
		if len(reports) >= 2 {
			cancel()
		}
	}))

	errc := make(chan error, 1)
	go func() { errc <- h.orch.Run(ctx, 5*time.Millisecond) }()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(reports), 2)
	assert.Equal(t, 1, reports[0].NewProposals)
	assert.Zero(t, reports[1].NewProposals)
}

func TestRunRejectsBadInterval(t *testing.T) {
	h := newHarness(t, forum.Static{}, llm.Unavailable)
	require.Error(t, h.orch.Run(context.Background(), 0))
}
