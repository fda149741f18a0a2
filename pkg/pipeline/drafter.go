package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
	"github.com/Mindburn-Labs/agora/pkg/llm"
)

const analysisSchemaURL = "https://agora.schemas.local/pipeline/analysis.schema.json"

const analysisSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["feasibility", "impact", "cost", "timeframe"],
  "properties": {
    "feasibility": {"type": "integer", "minimum": 1, "maximum": 10},
    "impact": {"type": "integer", "minimum": 1, "maximum": 10},
    "cost": {"enum": ["low", "medium", "high"]},
    "timeframe": {"type": "string", "minLength": 1},
    "risks": {"type": "array", "items": {"type": "string"}},
    "benefits": {"type": "array", "items": {"type": "string"}},
    "recommendations": {"type": "array", "items": {"type": "string"}},
    "implementationSteps": {"type": "array", "items": {"type": "string"}}
  }
}`

const (
	draftSystemPrompt = "You turn community feedback into concise product proposals. " +
		`Reply with JSON only: {"title": "...", "description": "..."}.`
	analysisSystemPrompt = "You assess product proposals. Reply with JSON only, with keys " +
		"feasibility (1-10), impact (1-10), cost (low|medium|high), timeframe, risks, " +
		"benefits, recommendations and implementationSteps (string arrays)."
	rationaleSystemPrompt = "You are a community member deciding why to support a proposal. " +
		"Reply with the number of the best matching reason only."
)

// DefaultRationales are offered to the generator when the agent votes.
var DefaultRationales = []string{
	"Addresses a need raised repeatedly by the community",
	"High impact relative to its cost",
	"Low risk and quick to deliver",
	"Improves the experience for new members",
}

// Drafter uses the text generator to write proposals and analyses. Every
// method falls back to a deterministic value when generation fails.
type Drafter struct {
	gen    llm.Generator
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewDrafter(gen llm.Generator, logger *slog.Logger) (*Drafter, error) {
	if gen == nil {
		gen = llm.Unavailable
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(analysisSchemaURL, strings.NewReader(analysisSchema)); err != nil {
		return nil, fmt.Errorf("analysis schema load failed: %w", err)
	}
	schema, err := c.Compile(analysisSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("analysis schema compile failed: %w", err)
	}
	return &Drafter{gen: gen, schema: schema, logger: logger.With("component", "drafter")}, nil
}

// Draft turns a suggestion into a proposal draft. On generator failure the
// suggestion's own title and description are used.
func (d *Drafter) Draft(ctx context.Context, s contracts.ImprovementSuggestion) contracts.ProposalDraft {
	draft := contracts.ProposalDraft{
		Title:         s.Title,
		Description:   s.Description,
		CreatedBy:     contracts.CreatorAI,
		SourceKey:     s.SourceKey,
		SourcePostIDs: s.RelatedPostIDs,
	}

	prompt := fmt.Sprintf("Discussion topic: %s\n\nFeedback:\n%s", s.Title, s.Description)
	text, err := d.gen.Generate(ctx, draftSystemPrompt, prompt)
	if err != nil {
		d.logger.WarnContext(ctx, "draft generation failed, using suggestion", "source", s.SourceKey, "error", err)
		return draft
	}

	var out struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := llm.DecodeJSON(text, &out); err != nil {
		d.logger.WarnContext(ctx, "draft output unusable, using suggestion", "source", s.SourceKey, "error", err)
		return draft
	}
	if t := strings.TrimSpace(out.Title); t != "" {
		draft.Title = t
	}
	if desc := strings.TrimSpace(out.Description); desc != "" {
		draft.Description = desc
	}
	return draft
}

// Analyze scores a draft. Output that does not match the analysis schema
// is discarded in favour of FallbackAnalysis.
func (d *Drafter) Analyze(ctx context.Context, draft contracts.ProposalDraft) *contracts.Analysis {
	prompt := fmt.Sprintf("Title: %s\n\nDescription:\n%s", draft.Title, draft.Description)
	text, err := d.gen.Generate(ctx, analysisSystemPrompt, prompt)
	if err != nil {
		d.logger.WarnContext(ctx, "analysis generation failed, using fallback", "title", draft.Title, "error", err)
		return FallbackAnalysis()
	}

	a, err := d.parseAnalysis(text)
	if err != nil {
		d.logger.WarnContext(ctx, "analysis output rejected, using fallback", "title", draft.Title, "error", err)
		return FallbackAnalysis()
	}
	return a
}

func (d *Drafter) parseAnalysis(text string) (*contracts.Analysis, error) {
	var raw any
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return nil, err
	}
	if err := d.schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("analysis schema: %w", err)
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var a contracts.Analysis
	if err := json.Unmarshal(buf, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// FallbackAnalysis is the analysis recorded when none could be generated.
func FallbackAnalysis() *contracts.Analysis {
	return &contracts.Analysis{
		Feasibility:         5,
		Impact:              5,
		Cost:                "medium",
		Timeframe:           "unknown",
		Risks:               []string{"Not assessed automatically; needs manual review"},
		Benefits:            []string{"Requested by the community"},
		Recommendations:     []string{"Review scope and effort before implementation"},
		ImplementationSteps: []string{"Refine requirements", "Implement", "Review and release"},
	}
}

// SelectRationale picks one of candidates as the reason for an agent vote,
// or the first candidate when the generator gives no usable answer.
func (d *Drafter) SelectRationale(ctx context.Context, p contracts.Proposal, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Proposal: %s\n%s\n\nReasons:\n", p.Title, p.Description)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}

	text, err := d.gen.Generate(ctx, rationaleSystemPrompt, b.String())
	if err != nil {
		return candidates[0]
	}
	if n, ok := parseChoice(text); ok && n >= 1 && n <= len(candidates) {
		return candidates[n-1]
	}
	return candidates[0]
}

// parseChoice reads the first integer in text.
func parseChoice(text string) (int, bool) {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r < '0' || r > '9' })
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	return n, err == nil
}
