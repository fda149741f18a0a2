package contracts

import "time"

// CreatorAI marks proposals drafted by the pipeline rather than a member.
const CreatorAI = "ai"

// Proposal is a community proposal.
// Votes is a cached counter owned by the governance engine and must equal the
// number of Vote records that reference the proposal.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Proposal struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Votes         int        `json:"votes"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	Analysis      *Analysis  `json:"analysis,omitempty"`
	Implemented   bool       `json:"implemented"`
	ImplementedAt *time.Time `json:"implementedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`

	// DesignPath points at the proposal's design document while one exists.
	DesignPath string `json:"designPath,omitempty"`
	// SourceKey identifies the discussion a pipeline proposal was drafted from.
	SourceKey     string   `json:"sourceKey,omitempty"`
	SourcePostIDs []string `json:"sourcePostIds,omitempty"`
}

// IsAIGenerated reports whether the pipeline created the proposal.
func (p Proposal) IsAIGenerated() bool {
	return p.CreatedBy == CreatorAI
}

// Analysis is the structured scoring attached to a proposal.
type Analysis struct {
	Feasibility         int      `json:"feasibility"` // 1-10
	Impact              int      `json:"impact"`      // 1-10
	Cost                string   `json:"cost"`        // "low" | "medium" | "high"
	Timeframe           string   `json:"timeframe"`
	Risks               []string `json:"risks,omitempty"`
	Benefits            []string `json:"benefits,omitempty"`
	Recommendations     []string `json:"recommendations,omitempty"`
	ImplementationSteps []string `json:"implementationSteps,omitempty"`
}

// ProposalDraft is the input for creating a proposal.
type ProposalDraft struct {
	Title         string
	Description   string
	CreatedBy     string
	Analysis      *Analysis
	SourceKey     string
	SourcePostIDs []string
}

// ImprovementSuggestion is an idea extracted from discussion text.
// It is consumed immediately and never stored on its own.
type ImprovementSuggestion struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Confidence     float64  `json:"confidence"`
	RelatedPostIDs []string `json:"relatedPostIds"`
	SourceKey      string   `json:"sourceKey"`
}

// DesignDocument is the rendered implementation plan of an approved proposal.
type DesignDocument struct {
	ProposalID string `json:"proposalId"`
	Path       string `json:"path"`
	Content    string `json:"content"`
}
