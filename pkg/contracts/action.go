package contracts

// Action is the structured record carried by every ledger entry.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Action struct {
	Type    ActionType     `json:"type"`
	Actor   string         `json:"actor,omitempty"`   // user or component that caused the change
	Subject string         `json:"subject,omitempty"` // usually a proposal ID
	Details map[string]any `json:"details,omitempty"`
}

// ActionType represents the type of governance action.
type ActionType string

// Action type constants.
const (
	ActionVote                   ActionType = "VOTE"
	ActionVotesReset             ActionType = "VOTES_RESET"
	ActionProposalCreation       ActionType = "PROPOSAL_CREATION"
	ActionDesignDocumentCreation ActionType = "DESIGN_DOCUMENT_CREATION"
	ActionProposalImplementation ActionType = "PROPOSAL_IMPLEMENTATION"
	ActionDesignDocumentDeletion ActionType = "DESIGN_DOCUMENT_DELETION"
)

// SystemActor is recorded when no user caused the action.
const SystemActor = "system"
