// Package llm is the text-generation collaborator: a chat client for
// OpenAI-compatible endpoints and the Generator abstraction the pipeline
// depends on.
package llm

import (
	"context"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Client interface {
	Chat(ctx context.Context, messages []Message, options *SamplingOptions) (*Response, error)
}

type SamplingOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Seed        int64   `json:"seed"`
}

type Response struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}
