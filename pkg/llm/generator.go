package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is returned by the offline generator.
var ErrUnavailable = errors.New("llm: generator unavailable")

// Generator produces text for a system and user prompt. Every caller must
// have a deterministic fallback for when Generate fails.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// Unavailable is a Generator that always fails, for offline runs.
var Unavailable Generator = GeneratorFunc(func(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
})

// ChatGenerator turns a chat Client into a Generator.
type ChatGenerator struct {
	client  Client
	options *SamplingOptions
}

func NewChatGenerator(client Client, options *SamplingOptions) *ChatGenerator {
	return &ChatGenerator{client: client, options: options}
}

func (g *ChatGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msgs := make([]Message, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: userPrompt})

	resp, err := g.client.Chat(ctx, msgs, g.options)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", errors.New("llm: empty completion")
	}
	return text, nil
}

// DecodeJSON decodes the first JSON object in text into v. Models often
// wrap JSON in prose or code fences.
func DecodeJSON(text string, v any) error {
	start := strings.Index(text, "{")
	if start < 0 {
		return fmt.Errorf("llm: no JSON object in output")
	}
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("llm: decode output: %w", err)
	}
	return nil
}
