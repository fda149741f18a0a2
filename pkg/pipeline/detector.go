// Package pipeline turns community discussion into proposals and carries
// approved proposals through documentation, implementation and archival.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
)

// Detector finds improvement signals in discussions.
type Detector interface {
	Detect(ctx context.Context, threads []contracts.Thread) ([]contracts.ImprovementSuggestion, error)
}

// DefaultKeywords are the phrases KeywordDetector looks for.
var DefaultKeywords = []string{
	"improve", "improvement", "feature", "suggest", "should",
	"would be nice", "need", "add", "better", "wish",
}

// KeywordDetector flags threads whose posts mention improvement keywords.
// Confidence is the share of posts in the thread that match.
type KeywordDetector struct {
	Keywords      []string
	MinConfidence float64
}

// NewKeywordDetector uses DefaultKeywords when keywords is empty.
func NewKeywordDetector(minConfidence float64, keywords ...string) *KeywordDetector {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &KeywordDetector{Keywords: lowered, MinConfidence: minConfidence}
}

func (d *KeywordDetector) Detect(_ context.Context, threads []contracts.Thread) ([]contracts.ImprovementSuggestion, error) {
	var out []contracts.ImprovementSuggestion
	for _, t := range threads {
		if len(t.Posts) == 0 {
			continue
		}

		var (
			related []string
			excerpt []string
		)
		for _, p := range t.Posts {
			if d.matches(p.Content) {
				related = append(related, p.ID)
				excerpt = append(excerpt, strings.TrimSpace(p.Content))
			}
		}
		if len(related) == 0 {
			continue
		}
		confidence := float64(len(related)) / float64(len(t.Posts))
		if confidence < d.MinConfidence {
			continue
		}

		title := strings.TrimSpace(t.Title)
		if title == "" {
			title = firstLine(excerpt[0])
		}
		out = append(out, contracts.ImprovementSuggestion{
			Title:          title,
			Description:    strings.Join(excerpt, "\n\n"),
			Confidence:     confidence,
			RelatedPostIDs: related,
			SourceKey:      SourceKey(t.ID),
		})
	}
	return out, nil
}

func (d *KeywordDetector) matches(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range d.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// SourceKey identifies the discussion a suggestion came from.
func SourceKey(threadID string) string {
	return fmt.Sprintf("thread:%s", threadID)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const limit = 80
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit])
	}
	return strings.TrimSpace(s)
}
