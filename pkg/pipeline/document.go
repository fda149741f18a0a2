package pipeline

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
)

// DesignRoot is the artifact directory holding design documents.
const DesignRoot = "designs"

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]+`)
	separators = regexp.MustCompile(`[\s_-]+`)
	proposalID = regexp.MustCompile(`(?m)^Proposal ID:\s*(\S+)\s*$`)
)

// Slug lowercases title, drops accents and non-word characters and joins
// the remaining words with single hyphens.
func Slug(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}
	s := strings.ToLower(folded)
	s = nonWord.ReplaceAllString(s, "")
	s = separators.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	return s
}

// DesignPath is where the design document for a proposal titled title lives.
func DesignPath(title string) string {
	return path.Join(DesignRoot, Slug(title), "design.md")
}

// RenderDesignDocument renders the Markdown design document for p. The
// "Proposal ID:" line mirrors the pointer kept on the proposal record.
func RenderDesignDocument(p contracts.Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	fmt.Fprintf(&b, "Proposal ID: %s\n", p.ID)
	fmt.Fprintf(&b, "Votes: %d\n\n", p.Votes)
	b.WriteString("## Description\n\n")
	b.WriteString(strings.TrimSpace(p.Description))
	b.WriteString("\n")

	if a := p.Analysis; a != nil {
		b.WriteString("\n## Analysis\n\n")
		fmt.Fprintf(&b, "- Feasibility: %d/10\n", a.Feasibility)
		fmt.Fprintf(&b, "- Impact: %d/10\n", a.Impact)
		fmt.Fprintf(&b, "- Cost: %s\n", a.Cost)
		fmt.Fprintf(&b, "- Timeframe: %s\n", a.Timeframe)
		writeList(&b, "Risks", a.Risks, false)
		writeList(&b, "Benefits", a.Benefits, false)
		writeList(&b, "Recommendations", a.Recommendations, false)
		writeList(&b, "Implementation Steps", a.ImplementationSteps, true)
	}
	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string, numbered bool) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", heading)
	for i, item := range items {
		if numbered {
			fmt.Fprintf(b, "%d. %s\n", i+1, item)
		} else {
			fmt.Fprintf(b, "- %s\n", item)
		}
	}
}

// ExtractProposalID reads the "Proposal ID:" line of a design document.
func ExtractProposalID(doc string) (string, bool) {
	m := proposalID.FindStringSubmatch(doc)
	if m == nil {
		return "", false
	}
	return m[1], true
}
