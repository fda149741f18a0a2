package votegate

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
)

// Rule is a named CEL expression that must evaluate to true for a vote to
// be admitted. Expressions see:
//
//	vote.user_id, vote.proposal_id, vote.timestamp (unix seconds)
//	history_count   prior votes by the same user in the supplied history
//	now             unix seconds
type Rule struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
}

type compiledRule struct {
	name string
	prg  cel.Program
}

// Policy is a compiled, immutable rule set. It is safe for concurrent use.
type Policy struct {
	rules []compiledRule
}

// CompilePolicy compiles rules up front so bad expressions fail at startup
// rather than on the voting path.
func CompilePolicy(rules []Rule) (*Policy, error) {
	env, err := cel.NewEnv(
		cel.Variable("vote", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("history_count", cel.IntType),
		cel.Variable("now", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("votegate: failed to create CEL environment: %w", err)
	}

	p := &Policy{}
	for _, r := range rules {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("votegate: rule %q: compile: %w", r.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("votegate: rule %q must return bool, got %s", r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			return nil, fmt.Errorf("votegate: rule %q: program: %w", r.Name, err)
		}
		p.rules = append(p.rules, compiledRule{name: r.Name, prg: prg})
	}
	return p, nil
}

// Len returns the number of rules.
func (p *Policy) Len() int {
	if p == nil {
		return 0
	}
	return len(p.rules)
}

// evaluate returns the name of the first failing rule, or "".
// Evaluation errors count as failures.
func (p *Policy) evaluate(vote contracts.Vote, history []contracts.Vote, now time.Time) string {
	if p == nil {
		return ""
	}
	input := map[string]any{
		"vote": map[string]any{
			"user_id":     vote.UserID,
			"proposal_id": vote.ProposalID,
			"timestamp":   vote.Timestamp.Unix(),
		},
		"history_count": int64(PriorVotes(vote.UserID, history)),
		"now":           now.Unix(),
	}
	for _, r := range p.rules {
		out, _, err := r.prg.Eval(input)
		if err != nil {
			return r.name
		}
		ok, isBool := out.Value().(bool)
		if !isBool || !ok {
			return r.name
		}
	}
	return ""
}

// Gate combines the built-in rules with an optional policy.
type Gate struct {
	policy *Policy
}

// NewGate creates a gate; policy may be nil.
func NewGate(policy *Policy) *Gate {
	return &Gate{policy: policy}
}

// Validate runs the built-in rules first, then the policy rules.
func (g *Gate) Validate(vote contracts.Vote, recentVotes []contracts.Vote, now time.Time) Verdict {
	v := Validate(vote, recentVotes, now)
	if !v.Valid || g == nil {
		return v
	}
	if failed := g.policy.evaluate(vote, recentVotes, now); failed != "" {
		return reject(Reason("Rejected by policy: " + failed))
	}
	return v
}
