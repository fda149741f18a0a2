package pipeline

import (
	"context"
	"math/rand"
	"sync"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
)

// Oracle decides whether a documented proposal has been implemented.
type Oracle interface {
	Implemented(ctx context.Context, p contracts.Proposal, doc string) (bool, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, p contracts.Proposal, doc string) (bool, error)

func (f OracleFunc) Implemented(ctx context.Context, p contracts.Proposal, doc string) (bool, error) {
	return f(ctx, p, doc)
}

var (
	// Never reports nothing as implemented.
	Never Oracle = OracleFunc(func(context.Context, contracts.Proposal, string) (bool, error) { return false, nil })
	// Always reports every document as implemented.
	Always Oracle = OracleFunc(func(context.Context, contracts.Proposal, string) (bool, error) { return true, nil })
)

// RandomOracle reports implementation with a fixed probability. It stands in
// for a real delivery signal in demos.
type RandomOracle struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
}

func NewRandomOracle(src rand.Source, probability float64) *RandomOracle {
	return &RandomOracle{rng: rand.New(src), probability: probability}
}

func (o *RandomOracle) Implemented(context.Context, contracts.Proposal, string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng.Float64() < o.probability, nil
}
