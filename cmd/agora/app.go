package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/Mindburn-Labs/agora/pkg/artifacts"
	"github.com/Mindburn-Labs/agora/pkg/audit"
	"github.com/Mindburn-Labs/agora/pkg/config"
	"github.com/Mindburn-Labs/agora/pkg/contracts"
	"github.com/Mindburn-Labs/agora/pkg/forum"
	"github.com/Mindburn-Labs/agora/pkg/governance"
	"github.com/Mindburn-Labs/agora/pkg/ledger"
	"github.com/Mindburn-Labs/agora/pkg/llm"
	"github.com/Mindburn-Labs/agora/pkg/observability"
	"github.com/Mindburn-Labs/agora/pkg/pipeline"
	"github.com/Mindburn-Labs/agora/pkg/store"
	"github.com/Mindburn-Labs/agora/pkg/votegate"
)

// app is the wired system for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	repo      *store.Repository
	ledger    *ledger.Ledger
	engine    *governance.Engine
	pipeline  *pipeline.Orchestrator
	telemetry *observability.Provider
	closers   []func(context.Context) error
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openApp loads configuration from cfgPath and the environment and wires
// every component. Logs go to logOut.
func openApp(ctx context.Context, cfgPath string, logOut io.Writer, opts ...pipeline.Option) (_ *app, err error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, logOut)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	a.telemetry, err = observability.New(ctx, &cfg.Telemetry, observability.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.closers = append(a.closers, a.telemetry.Shutdown)

	backing, err := store.Open(ctx, cfg.Store.Backend, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	if c, ok := backing.(io.Closer); ok {
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	}
	a.repo = store.NewRepository(backing)

	a.ledger = ledger.New(a.repo, ledger.WithLogger(logger.With("component", "ledger")))
	a.ledger.OnAppend(audit.Handler(audit.NewSlogSink(logger.With("component", "audit")), logger))
	a.ledger.OnAppend(func(ctx context.Context, e contracts.LogEntry) {
		a.telemetry.RecordAppend(ctx, string(e.Action.Type))
	})

	engineOpts, err := a.engineOptions()
	if err != nil {
		return nil, err
	}
	a.engine = governance.NewEngine(a.repo, a.ledger, engineOpts...)

	fs, err := artifacts.NewFromConfig(ctx, cfg.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("artifacts: %w", err)
	}

	drafter, err := pipeline.NewDrafter(a.generator(), logger.With("component", "drafter"))
	if err != nil {
		return nil, err
	}
	a.pipeline = pipeline.New(a.engine, forum.NewRepositorySource(a.repo), drafter, fs,
		append(a.pipelineOptions(), opts...)...)
	return a, nil
}

func (a *app) engineOptions() ([]governance.Option, error) {
	gc := a.cfg.Governance
	scope, err := governance.ParseVoteScope(gc.VoteScope)
	if err != nil {
		return nil, err
	}
	policy, err := votegate.CompilePolicy(gc.Rules)
	if err != nil {
		return nil, err
	}
	opts := []governance.Option{
		governance.WithGate(votegate.NewGate(policy)),
		governance.WithVoteScope(scope),
		governance.WithRecentWindow(gc.RecentWindow),
		governance.WithTelemetry(a.telemetry),
		governance.WithLogger(a.logger.With("component", "governance")),
	}

	switch gc.Limiter.Backend {
	case config.LimiterMemory:
		opts = append(opts, governance.WithLimiter(governance.NewMemoryLimiter(gc.Limiter.Policy())))
	case config.LimiterRedis:
		rl := governance.DialRedisLimiter(gc.Limiter.RedisAddr, gc.Limiter.RedisPassword, gc.Limiter.RedisDB, gc.Limiter.Policy())
		a.closers = append(a.closers, func(context.Context) error { return rl.Close() })
		opts = append(opts, governance.WithLimiter(rl))
	}
	return opts, nil
}

func (a *app) generator() llm.Generator {
	lc := a.cfg.LLM
	if !lc.Enabled {
		return llm.Unavailable
	}
	client := llm.NewOpenAIClient(lc.APIKey, lc.Model,
		llm.WithBaseURL(lc.BaseURL),
		llm.WithTimeout(lc.Timeout),
	)
	return llm.NewChatGenerator(client, &llm.SamplingOptions{
		Temperature: lc.Temperature,
		MaxTokens:   lc.MaxTokens,
	})
}

func (a *app) pipelineOptions() []pipeline.Option {
	pc := a.cfg.Pipeline
	opts := []pipeline.Option{
		pipeline.WithDetector(pipeline.NewKeywordDetector(pc.MinConfidence, pc.Keywords...)),
		pipeline.WithThreshold(pc.Threshold),
		pipeline.WithTelemetry(a.telemetry),
		pipeline.WithLogger(a.logger.With("component", "pipeline")),
	}
	if pc.AgentID != "" {
		opts = append(opts, pipeline.WithAgent(pc.AgentID, pc.Rationales...))
	}
	if pc.OracleProbability > 0 {
		seed := pc.OracleSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		opts = append(opts, pipeline.WithOracle(pipeline.NewRandomOracle(rand.NewSource(seed), pc.OracleProbability)))
	}
	return opts
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
