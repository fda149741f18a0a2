package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Mindburn-Labs/agora/pkg/audit"
	"github.com/Mindburn-Labs/agora/pkg/forum"
	"github.com/Mindburn-Labs/agora/pkg/governance"
	"github.com/Mindburn-Labs/agora/pkg/pipeline"
)

// command holds what every subcommand shares: its flag set and the config
// path flag.
type command struct {
	flags   *flag.FlagSet
	cfgPath string
	stdout  io.Writer
	stderr  io.Writer
}

func newCommand(name string, stdout, stderr io.Writer) *command {
	c := &command{
		flags:  flag.NewFlagSet(name, flag.ContinueOnError),
		stdout: stdout,
		stderr: stderr,
	}
	c.flags.SetOutput(stderr)
	c.flags.StringVar(&c.cfgPath, "config", os.Getenv("AGORA_CONFIG"), "Path to YAML config file")
	return c
}

// open parses args and wires the application. On failure it reports the
// error and returns exit code 2. check, when set, validates the parsed flags.
func (c *command) open(ctx context.Context, args []string, check func() error, opts ...pipeline.Option) (*app, int) {
	if err := c.flags.Parse(args); err != nil {
		return nil, 2
	}
	if check != nil {
		if err := check(); err != nil {
			return nil, c.fail(err)
		}
	}
	a, err := openApp(ctx, c.cfgPath, c.stderr, opts...)
	if err != nil {
		return nil, c.fail(err)
	}
	return a, 0
}

func (c *command) fail(err error) int {
	_, _ = fmt.Fprintf(c.stderr, "Error: %v\n", err)
	return 2
}

func (c *command) printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return c.fail(err)
	}
	_, _ = fmt.Fprintln(c.stdout, string(data))
	return 0
}

func closeApp(ctx context.Context, a *app, stderr io.Writer) {
	if err := a.Close(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: shutdown: %v\n", err)
	}
}

// runCycleCmd implements `agora cycle`.
func runCycleCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	c := newCommand("cycle", stdout, stderr)
	a, code := c.open(ctx, args, nil)
	if a == nil {
		return code
	}
	defer closeApp(ctx, a, stderr)

	report := a.pipeline.ProcessCycle(ctx)
	if code := c.printJSON(report); code != 0 {
		return code
	}
	if !report.Processed {
		return 1
	}
	return 0
}

// runLoopCmd implements `agora run`: cycles every -interval until SIGINT or
// SIGTERM.
func runLoopCmd(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCommand("run", stdout, stderr)
	interval := c.flags.Duration("interval", 0, "Time between cycles (default from config)")

	enc := json.NewEncoder(stdout)
	a, code := c.open(ctx, args, nil, pipeline.WithCycleHook(func(r pipeline.CycleReport) {
		_ = enc.Encode(r)
	}))
	if a == nil {
		return code
	}
	defer closeApp(context.Background(), a, stderr)

	every := *interval
	if every == 0 {
		every = a.cfg.Pipeline.Interval
	}
	a.logger.InfoContext(ctx, "pipeline started", "interval", every, "threshold", a.cfg.Pipeline.Threshold)
	if err := a.pipeline.Run(ctx, every); err != nil {
		return c.fail(err)
	}
	return 0
}

// runVoteCmd implements `agora vote`. A rejected vote exits 1.
func runVoteCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	c := newCommand("vote", stdout, stderr)
	proposalID := c.flags.String("proposal", "", "Proposal ID (REQUIRED)")
	userID := c.flags.String("user", "", "Voting user ID (REQUIRED)")
	rationale := c.flags.String("rationale", "", "Optional reason recorded with the vote")

	a, code := c.open(ctx, args, func() error {
		if *proposalID == "" || *userID == "" {
			return errors.New("-proposal and -user are required")
		}
		return nil
	})
	if a == nil {
		return code
	}
	defer closeApp(ctx, a, stderr)

	var opts []governance.VoteOption
	if *rationale != "" {
		opts = append(opts, governance.WithRationale(*rationale))
	}
	res, err := a.engine.CastVote(ctx, *proposalID, *userID, opts...)
	if err != nil {
		return c.fail(err)
	}
	if code := c.printJSON(res); code != 0 {
		return code
	}
	if !res.Success {
		return 1
	}
	return 0
}

// runResetCmd implements `agora reset-votes`.
func runResetCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	c := newCommand("reset-votes", stdout, stderr)
	a, code := c.open(ctx, args, nil)
	if a == nil {
		return code
	}
	defer closeApp(ctx, a, stderr)

	res, err := a.engine.ResetVotes(ctx)
	if err != nil {
		return c.fail(err)
	}
	return c.printJSON(res)
}

// runTallyCmd implements `agora tally`.
func runTallyCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	c := newCommand("tally", stdout, stderr)
	a, code := c.open(ctx, args, nil)
	if a == nil {
		return code
	}
	defer closeApp(ctx, a, stderr)

	tally, err := a.engine.Tally(ctx)
	if err != nil {
		return c.fail(err)
	}
	return c.printJSON(tally)
}

// runProposalsCmd implements `agora proposals`.
func runProposalsCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	c := newCommand("proposals", stdout, stderr)
	a, code := c.open(ctx, args, nil)
	if a == nil {
		return code
	}
	defer closeApp(ctx, a, stderr)

	proposals, err := a.engine.Proposals(ctx)
	if err != nil {
		return c.fail(err)
	}
	return c.printJSON(proposals)
}

// runStatusCmd implements `agora status`.
func runStatusCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	c := newCommand("status", stdout, stderr)
	threshold := c.flags.Int("threshold", 0, "Approval threshold (default from config)")
	a, code := c.open(ctx, args, nil)
	if a == nil {
		return code
	}
	defer closeApp(ctx, a, stderr)

	t := *threshold
	if t <= 0 {
		t = a.cfg.Pipeline.Threshold
	}
	report, err := a.engine.CheckStatus(ctx, t)
	if err != nil {
		return c.fail(err)
	}
	return c.printJSON(report)
}

// runVerifyCmd implements `agora verify`.
//
// Exit codes:
//
//	0 = chain valid
//	1 = chain invalid
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	c := newCommand("verify", stdout, stderr)
	jsonOutput := c.flags.Bool("json", false, "Output the report as JSON")
	a, code := c.open(ctx, args, nil)
	if a == nil {
		return code
	}
	defer closeApp(ctx, a, stderr)

	report, err := a.ledger.Verify(ctx)
	if err != nil {
		return c.fail(err)
	}

	if *jsonOutput {
		if code := c.printJSON(report); code != 0 {
			return code
		}
	} else if report.Valid {
		_, _ = fmt.Fprintf(stdout, "✅ Action log verification PASSED\n")
		_, _ = fmt.Fprintf(stdout, "Entries: %d\n", report.Checked)
	} else {
		_, _ = fmt.Fprintf(stdout, "❌ Action log verification FAILED\n")
		_, _ = fmt.Fprintf(stdout, "Entries: %d\n", report.Checked)
		_, _ = fmt.Fprintf(stdout, "Invalid indices: %s\n", joinInts(report.InvalidIndices))
	}

	if !report.Valid {
		return 1
	}
	return 0
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}

// runLogCmd implements `agora log`.
func runLogCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	c := newCommand("log", stdout, stderr)
	a, code := c.open(ctx, args, nil)
	if a == nil {
		return code
	}
	defer closeApp(ctx, a, stderr)

	entries, err := a.ledger.Entries(ctx)
	if err != nil {
		return c.fail(err)
	}
	return c.printJSON(entries)
}

// runExportCmd implements `agora export`: a zip holding the action log and
// its verification manifest.
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	c := newCommand("export", stdout, stderr)
	out := c.flags.String("out", "", "Output zip path (REQUIRED)")
	a, code := c.open(ctx, args, func() error {
		if *out == "" {
			return errors.New("-out is required")
		}
		return nil
	})
	if a == nil {
		return code
	}
	defer closeApp(ctx, a, stderr)

	pack, err := audit.Export(ctx, a.ledger, time.Now())
	if err != nil {
		return c.fail(err)
	}
	f, err := os.Create(*out)
	if err != nil {
		return c.fail(err)
	}
	checksum, err := audit.WriteZip(pack, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return c.fail(err)
	}

	return c.printJSON(map[string]any{
		"output":   *out,
		"entries":  pack.EntryCount,
		"valid":    pack.Verification.Valid,
		"checksum": checksum,
	})
}

// stringList collects a repeated flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ", ") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// runSeedCmd implements `agora seed-thread`, storing a discussion for the
// pipeline to read.
func runSeedCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	c := newCommand("seed-thread", stdout, stderr)
	title := c.flags.String("title", "", "Thread title (REQUIRED)")
	author := c.flags.String("author", "anonymous", "Author of the posts")
	var posts stringList
	c.flags.Var(&posts, "post", "Post content; repeat for several posts")

	a, code := c.open(ctx, args, func() error {
		if *title == "" || len(posts) == 0 {
			return errors.New("-title and at least one -post are required")
		}
		return nil
	})
	if a == nil {
		return code
	}
	defer closeApp(ctx, a, stderr)
	thread, err := forum.NewThread(ctx, a.repo, *title, *author, posts, time.Now())
	if err != nil {
		return c.fail(err)
	}
	return c.printJSON(thread)
}
