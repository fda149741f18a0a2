// Package ledger implements the governance action ledger.
//
//   - Every governance-relevant action is one immutable entry
//   - Each entry is hash-chained to its predecessor in timestamp order
//   - Append-only; no deletions or mutations
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Mindburn-Labs/agora/pkg/canonicalize"
	"github.com/Mindburn-Labs/agora/pkg/contracts"
	"github.com/Mindburn-Labs/agora/pkg/store"
)

// EntryHandler is called after an entry has been persisted.
type EntryHandler func(ctx context.Context, entry contracts.LogEntry)

// Ledger owns the tail of the chain. Append is serialized by mu so two
// entries can never be computed against the same previous hash.
type Ledger struct {
	mu       sync.Mutex
	repo     *store.Repository
	clock    func() time.Time
	newID    func() string
	logger   *slog.Logger
	handlers []EntryHandler

	// tail cursor, loaded lazily from the store
	loaded bool
	head   *string
	lastTS time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock for testing.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a ledger persisted through repo.
func New(repo *store.Repository, opts ...Option) *Ledger {
	l := &Ledger{
		repo:   repo,
		clock:  time.Now,
		newID:  repo.NewID,
		logger: slog.Default().With("component", "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnAppend registers a handler for new entries.
func (l *Ledger) OnAppend(h EntryHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Append records action as the new tail of the chain. A storage failure is
// returned unchanged (wrapped) and leaves the cursor where it was.
func (l *Ledger) Append(ctx context.Context, action contracts.Action) (*contracts.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.loadTail(ctx); err != nil {
		return nil, err
	}

	ts := l.clock().UTC()
	if !ts.After(l.lastTS) {
		// keep timestamp order total; it defines the chain order
		ts = l.lastTS.Add(time.Nanosecond)
	}

	entry := contracts.LogEntry{
		ID:           l.newID(),
		Action:       action,
		Timestamp:    ts,
		PreviousHash: copyHash(l.head),
	}
	hash, err := ComputeHash(entry.Action, entry.Timestamp, entry.PreviousHash)
	if err != nil {
		return nil, fmt.Errorf("ledger: hash entry: %w", err)
	}
	entry.Hash = hash

	if err := l.repo.PutLogEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("ledger: persist entry: %w", err)
	}

	l.head = &entry.Hash
	l.lastTS = entry.Timestamp

	l.logger.DebugContext(ctx, "ledger entry appended",
		"entry_id", entry.ID,
		"action", entry.Action.Type,
		"hash", entry.Hash,
	)
	for _, h := range l.handlers {
		h(ctx, entry)
	}
	return &entry, nil
}

// loadTail must be called with mu held.
func (l *Ledger) loadTail(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	entries, err := l.repo.LogEntries(ctx)
	if err != nil {
		return fmt.Errorf("ledger: load tail: %w", err)
	}
	if len(entries) > 0 {
		sortByTimestamp(entries)
		last := entries[len(entries)-1]
		l.head = copyHash(&last.Hash)
		l.lastTS = last.Timestamp
	}
	l.loaded = true
	return nil
}

// Head returns the hash of the current tail, or nil for an empty ledger.
func (l *Ledger) Head(ctx context.Context) (*string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadTail(ctx); err != nil {
		return nil, err
	}
	return copyHash(l.head), nil
}

// Entries returns the full action log sorted by timestamp.
func (l *Ledger) Entries(ctx context.Context) ([]contracts.LogEntry, error) {
	entries, err := l.repo.LogEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: read entries: %w", err)
	}
	sortByTimestamp(entries)
	return entries, nil
}

// Verify loads the stored chain and verifies it.
func (l *Ledger) Verify(ctx context.Context) (Report, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return Report{}, err
	}
	return VerifyChain(entries), nil
}

// hashInput is the exact record covered by an entry hash.
type hashInput struct {
	Action       contracts.Action `json:"action"`
	Timestamp    string           `json:"timestamp"`
	PreviousHash *string          `json:"previousHash"`
}

// ComputeHash returns the hash of {action, timestamp, previousHash} over
// RFC 8785 canonical JSON, so it survives storage round trips.
func ComputeHash(action contracts.Action, ts time.Time, previousHash *string) (string, error) {
	return canonicalize.CanonicalHash(hashInput{
		Action:       action,
		Timestamp:    ts.UTC().Format(time.RFC3339Nano),
		PreviousHash: previousHash,
	})
}

func sortByTimestamp(entries []contracts.LogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}

func copyHash(h *string) *string {
	if h == nil {
		return nil
	}
	v := *h
	return &v
}
