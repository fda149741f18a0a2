// Package audit mirrors ledger entries into an observable audit trail and
// exports the action log as a verifiable evidence pack.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
)

// Event is the structured audit record derived from one ledger entry.
type Event struct {
	EntryID   string               `json:"entry_id"`
	Type      contracts.ActionType `json:"type"`
	Actor     string               `json:"actor"`
	Subject   string               `json:"subject,omitempty"`
	Hash      string               `json:"hash"`
	PrevHash  string               `json:"prev_hash,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
	Details   map[string]any       `json:"details,omitempty"`
}

// EventFromEntry flattens a ledger entry.
func EventFromEntry(e contracts.LogEntry) Event {
	actor := e.Action.Actor
	if actor == "" {
		actor = contracts.SystemActor
	}
	return Event{
		EntryID:   e.ID,
		Type:      e.Action.Type,
		Actor:     actor,
		Subject:   e.Action.Subject,
		Hash:      e.Hash,
		PrevHash:  e.PrevHash(),
		Timestamp: e.Timestamp,
		Details:   e.Action.Details,
	}
}

// Sink receives every appended ledger entry.
type Sink interface {
	Record(ctx context.Context, entry contracts.LogEntry) error
}

// JSONSink writes one "AUDIT: {json}" line per entry.
type JSONSink struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewJSONSink creates a sink writing to os.Stdout.
func NewJSONSink() *JSONSink {
	return NewJSONSinkWithWriter(os.Stdout)
}

// NewJSONSinkWithWriter creates a sink writing to w.
func NewJSONSinkWithWriter(w io.Writer) *JSONSink {
	if w == nil {
		w = os.Stdout
	}
	return &JSONSink{writer: w}
}

func (s *JSONSink) Record(ctx context.Context, entry contracts.LogEntry) error {
	raw, err := json.Marshal(EventFromEntry(entry))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Prefix with AUDIT: for easy filtering
	_, err = s.writer.Write(append([]byte("AUDIT: "), append(raw, '\n')...))
	return err
}

// SlogSink emits audit records through a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("component", "audit")}
}

func (s *SlogSink) Record(ctx context.Context, entry contracts.LogEntry) error {
	evt := EventFromEntry(entry)
	s.logger.InfoContext(ctx, "audit",
		"entry_id", evt.EntryID,
		"type", string(evt.Type),
		"actor", evt.Actor,
		"subject", evt.Subject,
		"hash", evt.Hash,
		"prev_hash", evt.PrevHash,
	)
	return nil
}

// Handler adapts a Sink to a ledger append handler. Sink failures are logged
// and never fail the append that has already been persisted.
func Handler(sink Sink, logger *slog.Logger) func(ctx context.Context, entry contracts.LogEntry) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, entry contracts.LogEntry) {
		if err := sink.Record(ctx, entry); err != nil {
			logger.ErrorContext(ctx, "audit sink failed", "entry_id", entry.ID, "error", err)
		}
	}
}
