package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
)

// Collection names.
const (
	CollectionProposals = "proposals"
	CollectionVotes     = "votes"
	CollectionActionLog = "actionLog"
	CollectionThreads   = "threads"
	CollectionPosts     = "posts"
)

// Repository adds typed accessors over a Store.
type Repository struct {
	store Store
}

func NewRepository(s Store) *Repository {
	return &Repository{store: s}
}

// NewID delegates to the underlying store.
func (r *Repository) NewID() string {
	return r.store.NewID()
}

func getAll[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	items, err := s.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		var v T
		if err := json.Unmarshal(it.Data, &v); err != nil {
			return nil, fmt.Errorf("store: decode %s/%s: %w", collection, it.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func put(ctx context.Context, s Store, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", collection, id, err)
	}
	return s.Put(ctx, collection, Item{ID: id, Data: data})
}

func (r *Repository) Proposals(ctx context.Context) ([]contracts.Proposal, error) {
	return getAll[contracts.Proposal](ctx, r.store, CollectionProposals)
}

// Proposal returns the proposal with the given id or ErrNotFound.
func (r *Repository) Proposal(ctx context.Context, id string) (*contracts.Proposal, error) {
	all, err := r.Proposals(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
}

func (r *Repository) PutProposal(ctx context.Context, p contracts.Proposal) error {
	return put(ctx, r.store, CollectionProposals, p.ID, p)
}

func (r *Repository) DeleteProposal(ctx context.Context, id string) error {
	return r.store.Delete(ctx, CollectionProposals, id)
}

func (r *Repository) Votes(ctx context.Context) ([]contracts.Vote, error) {
	return getAll[contracts.Vote](ctx, r.store, CollectionVotes)
}

func (r *Repository) PutVote(ctx context.Context, v contracts.Vote) error {
	return put(ctx, r.store, CollectionVotes, v.ID, v)
}

func (r *Repository) DeleteVote(ctx context.Context, id string) error {
	return r.store.Delete(ctx, CollectionVotes, id)
}

func (r *Repository) LogEntries(ctx context.Context) ([]contracts.LogEntry, error) {
	return getAll[contracts.LogEntry](ctx, r.store, CollectionActionLog)
}

func (r *Repository) PutLogEntry(ctx context.Context, e contracts.LogEntry) error {
	return put(ctx, r.store, CollectionActionLog, e.ID, e)
}

func (r *Repository) Threads(ctx context.Context) ([]contracts.Thread, error) {
	return getAll[contracts.Thread](ctx, r.store, CollectionThreads)
}

func (r *Repository) PutThread(ctx context.Context, t contracts.Thread) error {
	t.Posts = nil // posts live in their own collection
	return put(ctx, r.store, CollectionThreads, t.ID, t)
}

func (r *Repository) Posts(ctx context.Context) ([]contracts.Post, error) {
	return getAll[contracts.Post](ctx, r.store, CollectionPosts)
}

func (r *Repository) PutPost(ctx context.Context, p contracts.Post) error {
	return put(ctx, r.store, CollectionPosts, p.ID, p)
}
