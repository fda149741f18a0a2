// Package forum reads community discussions for the improvement pipeline.
// Threads and posts live in the store; this package only groups them.
package forum

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
	"github.com/Mindburn-Labs/agora/pkg/store"
)

// Source yields threads with their posts attached, oldest post first.
type Source interface {
	Threads(ctx context.Context) ([]contracts.Thread, error)
}

// Static is a fixed list of threads.
type Static []contracts.Thread

func (s Static) Threads(context.Context) ([]contracts.Thread, error) {
	return []contracts.Thread(s), nil
}

// RepositorySource groups the posts collection under the threads
// collection.
type RepositorySource struct {
	repo *store.Repository
}

func NewRepositorySource(repo *store.Repository) *RepositorySource {
	return &RepositorySource{repo: repo}
}

// Threads returns threads ordered by creation time. Posts whose thread is
// missing are kept under an untitled thread with their ThreadID.
func (s *RepositorySource) Threads(ctx context.Context) ([]contracts.Thread, error) {
	threads, err := s.repo.Threads(ctx)
	if err != nil {
		return nil, fmt.Errorf("forum: load threads: %w", err)
	}
	posts, err := s.repo.Posts(ctx)
	if err != nil {
		return nil, fmt.Errorf("forum: load posts: %w", err)
	}

	index := make(map[string]int, len(threads))
	for i := range threads {
		threads[i].Posts = nil
		index[threads[i].ID] = i
	}
	for _, p := range posts {
		i, ok := index[p.ThreadID]
		if !ok {
			threads = append(threads, contracts.Thread{ID: p.ThreadID, CreatedAt: p.CreatedAt})
			i = len(threads) - 1
			index[p.ThreadID] = i
		}
		threads[i].Posts = append(threads[i].Posts, p)
	}

	for i := range threads {
		ps := threads[i].Posts
		sort.SliceStable(ps, func(a, b int) bool { return ps[a].CreatedAt.Before(ps[b].CreatedAt) })
	}
	sort.SliceStable(threads, func(a, b int) bool { return threads[a].CreatedAt.Before(threads[b].CreatedAt) })
	return threads, nil
}

// NewThread stores a thread and one post per content string, all by
// author. Post times step by a millisecond from now so their order is kept.
func NewThread(ctx context.Context, repo *store.Repository, title, author string, contents []string, now time.Time) (*contracts.Thread, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("forum: thread title is required")
	}
	t := contracts.Thread{ID: repo.NewID(), Title: title, CreatedAt: now.UTC()}
	if err := repo.PutThread(ctx, t); err != nil {
		return nil, fmt.Errorf("forum: store thread: %w", err)
	}
	for i, c := range contents {
		p := contracts.Post{
			ID:        repo.NewID(),
			ThreadID:  t.ID,
			Author:    author,
			Content:   c,
			CreatedAt: t.CreatedAt.Add(time.Duration(i) * time.Millisecond),
		}
		if err := repo.PutPost(ctx, p); err != nil {
			return nil, fmt.Errorf("forum: store post: %w", err)
		}
		t.Posts = append(t.Posts, p)
	}
	return &t, nil
}
