package forum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/agora/pkg/contracts"
	"github.com/Mindburn-Labs/agora/pkg/store"
)

func TestRepositorySourceGroupsPosts(t *testing.T) {
	ctx := context.Background()
	repo := store.NewRepository(store.NewMemoryStore())
	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.PutThread(ctx, contracts.Thread{ID: "t2", Title: "Later", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.PutThread(ctx, contracts.Thread{ID: "t1", Title: "Earlier", CreatedAt: base}))
	require.NoError(t, repo.PutPost(ctx, contracts.Post{ID: "p2", ThreadID: "t1", Content: "second", CreatedAt: base.Add(2 * time.Minute)}))
	require.NoError(t, repo.PutPost(ctx, contracts.Post{ID: "p1", ThreadID: "t1", Content: "first", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.PutPost(ctx, contracts.Post{ID: "p3", ThreadID: "t2", Content: "only", CreatedAt: base.Add(61 * time.Minute)}))
	require.NoError(t, repo.PutPost(ctx, contracts.Post{ID: "p4", ThreadID: "gone", Content: "orphan", CreatedAt: base.Add(3 * time.Hour)}))

	threads, err := NewRepositorySource(repo).Threads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 3)

	assert.Equal(t, "t1", threads[0].ID)
	require.Len(t, threads[0].Posts, 2)
	assert.Equal(t, "first", threads[0].Posts[0].Content)
	assert.Equal(t, "second", threads[0].Posts[1].Content)

	assert.Equal(t, "t2", threads[1].ID)
	assert.Len(t, threads[1].Posts, 1)

	assert.Equal(t, "gone", threads[2].ID)
	assert.Empty(t, threads[2].Title)
}

func TestNewThread(t *testing.T) {
	ctx := context.Background()
	repo := store.NewRepository(store.NewMemoryStore())
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	thread, err := NewThread(ctx, repo, "Feature wishes", "alice", []string{"We need dark mode", "Please add dark mode"}, now)
	require.NoError(t, err)
	require.Len(t, thread.Posts, 2)

	threads, err := NewRepositorySource(repo).Threads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Feature wishes", threads[0].Title)
	assert.Equal(t, []contracts.Post{thread.Posts[0], thread.Posts[1]}, threads[0].Posts)

	_, err = NewThread(ctx, repo, " ", "alice", nil, now)
	require.Error(t, err)
}

func TestStatic(t *testing.T) {
	s := Static{{ID: "t1"}}
	threads, err := s.Threads(context.Background())
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}
