package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract exercises the behaviour every backend must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	items, err := s.GetAll(ctx, "votes")
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.Put(ctx, "votes", Item{ID: "v1", Data: json.RawMessage(`{"n":1}`)}))
	require.NoError(t, s.Put(ctx, "votes", Item{ID: "v2", Data: json.RawMessage(`{"n":2}`)}))
	require.NoError(t, s.Put(ctx, "proposals", Item{ID: "p1", Data: json.RawMessage(`{"t":"x"}`)}))

	// last write wins
	require.NoError(t, s.Put(ctx, "votes", Item{ID: "v1", Data: json.RawMessage(`{"n":10}`)}))

	items, err = s.GetAll(ctx, "votes")
	require.NoError(t, err)
	require.Len(t, items, 2)
	byID := map[string]string{}
	for _, it := range items {
		byID[it.ID] = string(it.Data)
	}
	assert.JSONEq(t, `{"n":10}`, byID["v1"])
	assert.JSONEq(t, `{"n":2}`, byID["v2"])

	require.NoError(t, s.Delete(ctx, "votes", "v1"))
	// deleting a missing id is not an error
	require.NoError(t, s.Delete(ctx, "votes", "v1"))

	items, err = s.GetAll(ctx, "votes")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "v2", items[0].ID)

	items, err = s.GetAll(ctx, "proposals")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	assert.ErrorIs(t, s.Put(ctx, "", Item{ID: "x"}), ErrInvalidCollection)
	assert.ErrorIs(t, s.Put(ctx, "votes", Item{}), ErrInvalidID)
	_, err = s.GetAll(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidCollection)

	assert.NotEqual(t, s.NewID(), s.NewID())
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_PreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, "col", Item{ID: id, Data: json.RawMessage(`{}`)}))
	}
	items, err := s.GetAll(ctx, "col")
	require.NoError(t, err)
	ids := []string{items[0].ID, items[1].ID, items[2].ID}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "col", Item{ID: "a", Data: json.RawMessage(`{"k":1}`)}))

	items, err := s.GetAll(ctx, "col")
	require.NoError(t, err)
	items[0].Data[2] = 'X'

	again, err := s.GetAll(ctx, "col")
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":1}`, string(again[0].Data))
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "data", "agora.json"))
	require.NoError(t, err)
	storeContract(t, s)
}

func TestFileStore_Reload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agora.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "votes", Item{ID: "v1", Data: json.RawMessage(`{"userId":"u1"}`)}))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	items, err := reopened.GetAll(ctx, "votes")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"userId":"u1"}`, string(items[0].Data))
}

func TestFileStore_FailedSaveLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agora.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "votes", Item{ID: "v1", Data: json.RawMessage(`{"n":1}`)}))

	// A directory at the temp path makes every save fail.
	require.NoError(t, os.Mkdir(path+".tmp", 0o755))
	assert.Error(t, s.Put(ctx, "votes", Item{ID: "v1", Data: json.RawMessage(`{"n":2}`)}))
	assert.Error(t, s.Put(ctx, "votes", Item{ID: "v2", Data: json.RawMessage(`{"n":3}`)}))
	assert.Error(t, s.Put(ctx, "proposals", Item{ID: "p1", Data: json.RawMessage(`{}`)}))
	assert.Error(t, s.Delete(ctx, "votes", "v1"))

	items, err := s.GetAll(ctx, "votes")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"n":1}`, string(items[0].Data))
	items, err = s.GetAll(ctx, "proposals")
	require.NoError(t, err)
	assert.Empty(t, items)

	// Once saving works again, none of the failed writes reach the file.
	require.NoError(t, os.Remove(path+".tmp"))
	require.NoError(t, s.Put(ctx, "threads", Item{ID: "t1", Data: json.RawMessage(`{}`)}))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	items, err = reopened.GetAll(ctx, "votes")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "v1", items[0].ID)
	assert.JSONEq(t, `{"n":1}`, string(items[0].Data))
	items, err = reopened.GetAll(ctx, "proposals")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFileStore_RejectsInvalidJSON(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "agora.json"))
	require.NoError(t, err)
	err = s.Put(context.Background(), "votes", Item{ID: "v1", Data: json.RawMessage(`{nope`)})
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQL(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	storeContract(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(ctx, BackendFile, "")
	assert.Error(t, err)

	_, err = Open(ctx, "cassandra", "x")
	assert.Error(t, err)

	fs, err := Open(ctx, BackendFile, filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, fs)
}
