package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS kv_items`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := NewSQLStore(context.Background(), db, DialectPostgres)
	require.NoError(t, err)
	return s, mock
}

func TestPostgresStore_PutUsesNumberedPlaceholders(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectExec(`INSERT INTO kv_items \(collection, id, data, updated_at\) VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs("votes", "v1", `{"userId":"u1"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Put(context.Background(), "votes", Item{ID: "v1", Data: json.RawMessage(`{"userId":"u1"}`)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAll(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectQuery(`SELECT id, data FROM kv_items WHERE collection = \$1`).
		WithArgs("proposals").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("p1", `{"id":"p1"}`).
			AddRow("p2", `{"id":"p2"}`))

	items, err := s.GetAll(context.Background(), "proposals")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ID)
	assert.JSONEq(t, `{"id":"p2"}`, string(items[1].Data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectExec(`DELETE FROM kv_items WHERE collection = \$1 AND id = \$2`).
		WithArgs("votes", "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Delete(context.Background(), "votes", "v1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PropagatesErrors(t *testing.T) {
	s, mock := newPostgresMock(t)

	boom := errors.New("connection reset")
	mock.ExpectExec(`INSERT INTO kv_items`).WillReturnError(boom)

	err := s.Put(context.Background(), "votes", Item{ID: "v1", Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, boom)
}

func TestNewSQLStore_MigrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS kv_items`).WillReturnError(errors.New("permission denied"))

	_, err = NewSQLStore(context.Background(), db, DialectPostgres)
	assert.Error(t, err)
}

func TestDialectRebind(t *testing.T) {
	assert.Equal(t, "a = ? AND b = ?", DialectSQLite.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = $1 AND b = $2", DialectPostgres.rebind("a = ? AND b = ?"))

	d, err := DialectFor("postgresql")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)
	_, err = DialectFor("mysql")
	assert.Error(t, err)
}
