package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // Postgres driver
	_ "modernc.org/sqlite"
)

// Dialect captures the SQL differences between supported backends.
type Dialect struct {
	Name   string
	Driver string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var (
	DialectSQLite   = Dialect{Name: "sqlite", Driver: "sqlite"}
	DialectPostgres = Dialect{Name: "postgres", Driver: "postgres", numbered: true}
)

// DialectFor resolves a driver name to a dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return Dialect{}, fmt.Errorf("store: unsupported sql driver %q", driver)
	}
}

// rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_items (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);`

// SQLStore is a durable Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database and ensures the schema exists.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQL opens a database by driver name and DSN.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dialect.Name, err)
	}
	if dialect == DialectSQLite {
		// single writer; also keeps :memory: databases on one connection
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLStore(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, kvSchema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *SQLStore) GetAll(ctx context.Context, collection string) ([]Item, error) {
	if collection == "" {
		return nil, ErrInvalidCollection
	}
	query := s.dialect.rebind(`SELECT id, data FROM kv_items WHERE collection = ? ORDER BY id`)
	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]Item, 0)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", collection, err)
		}
		items = append(items, Item{ID: id, Data: []byte(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *SQLStore) Put(ctx context.Context, collection string, item Item) error {
	if err := validate(collection, item.ID); err != nil {
		return err
	}
	query := s.dialect.rebind(`INSERT INTO kv_items (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	updated := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, query, collection, item.ID, string(item.Data), updated); err != nil {
		return fmt.Errorf("store: put %s/%s: %w", collection, item.ID, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	if err := validate(collection, id); err != nil {
		return err
	}
	query := s.dialect.rebind(`DELETE FROM kv_items WHERE collection = ? AND id = ?`)
	if _, err := s.db.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *SQLStore) NewID() string {
	return newID()
}

// Close releases the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
