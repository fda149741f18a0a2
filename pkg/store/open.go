package store

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open builds a Store for the named backend. dsn is a file path for the file
// backend and a driver DSN for the SQL backends; it is ignored for memory.
func Open(ctx context.Context, backend, dsn string) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		if dsn == "" {
			return nil, fmt.Errorf("store: file backend requires a path")
		}
		return NewFileStore(dsn)
	case BackendSQLite, BackendPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("store: %s backend requires a dsn", backend)
		}
		return OpenSQL(ctx, backend, dsn)
	default:
		return nil, fmt.Errorf("store: unsupported backend %q", backend)
	}
}
