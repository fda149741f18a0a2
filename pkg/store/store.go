// Package store implements the key-value persistence collaborator: opaque JSON
// documents grouped into named collections, plus typed accessors for the
// governance collections.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrInvalidCollection = errors.New("store: collection name must not be empty")
	ErrInvalidID         = errors.New("store: item id must not be empty")
)

// Item is a stored document.
type Item struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Store is a linear key-value store addressed by collection name.
// Writes are last-write-wins; there are no cross-collection transactions.
type Store interface {
	GetAll(ctx context.Context, collection string) ([]Item, error)
	Put(ctx context.Context, collection string, item Item) error
	Delete(ctx context.Context, collection, id string) error
	NewID() string
}

func newID() string {
	return uuid.NewString()
}

func validate(collection, id string) error {
	if collection == "" {
		return ErrInvalidCollection
	}
	if id == "" {
		return ErrInvalidID
	}
	return nil
}
