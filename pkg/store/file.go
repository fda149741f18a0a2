package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists every collection to a single JSON file. The whole file
// is rewritten (temp file + rename) on each mutation.
type FileStore struct {
	path string
	mu   sync.RWMutex
	data map[string]map[string]json.RawMessage
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		data: make(map[string]map[string]json.RawMessage),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil // start empty
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", f.path, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		return fmt.Errorf("store: parse %s: %w", f.path, err)
	}
	return nil
}

// save must be called with the write lock held.
func (f *FileStore) save() error {
	raw, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "" {
		//nolint:gosec // G301: data directory is shared with the operator
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("store: ensure dir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("store: write: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) GetAll(ctx context.Context, collection string) ([]Item, error) {
	if collection == "" {
		return nil, ErrInvalidCollection
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	items := make([]Item, 0, len(f.data[collection]))
	for id, data := range f.data[collection] {
		items = append(items, Item{ID: id, Data: append(json.RawMessage(nil), data...)})
	}
	return items, nil
}

func (f *FileStore) Put(ctx context.Context, collection string, item Item) error {
	if err := validate(collection, item.ID); err != nil {
		return err
	}
	if !json.Valid(item.Data) {
		return fmt.Errorf("store: item %s is not valid JSON", item.ID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.data[collection]
	if !ok {
		c = make(map[string]json.RawMessage)
		f.data[collection] = c
	}
	prev, existed := c[item.ID]
	c[item.ID] = append(json.RawMessage(nil), item.Data...)
	if err := f.save(); err != nil {
		// Roll the map back so a later save cannot persist this write.
		switch {
		case existed:
			c[item.ID] = prev
		case len(c) == 1:
			delete(f.data, collection)
		default:
			delete(c, item.ID)
		}
		return err
	}
	return nil
}

func (f *FileStore) Delete(ctx context.Context, collection, id string) error {
	if err := validate(collection, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.data[collection]
	if !ok {
		return nil
	}
	prev, exists := c[id]
	if !exists {
		return nil
	}
	delete(c, id)
	if err := f.save(); err != nil {
		c[id] = prev
		return err
	}
	return nil
}

func (f *FileStore) NewID() string {
	return newID()
}
