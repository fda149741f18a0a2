package store

import (
	"context"
	"sync"
)

// MemoryStore keeps collections in process memory, preserving insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	order []string
	items map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) GetAll(ctx context.Context, collection string) ([]Item, error) {
	if collection == "" {
		return nil, ErrInvalidCollection
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return []Item{}, nil
	}
	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		data := make([]byte, len(c.items[id]))
		copy(data, c.items[id])
		out = append(out, Item{ID: id, Data: data})
	}
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, collection string, item Item) error {
	if err := validate(collection, item.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		c = &memCollection{items: make(map[string][]byte)}
		s.collections[collection] = c
	}
	if _, exists := c.items[item.ID]; !exists {
		c.order = append(c.order, item.ID)
	}
	data := make([]byte, len(item.Data))
	copy(data, item.Data)
	c.items[item.ID] = data
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := validate(collection, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	if _, exists := c.items[id]; !exists {
		return nil
	}
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) NewID() string {
	return newID()
}
