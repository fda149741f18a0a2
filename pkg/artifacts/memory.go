package artifacts

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemFS keeps artifacts in memory.
type MemFS struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) MkdirAll(_ context.Context, dir string) error {
	_, err := cleanPath(dir)
	return err
}

func (m *MemFS) WriteFile(_ context.Context, name string, data []byte) error {
	p, err := cleanPath(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = append([]byte(nil), data...)
	return nil
}

func (m *MemFS) ReadFile(_ context.Context, name string) ([]byte, error) {
	p, err := cleanPath(name)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemFS) Exists(_ context.Context, name string) (bool, error) {
	p, err := cleanPath(name)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[p]
	return ok, nil
}

func (m *MemFS) Delete(_ context.Context, name string) error {
	p, err := cleanPath(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[p]; !ok {
		return fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	delete(m.files, p)
	return nil
}

// Paths lists stored files in order.
func (m *MemFS) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
