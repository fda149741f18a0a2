package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalFS stores artifacts under a root directory on disk.
type LocalFS struct {
	root string
}

// NewLocalFS creates the root directory if needed.
func NewLocalFS(root string) (*LocalFS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("artifacts: resolve root: %w", err)
	}
	//nolint:gosec // G301: artifact directory is shared with readers
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &LocalFS{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *LocalFS) Root() string { return l.root }

func (l *LocalFS) resolve(name string) (string, error) {
	cleaned, err := cleanPath(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(cleaned)), nil
}

func (l *LocalFS) MkdirAll(_ context.Context, dir string) error {
	full, err := l.resolve(dir)
	if err != nil {
		return err
	}
	//nolint:gosec // G301
	return os.MkdirAll(full, 0755)
}

// WriteFile writes through a temp file and rename so readers never see a
// partial document.
func (l *LocalFS) WriteFile(_ context.Context, name string, data []byte) error {
	full, err := l.resolve(name)
	if err != nil {
		return err
	}
	//nolint:gosec // G301
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("artifacts: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("artifacts: create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("artifacts: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifacts: close: %w", err)
	}
	//nolint:gosec // G302: documents are world-readable
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("artifacts: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("artifacts: rename: %w", err)
	}
	return nil
}

func (l *LocalFS) ReadFile(_ context.Context, name string) ([]byte, error) {
	full, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G304: path is confined to root by resolve
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return data, err
}

func (l *LocalFS) Exists(_ context.Context, name string) (bool, error) {
	full, err := l.resolve(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	default:
		return !info.IsDir(), nil
	}
}

// Delete removes the file and then its parent directory if that is now
// empty.
func (l *LocalFS) Delete(_ context.Context, name string) error {
	full, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, name)
		}
		return fmt.Errorf("artifacts: delete: %w", err)
	}
	if dir := filepath.Dir(full); dir != l.root {
		_ = os.Remove(dir) // fails while non-empty
	}
	return nil
}
