// Package artifacts stores generated documents behind a small
// filesystem-like interface with local, in-memory, S3 and GCS backends.
//
// Paths are slash-separated and relative, e.g. "designs/dark-mode/design.md".
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrNotExist    = errors.New("artifacts: file does not exist")
	ErrInvalidPath = errors.New("artifacts: invalid path")
)

// FS is the artifact collaborator.
type FS interface {
	MkdirAll(ctx context.Context, dir string) error
	WriteFile(ctx context.Context, name string, data []byte) error
	// ReadFile returns ErrNotExist for a missing file.
	ReadFile(ctx context.Context, name string) ([]byte, error)
	Exists(ctx context.Context, name string) (bool, error)
	// Delete returns ErrNotExist for a missing file.
	Delete(ctx context.Context, name string) error
}

// cleanPath normalizes name and rejects absolute paths and paths that
// escape the root.
func cleanPath(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return cleaned, nil
}
