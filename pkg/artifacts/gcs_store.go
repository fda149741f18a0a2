//go:build gcp

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSFS stores artifacts as objects in a Google Cloud Storage bucket.
type GCSFS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSFS creates a GCS-backed artifact store using application default
// credentials.
func NewGCSFS(ctx context.Context, cfg GCSConfig) (*GCSFS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSFS{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (g *GCSFS) object(name string) (*storage.ObjectHandle, error) {
	p, err := cleanPath(name)
	if err != nil {
		return nil, err
	}
	return g.client.Bucket(g.bucket).Object(g.prefix + p), nil
}

func (g *GCSFS) MkdirAll(_ context.Context, dir string) error {
	_, err := cleanPath(dir)
	return err
}

func (g *GCSFS) WriteFile(ctx context.Context, name string, data []byte) error {
	obj, err := g.object(name)
	if err != nil {
		return err
	}
	w := obj.NewWriter(ctx)
	w.ContentType = "text/markdown; charset=utf-8"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed: %w", err)
	}
	return nil
}

func (g *GCSFS) ReadFile(ctx context.Context, name string) ([]byte, error) {
	obj, err := g.object(name)
	if err != nil {
		return nil, err
	}
	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
		}
		return nil, fmt.Errorf("gcs read failed for %s: %w", name, err)
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func (g *GCSFS) Exists(ctx context.Context, name string) (bool, error) {
	obj, err := g.object(name)
	if err != nil {
		return false, err
	}
	if _, err := obj.Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs attrs failed for %s: %w", name, err)
	}
	return true, nil
}

func (g *GCSFS) Delete(ctx context.Context, name string) error {
	obj, err := g.object(name)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, name)
		}
		return fmt.Errorf("gcs delete failed for %s: %w", name, err)
	}
	return nil
}

// Close releases the client.
func (g *GCSFS) Close() error {
	return g.client.Close()
}
