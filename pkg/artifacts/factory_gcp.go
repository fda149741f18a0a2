//go:build gcp

package artifacts

import "context"

func newGCS(ctx context.Context, cfg GCSConfig) (FS, error) {
	return NewGCSFS(ctx, cfg)
}
