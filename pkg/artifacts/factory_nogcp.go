//go:build !gcp

package artifacts

import (
	"context"
	"fmt"
)

func newGCS(_ context.Context, _ GCSConfig) (FS, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (use -tags gcp)")
}
