package artifacts

import (
	"context"
	"fmt"
)

// Backend names an artifact storage backend.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendMemory Backend = "memory"
	BackendS3     Backend = "s3"
	BackendGCS    Backend = "gcs"
)

// GCSConfig holds configuration for the GCS backend.
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Config selects and configures a backend.
type Config struct {
	Backend Backend   `yaml:"backend"`
	Root    string    `yaml:"root"` // local backend
	S3      S3Config  `yaml:"s3"`
	GCS     GCSConfig `yaml:"gcs"`
}

// NewFromConfig builds the configured artifact store. The local backend is
// the default.
func NewFromConfig(ctx context.Context, cfg Config) (FS, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		root := cfg.Root
		if root == "" {
			root = "."
		}
		return NewLocalFS(root)
	case BackendMemory:
		return NewMemFS(), nil
	case BackendS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("artifacts: s3 bucket is required for S3 storage")
		}
		region := cfg.S3.Region
		if region == "" {
			region = "us-east-1"
		}
		s3cfg := cfg.S3
		s3cfg.Region = region
		return NewS3FS(ctx, s3cfg)
	case BackendGCS:
		if cfg.GCS.Bucket == "" {
			return nil, fmt.Errorf("artifacts: gcs bucket is required for GCS storage")
		}
		return newGCS(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported artifact storage type: %s", cfg.Backend)
	}
}
