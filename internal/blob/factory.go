package blob

import (
	"fmt"

	"github.com/jmcgarr/nimbus/internal/config"
)

// NewStoreFromConfig creates a Store based on the configuration.
// Supported backends:
//   - "s3": AWS S3 or compatible storage (e.g., MinIO, Supabase Storage)
//   - "memory": In-memory storage for testing
func NewStoreFromConfig(cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case "s3", "":
		return NewS3Store(S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.BlobBucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
			PublicURL:    cfg.BlobPublicURL,
		})
	case "memory":
		return NewMemoryStore(cfg.BlobPublicURL), nil
	default:
		return nil, fmt.Errorf("unknown blob backend: %s (supported: s3, memory)", cfg.BlobBackend)
	}
}
