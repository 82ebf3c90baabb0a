package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/config"
)

// Open constructs the backend selected by cfg.Backend and wraps it.
func Open(ctx context.Context, cfg config.MediaConfig) (*Storage, error) {
	var backend ObjectStorage
	switch cfg.Backend {
	case "minio":
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("init minio: %w", err)
		}
		backend = client
	case "gcs":
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("init gcs: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unsupported media backend %q", cfg.Backend)
	}
	return NewStorage(backend, cfg.PublicBaseURL), nil
}

// Close releases the backend if it holds resources.
func (s *Storage) Close() error {
	if closer, ok := s.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
