//go:build gcp

package karchive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	kconfig "github.com/kaiza-dev/kaiza/pkg/config"
)

// gcsArchiver archives bundle/report bytes to Google Cloud Storage.
// Built under the "gcp" tag to keep the GCS SDK out of default builds.
type gcsArchiver struct {
	client *storage.Client
	bucket string
	prefix string
}

func newGCSArchiver(ctx context.Context, cfg *kconfig.Config) (Archiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("karchive: create GCS client: %w", err)
	}
	return &gcsArchiver{client: client, bucket: cfg.ArchiveBucket, prefix: "kaiza/"}, nil
}

func (a *gcsArchiver) Archive(ctx context.Context, name string, data []byte) error {
	w := a.client.Bucket(a.bucket).Object(a.prefix + name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("karchive: gcs write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("karchive: gcs close %s: %w", name, err)
	}
	return nil
}
