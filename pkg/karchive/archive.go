// Package karchive is the kernel's optional off-box archival backend for
// exported attestation bundles and HALT reports. It is never consulted for
// authority decisions — the workspace-local copy under docs/reports/ and
// the ledger remain the sources of truth; archival is a best-effort
// durability mirror over named objects.
package karchive

import (
	"context"
	"fmt"

	"github.com/kaiza-dev/kaiza/pkg/config"
)

// Archiver persists a named artifact to an off-box destination. Archive
// must never block or fail a tool call on its own error; callers treat a
// non-nil error as something to log, not to propagate (mirroring how
// pkg/telemetry's tracing failures are handled — observability/archival
// must not become a new way to violate the kernel's fail-closed
// contract).
type Archiver interface {
	Archive(ctx context.Context, name string, data []byte) error
}

// NoopArchiver is used when config.ArchiveBackendNone is selected (the
// default). It performs no I/O and never errors.
type NoopArchiver struct{}

// Archive implements Archiver as a no-op.
func (NoopArchiver) Archive(ctx context.Context, name string, data []byte) error { return nil }

// New selects an Archiver implementation from cfg.ArchiveBackend. The
// "none" default returns a NoopArchiver; "s3" and "gcs" require a
// bucket.
func New(ctx context.Context, cfg *config.Config) (Archiver, error) {
	switch cfg.ArchiveBackend {
	case config.ArchiveBackendNone, "":
		return NoopArchiver{}, nil
	case config.ArchiveBackendS3:
		if cfg.ArchiveBucket == "" {
			return nil, fmt.Errorf("karchive: KAIZA_ARCHIVE_BUCKET is required for s3 archive backend")
		}
		return newS3Archiver(ctx, cfg)
	case config.ArchiveBackendGCS:
		if cfg.ArchiveBucket == "" {
			return nil, fmt.Errorf("karchive: KAIZA_ARCHIVE_BUCKET is required for gcs archive backend")
		}
		return newGCSArchiver(ctx, cfg)
	default:
		return nil, fmt.Errorf("karchive: unsupported archive backend %q", cfg.ArchiveBackend)
	}
}
