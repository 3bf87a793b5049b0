//go:build !gcp

package karchive

import (
	"context"
	"fmt"

	kconfig "github.com/kaiza-dev/kaiza/pkg/config"
)

func newGCSArchiver(ctx context.Context, cfg *kconfig.Config) (Archiver, error) {
	return nil, fmt.Errorf("karchive: GCS archival is not enabled in this build (use -tags gcp)")
}
