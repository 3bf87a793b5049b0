package karchive_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiza-dev/kaiza/pkg/config"
	"github.com/kaiza-dev/kaiza/pkg/karchive"
)

func TestNew_DefaultsToNoop(t *testing.T) {
	cfg := &config.Config{ArchiveBackend: config.ArchiveBackendNone}
	a, err := karchive.New(context.Background(), cfg)
	require.NoError(t, err)

	assert.NoError(t, a.Archive(context.Background(), "bundle.json", []byte("{}")))
}

func TestNew_S3RequiresBucket(t *testing.T) {
	cfg := &config.Config{ArchiveBackend: config.ArchiveBackendS3}
	_, err := karchive.New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_GCSRequiresBucket(t *testing.T) {
	cfg := &config.Config{ArchiveBackend: config.ArchiveBackendGCS}
	_, err := karchive.New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_UnknownBackendRejected(t *testing.T) {
	cfg := &config.Config{ArchiveBackend: config.ArchiveBackend("tape-drive")}
	_, err := karchive.New(context.Background(), cfg)
	assert.Error(t, err)
}
