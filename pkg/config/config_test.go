package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kaiza-dev/kaiza/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KAIZA_ATTESTATION_SECRET", "")
	t.Setenv("DEBUG_STACK", "")
	t.Setenv("KAIZA_LOCK_BACKEND", "")
	t.Setenv("KAIZA_FORENSIC_INDEX", "")
	t.Setenv("KAIZA_ARCHIVE_BACKEND", "")
	t.Setenv("KAIZA_CONFIG", "")

	cfg := config.Load()

	assert.Equal(t, "", cfg.AttestationSecret)
	assert.False(t, cfg.DebugStack)
	assert.Equal(t, config.LockBackendFile, cfg.LockBackend)
	assert.True(t, cfg.ForensicIndexEnabled)
	assert.Equal(t, config.ArchiveBackendNone, cfg.ArchiveBackend)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAIZA_ATTESTATION_SECRET", "s3cr3t")
	t.Setenv("DEBUG_STACK", "true")
	t.Setenv("KAIZA_LOCK_BACKEND", "redis")
	t.Setenv("KAIZA_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("KAIZA_FORENSIC_INDEX", "off")
	t.Setenv("KAIZA_ARCHIVE_BACKEND", "s3")
	t.Setenv("KAIZA_ARCHIVE_BUCKET", "kaiza-archive")

	cfg := config.Load()

	assert.Equal(t, "s3cr3t", cfg.AttestationSecret)
	assert.True(t, cfg.DebugStack)
	assert.Equal(t, config.LockBackendRedis, cfg.LockBackend)
	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.False(t, cfg.ForensicIndexEnabled)
	assert.Equal(t, config.ArchiveBackendS3, cfg.ArchiveBackend)
	assert.Equal(t, "kaiza-archive", cfg.ArchiveBucket)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kaiza.yaml")
	body := "lock_backend: redis\nredis_addr: redis.file:6399\nforensic_index: false\narchive_backend: s3\narchive_bucket: from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("KAIZA_LOCK_BACKEND", "")
	t.Setenv("KAIZA_ARCHIVE_BACKEND", "")
	t.Setenv("KAIZA_ARCHIVE_BUCKET", "")
	t.Setenv("KAIZA_FORENSIC_INDEX", "")
	t.Setenv("KAIZA_CONFIG", path)

	cfg := config.Load()
	require.NoError(t, cfg.FileError)
	assert.Equal(t, config.LockBackendRedis, cfg.LockBackend)
	assert.Equal(t, "redis.file:6399", cfg.RedisAddr)
	assert.False(t, cfg.ForensicIndexEnabled)
	assert.Equal(t, config.ArchiveBackendS3, cfg.ArchiveBackend)
	assert.Equal(t, "from-file", cfg.ArchiveBucket)
}

func TestLoad_BrokenFileKeepsEnvValues(t *testing.T) {
	t.Setenv("KAIZA_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("KAIZA_LOCK_BACKEND", "")

	cfg := config.Load()
	assert.Error(t, cfg.FileError)
	assert.Equal(t, config.LockBackendFile, cfg.LockBackend)
}
