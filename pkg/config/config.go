// Package config is the kernel's ambient configuration layer: an
// environment-variable-driven, typed Config struct with sane defaults
// and no external config service. None of these settings influence the
// correctness of the core invariants — they select ambient backends
// only.
package config

import (
	"os"
	"strconv"
)

// LockBackend names a klock.Locker implementation. The kernel does not
// read this setting: session ledgers always lock with klock.DirLock.
type LockBackend string

const (
	LockBackendFile  LockBackend = "file"
	LockBackendRedis LockBackend = "redis"
)

// ArchiveBackend selects the optional off-box archival target for
// exported attestation bundles and HALT reports.
type ArchiveBackend string

const (
	ArchiveBackendNone ArchiveBackend = "none"
	ArchiveBackendS3   ArchiveBackend = "s3"
	ArchiveBackendGCS  ArchiveBackend = "gcs"
)

// Config holds every environment-derived setting the kernel reads.
type Config struct {
	// AttestationSecret, DebugStack and OperatorJWTSecret are the
	// variables that influence observable behavior; everything else below
	// is ambient topology.
	AttestationSecret string
	DebugStack        bool

	// OperatorJWTSecret, when set, turns on JWT-bound operator identity
	// for the trust boundary: approval tools then resolve the approver
	// from a verified bearer token instead of a caller-supplied id.
	OperatorJWTSecret string

	LockBackend   LockBackend
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ForensicIndexEnabled records KAIZA_FORENSIC_INDEX. The kernel does
	// not read it: replay_execution always refreshes the forensic index.
	ForensicIndexEnabled bool

	ArchiveBackend ArchiveBackend
	ArchiveBucket  string
	ArchiveRegion  string

	// FileError records a KAIZA_CONFIG file that could not be applied;
	// the environment-derived values above remain in effect.
	FileError error
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	c := &Config{
		AttestationSecret:    os.Getenv("KAIZA_ATTESTATION_SECRET"),
		DebugStack:           os.Getenv("DEBUG_STACK") == "true",
		OperatorJWTSecret:    os.Getenv("KAIZA_OPERATOR_JWT_SECRET"),
		LockBackend:          LockBackend(envOr("KAIZA_LOCK_BACKEND", string(LockBackendFile))),
		RedisAddr:            envOr("KAIZA_REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("KAIZA_REDIS_PASSWORD"),
		ForensicIndexEnabled: envOr("KAIZA_FORENSIC_INDEX", "on") != "off",
		ArchiveBackend:       ArchiveBackend(envOr("KAIZA_ARCHIVE_BACKEND", string(ArchiveBackendNone))),
		ArchiveBucket:        os.Getenv("KAIZA_ARCHIVE_BUCKET"),
		ArchiveRegion:        os.Getenv("KAIZA_ARCHIVE_REGION"),
	}
	if db, err := strconv.Atoi(os.Getenv("KAIZA_REDIS_DB")); err == nil {
		c.RedisDB = db
	}
	if path := os.Getenv("KAIZA_CONFIG"); path != "" {
		if err := applyFile(c, path); err != nil {
			// Environment wins when the file is broken; the error is
			// surfaced so serve-time logging can report it.
			c.FileError = err
		}
	}
	return c
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
