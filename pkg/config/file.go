package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML override file pointed to by KAIZA_CONFIG.
// Every field is optional; an unset field keeps the environment-derived
// value. The file never carries secrets — those stay in the environment
// or the attestation keystore.
type fileConfig struct {
	LockBackend    string `yaml:"lock_backend,omitempty"`
	RedisAddr      string `yaml:"redis_addr,omitempty"`
	RedisDB        *int   `yaml:"redis_db,omitempty"`
	ForensicIndex  *bool  `yaml:"forensic_index,omitempty"`
	ArchiveBackend string `yaml:"archive_backend,omitempty"`
	ArchiveBucket  string `yaml:"archive_bucket,omitempty"`
	ArchiveRegion  string `yaml:"archive_region,omitempty"`
}

// applyFile merges the YAML file at path over c. A missing file is not
// an error when implicit (empty path); a named-but-unreadable file is,
// so a deployment that points KAIZA_CONFIG somewhere broken fails loudly
// instead of silently running on defaults.
func applyFile(c *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fc.LockBackend != "" {
		c.LockBackend = LockBackend(fc.LockBackend)
	}
	if fc.RedisAddr != "" {
		c.RedisAddr = fc.RedisAddr
	}
	if fc.RedisDB != nil {
		c.RedisDB = *fc.RedisDB
	}
	if fc.ForensicIndex != nil {
		c.ForensicIndexEnabled = *fc.ForensicIndex
	}
	if fc.ArchiveBackend != "" {
		c.ArchiveBackend = ArchiveBackend(fc.ArchiveBackend)
	}
	if fc.ArchiveBucket != "" {
		c.ArchiveBucket = fc.ArchiveBucket
	}
	if fc.ArchiveRegion != "" {
		c.ArchiveRegion = fc.ArchiveRegion
	}
	return nil
}
