package kplan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/kaiza-dev/kaiza/pkg/kcanon"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kpath"
)

// Registry stores and addresses plans exclusively by content hash,
// backed by the canonical path resolver. Name-based lookup does not
// exist.
type Registry struct {
	resolver *kpath.Resolver
}

// NewRegistry returns a Registry rooted at the session's locked
// workspace via resolver.
func NewRegistry(resolver *kpath.Resolver) *Registry {
	return &Registry{resolver: resolver}
}

// Hash returns the content-addressed plan hash for raw plan content.
func Hash(raw string) string {
	return kcanon.PlanHash(raw)
}

// Store writes a new plan document at its content-addressed path. If a
// plan with the same hash already exists, Store is a no-op as long as
// the stored content is byte-identical (idempotent re-submission);
// differing content at the same path is refused as a hash collision
// would indicate corruption, not a legitimate plan.
func (reg *Registry) Store(raw string) (string, error) {
	hash := Hash(raw)
	path, err := reg.resolver.ResolvePlanPath(hash)
	if err != nil {
		return "", err
	}

	if existing, err := os.ReadFile(path); err == nil {
		if string(existing) != raw {
			return "", kerr.New(kerr.CodeHashMismatch, "a different plan already occupies this hash's path")
		}
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", kerr.New(kerr.CodeFileWriteFailed, "cannot create plans directory", kerr.WithCause(err))
	}
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		return "", kerr.New(kerr.CodeFileWriteFailed, "cannot write plan", kerr.WithCause(err), kerr.WithPlanHash(hash))
	}
	return hash, nil
}

var headerReplaceRE = regexp.MustCompile(`(?s)<!--\s*KAIZA_PLAN_HASH:.*?-->\s*\n?`)

// Approve stamps the plan at hash with a `STATUS: APPROVED` header
// comment embedding the content hash. Approval is refused if the
// content does not re-hash to the claimed value, or if the plan fails
// Lint at approval time.
func (reg *Registry) Approve(hash string) error {
	raw, err := reg.readRaw(hash)
	if err != nil {
		return err
	}

	lint := Lint(raw)
	if !lint.Valid {
		return kerr.New(kerr.CodePlanEnforcementFailed, "plan fails lint at approval time", kerr.WithPlanHash(hash))
	}

	if Hash(raw) != hash {
		return kerr.New(kerr.CodeHashMismatch, "plan content does not match its address", kerr.WithPlanHash(hash))
	}

	stripped := headerReplaceRE.ReplaceAllString(raw, "")
	approved := fmt.Sprintf("<!-- KAIZA_PLAN_HASH: %s STATUS: APPROVED -->\n%s", hash, stripped)

	path, err := reg.resolver.ResolvePlanPath(hash)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(approved), 0o644); err != nil {
		return kerr.New(kerr.CodeFileWriteFailed, "cannot stamp plan approval", kerr.WithCause(err), kerr.WithPlanHash(hash))
	}
	return nil
}

// Load reads, parses, and fully re-verifies the plan at hash: the
// recomputed hash must equal both the filename stem and (when present)
// the header's embedded hash.
func (reg *Registry) Load(hash string) (*Plan, string, error) {
	raw, err := reg.readRaw(hash)
	if err != nil {
		return nil, "", err
	}

	recomputed := Hash(raw)
	if recomputed != hash {
		return nil, "", kerr.New(kerr.CodeHashMismatch, "plan content does not match its filename hash", kerr.WithPlanHash(hash))
	}

	p := Parse(raw)
	if p.Header.Hash != "" && p.Header.Hash != hash {
		return nil, "", kerr.New(kerr.CodeHashMismatch, "plan content does not match its embedded header hash", kerr.WithPlanHash(hash))
	}
	if p.Header.Status != "" {
		if err := checkSchemaCompatibility(p.Header); err != nil {
			return nil, "", err
		}
	}
	return p, raw, nil
}

// RequireApproved loads the plan at hash and refuses unless it is
// STATUS: APPROVED, hash-consistent, and still passes Lint.
func (reg *Registry) RequireApproved(hash string) (*Plan, error) {
	p, raw, err := reg.Load(hash)
	if err != nil {
		return nil, err
	}
	if p.Header.Status != StatusApproved {
		return nil, kerr.New(kerr.CodePlanNotApproved, "plan is not STATUS: APPROVED", kerr.WithPlanHash(hash))
	}
	lint := Lint(raw)
	if !lint.Valid {
		return nil, kerr.New(kerr.CodePlanEnforcementFailed, "approved plan no longer passes lint", kerr.WithPlanHash(hash))
	}
	return p, nil
}

func (reg *Registry) readRaw(hash string) (string, error) {
	path, err := reg.resolver.ResolvePlanPath(hash)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", kerr.New(kerr.CodeFileNotFound, "no plan at this hash", kerr.WithCause(err), kerr.WithPlanHash(hash))
		}
		return "", kerr.New(kerr.CodeFileReadFailed, "cannot read plan", kerr.WithCause(err), kerr.WithPlanHash(hash))
	}
	return string(b), nil
}

// checkSchemaCompatibility validates an optional `SchemaVersion` field
// the header may carry is at least parseable semver; plans predating
// schema versioning (the common case) carry no such field and are
// always compatible.
func checkSchemaCompatibility(h Header) error {
	if h.SchemaVersion == "" {
		return nil
	}
	if _, err := semver.NewVersion(h.SchemaVersion); err != nil {
		return kerr.New(kerr.CodeInvalidInputFormat, "plan header schema_version is not valid semver", kerr.WithCause(err))
	}
	return nil
}
