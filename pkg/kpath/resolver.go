// Package kpath is the canonical path resolver: it locks a workspace
// root exactly once per session and resolves every filesystem reference
// the kernel makes to an absolute, symlink-resolved form beneath that
// root.
package kpath

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

var hex64RE = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Resolver is the session-scoped path authority. Zero value is usable;
// the root must be locked exactly once via Lock.
type Resolver struct {
	mu     sync.RWMutex
	root   string
	locked bool
}

// New returns an unlocked Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Lock locks the workspace root for the lifetime of the Resolver. The
// candidate must be an absolute path; it is normalized and
// symlink-resolved to its canonical real path. A second call always
// fails with SESSION_ALREADY_INITIALIZED, even with the same candidate.
func (r *Resolver) Lock(candidate string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locked {
		return "", kerr.New(kerr.CodeSessionAlreadyInitialized, "workspace root already locked")
	}
	if !filepath.IsAbs(candidate) {
		return "", kerr.New(kerr.CodeInvalidPath, "workspace root must be an absolute path")
	}

	real, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", kerr.New(kerr.CodeInvalidPath, "cannot resolve workspace root", kerr.WithCause(err))
	}

	r.root = filepath.Clean(real)
	r.locked = true
	return r.root, nil
}

// Root returns the locked workspace root, failing if not yet locked.
func (r *Resolver) Root() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.locked {
		return "", kerr.New(kerr.CodeSessionNotInitialized, "workspace root not yet locked")
	}
	return r.root, nil
}

// KaizaDir returns <root>/.kaiza.
func (r *Resolver) KaizaDir() (string, error) {
	root, err := r.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ".kaiza"), nil
}

// PlansDir returns <root>/docs/plans.
func (r *Resolver) PlansDir() (string, error) {
	root, err := r.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "docs", "plans"), nil
}

// ProposalsDir returns <root>/docs/proposals.
func (r *Resolver) ProposalsDir() (string, error) {
	root, err := r.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "docs", "proposals"), nil
}

// ReportsDir returns <root>/docs/reports.
func (r *Resolver) ReportsDir() (string, error) {
	root, err := r.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "docs", "reports"), nil
}

// AuditLogPath returns <root>/.kaiza/audit.log.
func (r *Resolver) AuditLogPath() (string, error) {
	dir, err := r.KaizaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.log"), nil
}

// AuditLockPath returns <root>/.kaiza/audit.lock.
func (r *Resolver) AuditLockPath() (string, error) {
	dir, err := r.KaizaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.lock"), nil
}

// KillSwitchPath returns <root>/.kaiza/kill_switch.json.
func (r *Resolver) KillSwitchPath() (string, error) {
	dir, err := r.KaizaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "kill_switch.json"), nil
}

// AttestationSecretPath returns <root>/.kaiza/attestation_secret.json.
func (r *Resolver) AttestationSecretPath() (string, error) {
	dir, err := r.KaizaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "attestation_secret.json"), nil
}

// ProposalsIndexPath returns <root>/.kaiza/proposals-index.jsonl.
func (r *Resolver) ProposalsIndexPath() (string, error) {
	dir, err := r.KaizaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "proposals-index.jsonl"), nil
}

// ProposalApprovalsPath returns <root>/.kaiza/proposal-approvals.jsonl.
func (r *Resolver) ProposalApprovalsPath() (string, error) {
	dir, err := r.KaizaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "proposal-approvals.jsonl"), nil
}

// ForensicIndexPath returns <root>/.kaiza/forensic_index.db.
func (r *Resolver) ForensicIndexPath() (string, error) {
	dir, err := r.KaizaDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "forensic_index.db"), nil
}

// ResolveWriteTarget normalizes a relative-or-absolute path and returns
// the absolute path beneath the workspace root. Any ".." escape, or any
// absolute path outside the root, is rejected.
func (r *Resolver) ResolveWriteTarget(relOrAbs string) (string, error) {
	root, err := r.Root()
	if err != nil {
		return "", err
	}
	if relOrAbs == "" {
		return "", kerr.New(kerr.CodeInvalidPath, "empty path")
	}

	var candidate string
	if filepath.IsAbs(relOrAbs) {
		candidate = filepath.Clean(relOrAbs)
	} else {
		candidate = filepath.Join(root, relOrAbs)
	}

	if !withinRoot(root, candidate) {
		return "", kerr.New(kerr.CodePathTraversalBlocked, fmt.Sprintf("path escapes workspace root: %s", relOrAbs))
	}

	// Resolve symlinks on the parent directory chain (the target itself
	// may not exist yet for CREATE operations).
	resolved, err := resolveExistingAncestor(candidate)
	if err != nil {
		return "", kerr.New(kerr.CodeInvalidPath, "cannot resolve path", kerr.WithCause(err))
	}
	if !withinRoot(root, resolved) {
		return "", kerr.New(kerr.CodePathTraversalBlocked, "symlink escapes workspace root")
	}

	return candidate, nil
}

// RelativeToRoot returns path relative to the locked workspace root,
// using forward slashes regardless of OS.
func (r *Resolver) RelativeToRoot(absPath string) (string, error) {
	root, err := r.Root()
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return "", kerr.New(kerr.CodeInvalidPath, "cannot compute relative path", kerr.WithCause(err))
	}
	return filepath.ToSlash(rel), nil
}

// ResolvePlanPath returns <plans_dir>/<plan_hash>.md, refusing inputs
// that are not exactly 64 lowercase hex characters.
func (r *Resolver) ResolvePlanPath(planHash string) (string, error) {
	if !hex64RE.MatchString(planHash) {
		return "", kerr.New(kerr.CodeInvalidPath, "plan hash must be 64 lowercase hex characters")
	}
	dir, err := r.PlansDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, planHash+".md"), nil
}

func withinRoot(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExistingAncestor symlink-resolves the longest existing prefix of
// path, then rejoins the remaining (possibly nonexistent) suffix.
func resolveExistingAncestor(path string) (string, error) {
	dir := path
	var suffix []string
	for {
		real, err := filepath.EvalSymlinks(dir)
		if err == nil {
			joined := append([]string{real}, suffix...)
			return filepath.Join(joined...), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding an existing ancestor.
			return path, nil
		}
		suffix = append([]string{filepath.Base(dir)}, suffix...)
		dir = parent
	}
}
