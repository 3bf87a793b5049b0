// Package ksession implements the session/identity gate: it binds a
// workspace root and a role for the lifetime of a connection and
// refuses every tool but `initialize` until that binding exists. Events
// arriving before the binding land in a bounded pre-session buffer that
// is flushed into the ledger on initialize.
package ksession

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/klock"
	"github.com/kaiza-dev/kaiza/pkg/kpath"
)

// Session is the single, process-lifetime gate binding a role and a
// workspace root. The zero value is not usable; construct with New.
type Session struct {
	mu   sync.RWMutex
	id   string
	role Role

	initialized bool
	locked      bool

	resolver *kpath.Resolver
	ledger   *kaudit.Ledger
	buffer   *kaudit.Buffer

	lockerFactory func(path string) klock.Locker
}

// New returns an uninitialized Session with a freshly generated
// session_id (one per server process run) and an open pre-session
// buffer.
func New() *Session {
	return &Session{
		id:       uuid.NewString(),
		resolver: kpath.New(),
		buffer:   kaudit.NewBuffer(0),
		lockerFactory: func(path string) klock.Locker {
			return klock.NewDirLock(path)
		},
	}
}

// ID returns the session's UUID, stable for the process lifetime.
func (s *Session) ID() string {
	return s.id
}

// Initialize is the handler for the `initialize` tool: it locks the
// workspace root, binds the role, opens the audit ledger at the now-known
// path, and flushes any pre-session buffer into it. A second call always
// fails with SESSION_ALREADY_INITIALIZED, matching kpath.Resolver.Lock's
// single-shot semantics, even when given the same workspace_root.
func (s *Session) Initialize(ctx context.Context, workspaceRoot string, role Role) error {
	if !role.Valid() {
		return kerr.New(kerr.CodeInvalidInputValue, "role must be PLANNING or EXECUTION")
	}

	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return kerr.New(kerr.CodeSessionAlreadyInitialized, "session already bound to a workspace root")
	}
	s.mu.Unlock()

	root, err := s.resolver.Lock(workspaceRoot)
	if err != nil {
		return err
	}

	lockPath, err := s.resolver.AuditLockPath()
	if err != nil {
		return err
	}
	logPath, err := s.resolver.AuditLogPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return kerr.New(kerr.CodeFileWriteFailed, "cannot create workspace metadata directory", kerr.WithCause(err))
	}

	s.mu.Lock()
	s.role = role
	s.ledger = kaudit.New(logPath, s.lockerFactory(lockPath))
	s.initialized = true
	ledger := s.ledger
	s.mu.Unlock()

	if _, err := s.buffer.Flush(ctx, ledger); err != nil {
		return kerr.New(kerr.CodeAuditAppendFailed, "cannot flush pre-session buffer", kerr.WithCause(err), kerr.WithSessionID(s.id), kerr.WithWorkspaceRoot(root))
	}
	return nil
}

// RequireInitialized returns SESSION_NOT_INITIALIZED when the session
// has not yet been bound, the gate applied to every tool but
// `initialize` and the read-only/global tools.
func (s *Session) RequireInitialized() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return kerr.New(kerr.CodeSessionNotInitialized, "call initialize before any other tool")
	}
	return nil
}

// IsInitialized reports whether Initialize has succeeded.
func (s *Session) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Role returns the bound role, or "" if not yet initialized.
func (s *Session) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// WorkspaceRoot returns the locked workspace root, failing with
// SESSION_NOT_INITIALIZED if not yet bound.
func (s *Session) WorkspaceRoot() (string, error) {
	return s.resolver.Root()
}

// Resolver exposes the session's canonical path authority (C1).
func (s *Session) Resolver() *kpath.Resolver {
	return s.resolver
}

// Ledger returns the session's audit ledger, failing with
// SESSION_NOT_INITIALIZED if Initialize has not run.
func (s *Session) Ledger() (*kaudit.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, kerr.New(kerr.CodeSessionNotInitialized, "audit ledger not available before initialize")
	}
	return s.ledger, nil
}

// Buffer returns the pre-session event buffer. It remains readable after
// initialization (now always empty) so callers don't need to branch.
func (s *Session) Buffer() *kaudit.Buffer {
	return s.buffer
}

// Lock marks the session as hard-locked. Once locked, mutating tools
// must refuse regardless of role or kill-switch file state.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = true
}

// IsLocked reports the hard-lock flag.
func (s *Session) IsLocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked
}

// Unlock clears the hard-lock flag. Only unlock_kill_switch calls this,
// and only after the kill-switch's own Unlock has recorded every
// required recovery verification as passed.
func (s *Session) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
}

// AllowedTools returns the closed tool set visible to the bound role, or
// just the bootstrap tools if not yet initialized.
func (s *Session) AllowedTools() map[string]bool {
	if !s.IsInitialized() {
		return map[string]bool{"initialize": true}
	}
	return ToolsForRole(s.Role())
}
