package kkill

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// RequiredVerifications are the three checks that must each be recorded
// as passed before unlock_kill_switch is allowed to succeed.
var RequiredVerifications = []string{
	"audit_verify",
	"plan_lint_all",
	"maturity_recompute",
}

// State is the persisted kill-switch record at
// .kaiza/kill_switch.json. It survives process restart.
type State struct {
	Engaged               bool        `json:"engaged"`
	Timestamp             time.Time   `json:"timestamp"`
	TriggerFailureIDs     []FailureID `json:"trigger_failure_ids"`
	TriggerInvariantIDs   []string    `json:"trigger_invariant_ids"`
	TriggerReason         string      `json:"trigger_reason"`
	VerificationsRequired []string    `json:"verifications_required"`
	VerificationsPassed   []string    `json:"verifications_passed"`
}

// Switch is the process-local handle on a workspace's persisted
// kill-switch state. Reads go to disk on every tool call; writes always
// go through Engage, RecordVerification or Unlock so the file is never
// partially updated.
type Switch struct {
	mu   sync.Mutex
	path string
}

// New returns a Switch backed by the kill_switch.json at path.
func New(path string) *Switch {
	return &Switch{path: path}
}

// Read loads the current state from disk, returning a disengaged zero
// State if the file does not yet exist.
func (s *Switch) Read() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *Switch) readLocked() (*State, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, kerr.New(kerr.CodeFileReadFailed, "cannot read kill-switch state", kerr.WithCause(err))
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, kerr.New(kerr.CodeInternalError, "corrupt kill-switch state", kerr.WithCause(err))
	}
	return &st, nil
}

func (s *Switch) writeLocked(st *State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return kerr.New(kerr.CodeFileWriteFailed, "cannot create .kaiza dir", kerr.WithCause(err))
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return kerr.New(kerr.CodeInternalError, "cannot marshal kill-switch state", kerr.WithCause(err))
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return kerr.New(kerr.CodeFileWriteFailed, "cannot persist kill-switch state", kerr.WithCause(err))
	}
	return nil
}

// IsEngaged reports the current engagement flag.
func (s *Switch) IsEngaged() (bool, error) {
	st, err := s.Read()
	if err != nil {
		return false, err
	}
	return st.Engaged, nil
}

// Engage persists engagement, triggered by a critical-invariant breach,
// audit tamper, or explicit OWNER-role invocation. The
// write must precede the return of whichever handler triggered it.
func (s *Switch) Engage(failureIDs []FailureID, invariantIDs []string, reason string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &State{
		Engaged:               true,
		Timestamp:             time.Now().UTC(),
		TriggerFailureIDs:     failureIDs,
		TriggerInvariantIDs:   invariantIDs,
		TriggerReason:         reason,
		VerificationsRequired: append([]string(nil), RequiredVerifications...),
	}
	if err := s.writeLocked(st); err != nil {
		return nil, err
	}
	return st, nil
}

// RecordVerification marks one of RequiredVerifications as passed,
// idempotently. Unknown verification names are rejected.
func (s *Switch) RecordVerification(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := false
	for _, v := range RequiredVerifications {
		if v == name {
			known = true
			break
		}
	}
	if !known {
		return kerr.New(kerr.CodeInvalidInputValue, "unknown recovery verification: "+name)
	}

	st, err := s.readLocked()
	if err != nil {
		return err
	}
	for _, v := range st.VerificationsPassed {
		if v == name {
			return nil
		}
	}
	st.VerificationsPassed = append(st.VerificationsPassed, name)
	return s.writeLocked(st)
}

// Unlock disengages the switch once every RequiredVerifications entry
// is present in VerificationsPassed. Missing any refuses with
// INVARIANT_VIOLATION.
func (s *Switch) Unlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.readLocked()
	if err != nil {
		return err
	}
	if !st.Engaged {
		return kerr.New(kerr.CodeInvalidInputValue, "kill-switch is not engaged")
	}

	passed := make(map[string]bool, len(st.VerificationsPassed))
	for _, v := range st.VerificationsPassed {
		passed[v] = true
	}
	var missing []string
	for _, req := range RequiredVerifications {
		if !passed[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return kerr.New(kerr.CodeInvariantViolation, "cannot unlock: missing recovery verifications: "+joinComma(missing))
	}

	st.Engaged = false
	return s.writeLocked(st)
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
