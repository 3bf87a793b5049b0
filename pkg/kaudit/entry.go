// Package kaudit implements the append-only, hash-chained audit
// ledger: one JSON object per line, each carrying the SHA-256 of its
// canonical form and the hash of its predecessor, guarded by a
// klock.Locker.
package kaudit

import "time"

// Result is the fixed outcome enum for an audit entry.
type Result string

const (
	ResultOK    Result = "ok"
	ResultError Result = "error"
)

// Entry is one immutable, hash-chained JSON-Lines record.
type Entry struct {
	TS            time.Time              `json:"ts"`
	Seq           uint64                 `json:"seq"`
	PrevHash      string                 `json:"prev_hash"`
	EntryHash     string                 `json:"entry_hash"`
	SessionID     string                 `json:"session_id"`
	Role          string                 `json:"role"`
	WorkspaceRoot string                 `json:"workspace_root"`
	Tool          string                 `json:"tool"`
	Intent        string                 `json:"intent,omitempty"`
	PlanHash      string                 `json:"plan_hash,omitempty"`
	PhaseID       string                 `json:"phase_id,omitempty"`
	ArgsHash      string                 `json:"args_hash,omitempty"`
	Result        Result                 `json:"result"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	InvariantID   string                 `json:"invariant_id,omitempty"`
	ResultHash    string                 `json:"result_hash,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
	Buffered      bool                   `json:"buffered,omitempty"`
	Args          map[string]interface{} `json:"args,omitempty"`
}

// GenesisHash is the literal sentinel prev_hash for seq=1.
const GenesisHash = "GENESIS"
