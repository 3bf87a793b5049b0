package kaudit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/kaiza-dev/kaiza/pkg/canonicalize"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/klock"
)

// WriteRequest carries the caller-supplied fields for one audit entry.
// Seq, PrevHash, EntryHash and TS are computed by the Ledger itself.
type WriteRequest struct {
	SessionID     string
	Role          string
	WorkspaceRoot string
	Tool          string
	Intent        string
	PlanHash      string
	PhaseID       string
	ArgsHash      string
	Result        Result
	ErrorCode     string
	InvariantID   string
	ResultHash    string
	Notes         string
	Args          map[string]interface{}
}

// Ledger is the file-backed, lock-guarded, append-only audit log. Each
// write acquires the Locker, reads the last line for continuity,
// computes the new entry's hash over its canonical form with entry_hash
// cleared, and appends a single line before releasing the lock.
type Ledger struct {
	mu   sync.Mutex
	path string
	lock klock.Locker
}

// New returns a Ledger appending to path, serialized by lock.
func New(path string, lock klock.Locker) *Ledger {
	return &Ledger{path: path, lock: lock}
}

// Append writes one entry to the ledger and returns it with Seq,
// PrevHash, EntryHash and TS populated. The in-process mutex plus the
// Locker together serialize writers within and across processes.
func (l *Ledger) Append(ctx context.Context, req WriteRequest) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	release, err := l.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return l.appendLocked(req, false)
}

// AppendBuffered is identical to Append but marks the entry as having
// been produced before session initialization, for entries flushed by Buffer.Flush.
func (l *Ledger) AppendBuffered(ctx context.Context, req WriteRequest) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	release, err := l.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return l.appendLocked(req, true)
}

func (l *Ledger) appendLocked(req WriteRequest, buffered bool) (*Entry, error) {
	lastSeq, lastHash, err := l.tail()
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		TS:            time.Now().UTC(),
		Seq:           lastSeq + 1,
		PrevHash:      lastHash,
		SessionID:     req.SessionID,
		Role:          req.Role,
		WorkspaceRoot: req.WorkspaceRoot,
		Tool:          req.Tool,
		Intent:        req.Intent,
		PlanHash:      req.PlanHash,
		PhaseID:       req.PhaseID,
		ArgsHash:      req.ArgsHash,
		Result:        req.Result,
		ErrorCode:     req.ErrorCode,
		InvariantID:   req.InvariantID,
		ResultHash:    req.ResultHash,
		Notes:         req.Notes,
		Buffered:      buffered,
		Args:          RedactArgs(req.Args),
	}

	hash, err := entryHash(entry)
	if err != nil {
		return nil, kerr.New(kerr.CodeAuditAppendFailed, "cannot canonicalize audit entry", kerr.WithCause(err))
	}
	entry.EntryHash = hash

	if err := l.writeLine(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// entryHash computes SHA-256 over the entry's canonical JSON form with
// entry_hash cleared, so the stored hash never depends on itself.
func entryHash(e *Entry) (string, error) {
	copied := *e
	copied.EntryHash = ""
	return canonicalize.CanonicalHash(copied)
}

func (l *Ledger) writeLine(entry *Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return kerr.New(kerr.CodeAuditAppendFailed, "cannot marshal audit entry", kerr.WithCause(err))
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return kerr.New(kerr.CodeAuditAppendFailed, "cannot open audit log", kerr.WithCause(err))
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return kerr.New(kerr.CodeAuditAppendFailed, "cannot append audit entry", kerr.WithCause(err))
	}
	return f.Sync()
}

// tail returns the seq and entry_hash of the last line, or (0, GENESIS)
// if the ledger is empty or does not yet exist.
func (l *Ledger) tail() (uint64, string, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return 0, GenesisHash, nil
	}
	if err != nil {
		return 0, "", kerr.New(kerr.CodeAuditAppendFailed, "cannot open audit log", kerr.WithCause(err))
	}
	defer f.Close()

	var last Entry
	found := false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return 0, "", kerr.New(kerr.CodeAuditAppendFailed, "corrupt audit log: unparseable line", kerr.WithCause(err))
		}
		last = e
		found = true
	}
	if err := scanner.Err(); err != nil {
		return 0, "", kerr.New(kerr.CodeAuditAppendFailed, "cannot scan audit log", kerr.WithCause(err))
	}
	if !found {
		return 0, GenesisHash, nil
	}
	return last.Seq, last.EntryHash, nil
}

// ReadAll returns every entry in the ledger in append order.
func (l *Ledger) ReadAll() ([]Entry, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, kerr.New(kerr.CodeFileReadFailed, "cannot open audit log", kerr.WithCause(err))
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, kerr.New(kerr.CodeAuditAppendFailed, "corrupt audit log: unparseable line", kerr.WithCause(err))
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, kerr.New(kerr.CodeFileReadFailed, "cannot scan audit log", kerr.WithCause(err))
	}
	return entries, nil
}

// ReadRawLines returns every non-empty line of the ledger verbatim,
// without parsing. Used by fault-tolerant consumers (the replay and
// forensics engine) that must surface a malformed line as a tamper
// finding rather than fail outright.
func (l *Ledger) ReadRawLines() ([]string, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, kerr.New(kerr.CodeFileReadFailed, "cannot open audit log", kerr.WithCause(err))
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, kerr.New(kerr.CodeFileReadFailed, "cannot scan audit log", kerr.WithCause(err))
	}
	return lines, nil
}
