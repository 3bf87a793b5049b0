package kreplay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
)

// ForensicIndex is a derived, rebuildable sqlite acceleration structure
// over the JSONL audit ledger. It is never consulted for authority
// decisions, only for fast filtered replay queries; the ledger itself
// remains the sole source of truth.
type ForensicIndex struct {
	db *sql.DB
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	seq INTEGER PRIMARY KEY,
	ts TEXT NOT NULL,
	tool TEXT NOT NULL,
	plan_hash TEXT,
	phase_id TEXT,
	result TEXT NOT NULL,
	error_code TEXT
);
CREATE INDEX IF NOT EXISTS idx_plan_hash ON ledger_entries(plan_hash);
CREATE INDEX IF NOT EXISTS idx_phase_id ON ledger_entries(phase_id);
CREATE INDEX IF NOT EXISTS idx_tool ON ledger_entries(tool);
`

// OpenForensicIndex opens (creating if absent) the sqlite database at
// path and ensures its schema exists. The caller is responsible for
// calling Rebuild before relying on query results, since the index does
// not auto-sync with ledger appends.
func OpenForensicIndex(path string) (*ForensicIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kreplay: open forensic index: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("kreplay: init forensic index schema: %w", err)
	}
	return &ForensicIndex{db: db}, nil
}

// Close releases the underlying database handle.
func (fi *ForensicIndex) Close() error { return fi.db.Close() }

// Rebuild drops and repopulates the index from entries read straight
// off the ledger. It is safe to call repeatedly; each call produces
// byte-for-byte the same rows for the same ledger contents.
func (fi *ForensicIndex) Rebuild(ctx context.Context, entries []kaudit.Entry) error {
	tx, err := fi.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kreplay: begin index rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries`); err != nil {
		return fmt.Errorf("kreplay: clear forensic index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_entries
		(seq, ts, tool, plan_hash, phase_id, result, error_code)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("kreplay: prepare index insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		ts := e.TS.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.ExecContext(ctx, e.Seq, ts, e.Tool, e.PlanHash, e.PhaseID, string(e.Result), e.ErrorCode); err != nil {
			return fmt.Errorf("kreplay: index insert seq=%d: %w", e.Seq, err)
		}
	}
	return tx.Commit()
}

// QuerySeqs returns the sequence numbers matching filter, read from the
// index rather than a full ledger scan. Callers still fetch full entries
// from the ledger itself; the index only accelerates the "which seqs
// match" step for large ledgers.
func (fi *ForensicIndex) QuerySeqs(ctx context.Context, filter Filter) ([]uint64, error) {
	query := `SELECT seq FROM ledger_entries WHERE 1=1`
	var args []interface{}
	if filter.PlanHash != "" {
		query += ` AND plan_hash = ?`
		args = append(args, filter.PlanHash)
	}
	if filter.PhaseID != "" {
		query += ` AND phase_id = ?`
		args = append(args, filter.PhaseID)
	}
	if filter.Tool != "" {
		query += ` AND tool = ?`
		args = append(args, filter.Tool)
	}
	if filter.SeqMin != 0 {
		query += ` AND seq >= ?`
		args = append(args, filter.SeqMin)
	}
	if filter.SeqMax != 0 {
		query += ` AND seq <= ?`
		args = append(args, filter.SeqMax)
	}
	query += ` ORDER BY seq ASC`

	rows, err := fi.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("kreplay: query forensic index: %w", err)
	}
	defer rows.Close()

	var seqs []uint64
	for rows.Next() {
		var seq uint64
		if err := rows.Scan(&seq); err != nil {
			return nil, fmt.Errorf("kreplay: scan forensic index row: %w", err)
		}
		seqs = append(seqs, seq)
	}
	return seqs, rows.Err()
}
