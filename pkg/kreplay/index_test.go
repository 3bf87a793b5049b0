package kreplay

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// Exercises QuerySeqs' filter-to-SQL translation against a stubbed
// database handle rather than a real sqlite file. No test in the
// repository opens a real sqlite file through OpenForensicIndex.
func TestForensicIndex_QuerySeqs_PlanHashFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() { _ = db.Close() }()

	fi := &ForensicIndex{db: db}

	rows := sqlmock.NewRows([]string{"seq"}).AddRow(int64(1)).AddRow(int64(3))
	mock.ExpectQuery(`SELECT seq FROM ledger_entries WHERE 1=1 AND plan_hash = \? ORDER BY seq ASC`).
		WithArgs("sha256:deadbeef").
		WillReturnRows(rows)

	seqs, err := fi.QuerySeqs(context.Background(), Filter{PlanHash: "sha256:deadbeef"})
	if err != nil {
		t.Fatalf("QuerySeqs returned an unexpected error: %s", err)
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 3 {
		t.Fatalf("unexpected seqs: %v", seqs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %s", err)
	}
}

func TestForensicIndex_QuerySeqs_CombinedFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() { _ = db.Close() }()

	fi := &ForensicIndex{db: db}

	mock.ExpectQuery(`SELECT seq FROM ledger_entries WHERE 1=1 AND phase_id = \? AND tool = \? AND seq >= \? ORDER BY seq ASC`).
		WithArgs("phase-2", "write_file", uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}))

	seqs, err := fi.QuerySeqs(context.Background(), Filter{PhaseID: "phase-2", Tool: "write_file", SeqMin: 5})
	if err != nil {
		t.Fatalf("QuerySeqs returned an unexpected error: %s", err)
	}
	if len(seqs) != 0 {
		t.Fatalf("expected no rows, got %v", seqs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %s", err)
	}
}
