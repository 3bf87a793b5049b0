package kaudit

import "fmt"

// VerifyStatus is the coarse outcome of a ledger integrity check.
type VerifyStatus string

const (
	StatusValid   VerifyStatus = "VALID"
	StatusInvalid VerifyStatus = "INVALID"
	StatusEmpty   VerifyStatus = "EMPTY"
)

// Failure describes one broken invariant found while walking the chain.
type Failure struct {
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
}

// VerifyReport is the result of walking the full chain. A mutated byte
// that leaves its line valid JSON flips Valid to false and is named in
// Failures; a line that no longer parses as JSON is not reported here,
// because Verify then returns an error instead of a report.
type VerifyReport struct {
	Valid    bool         `json:"valid"`
	Status   VerifyStatus `json:"status"`
	Entries  int          `json:"entries"`
	Failures []Failure    `json:"failures"`
}

// Verify re-derives every entry's hash and checks seq continuity and
// prev_hash linkage. Every failure found is reported, not just the
// first, so a caller can see the full extent of tampering. A line that
// is not valid JSON stops the walk: Verify returns the read error and no
// report.
func (l *Ledger) Verify() (*VerifyReport, error) {
	entries, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	return verifyEntries(entries), nil
}

func verifyEntries(entries []Entry) *VerifyReport {
	report := &VerifyReport{Entries: len(entries)}
	if len(entries) == 0 {
		report.Valid = true
		report.Status = StatusEmpty
		return report
	}

	expectedPrev := GenesisHash
	var expectedSeq uint64 = 1
	for _, e := range entries {
		if e.Seq != expectedSeq {
			report.Failures = append(report.Failures, Failure{
				Seq:    e.Seq,
				Reason: fmt.Sprintf("seq discontinuity: expected %d, found %d", expectedSeq, e.Seq),
			})
		}
		if e.PrevHash != expectedPrev {
			report.Failures = append(report.Failures, Failure{
				Seq:    e.Seq,
				Reason: fmt.Sprintf("prev_hash mismatch: expected %s, found %s", expectedPrev, e.PrevHash),
			})
		}
		recomputed, err := entryHash(&e)
		if err != nil {
			report.Failures = append(report.Failures, Failure{
				Seq:    e.Seq,
				Reason: fmt.Sprintf("cannot recompute hash: %v", err),
			})
		} else if recomputed != e.EntryHash {
			report.Failures = append(report.Failures, Failure{
				Seq:    e.Seq,
				Reason: "entry_hash does not match recomputed canonical hash",
			})
		}

		expectedSeq = e.Seq + 1
		expectedPrev = e.EntryHash
	}

	report.Valid = len(report.Failures) == 0
	if report.Valid {
		report.Status = StatusValid
	} else {
		report.Status = StatusInvalid
	}
	return report
}
