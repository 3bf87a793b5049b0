package kreplay

import (
	"encoding/json"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
)

// Engine runs replay analysis against a live ledger, so callers (the
// replay CLI subcommand, kernelcore's forensics tool) never have to know
// how entries are read or verified.
type Engine struct {
	ledger *kaudit.Ledger
}

// NewEngine wraps ledger for replay analysis.
func NewEngine(ledger *kaudit.Ledger) *Engine {
	return &Engine{ledger: ledger}
}

// Run reads the ledger's current contents and returns the replay Report
// for filter. It never mutates the ledger.
func (e *Engine) Run(filter Filter) (*Report, error) {
	entries, err := e.ledger.ReadAll()
	if err != nil {
		// ReadAll fails closed on the first unparseable line; fall back to
		// the raw-line reader so a corrupt ledger still yields a report
		// carrying an INVALID_JSON finding instead of no report at all.
		rawLines, rawErr := e.ledger.ReadRawLines()
		if rawErr != nil {
			return nil, err
		}
		parseable, _ := parseLenient(rawLines)
		return Analyze(parseable, rawLines, nil, filter), nil
	}

	rawLines, err := e.ledger.ReadRawLines()
	if err != nil {
		return nil, err
	}

	verify, err := e.ledger.Verify()
	if err != nil {
		return nil, err
	}

	return Analyze(entries, rawLines, verify.Failures, filter), nil
}

// parseLenient parses as many raw lines as possible into entries,
// silently skipping ones that fail to unmarshal; the caller communicates
// the gap to the user via the rawLines/entries length mismatch that
// Analyze checks for.
func parseLenient(rawLines []string) ([]kaudit.Entry, int) {
	var entries []kaudit.Entry
	skipped := 0
	for _, line := range rawLines {
		var e kaudit.Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped
}
