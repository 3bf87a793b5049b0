package kreplay_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/klock"
	"github.com/kaiza-dev/kaiza/pkg/kreplay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*kaudit.Ledger, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "audit_log.jsonl")
	lock := klock.NewDirLock(filepath.Join(dir, "audit_log.lock"))
	return kaudit.New(path, lock), path
}

func TestEngine_CleanLedgerPasses(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Append(ctx, kaudit.WriteRequest{
		SessionID: "s1", Role: "EXECUTION", Tool: "write_file",
		PlanHash: "planhash123", PhaseID: "phase-1", ArgsHash: "a1",
		Result: kaudit.ResultOK, ResultHash: "deadbeef",
	})
	require.NoError(t, err)

	eng := kreplay.NewEngine(ledger)
	report, err := eng.Run(kreplay.Filter{})
	require.NoError(t, err)

	assert.Equal(t, kreplay.VerdictPass, report.Verdict)
	assert.Len(t, report.Timeline, 1)
}

func TestEngine_ExecutionWithoutPlanFails(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Append(ctx, kaudit.WriteRequest{
		SessionID: "s1", Role: "EXECUTION", Tool: "write_file",
		ArgsHash: "a1", Result: kaudit.ResultOK, ResultHash: "deadbeef",
	})
	require.NoError(t, err)

	eng := kreplay.NewEngine(ledger)
	report, err := eng.Run(kreplay.Filter{})
	require.NoError(t, err)

	assert.Equal(t, kreplay.VerdictFail, report.Verdict)
	found := false
	for _, f := range report.Findings {
		if f.Code == kreplay.CodeExecutionWithoutPlan {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEngine_TamperDetected(t *testing.T) {
	ledger, path := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Append(ctx, kaudit.WriteRequest{
		SessionID: "s1", Role: "EXECUTION", Tool: "write_file",
		PlanHash: "p1", PhaseID: "ph1", ArgsHash: "a1",
		Result: kaudit.ResultOK, ResultHash: "h1",
	})
	require.NoError(t, err)
	_, err = ledger.Append(ctx, kaudit.WriteRequest{
		SessionID: "s1", Role: "EXECUTION", Tool: "write_file",
		PlanHash: "p1", PhaseID: "ph1", ArgsHash: "a2",
		Result: kaudit.ResultOK, ResultHash: "h2",
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := []byte(string(raw) + `{"seq":999,"not":"json"` + "\n")
	require.NoError(t, os.WriteFile(path, tampered, 0o600))

	eng := kreplay.NewEngine(ledger)
	report, err := eng.Run(kreplay.Filter{})
	require.NoError(t, err)
	assert.Equal(t, kreplay.VerdictFail, report.Verdict)

	hasTamper := false
	for _, f := range report.Findings {
		if f.Family == kreplay.FamilyTamper {
			hasTamper = true
		}
	}
	assert.True(t, hasTamper)
}

func TestEngine_FilterByPlanHashWithNoMatches(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Append(ctx, kaudit.WriteRequest{
		SessionID: "s1", Role: "EXECUTION", Tool: "write_file",
		PlanHash: "p1", PhaseID: "ph1", ArgsHash: "a1",
		Result: kaudit.ResultOK, ResultHash: "h1",
	})
	require.NoError(t, err)

	eng := kreplay.NewEngine(ledger)
	report, err := eng.Run(kreplay.Filter{PlanHash: "nonexistent"})
	require.NoError(t, err)

	assert.Equal(t, kreplay.VerdictPass, report.Verdict)
	hasGap := false
	for _, f := range report.Findings {
		if f.Code == kreplay.CodeMissingEntries {
			hasGap = true
		}
	}
	assert.True(t, hasGap)
}
