package kaiza_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiza-dev/kaiza/pkg/config"
	"github.com/kaiza-dev/kaiza/pkg/kaiza"
	"github.com/kaiza-dev/kaiza/pkg/kattest"
	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kkill"
	"github.com/kaiza-dev/kaiza/pkg/klock"
	"github.com/kaiza-dev/kaiza/pkg/kmaturity"
	"github.com/kaiza-dev/kaiza/pkg/kproposal"
)

const foundationPlan = `<!-- KAIZA_PLAN_HASH:  STATUS: DRAFT -->
# Foundation Plan

## Metadata
Title: Bootstrap
Description: Initial write enablement.

## Scope & Constraints
Scope MUST be limited to src/.

## Phase Definitions

### Phase: PHASE_1
- Phase ID: PHASE_1
- Objective: Create the initial source file
- Allowed Operations: CREATE
- Forbidden Operations: DELETE
- Required Intent Artifacts: src/a.txt.intent.md
- Verification Commands: go build ./...
- Expected Outcomes: file exists
- Failure Stop Conditions: build fails

## Path Allowlist
- src/*

## Verification Gates
All phases MUST pass verification commands.

## Forbidden Actions
Agents MUST NOT modify files outside the allowlist.

## Rollback Policy
Revert via git MUST be used on failure.
`

func intentFor(target, planHash, phase string) string {
	return fmt.Sprintf(`# Intent: %s

## Purpose
Create the initial source file for the bootstrap phase.

## Authority
- Plan Hash: %s
- Phase ID: %s

## Inputs
None.

## Outputs
%s is created with fixed content.

## Invariants
The file MUST contain exactly one line.

## Failure Modes
Write fails when the parent directory is missing.

## Debug Signals
Audit ledger entry with tool write_file.

## Out-of-Scope
Does not cover deletion or rename.
`, target, planHash, phase, target)
}

func newKernel(t *testing.T) *kaiza.Kernel {
	t.Helper()
	k, err := kaiza.New(config.Load(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close(context.Background()) })
	return k
}

func initialize(t *testing.T, k *kaiza.Kernel, ws, role string) {
	t.Helper()
	_, err := k.Dispatch(context.Background(), "initialize", map[string]interface{}{
		"workspace_root": ws, "role": role,
	})
	require.NoError(t, err)
}

// seedApprovedPlan runs a PLANNING session over ws and returns the
// approved plan's hash, driving the full two-step approval ceremony
// under an injected clock. A separate kernel stands in for the separate
// planning process that would normally have run first.
func seedApprovedPlan(t *testing.T, ws string) string {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	planner := newKernel(t).WithTrustClock(func() time.Time { return now })
	initialize(t, planner, ws, "PLANNING")

	result, err := planner.Dispatch(context.Background(), "bootstrap_create_foundation_plan", map[string]interface{}{
		"plan_content": foundationPlan,
	})
	require.NoError(t, err)
	step1 := result.(map[string]interface{})
	require.Equal(t, "CONFIRMATION_REQUIRED", step1["status"])
	token := step1["confirmation_token"].(string)

	now = now.Add(31 * time.Second)
	result, err = planner.Dispatch(context.Background(), "bootstrap_create_foundation_plan", map[string]interface{}{
		"plan_content":       foundationPlan,
		"confirmation_token": token,
	})
	require.NoError(t, err)
	out := result.(map[string]interface{})
	require.Equal(t, "APPROVED", out["status"])
	return out["plan_hash"].(string)
}

func TestDispatch_RefusesToolsBeforeInitialize(t *testing.T) {
	k := newKernel(t)
	_, err := k.Dispatch(context.Background(), "read_file", map[string]interface{}{"path": "x"})
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeSessionNotInitialized, env.ErrorCode)
}

func TestDispatch_PreSessionCallsAreBufferedThenFlushed(t *testing.T) {
	ws := t.TempDir()
	k := newKernel(t)

	_, err := k.Dispatch(context.Background(), "read_file", map[string]interface{}{"path": "x"})
	require.Error(t, err)

	initialize(t, k, ws, "EXECUTION")

	ledger, err := k.Session().Ledger()
	require.NoError(t, err)
	entries, err := ledger.ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.True(t, entries[0].Buffered, "the pre-session refusal should flush first")
	assert.Equal(t, "read_file", entries[0].Tool)
	assert.Equal(t, uint64(1), entries[0].Seq)
	assert.Equal(t, kaudit.GenesisHash, entries[0].PrevHash)
}

func TestDispatch_RoleGatesMutationTools(t *testing.T) {
	ws := t.TempDir()
	k := newKernel(t)
	initialize(t, k, ws, "PLANNING")

	_, err := k.Dispatch(context.Background(), "write_file", map[string]interface{}{
		"path": "src/a.txt", "content": "hello\n", "plan_hash": "x", "phase_id": "PHASE_1",
	})
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeUnauthorizedAction, env.ErrorCode)
}

func TestDispatch_FirstWriteSucceedsWithChainIntact(t *testing.T) {
	ws := t.TempDir()
	planHash := seedApprovedPlan(t, ws)

	require.NoError(t, os.MkdirAll(filepath.Join(ws, "src"), 0o755))
	intent := intentFor("src/a.txt", planHash, "PHASE_1")
	require.NoError(t, os.WriteFile(filepath.Join(ws, "src", "a.txt.intent.md"), []byte(intent), 0o644))

	k := newKernel(t)
	initialize(t, k, ws, "EXECUTION")

	result, err := k.Dispatch(context.Background(), "write_file", map[string]interface{}{
		"path": "src/a.txt", "content": "hello\n", "plan_hash": planHash, "phase_id": "PHASE_1",
	})
	require.NoError(t, err)
	out := result.(map[string]interface{})
	assert.Equal(t, "src/a.txt", out["path"])

	written, err := os.ReadFile(filepath.Join(ws, "src", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(written))

	ledger, err := k.Session().Ledger()
	require.NoError(t, err)
	report, err := ledger.Verify()
	require.NoError(t, err)
	assert.True(t, report.Valid)

	entries, err := ledger.ReadAll()
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, "write_file", last.Tool)
	assert.Equal(t, kaudit.ResultOK, last.Result)
	assert.Equal(t, planHash, last.PlanHash)
}

func TestDispatch_RustPolicyViolationRefusesAndAudits(t *testing.T) {
	ws := t.TempDir()
	planHash := seedApprovedPlan(t, ws)

	k := newKernel(t)
	initialize(t, k, ws, "EXECUTION")

	_, err := k.Dispatch(context.Background(), "write_file", map[string]interface{}{
		"path": "src/lib.rs", "content": "let x = todo!();\n", "plan_hash": planHash, "phase_id": "PHASE_1",
	})
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeRustPolicyViolation, env.ErrorCode)
	assert.Equal(t, "RUST_REALITY_LOCK", env.InvariantID)

	_, statErr := os.Stat(filepath.Join(ws, "src", "lib.rs"))
	assert.True(t, os.IsNotExist(statErr), "no file should exist after a refusal")

	ledger, err := k.Session().Ledger()
	require.NoError(t, err)
	entries, err := ledger.ReadAll()
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, kaudit.ResultError, last.Result)
	assert.Equal(t, string(kerr.CodeRustPolicyViolation), last.ErrorCode)
}

func TestDispatch_WriteOutsideAllowlistRefused(t *testing.T) {
	ws := t.TempDir()
	planHash := seedApprovedPlan(t, ws)

	k := newKernel(t)
	initialize(t, k, ws, "EXECUTION")

	_, err := k.Dispatch(context.Background(), "write_file", map[string]interface{}{
		"path": "vendor/a.txt", "content": "hello\n", "plan_hash": planHash, "phase_id": "PHASE_1",
	})
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodePlanScopeViolation, env.ErrorCode)
}

func TestDispatch_TamperedPlanRefusesExecution(t *testing.T) {
	ws := t.TempDir()
	planHash := seedApprovedPlan(t, ws)

	planPath := filepath.Join(ws, "docs", "plans", planHash+".md")
	raw, err := os.ReadFile(planPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(planPath, append(raw, []byte("\ntampered\n")...), 0o644))

	k := newKernel(t)
	initialize(t, k, ws, "EXECUTION")

	_, err = k.Dispatch(context.Background(), "write_file", map[string]interface{}{
		"path": "src/a.txt", "content": "hello\n", "plan_hash": planHash, "phase_id": "PHASE_1",
	})
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeHashMismatch, env.ErrorCode)
}

func TestDispatch_MissingIntentArtifactRefused(t *testing.T) {
	ws := t.TempDir()
	planHash := seedApprovedPlan(t, ws)

	k := newKernel(t)
	initialize(t, k, ws, "EXECUTION")

	_, err := k.Dispatch(context.Background(), "write_file", map[string]interface{}{
		"path": "src/a.txt", "content": "hello\n", "plan_hash": planHash, "phase_id": "PHASE_1",
	})
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeIntentArtifactMissing, env.ErrorCode)
	assert.Equal(t, "MANDATORY_INTENT", env.InvariantID)
}

func TestDispatch_KillSwitchGatesMutatingToolsOnly(t *testing.T) {
	ws := t.TempDir()
	planHash := seedApprovedPlan(t, ws)

	k := newKernel(t)
	initialize(t, k, ws, "EXECUTION")

	sw := kkill.New(filepath.Join(ws, ".kaiza", "kill_switch.json"))
	_, err := sw.Engage([]kkill.FailureID{kkill.FAuditWrite}, []string{"INV_AUDIT_APPEND_ONLY"}, "test engagement")
	require.NoError(t, err)

	_, err = k.Dispatch(context.Background(), "write_file", map[string]interface{}{
		"path": "src/a.txt", "content": "hello\n", "plan_hash": planHash, "phase_id": "PHASE_1",
	})
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeKillSwitchEngaged, env.ErrorCode)

	// Read-only tools remain available while engaged.
	_, err = k.Dispatch(context.Background(), "list_plans", nil)
	require.NoError(t, err)
}

func TestDispatch_UnlockRunsAllThreeVerifications(t *testing.T) {
	ws := t.TempDir()
	seedApprovedPlan(t, ws)

	k := newKernel(t)
	initialize(t, k, ws, "EXECUTION")

	sw := kkill.New(filepath.Join(ws, ".kaiza", "kill_switch.json"))
	_, err := sw.Engage([]kkill.FailureID{kkill.FAuditWrite}, nil, "test engagement")
	require.NoError(t, err)

	// A non-OWNER operator is refused before any verification runs.
	_, err = k.Dispatch(context.Background(), "unlock_kill_switch", map[string]interface{}{
		"approver_id": "op-1",
	})
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeRoleMismatch, env.ErrorCode)

	// The ledger is intact and every plan lints clean, so the unlock
	// tool records audit_verify, plan_lint_all, and maturity_recompute
	// itself and then disengages.
	_, err = k.Dispatch(context.Background(), "unlock_kill_switch", map[string]interface{}{
		"approver_id": "op-1", "operator_role": "OWNER",
	})
	require.NoError(t, err)

	engaged, err := sw.IsEngaged()
	require.NoError(t, err)
	assert.False(t, engaged)
}

func TestDispatch_GeneratedBundleVerifiesRoundTrip(t *testing.T) {
	ws := t.TempDir()
	t.Setenv("KAIZA_ATTESTATION_SECRET", "stable-test-secret")
	seedApprovedPlan(t, ws)

	k := newKernel(t)
	initialize(t, k, ws, "EXECUTION")

	result, err := k.Dispatch(context.Background(), "generate_attestation_bundle", nil)
	require.NoError(t, err)
	bundle := result.(*kattest.Bundle)
	assert.Len(t, bundle.BundleID, 64)
	assert.NotEmpty(t, bundle.Signature)

	raw, err := kattest.CanonicalJSON(bundle)
	require.NoError(t, err)

	verified, err := k.Dispatch(context.Background(), "verify_attestation_bundle", map[string]interface{}{
		"bundle_json": string(raw),
	})
	require.NoError(t, err)
	vr := verified.(*kattest.VerifyResult)
	assert.True(t, vr.Valid)
}

func TestDispatch_EngagedKillSwitchZeroesMaturity(t *testing.T) {
	ws := t.TempDir()
	seedApprovedPlan(t, ws)

	k := newKernel(t)
	initialize(t, k, ws, "EXECUTION")

	sw := kkill.New(filepath.Join(ws, ".kaiza", "kill_switch.json"))
	_, err := sw.Engage([]kkill.FailureID{kkill.FAudit}, nil, "test engagement")
	require.NoError(t, err)

	result, err := k.Dispatch(context.Background(), "compute_maturity_score", nil)
	require.NoError(t, err)
	score := result.(*kmaturity.Result)
	assert.Equal(t, 0.0, score.Overall)
	assert.False(t, score.Level5)
}

// Concurrent appends from one kernel must produce gap-free sequence
// numbers ordered by lock acquisition.
func TestLedger_SeqOrderingUnderConcurrency(t *testing.T) {
	dir := t.TempDir()
	ledger := kaudit.New(filepath.Join(dir, "audit.log"), klock.NewDirLock(filepath.Join(dir, "audit.lock")))

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := ledger.Append(context.Background(), kaudit.WriteRequest{SessionID: "s", Tool: "t", Result: kaudit.ResultOK})
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}

	report, err := ledger.Verify()
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 8, report.Entries)
}

func TestDispatch_ProposalApprovalRequiresTwoStepCeremony(t *testing.T) {
	ws := t.TempDir()
	planHash := seedApprovedPlan(t, ws)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	k := newKernel(t).WithTrustClock(func() time.Time { return now })
	initialize(t, k, ws, "EXECUTION")

	created, err := k.Dispatch(context.Background(), "generate_remediation_proposals", map[string]interface{}{
		"proposal_type":        "PLAN_CORRECTION",
		"scope":                "narrow the allowlist",
		"risk_assessment":      "low",
		"plan_hash":            planHash,
		"evidence_refs":        []interface{}{"ref-1"},
		"violations_addressed": []interface{}{"ref-1"},
	})
	require.NoError(t, err)
	proposalID := created.(*kproposal.Proposal).ProposalID

	// Step 1 returns a confirmation token instead of deciding.
	result, err := k.Dispatch(context.Background(), "approve_proposal", map[string]interface{}{
		"proposal_id": proposalID, "approve": true, "approver_id": "op-1",
	})
	require.NoError(t, err)
	step1 := result.(map[string]interface{})
	require.Equal(t, "CONFIRMATION_REQUIRED", step1["status"])
	token := step1["confirmation_token"].(string)

	// Confirming before the timelock elapses refuses.
	_, err = k.Dispatch(context.Background(), "approve_proposal", map[string]interface{}{
		"proposal_id": proposalID, "approve": true, "approver_id": "op-1",
		"confirmation_token": token,
	})
	require.Error(t, err)

	now = now.Add(31 * time.Second)
	result, err = k.Dispatch(context.Background(), "approve_proposal", map[string]interface{}{
		"proposal_id": proposalID, "approve": true, "approver_id": "op-1",
		"confirmation_token": token,
	})
	require.NoError(t, err)
	decided := result.(*kproposal.Proposal)
	assert.Equal(t, kproposal.StatusApproved, decided.Status)
}

func TestDispatch_RecoveryToolsRequireOwnerOperator(t *testing.T) {
	ws := t.TempDir()
	seedApprovedPlan(t, ws)

	k := newKernel(t)
	initialize(t, k, ws, "EXECUTION")

	_, err := k.Dispatch(context.Background(), "initiate_recovery_acknowledgement", map[string]interface{}{
		"halt_report_path":        "docs/reports/HALT_REPORT_x.md",
		"understood_reason":       true,
		"understood_what_failed":  true,
		"understood_forbidden":    true,
		"responsibility_accepted": true,
		"approver_id":             "op-1",
	})
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeRoleMismatch, env.ErrorCode)

	_, err = k.Dispatch(context.Background(), "initiate_recovery_acknowledgement", map[string]interface{}{
		"halt_report_path":        "docs/reports/HALT_REPORT_x.md",
		"understood_reason":       true,
		"understood_what_failed":  true,
		"understood_forbidden":    true,
		"responsibility_accepted": true,
		"approver_id":             "op-1",
		"operator_role":           "OWNER",
	})
	require.NoError(t, err)
}
