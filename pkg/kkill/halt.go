package kkill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// allowedReadOnlyDuringHalt mirrors ksession.ReadOnlyTools minus
// initialize; duplicated
// here (rather than imported) to keep kkill free of a dependency on
// ksession, which itself depends on kkill's sibling packages at the
// kernelcore layer.
var allowedReadOnlyDuringHalt = []string{
	"read_file", "list_plans", "read_audit_log", "read_prompt",
	"verify_workspace_integrity", "replay_execution", "lint_plan",
	"list_proposals", "compute_maturity_score", "explain_maturity_gap",
	"verify_attestation_bundle", "export_attestation_bundle",
	"inspect_operator_actions", "inspect_high_risk_approvals",
}

// SafeHalt runs the engagement routine: verify the ledger's chain,
// write a HALT report naming the failure, and append an audit entry
// describing the halt. It returns the path to the written report.
func SafeHalt(ctx context.Context, ledger *kaudit.Ledger, reportsDir string, st *State, sessionID, role, workspaceRoot string) (string, error) {
	verify, err := ledger.Verify()
	if err != nil {
		return "", kerr.New(kerr.CodeAuditAppendFailed, "cannot verify ledger during safe-halt", kerr.WithCause(err))
	}

	ts := st.Timestamp.UTC().Format("20060102T150405Z")
	reportPath := filepath.Join(reportsDir, fmt.Sprintf("HALT_REPORT_%s.md", ts))

	body := renderHaltReport(st, verify.Valid, verify.Status)
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", kerr.New(kerr.CodeFileWriteFailed, "cannot create reports dir", kerr.WithCause(err))
	}
	if err := os.WriteFile(reportPath, []byte(body), 0o644); err != nil {
		return "", kerr.New(kerr.CodeFileWriteFailed, "cannot write halt report", kerr.WithCause(err))
	}

	_, err = ledger.Append(ctx, kaudit.WriteRequest{
		SessionID:     sessionID,
		Role:          role,
		WorkspaceRoot: workspaceRoot,
		Tool:          "kill_switch_engage",
		Result:        kaudit.ResultError,
		ErrorCode:     string(kerr.CodeKillSwitchEngaged),
		InvariantID:   strings.Join(st.TriggerInvariantIDs, ","),
		Notes:         "safe-halt: " + st.TriggerReason,
	})
	if err != nil {
		return reportPath, kerr.New(kerr.CodeAuditAppendFailed, "cannot record halt audit entry", kerr.WithCause(err))
	}

	return reportPath, nil
}

func renderHaltReport(st *State, chainValid bool, chainStatus kaudit.VerifyStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# HALT Report — %s\n\n", st.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "## Failure IDs\n\n")
	for _, f := range st.TriggerFailureIDs {
		fmt.Fprintf(&b, "- %s (%s)\n", f, SeverityOf(f))
	}
	fmt.Fprintf(&b, "\n## Invariant IDs\n\n")
	for _, inv := range st.TriggerInvariantIDs {
		fmt.Fprintf(&b, "- %s\n", inv)
	}
	fmt.Fprintf(&b, "\n## Root Cause\n\n%s\n\n", st.TriggerReason)
	fmt.Fprintf(&b, "## Ledger Chain Verification\n\nstatus: %s, valid: %t\n\n", chainStatus, chainValid)
	fmt.Fprintf(&b, "## Allowed Read-Only Operations\n\n")
	for _, tool := range allowedReadOnlyDuringHalt {
		fmt.Fprintf(&b, "- %s\n", tool)
	}
	fmt.Fprintf(&b, "\n## Recovery Checklist\n\n")
	for _, v := range RequiredVerifications {
		fmt.Fprintf(&b, "- [ ] %s\n", v)
	}
	fmt.Fprintf(&b, "\nRecovery requires `initiate_recovery_acknowledgement` followed by `confirm_recovery`\n")
	fmt.Fprintf(&b, "within the confirmation window, then `unlock_kill_switch` once every\n")
	fmt.Fprintf(&b, "verification above is recorded as passed.\n")
	return b.String()
}
