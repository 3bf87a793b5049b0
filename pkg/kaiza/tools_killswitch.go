package kaiza

import (
	"context"
	"os"
	"strings"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kkill"
	"github.com/kaiza-dev/kaiza/pkg/kmaturity"
	"github.com/kaiza-dev/kaiza/pkg/kplan"
	"github.com/kaiza-dev/kaiza/pkg/ktrust"
)

// toolInitiateRecovery is the handler for
// `initiate_recovery_acknowledgement` (recovery step 1): only an
// operator carrying the OWNER role may start recovery, and the caller
// must restate all four acknowledgement flags; a short-lived
// confirmation code is returned.
func toolInitiateRecovery(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	if _, err := requireOwner(ctx, k, args); err != nil {
		return nil, "", "", "", "", err
	}
	haltReportPath, err := stringArg(args, "halt_report_path")
	if err != nil {
		return nil, "", "", "", "", err
	}
	understoodReason, err := boolArg(args, "understood_reason")
	if err != nil {
		return nil, "", "", "", "", err
	}
	understoodWhatFailed, err := boolArg(args, "understood_what_failed")
	if err != nil {
		return nil, "", "", "", "", err
	}
	understoodForbidden, err := boolArg(args, "understood_forbidden")
	if err != nil {
		return nil, "", "", "", "", err
	}
	responsibilityAccepted, err := boolArg(args, "responsibility_accepted")
	if err != nil {
		return nil, "", "", "", "", err
	}

	ack := kkill.Acknowledgement{
		UnderstoodReason:       understoodReason,
		UnderstoodWhatFailed:   understoodWhatFailed,
		UnderstoodForbidden:    understoodForbidden,
		ResponsibilityAccepted: responsibilityAccepted,
	}
	code, err := k.recovery.InitiateRecoveryAcknowledgement(haltReportPath, ack)
	if err != nil {
		return nil, "", "", "", "", err
	}
	return map[string]interface{}{
		"confirmation_code":    code,
		"minimum_wait_seconds": int(kkill.MinConfirmationWait.Seconds()),
		"expires_in_seconds":   int(kkill.ConfirmationWindow.Seconds()),
	}, "recovery acknowledgement initiated", "", "", "", nil
}

// toolConfirmRecovery is the handler for `confirm_recovery` (recovery
// step 2, OWNER only): the acknowledgement must be byte-identical to
// step 1's, resubmitted after the timelock and within the confirmation
// window.
func toolConfirmRecovery(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	if _, err := requireOwner(ctx, k, args); err != nil {
		return nil, "", "", "", "", err
	}
	code, err := stringArg(args, "confirmation_code")
	if err != nil {
		return nil, "", "", "", "", err
	}
	understoodReason, err := boolArg(args, "understood_reason")
	if err != nil {
		return nil, "", "", "", "", err
	}
	understoodWhatFailed, err := boolArg(args, "understood_what_failed")
	if err != nil {
		return nil, "", "", "", "", err
	}
	understoodForbidden, err := boolArg(args, "understood_forbidden")
	if err != nil {
		return nil, "", "", "", "", err
	}
	responsibilityAccepted, err := boolArg(args, "responsibility_accepted")
	if err != nil {
		return nil, "", "", "", "", err
	}

	ack := kkill.Acknowledgement{
		UnderstoodReason:       understoodReason,
		UnderstoodWhatFailed:   understoodWhatFailed,
		UnderstoodForbidden:    understoodForbidden,
		ResponsibilityAccepted: responsibilityAccepted,
	}
	if err := k.recovery.ConfirmRecovery(code, ack); err != nil {
		return nil, "", "", "", "", err
	}
	return map[string]interface{}{"confirmed": true}, "recovery confirmed", "", "", "", nil
}

// toolUnlockKillSwitch is the handler for `unlock_kill_switch` (OWNER
// only): it runs the three required recovery verifications itself —
// audit_verify, plan_lint_all, maturity_recompute — records each as
// passed, then unlocks.
func toolUnlockKillSwitch(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	if _, err := requireOwner(ctx, k, args); err != nil {
		return nil, "", "", "", "", err
	}
	if err := k.ensureBound(); err != nil {
		return nil, "", "", "", "", err
	}

	ledger, err := k.session.Ledger()
	if err != nil {
		return nil, "", "", "", "", err
	}
	verify, err := ledger.Verify()
	if err != nil || !verify.Valid {
		return nil, "", "", "", "", kerr.New(kerr.CodeInvariantViolation, "audit_verify failed; cannot unlock kill-switch")
	}
	if err := k.killSwitch.RecordVerification("audit_verify"); err != nil {
		return nil, "", "", "", "", err
	}

	plansDir, err := k.Resolver().PlansDir()
	if err != nil {
		return nil, "", "", "", "", err
	}
	entries, derr := os.ReadDir(plansDir)
	if derr != nil && !os.IsNotExist(derr) {
		return nil, "", "", "", "", kerr.New(kerr.CodeFileReadFailed, "cannot list plans for plan_lint_all", kerr.WithCause(derr))
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		hash := strings.TrimSuffix(e.Name(), ".md")
		_, raw, lerr := k.plans.Load(hash)
		if lerr != nil {
			return nil, "", "", "", "", kerr.New(kerr.CodeInvariantViolation, "plan_lint_all failed: cannot load plan "+hash, kerr.WithCause(lerr))
		}
		if !kplan.Lint(raw).Valid {
			return nil, "", "", "", "", kerr.New(kerr.CodeInvariantViolation, "plan_lint_all failed: plan "+hash+" no longer lints clean")
		}
	}
	if err := k.killSwitch.RecordVerification("plan_lint_all"); err != nil {
		return nil, "", "", "", "", err
	}

	ev, err := buildEvidence(k)
	if err != nil {
		return nil, "", "", "", "", err
	}
	if _, err := kmaturity.Score(ev); err != nil {
		return nil, "", "", "", "", kerr.New(kerr.CodeInvariantViolation, "maturity_recompute failed", kerr.WithCause(err))
	}
	if err := k.killSwitch.RecordVerification("maturity_recompute"); err != nil {
		return nil, "", "", "", "", err
	}

	if err := k.killSwitch.Unlock(); err != nil {
		return nil, "", "", "", "", err
	}
	k.session.Unlock()
	return map[string]interface{}{"unlocked": true}, "kill-switch unlocked", "", "", "", nil
}

// requireOwner resolves the deciding operator and refuses unless their
// role is OWNER. Recovery is never available to the session role alone:
// an execution session must still present an OWNER identity.
func requireOwner(ctx context.Context, k *Kernel, args map[string]interface{}) (*ktrust.Operator, error) {
	op, err := resolveOperator(ctx, k, args)
	if err != nil {
		return nil, err
	}
	if op.OperatorRole != ktrust.RoleOwner {
		return nil, kerr.New(kerr.CodeRoleMismatch, "kill-switch recovery requires the OWNER operator role")
	}
	return op, nil
}
