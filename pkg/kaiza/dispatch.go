package kaiza

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/kcanon"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kkill"
	"github.com/kaiza-dev/kaiza/pkg/ksession"
)

// handlerFunc is the shape every tool implementation satisfies. It
// never touches the audit ledger directly; Dispatch does that on its
// behalf — handlers are only ever reached through the boundary
// wrapper.
type handlerFunc func(ctx context.Context, k *Kernel, args map[string]interface{}) (result interface{}, intent, planHash, phaseID, invariantID string, err error)

var registry = map[string]handlerFunc{
	"initialize":                        toolInitialize,
	"bootstrap_create_foundation_plan":  toolBootstrapPlan,
	"lint_plan":                         toolLintPlan,
	"list_plans":                        toolListPlans,
	"write_file":                        toolWriteFile,
	"read_file":                         toolReadFile,
	"read_prompt":                       toolReadPrompt,
	"read_audit_log":                    toolReadAuditLog,
	"verify_workspace_integrity":        toolVerifyIntegrity,
	"replay_execution":                  toolReplayExecution,
	"generate_remediation_proposals":    toolGenerateProposals,
	"list_proposals":                    toolListProposals,
	"approve_proposal":                  toolApproveProposal,
	"compute_maturity_score":            toolComputeMaturity,
	"explain_maturity_gap":              toolExplainMaturityGap,
	"generate_attestation_bundle":       toolGenerateAttestation,
	"verify_attestation_bundle":         toolVerifyAttestation,
	"export_attestation_bundle":         toolExportAttestation,
	"initiate_recovery_acknowledgement": toolInitiateRecovery,
	"confirm_recovery":                  toolConfirmRecovery,
	"unlock_kill_switch":                toolUnlockKillSwitch,
	"inspect_operator_actions":          toolInspectOperatorActions,
	"inspect_high_risk_approvals":       toolInspectHighRiskApprovals,
	"run_drill":                         toolRunDrill,
}

// readOnlyTools mirrors ksession.ReadOnlyTools: these remain callable
// while the kill-switch is engaged.
var readOnlyTools = ksession.ReadOnlyTools

// killSwitchExemptTools are the OWNER recovery tools: the three tools
// the kill-switch gate itself must let through while engaged, since
// nothing else can ever disengage it.
var killSwitchExemptTools = map[string]bool{
	"initiate_recovery_acknowledgement": true,
	"confirm_recovery":                  true,
	"unlock_kill_switch":                true,
}

// Dispatch is the tool boundary wrapper. Every tool call, success or
// failure, produces exactly one audit entry before its result or error
// reaches the caller (INV_FAIL_CLOSED).
func (k *Kernel) Dispatch(ctx context.Context, toolName string, args map[string]interface{}) (interface{}, error) {
	handler, ok := registry[toolName]
	if !ok {
		return nil, kerr.New(kerr.CodeInvalidInputValue, "unknown tool: "+toolName, kerr.WithToolName(toolName))
	}

	var gateErr error
	if toolName != "initialize" {
		if err := k.session.RequireInitialized(); err != nil {
			// A rejected call that arrives before initialize is still
			// recorded: queued with buffered=true, because the ledger
			// path is not yet known, and flushed once initialize opens
			// the ledger.
			k.session.Buffer().Add(kaudit.WriteRequest{
				Tool: toolName, Result: kaudit.ResultError,
				ErrorCode: string(errCode(err)), Args: collapseContent(args),
			})
			return nil, withContext(err, k, toolName)
		}
		// Gate refusals do not short-circuit past the ledger: they skip
		// the handler but still flow through the same audit-append path
		// below, so a refused call leaves exactly one error entry.
		switch {
		case !k.session.AllowedTools()[toolName]:
			gateErr = kerr.New(kerr.CodeUnauthorizedAction, "tool not visible to this role", kerr.WithToolName(toolName))
		case k.session.IsLocked() && !readOnlyTools[toolName] && !killSwitchExemptTools[toolName]:
			gateErr = kerr.New(kerr.CodeKillSwitchEngaged, "session hard-locked")
		default:
			if !readOnlyTools[toolName] && !killSwitchExemptTools[toolName] {
				gateErr = k.checkKillSwitch()
			}
			if gateErr == nil {
				gateErr = k.ensureBound()
			}
		}
	}

	var (
		result      interface{}
		intent      string
		planHash    string
		phaseID     string
		invariantID string
		herr        error
	)
	if gateErr != nil {
		herr = gateErr
	} else {
		role := string(k.session.Role())
		spanCtx, endSpan := k.telemetry.ToolSpan(ctx, toolName, role, "")
		result, intent, planHash, phaseID, invariantID, herr = handler(spanCtx, k, args)
		endSpan()
	}

	if !k.session.IsInitialized() {
		// No session yet: the call (a refused or failed initialize, or
		// any tool called before one) has no ledger to be audited in. A
		// successful initialize has already initialized the session and
		// goes on to the audit append below.
		if herr != nil {
			return nil, withContext(herr, k, toolName)
		}
		return result, nil
	}

	ledger, lerr := k.session.Ledger()
	if lerr != nil {
		return nil, withContext(lerr, k, toolName)
	}

	loggedArgs := collapseContent(args)
	argsHash, _ := kcanon.CanonicalJSONHash(kaudit.RedactArgs(loggedArgs))
	req := kaudit.WriteRequest{
		SessionID:   k.session.ID(),
		Role:        string(k.session.Role()),
		Tool:        toolName,
		Intent:      intent,
		PlanHash:    planHash,
		PhaseID:     phaseID,
		ArgsHash:    argsHash,
		InvariantID: invariantID,
		Args:        loggedArgs,
	}
	if root, rerr := k.session.WorkspaceRoot(); rerr == nil {
		req.WorkspaceRoot = root
	}

	if herr != nil {
		req.Result = kaudit.ResultError
		req.ErrorCode = string(errCode(herr))
		if _, aerr := ledger.Append(ctx, req); aerr != nil {
			auditErr := kerr.New(kerr.CodeAuditAppendFailed, "cannot record failure entry", kerr.WithCause(aerr))
			k.maybeEngage(ctx, auditErr, toolName)
			return nil, withContext(auditErr, k, toolName)
		}
		k.log.Warn("tool refused", "tool", toolName, "error_code", req.ErrorCode, "plan_hash", planHash, "phase_id", phaseID)
		k.maybeEngage(ctx, herr, toolName)
		return nil, withContext(herr, k, toolName)
	}

	req.Result = kaudit.ResultOK
	if resultHash, herr2 := kcanon.CanonicalJSONHash(result); herr2 == nil {
		req.ResultHash = resultHash
	}
	if _, aerr := ledger.Append(ctx, req); aerr != nil {
		auditErr := kerr.New(kerr.CodeAuditAppendFailed, "cannot record success entry", kerr.WithCause(aerr), kerr.WithToolName(toolName))
		k.maybeEngage(ctx, auditErr, toolName)
		return nil, withContext(auditErr, k, toolName)
	}
	k.log.Info("tool ok", "tool", toolName, "plan_hash", planHash, "phase_id", phaseID)
	return result, nil
}

func withContext(err error, k *Kernel, toolName string) error {
	env, ok := err.(*kerr.Envelope)
	if !ok {
		env = kerr.New(kerr.CodeInternalError, err.Error(), kerr.WithCause(err))
	}
	env.ToolName = toolName
	env.SessionID = k.session.ID()
	if env.Role == "" {
		env.Role = string(k.session.Role())
	}
	if env.WorkspaceRoot == "" {
		if root, rerr := k.session.WorkspaceRoot(); rerr == nil {
			env.WorkspaceRoot = root
		}
	}
	return env
}

// checkKillSwitch re-reads the persisted kill-switch state on every
// mutating call and refuses if engaged.
func (k *Kernel) checkKillSwitch() error {
	if err := k.ensureBound(); err != nil {
		return err
	}
	engaged, err := k.killSwitch.IsEngaged()
	if err != nil {
		return err
	}
	if engaged {
		return kerr.New(kerr.CodeKillSwitchEngaged, "kill-switch engaged; mutating tools refused")
	}
	return nil
}

// maybeEngage triggers the safe-halt routine on a critical-invariant
// breach surfaced through the handler's error code.
func (k *Kernel) maybeEngage(ctx context.Context, herr error, toolName string) {
	env, ok := herr.(*kerr.Envelope)
	if !ok {
		return
	}
	failureID := criticalFailureFor(env.ErrorCode)
	if failureID == "" {
		return
	}
	if err := k.ensureBound(); err != nil {
		return
	}
	ledger, lerr := k.session.Ledger()
	if lerr != nil {
		return
	}
	st, err := k.killSwitch.Engage([]kkill.FailureID{failureID}, []string{env.InvariantID}, env.HumanMessage)
	if err != nil || st == nil {
		return
	}
	reportsDir, derr := k.session.Resolver().ReportsDir()
	if derr != nil {
		return
	}
	root, _ := k.session.WorkspaceRoot()
	reportPath, haltErr := kkill.SafeHalt(ctx, ledger, reportsDir, st, k.session.ID(), string(k.session.Role()), root)
	if haltErr == nil && reportPath != "" && k.archiver != nil {
		if body, rerr := os.ReadFile(reportPath); rerr == nil {
			if aerr := k.archiver.Archive(ctx, filepath.Base(reportPath), body); aerr != nil {
				k.log.Warn("halt report archival failed", "path", reportPath, "error", aerr)
			}
		}
	}
	k.session.Lock()
}

// errCode extracts the stable error code from an error produced at the
// boundary, falling back to INTERNAL_ERROR for anything that escaped
// kerr.New (which should not happen, but the boundary never panics on
// an unexpected error shape).
func errCode(err error) kerr.Code {
	if env, ok := err.(*kerr.Envelope); ok {
		return env.ErrorCode
	}
	return kerr.CodeInternalError
}

// criticalFailureFor maps a surfaced error code to the kkill failure
// taxonomy, returning "" for codes that do not engage the kill-switch.
// Only breaches of the kernel's own trustworthiness halt the workspace:
// an ordinary refused write (policy hit, missing intent, unauthorized
// tool) is the gate doing its job, audited and returned to the caller,
// not a reason to stop serving.
func criticalFailureFor(code kerr.Code) kkill.FailureID {
	switch code {
	case kerr.CodeAuditAppendFailed, kerr.CodeAuditLockFailed:
		return kkill.FAuditWrite
	case kerr.CodeSelfAuditFailure:
		return kkill.FStartup
	case kerr.CodeInvariantViolation:
		return kkill.FSecurity
	default:
		return ""
	}
}

// collapseContent replaces any file-content argument with its hash and
// length, so raw write payloads never land on the ledger in any form.
func collapseContent(args map[string]interface{}) map[string]interface{} {
	content, ok := args["content"].(string)
	if !ok {
		return args
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	delete(out, "content")
	sum := sha256.Sum256([]byte(content))
	out["content_hash"] = hex.EncodeToString(sum[:])
	out["content_length"] = len(content)
	return out
}
