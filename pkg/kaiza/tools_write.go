package kaiza

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kintent"
	"github.com/kaiza-dev/kaiza/pkg/kplan"
	"github.com/kaiza-dev/kaiza/pkg/kpolicy"
)

// toolWriteFile is the handler for `write_file` (execution role only):
// path resolve, plan authority, write-time policy, intent
// co-requirement, then the actual write. Dispatch performs the audit
// append that follows.
func toolWriteFile(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, "", "", "", "", err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, "", "", "", "", err
	}
	planHash, err := stringArg(args, "plan_hash")
	if err != nil {
		return nil, "", "", planHash, "", err
	}
	phaseID, err := stringArg(args, "phase_id")
	if err != nil {
		return nil, "", planHash, "", "", err
	}

	resolver := k.Resolver()
	abs, err := resolver.ResolveWriteTarget(path)
	if err != nil {
		return nil, "", planHash, phaseID, "", err
	}
	rel, err := resolver.RelativeToRoot(abs)
	if err != nil {
		return nil, "", planHash, phaseID, "", err
	}

	// C6 — plan authority: approved, hash-consistent, still lints clean.
	plan, err := k.plans.RequireApproved(planHash)
	if err != nil {
		return nil, "", planHash, phaseID, "F-AUTHORITY-PLAN", err
	}
	var phase *kplan.Phase
	for i := range plan.Phases {
		if plan.Phases[i].ID == phaseID {
			phase = &plan.Phases[i]
			break
		}
	}
	if phase == nil {
		return nil, "", planHash, phaseID, "F-AUTHORITY-PLAN", kerr.New(kerr.CodePlanEnforcementFailed, "phase_id not found in plan", kerr.WithPlanHash(planHash), kerr.WithPhaseID(phaseID))
	}

	scope, err := kplan.NewScopeEvaluator(plan.PathAllowlist)
	if err != nil {
		return nil, "", planHash, phaseID, "", kerr.New(kerr.CodeInvalidInputFormat, "plan path allowlist does not compile", kerr.WithCause(err), kerr.WithPlanHash(planHash))
	}
	if !scope.Allows(rel) {
		return nil, "", planHash, phaseID, "F-AUTHORITY-PLAN", kerr.New(kerr.CodePlanScopeViolation, "write target is outside the plan's path allowlist", kerr.WithPlanHash(planHash), kerr.WithPhaseID(phaseID))
	}

	operation := kpolicy.OpModify
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		operation = kpolicy.OpCreate
	}

	intentRaw := ""
	if !kintent.IsExempt(rel) {
		raw, rerr := os.ReadFile(abs + ".intent.md")
		if rerr == nil {
			intentRaw = string(raw)
		}
	}

	sum := sha256.Sum256([]byte(content))
	contentHash := hex.EncodeToString(sum[:])

	root, err := k.session.WorkspaceRoot()
	if err != nil {
		return nil, "", planHash, phaseID, "", err
	}

	engine := kpolicy.NewEngine(resolver)
	report, err := engine.Check(kpolicy.Request{
		WorkspaceRoot: root,
		Role:          string(k.session.Role()),
		SessionID:     k.session.ID(),
		ToolName:      "write_file",
		PlanHash:      planHash,
		PhaseID:       phaseID,
		Operation:     operation,
		Path:          rel,
		ContentBytes:  content,
		ContentHash:   contentHash,
		ContentLength: len(content),
		IntentRaw:     intentRaw,
	})
	if err != nil {
		invariantID := ""
		if env, ok := err.(*kerr.Envelope); ok {
			switch env.ErrorCode {
			case kerr.CodeIntentArtifactMissing, kerr.CodeIntentSchemaInvalid,
				kerr.CodeIntentAuthorityDrift, kerr.CodeIntentForbiddenPatterns,
				kerr.CodeIntentPathConsistency:
				env.InvariantID = "MANDATORY_INTENT"
			}
			invariantID = env.InvariantID
		}
		return nil, "", planHash, phaseID, invariantID, err
	}

	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return nil, "", planHash, phaseID, "", kerr.New(kerr.CodeFileWriteFailed, "cannot write file", kerr.WithCause(err), kerr.WithPlanHash(planHash), kerr.WithPhaseID(phaseID))
	}

	return map[string]interface{}{
		"path":              rel,
		"content_hash":      contentHash,
		"content_length":    len(content),
		"detected_language": string(report.Language),
	}, "write_file: " + rel, planHash, phaseID, "", nil
}

// toolReadFile is the handler for `read_file` (read-only, both roles).
func toolReadFile(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, "", "", "", "", err
	}
	resolver := k.Resolver()
	abs, err := resolver.ResolveWriteTarget(path)
	if err != nil {
		return nil, "", "", "", "", err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", "", "", "", kerr.New(kerr.CodeFileNotFound, "no such file", kerr.WithCause(err))
		}
		return nil, "", "", "", "", kerr.New(kerr.CodeFileReadFailed, "cannot read file", kerr.WithCause(err))
	}
	return map[string]interface{}{"path": path, "content": string(b)}, "", "", "", "", nil
}
