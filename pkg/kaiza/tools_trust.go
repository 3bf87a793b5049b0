package kaiza

import (
	"context"
	"os"
	"path/filepath"

	"github.com/kaiza-dev/kaiza/pkg/drills"
	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/ktrust"
)

// toolReadPrompt is the handler for `read_prompt` (read-only, both
// roles): it returns a named prompt document from docs/prompts/. Prompt
// authoring happens outside the kernel; this tool only serves the bytes
// back so an agent runtime never reads workspace files directly.
func toolReadPrompt(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	name := optionalStringArg(args, "name")
	if name == "" {
		name = "system"
	}
	if filepath.Base(name) != name {
		return nil, "", "", "", "", kerr.New(kerr.CodeInvalidPath, "prompt name must be a bare filename")
	}

	root, err := k.session.WorkspaceRoot()
	if err != nil {
		return nil, "", "", "", "", err
	}
	path := filepath.Join(root, "docs", "prompts", name+".md")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", "", "", "", kerr.New(kerr.CodeFileNotFound, "no prompt named "+name)
		}
		return nil, "", "", "", "", kerr.New(kerr.CodeFileReadFailed, "cannot read prompt", kerr.WithCause(err))
	}
	return map[string]interface{}{"name": name, "content": string(b)}, "", "", "", "", nil
}

// toolInspectOperatorActions is the handler for
// `inspect_operator_actions` (read-only, both roles): every
// HUMAN_FACTOR_DECISION entry on the ledger, in seq order.
func toolInspectOperatorActions(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	decisions, err := operatorDecisions(k)
	if err != nil {
		return nil, "", "", "", "", err
	}
	return map[string]interface{}{"decisions": decisions}, "", "", "", "", nil
}

// toolInspectHighRiskApprovals is the handler for
// `inspect_high_risk_approvals` (read-only, both roles): the subset of
// operator decisions whose recorded risk level was HIGH or IRREVERSIBLE.
func toolInspectHighRiskApprovals(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	decisions, err := operatorDecisions(k)
	if err != nil {
		return nil, "", "", "", "", err
	}
	var highRisk []kaudit.Entry
	for _, e := range decisions {
		level, _ := e.Args["risk_level"].(string)
		if level == string(ktrust.RiskHigh) || level == string(ktrust.RiskIrreversible) {
			highRisk = append(highRisk, e)
		}
	}
	return map[string]interface{}{"approvals": highRisk}, "", "", "", "", nil
}

func operatorDecisions(k *Kernel) ([]kaudit.Entry, error) {
	ledger, err := k.session.Ledger()
	if err != nil {
		return nil, err
	}
	entries, err := ledger.ReadAll()
	if err != nil {
		return nil, kerr.New(kerr.CodeFileReadFailed, "cannot read audit log", kerr.WithCause(err))
	}
	var out []kaudit.Entry
	for _, e := range entries {
		if e.Tool == ktrust.DecisionTool {
			out = append(out, e)
		}
	}
	return out, nil
}

// toolRunDrill is the handler for `run_drill` (execution role only):
// deterministic failure injection against a scratch workspace. The
// registry is empty unless the binary was built with -tags drills, so
// release builds refuse every drill name.
func toolRunDrill(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	name, err := stringArg(args, "drill")
	if err != nil {
		return nil, "", "", "", "", err
	}
	report, err := drills.Run(ctx, name)
	if err != nil {
		return nil, "", "", "", "", kerr.New(kerr.CodeInvalidInputValue, err.Error(), kerr.WithCause(err))
	}
	return report, "drill: " + name, "", "", "", nil
}
