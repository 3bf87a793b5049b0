package kaiza

import (
	"context"
	"os"
	"strings"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kplan"
	"github.com/kaiza-dev/kaiza/pkg/ktrust"
)

// planApprovalAck is the machine-generated acknowledgement for
// approving the plan whose canonical hash is hash. Both ceremony steps
// derive it from the submitted content, so changing a single byte of
// the plan between steps changes the hash and fails the re-submission
// check.
func planApprovalAck(hash string, allowlist []string) ktrust.RiskAcknowledgement {
	return ktrust.RiskAcknowledgement{
		OperationID: "bootstrap_create_foundation_plan:" + hash,
		Consequences: []string{
			"plan " + hash + " becomes STATUS: APPROVED and immutable",
			"execution sessions citing this hash are authorized to write within its path allowlist",
		},
		RiskLevel:   ktrust.RiskHigh,
		BlastRadius: allowlist,
		Reversible:  false,
	}
}

// toolBootstrapPlan is the handler for
// `bootstrap_create_foundation_plan` (planning role only), the single
// way anything is ever added to the otherwise-immutable plan registry.
// Plan approval is a human decision, so it runs the two-step
// trust-boundary ceremony: the first call lints the content and returns
// a confirmation token with the generated consequences; the second call
// must re-submit the identical content with that token after the
// timelock, and only then is the plan stored and stamped APPROVED.
func toolBootstrapPlan(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	content, err := stringArg(args, "plan_content")
	if err != nil {
		return nil, "", "", "", "", err
	}

	lint := kplan.Lint(content)
	if !lint.Valid {
		details := make([]string, 0, len(lint.Violations))
		for _, v := range lint.Violations {
			details = append(details, v.Rule+": "+v.Detail)
		}
		return nil, "", "", "", "INVARIANT_VIOLATION", kerr.New(kerr.CodePlanEnforcementFailed, "plan fails lint", kerr.WithCause(joinStringsErr(details)))
	}

	hash := kplan.Hash(content)
	ack := planApprovalAck(hash, kplan.Parse(content).PathAllowlist)
	if initiated, cerr := k.runCeremony(args, ack); cerr != nil {
		return nil, "", hash, "", "", cerr
	} else if initiated != nil {
		return initiated, "", hash, "", "", nil
	}

	if _, err := k.plans.Store(content); err != nil {
		return nil, "", hash, "", "", err
	}
	if err := k.plans.Approve(hash); err != nil {
		return nil, "", hash, "", "", err
	}
	return map[string]interface{}{"plan_hash": hash, "status": "APPROVED"}, "", hash, "", "", nil
}

// toolLintPlan is the handler for `lint_plan` (read-only, both roles):
// structural validation without storing anything.
func toolLintPlan(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	content, err := stringArg(args, "plan_content")
	if err != nil {
		return nil, "", "", "", "", err
	}
	lint := kplan.Lint(content)
	return lint, "", "", "", "", nil
}

// toolListPlans is the handler for `list_plans` (read-only, both roles):
// it enumerates docs/plans/<hex64>.md, re-verifying each plan's
// hash/header consistency on the way.
func toolListPlans(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	plansDir, err := k.Resolver().PlansDir()
	if err != nil {
		return nil, "", "", "", "", err
	}
	entries, err := os.ReadDir(plansDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []interface{}{}, "", "", "", "", nil
		}
		return nil, "", "", "", "", kerr.New(kerr.CodeFileReadFailed, "cannot list plans directory", kerr.WithCause(err))
	}

	var out []map[string]interface{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		hash := strings.TrimSuffix(e.Name(), ".md")
		p, _, err := k.plans.Load(hash)
		if err != nil {
			out = append(out, map[string]interface{}{"plan_hash": hash, "error": err.Error()})
			continue
		}
		out = append(out, map[string]interface{}{
			"plan_hash": hash,
			"status":    string(p.Header.Status),
			"phases":    len(p.Phases),
		})
	}
	return out, "", "", "", "", nil
}

type lintErr string

func (e lintErr) Error() string { return string(e) }

func joinStringsErr(ss []string) error {
	return lintErr(strings.Join(ss, "; "))
}
