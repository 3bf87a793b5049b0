package kaiza

import (
	"context"
	"os"
	"strings"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kmaturity"
	"github.com/kaiza-dev/kaiza/pkg/kplan"
)

// buildEvidence derives the six-dimension scoring inputs purely from the
// ledger and plan registry state already on disk.
func buildEvidence(k *Kernel) (kmaturity.Evidence, error) {
	var ev kmaturity.Evidence

	ledger, err := k.session.Ledger()
	if err != nil {
		return ev, err
	}
	entries, err := ledger.ReadAll()
	if err != nil {
		return ev, kerr.New(kerr.CodeFileReadFailed, "cannot read audit log", kerr.WithCause(err))
	}
	verify, err := ledger.Verify()
	if err != nil {
		return ev, kerr.New(kerr.CodeFileReadFailed, "cannot verify audit log", kerr.WithCause(err))
	}

	var buffered int
	var checksPerformed, denied int
	var mutationsTotal, mutationsWithIntent int
	for _, e := range entries {
		if e.Buffered {
			buffered++
		}
		if e.Tool == "write_file" {
			checksPerformed++
			mutationsTotal++
			if e.Result == kaudit.ResultError && (e.ErrorCode == string(kerr.CodePolicyViolation) || e.ErrorCode == string(kerr.CodeRustPolicyViolation)) {
				denied++
			}
			if e.Result == kaudit.ResultOK && e.Intent != "" {
				mutationsWithIntent++
			}
		}
	}
	bufferedRatio := 0.0
	if len(entries) > 0 {
		bufferedRatio = float64(buffered) / float64(len(entries))
	}
	ev.Audit = &kmaturity.AuditEvidence{
		TotalEntries:  len(entries),
		ChainIntact:   verify.Valid,
		BufferedRatio: bufferedRatio,
	}
	ev.Policy = &kmaturity.PolicyEvidence{
		ChecksPerformed: checksPerformed,
		Denied:          denied,
	}
	ev.Intent = &kmaturity.IntentEvidence{
		MutationsTotal:      mutationsTotal,
		MutationsWithIntent: mutationsWithIntent,
	}

	plansDir, err := k.Resolver().PlansDir()
	if err == nil {
		totalPlans, lintClean := scanPlans(plansDir, k)
		ev.Plans = &kmaturity.PlanEvidence{
			TotalPlans:     totalPlans,
			LintCleanPlans: lintClean,
		}
	}

	proposals, err := k.proposals.List()
	if err == nil {
		var open, stale, evidenceBound int
		for _, p := range proposals {
			if p.Status == "PENDING" {
				open++
			}
			if len(p.EvidenceRefs) > 0 {
				evidenceBound++
			}
		}
		pct := 0.0
		if len(proposals) > 0 {
			pct = float64(evidenceBound) / float64(len(proposals))
		}
		ev.Remediation = &kmaturity.RemediationEvidence{
			OpenProposals:    open,
			StaleProposals:   stale,
			EvidenceBoundPct: pct,
		}
	}

	return ev, nil
}

func scanPlans(plansDir string, k *Kernel) (total, lintClean int) {
	entries, err := os.ReadDir(plansDir)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		hash := strings.TrimSuffix(e.Name(), ".md")
		_, raw, err := k.plans.Load(hash)
		if err != nil {
			continue
		}
		total++
		if kplan.Lint(raw).Valid {
			lintClean++
		}
	}
	return total, lintClean
}

// toolComputeMaturity is the handler for `compute_maturity_score`
// (read-only, both roles): the six-dimension score with the
// overall = min(dimensions) rule.
func toolComputeMaturity(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	ev, err := buildEvidence(k)
	if err != nil {
		return nil, "", "", "", "", err
	}
	result, err := kmaturity.Score(ev)
	if err != nil {
		return nil, "", "", "", "", err
	}
	// An engaged kill-switch forces the score to zero regardless of any
	// other evidence: a halted workspace has no claimable maturity.
	if engaged, kerrr := k.killSwitch.IsEngaged(); kerrr == nil && engaged {
		for d := range result.Scores {
			result.Scores[d] = 0
		}
		result.Overall = 0
		result.Level5 = false
	}
	return result, "", "", "", "", nil
}

// toolExplainMaturityGap is the handler for `explain_maturity_gap`
// (read-only, both roles): names which gates capped the limiting
// dimension, so a caller knows what evidence to produce next.
func toolExplainMaturityGap(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	ev, err := buildEvidence(k)
	if err != nil {
		return nil, "", "", "", "", err
	}
	result, err := kmaturity.Score(ev)
	if err != nil {
		return nil, "", "", "", "", err
	}

	limiting := kmaturity.AllDimensions[0]
	for _, d := range kmaturity.AllDimensions {
		if result.Scores[d] < result.Scores[limiting] {
			limiting = d
		}
	}
	var gateReasons []string
	for _, g := range result.Gates {
		if g.Dimension == limiting {
			gateReasons = append(gateReasons, g.String())
		}
	}
	return map[string]interface{}{
		"limiting_dimension": string(limiting),
		"overall":            result.Overall,
		"gates":              gateReasons,
	}, "", "", "", "", nil
}
