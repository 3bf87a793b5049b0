package kproposal

import (
	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// Validate checks that p is evidence-bound: every entry in
// ViolationsAddressed must appear in the evidence bundle, and every
// ExactChangesRequested entry must cite at least one evidence_refs
// hash. Binding is checked before the proposal is stored, never after.
func Validate(p *Proposal) error {
	if !IsValidType(p.ProposalType) {
		return kerr.New(kerr.CodeInvalidInputValue, "unknown proposal_type: "+string(p.ProposalType))
	}

	evidence := make(map[string]bool, len(p.EvidenceRefs))
	for _, ref := range p.EvidenceRefs {
		evidence[ref] = true
	}

	var violations []string
	for _, v := range p.ViolationsAddressed {
		if !evidence[v] {
			violations = append(violations, "violation not bound to evidence: "+v)
		}
	}
	for _, change := range p.ExactChangesRequested {
		if len(change.EvidenceRefs) == 0 {
			violations = append(violations, "change request cites no evidence: "+change.Description)
			continue
		}
		for _, ref := range change.EvidenceRefs {
			if !evidence[ref] {
				violations = append(violations, "change request cites unknown evidence ref: "+ref)
			}
		}
	}

	if len(violations) > 0 {
		return kerr.New(kerr.CodeRemediationNotEvidenceBound, "proposal is not evidence-bound", kerr.WithCause(joinViolations(violations)))
	}
	return nil
}

// StalenessChecker reports whether a plan hash still refers to a current
// plan; injected so Validate callers can check REMEDIATION_STALE_PLAN
// without kproposal importing kplan's registry directly.
type StalenessChecker func(planHash string) (stale bool, err error)

// ValidateAgainstPlan runs Validate and additionally refuses a proposal
// whose plan_hash is stale.
func ValidateAgainstPlan(p *Proposal, isStale StalenessChecker) error {
	if err := Validate(p); err != nil {
		return err
	}
	if p.PlanHash == "" {
		return nil
	}
	stale, err := isStale(p.PlanHash)
	if err != nil {
		return err
	}
	if stale {
		return kerr.New(kerr.CodeRemediationStalePlan, "proposal references a stale plan_hash", kerr.WithPlanHash(p.PlanHash))
	}
	return nil
}

type joinedErr string

func (j joinedErr) Error() string { return string(j) }

func joinViolations(violations []string) error {
	out := ""
	for i, v := range violations {
		if i > 0 {
			out += "; "
		}
		out += v
	}
	return joinedErr(out)
}
