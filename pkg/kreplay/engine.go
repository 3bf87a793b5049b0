package kreplay

import (
	"strings"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
)

// mutatingTools is a local, duplicated copy of ksession's execution-only
// tool set, without run_drill: kreplay sits beneath ksession in the
// dependency graph, so it cannot import it without a cycle.
var mutatingTools = map[string]bool{
	"write_file":                        true,
	"generate_remediation_proposals":    true,
	"approve_proposal":                  true,
	"initiate_recovery_acknowledgement": true,
	"confirm_recovery":                  true,
	"unlock_kill_switch":                true,
	"generate_attestation_bundle":       true,
}

// Filter selects the subset of ledger entries a replay run analyzes.
// A zero-valued field on each axis means "no constraint on that axis".
type Filter struct {
	PlanHash string
	PhaseID  string
	Tool     string
	SeqMin   uint64
	SeqMax   uint64 // 0 means unbounded
}

func (f Filter) matches(e kaudit.Entry) bool {
	if f.PlanHash != "" && e.PlanHash != f.PlanHash {
		return false
	}
	if f.PhaseID != "" && e.PhaseID != f.PhaseID {
		return false
	}
	if f.Tool != "" && e.Tool != f.Tool {
		return false
	}
	if f.SeqMin != 0 && e.Seq < f.SeqMin {
		return false
	}
	if f.SeqMax != 0 && e.Seq > f.SeqMax {
		return false
	}
	return true
}

// Report is the full output of one replay run.
type Report struct {
	Verdict  Verdict        `json:"verdict"`
	Timeline []kaudit.Entry `json:"timeline"`
	Findings []Finding      `json:"findings"`
}

// Analyze runs the replay engine over entries (the full, unfiltered
// ledger contents) and rawLines (every raw line, used to detect
// unparsable entries that ReadAll would otherwise have already failed
// on), restricted to filter. Analyze re-invokes no tools and has no side
// effects: identical entries/rawLines/filter always produce a
// byte-identical Report.
func Analyze(entries []kaudit.Entry, rawLines []string, chainFailures []kaudit.Failure, filter Filter) *Report {
	var findings []Finding

	if len(rawLines) > len(entries) {
		findings = append(findings, newFinding(CodeInvalidJSON, 0, "",
			"ledger contains more raw lines than parseable entries",
			"one or more ledger lines could not be parsed as JSON; the ledger cannot be trusted past that point"))
	}

	for _, cf := range chainFailures {
		findings = append(findings, classifyChainFailure(cf))
	}

	var timeline []kaudit.Entry
	for _, e := range entries {
		if filter.matches(e) {
			timeline = append(timeline, e)
		}
	}

	if filter.PlanHash != "" && len(timeline) == 0 {
		findings = append(findings, newFinding(CodeMissingEntries, 0, "",
			"no ledger entries match the requested plan_hash",
			"the plan may never have executed, or the filter is too narrow"))
	}

	findings = append(findings, authorityFindings(timeline)...)
	findings = append(findings, policyFindings(timeline)...)
	findings = append(findings, divergenceFindings(timeline)...)
	findings = append(findings, evidenceGapFindings(timeline)...)

	if hasNoFailureFindings(findings) {
		findings = append(findings, newFinding(CodeDeterministicPass, 0, "", "no divergence, authority, policy, or tamper findings", "execution replayed cleanly"))
		findings = append(findings, newFinding(CodeCompliancePass, 0, "", "every matched entry is consistent with recorded plan/phase authority", "no compliance gap detected in this window"))
	}

	return &Report{
		Verdict:  verdictFrom(findings),
		Timeline: timeline,
		Findings: findings,
	}
}

func hasNoFailureFindings(findings []Finding) bool {
	for _, f := range findings {
		switch f.Family {
		case FamilyTamper, FamilyAuthority, FamilyPolicy, FamilyDivergence, FamilyEvidenceGap:
			return false
		}
	}
	return true
}

func classifyChainFailure(cf kaudit.Failure) Finding {
	switch {
	case strings.Contains(cf.Reason, "seq discontinuity"):
		return newFinding(CodeSequenceGap, cf.Seq, "", cf.Reason, "a sequence number is missing; entries may have been deleted or the ledger was rewritten")
	case strings.Contains(cf.Reason, "prev_hash"):
		return newFinding(CodeBrokenChain, cf.Seq, "", cf.Reason, "the hash chain is broken at this entry; everything after it cannot be trusted without re-verification")
	default:
		return newFinding(CodeRecomputedHashMismatch, cf.Seq, "", cf.Reason, "this entry's content does not match its recorded hash; it was altered after being written")
	}
}

func authorityFindings(timeline []kaudit.Entry) []Finding {
	var out []Finding
	for _, e := range timeline {
		if !mutatingTools[e.Tool] {
			continue
		}
		if e.PlanHash == "" {
			out = append(out, newFinding(CodeExecutionWithoutPlan, e.Seq, e.Tool, "mutating tool call has no plan_hash", "a write occurred with no authorizing plan on record"))
		}
		if e.PhaseID == "" {
			out = append(out, newFinding(CodeToolOutsidePhase, e.Seq, e.Tool, "mutating tool call has no phase_id", "a write occurred outside any declared plan phase"))
		}
		if e.Role != "" && e.Role != "EXECUTION" {
			out = append(out, newFinding(CodeRoleMismatch, e.Seq, e.Tool, "mutating tool call recorded under role "+e.Role, "a write was attributed to a role that must not hold mutation tools"))
		}
	}
	return out
}

func policyFindings(timeline []kaudit.Entry) []Finding {
	var out []Finding
	for _, e := range timeline {
		if e.Result != kaudit.ResultError {
			continue
		}
		switch e.ErrorCode {
		case "POLICY_VIOLATION", "RUST_POLICY_VIOLATION":
			out = append(out, newFinding(CodeWriteRefused, e.Seq, e.Tool, "write refused by the write-time policy engine: "+e.ErrorCode, "a mutation attempt was blocked before touching the filesystem"))
		case "KILL_SWITCH_ENGAGED":
			out = append(out, newFinding(CodeBlockedByGate, e.Seq, e.Tool, "tool call refused because the kill-switch was engaged", "the kernel was in safe-halt at this point"))
		}
		if e.InvariantID != "" {
			out = append(out, newFinding(CodeInvariantViolated, e.Seq, e.Tool, "invariant "+e.InvariantID+" was violated", "a named structural invariant failed during this call"))
		}
	}
	return out
}

func divergenceFindings(timeline []kaudit.Entry) []Finding {
	type key struct{ tool, phase, args string }
	groups := map[key][]kaudit.Entry{}
	var order []key
	for _, e := range timeline {
		k := key{e.Tool, e.PhaseID, e.ArgsHash}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	var out []Finding
	for _, k := range order {
		g := groups[k]
		if len(g) < 2 {
			continue
		}
		resultHashes := map[string]bool{}
		sawOK, sawErr := false, false
		for _, e := range g {
			if e.ResultHash != "" {
				resultHashes[e.ResultHash] = true
			}
			if e.Result == kaudit.ResultOK {
				sawOK = true
			} else {
				sawErr = true
			}
		}
		if len(resultHashes) > 1 {
			out = append(out, newFinding(CodeDivergentResult, g[len(g)-1].Seq, g[0].Tool,
				"identical args produced different result hashes across replays",
				"the same inputs did not produce the same output; the operation is not deterministic"))
		}
		if sawOK && sawErr {
			out = append(out, newFinding(CodePhaseToolInconsistency, g[len(g)-1].Seq, g[0].Tool,
				"same tool/phase/args pair recorded both ok and error outcomes",
				"a retried call changed outcome without a change in inputs"))
		}
	}

	// Entries inside one phase must all execute under the same plan.
	phasePlans := map[string]string{}
	for _, e := range timeline {
		if e.PhaseID == "" || e.PlanHash == "" {
			continue
		}
		if prev, ok := phasePlans[e.PhaseID]; ok && prev != e.PlanHash {
			out = append(out, newFinding(CodeEmbeddedHashMismatch, e.Seq, e.Tool,
				"phase "+e.PhaseID+" recorded entries under two different plan hashes",
				"the plan authorizing this phase changed mid-execution"))
			continue
		}
		phasePlans[e.PhaseID] = e.PlanHash
	}
	return out
}

func evidenceGapFindings(timeline []kaudit.Entry) []Finding {
	var out []Finding
	for i, e := range timeline {
		if e.Result == kaudit.ResultOK && mutatingTools[e.Tool] && e.ResultHash == "" {
			out = append(out, newFinding(CodeMissingResultHash, e.Seq, e.Tool, "successful mutating call recorded no result_hash", "there is no way to verify what this call actually produced"))
		}
		if i == len(timeline)-1 && len(timeline) > 1 && e.Result == kaudit.ResultError {
			out = append(out, newFinding(CodeIncompleteExecution, e.Seq, e.Tool, "filtered execution window ends on an error", "the last recorded step in this window did not succeed"))
		}
	}
	return out
}
