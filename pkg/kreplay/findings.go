// Package kreplay implements the deterministic replay and forensics
// engine: a pure, side-effect-free analysis of a single ledger that
// reconstructs a timeline and classifies findings from a closed
// 18-code set. Identical ledgers always produce identical verdicts,
// findings, and report bytes.
package kreplay

// Family groups a Finding code into one of the six closed families.
type Family string

const (
	FamilySuccess     Family = "success"
	FamilyDivergence  Family = "divergence"
	FamilyAuthority   Family = "authority"
	FamilyPolicy      Family = "policy"
	FamilyEvidenceGap Family = "evidence_gap"
	FamilyTamper      Family = "tamper"
)

// FindingCode is one of the 18 closed finding identifiers.
type FindingCode string

const (
	// Success.
	CodeDeterministicPass FindingCode = "DETERMINISTIC_PASS"
	CodeCompliancePass    FindingCode = "COMPLIANCE_PASS"

	// Divergence.
	CodeDivergentResult        FindingCode = "DIVERGENT_RESULT"
	CodePhaseToolInconsistency FindingCode = "PHASE_TOOL_INCONSISTENCY"
	CodeEmbeddedHashMismatch   FindingCode = "EMBEDDED_HASH_MISMATCH"

	// Authority.
	CodeToolOutsidePhase     FindingCode = "TOOL_OUTSIDE_PHASE"
	CodeRoleMismatch         FindingCode = "ROLE_MISMATCH"
	CodeExecutionWithoutPlan FindingCode = "EXECUTION_WITHOUT_PLAN"

	// Policy.
	CodeWriteRefused      FindingCode = "WRITE_REFUSED"
	CodeBlockedByGate     FindingCode = "BLOCKED_BY_GATE"
	CodeInvariantViolated FindingCode = "INVARIANT_VIOLATED"

	// Evidence gaps.
	CodeMissingEntries      FindingCode = "MISSING_ENTRIES"
	CodeIncompleteExecution FindingCode = "INCOMPLETE_EXECUTION"
	CodeMissingResultHash   FindingCode = "MISSING_RESULT_HASH"

	// Tamper.
	CodeBrokenChain            FindingCode = "BROKEN_CHAIN"
	CodeSequenceGap            FindingCode = "SEQUENCE_GAP"
	CodeInvalidJSON            FindingCode = "INVALID_JSON"
	CodeRecomputedHashMismatch FindingCode = "RECOMPUTED_HASH_MISMATCH"
)

var familyOf = map[FindingCode]Family{
	CodeDeterministicPass: FamilySuccess,
	CodeCompliancePass:    FamilySuccess,

	CodeDivergentResult:        FamilyDivergence,
	CodePhaseToolInconsistency: FamilyDivergence,
	CodeEmbeddedHashMismatch:   FamilyDivergence,

	CodeToolOutsidePhase:     FamilyAuthority,
	CodeRoleMismatch:         FamilyAuthority,
	CodeExecutionWithoutPlan: FamilyAuthority,

	CodeWriteRefused:      FamilyPolicy,
	CodeBlockedByGate:     FamilyPolicy,
	CodeInvariantViolated: FamilyPolicy,

	CodeMissingEntries:      FamilyEvidenceGap,
	CodeIncompleteExecution: FamilyEvidenceGap,
	CodeMissingResultHash:   FamilyEvidenceGap,

	CodeBrokenChain:            FamilyTamper,
	CodeSequenceGap:            FamilyTamper,
	CodeInvalidJSON:            FamilyTamper,
	CodeRecomputedHashMismatch: FamilyTamper,
}

// FamilyOf returns the family a finding code belongs to.
func FamilyOf(c FindingCode) Family {
	return familyOf[c]
}

// Finding is one classified observation produced by the replay engine.
type Finding struct {
	Code    FindingCode `json:"code"`
	Family  Family      `json:"family"`
	Seq     uint64      `json:"seq,omitempty"`
	Tool    string      `json:"tool,omitempty"`
	Detail  string      `json:"detail"`
	Meaning string      `json:"what_this_means"`
}

func newFinding(code FindingCode, seq uint64, tool, detail, meaning string) Finding {
	return Finding{Code: code, Family: FamilyOf(code), Seq: seq, Tool: tool, Detail: detail, Meaning: meaning}
}

// Verdict is the overall replay outcome: PASS iff no
// finding is tamper, authority, policy, or divergence.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// verdictFrom computes Verdict from a finding set.
func verdictFrom(findings []Finding) Verdict {
	for _, f := range findings {
		switch f.Family {
		case FamilyTamper, FamilyAuthority, FamilyPolicy, FamilyDivergence:
			return VerdictFail
		}
	}
	return VerdictPass
}
