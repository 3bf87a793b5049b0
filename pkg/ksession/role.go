package ksession

import "github.com/kaiza-dev/kaiza/pkg/kerr"

// Role is the two-valued enumeration gating tool visibility. The two
// roles expose disjoint mutation tool sets.
type Role string

const (
	RolePlanning  Role = "PLANNING"
	RoleExecution Role = "EXECUTION"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RolePlanning || r == RoleExecution
}

// ParseRole validates and returns a Role, or an INVALID_INPUT_VALUE
// envelope if role is not one of the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", kerr.New(kerr.CodeInvalidInputValue, "role must be PLANNING or EXECUTION")
	}
	return r, nil
}

// ReadOnlyTools are available to both roles regardless of session state
// transitions.
var ReadOnlyTools = map[string]bool{
	"initialize":                  true,
	"read_file":                   true,
	"list_plans":                  true,
	"read_audit_log":              true,
	"read_prompt":                 true,
	"verify_workspace_integrity":  true,
	"replay_execution":            true,
	"lint_plan":                   true,
	"list_proposals":              true,
	"compute_maturity_score":      true,
	"explain_maturity_gap":        true,
	"verify_attestation_bundle":   true,
	"export_attestation_bundle":   true,
	"inspect_operator_actions":    true,
	"inspect_high_risk_approvals": true,
}

// PlanningOnlyTools are exposed only under RolePlanning.
var PlanningOnlyTools = map[string]bool{
	"bootstrap_create_foundation_plan": true,
}

// ExecutionOnlyTools are exposed only under RoleExecution.
var ExecutionOnlyTools = map[string]bool{
	"write_file":                        true,
	"generate_remediation_proposals":    true,
	"approve_proposal":                  true,
	"initiate_recovery_acknowledgement": true,
	"confirm_recovery":                  true,
	"unlock_kill_switch":                true,
	"generate_attestation_bundle":       true,
	"run_drill":                         true,
}

// ToolsForRole returns the full closed tool set visible to r.
func ToolsForRole(r Role) map[string]bool {
	out := make(map[string]bool, len(ReadOnlyTools)+len(PlanningOnlyTools)+len(ExecutionOnlyTools))
	for t := range ReadOnlyTools {
		out[t] = true
	}
	switch r {
	case RolePlanning:
		for t := range PlanningOnlyTools {
			out[t] = true
		}
	case RoleExecution:
		for t := range ExecutionOnlyTools {
			out[t] = true
		}
	}
	return out
}

// AssertDisjointToolSets is the startup self-audit check:
// PlanningOnlyTools and ExecutionOnlyTools must never overlap, nor
// overlap ReadOnlyTools. A single violation must terminate the process;
// callers surface this as a SELF_AUDIT_FAILURE.
func AssertDisjointToolSets() error {
	for t := range PlanningOnlyTools {
		if ExecutionOnlyTools[t] {
			return kerr.New(kerr.CodeSelfAuditFailure, "tool "+t+" appears in both PLANNING and EXECUTION mutation sets")
		}
		if ReadOnlyTools[t] {
			return kerr.New(kerr.CodeSelfAuditFailure, "tool "+t+" appears in both read-only and PLANNING sets")
		}
	}
	for t := range ExecutionOnlyTools {
		if ReadOnlyTools[t] {
			return kerr.New(kerr.CodeSelfAuditFailure, "tool "+t+" appears in both read-only and EXECUTION sets")
		}
	}
	return nil
}
