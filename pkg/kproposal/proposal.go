// Package kproposal implements the remediation proposal subsystem:
// propose-only, evidence-bound, human-gated requests that never mutate
// code, plans, or configuration themselves.
package kproposal

import (
	"time"

	"github.com/google/uuid"
)

// ProposalType is one of the five closed remediation kinds.
type ProposalType string

const (
	TypePlanCorrection         ProposalType = "PLAN_CORRECTION"
	TypePolicyExceptionRequest ProposalType = "POLICY_EXCEPTION_REQUEST"
	TypeIntentCorrection       ProposalType = "INTENT_CORRECTION"
	TypeExecutionRetry         ProposalType = "EXECUTION_RETRY"
	TypeInvestigationRequired  ProposalType = "INVESTIGATION_REQUIRED"
)

var validTypes = map[ProposalType]bool{
	TypePlanCorrection:         true,
	TypePolicyExceptionRequest: true,
	TypeIntentCorrection:       true,
	TypeExecutionRetry:         true,
	TypeInvestigationRequired:  true,
}

// IsValidType reports whether t is one of the five closed proposal types.
func IsValidType(t ProposalType) bool { return validTypes[t] }

// Status is the proposal lifecycle state. Once APPROVED or REJECTED it is
// immutable.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Proposal is the full record stored both as a Markdown document at
// docs/proposals/PROPOSAL_<id>.md and as an index line.
type Proposal struct {
	ProposalID             string          `json:"proposal_id"`
	ProposalType           ProposalType    `json:"proposal_type"`
	Status                 Status          `json:"status"`
	CreatedAt              time.Time       `json:"created_at"`
	WorkspaceRoot          string          `json:"workspace_root"`
	PlanHash               string          `json:"plan_hash"`
	EvidenceRefs           []string        `json:"evidence_refs"`
	ViolationsAddressed    []string        `json:"violations_addressed"`
	ExactChangesRequested  []ChangeRequest `json:"exact_changes_requested"`
	FilesAffected          []string        `json:"files_affected"`
	Scope                  string          `json:"scope"`
	RiskAssessment         string          `json:"risk_assessment"`
	VerificationAfterApply []string        `json:"verification_after_apply"`
	ApprovedAt             *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy             string          `json:"approved_by,omitempty"`
	ExpirationCondition    string          `json:"expiration_condition,omitempty"`
}

// ChangeRequest is one requested change, bound to the evidence that
// justifies it.
type ChangeRequest struct {
	Description  string   `json:"description"`
	EvidenceRefs []string `json:"evidence_refs"`
}

// NewProposalID returns a fresh proposal identifier.
func NewProposalID() string {
	return uuid.NewString()
}
