package kaiza

import (
	"context"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kproposal"
	"github.com/kaiza-dev/kaiza/pkg/ktrust"
)

// toolGenerateProposals is the handler for
// `generate_remediation_proposals` (execution role only): it stores a
// single evidence-bound proposal and never touches code, plans, or
// configuration itself.
func toolGenerateProposals(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	typeStr, err := stringArg(args, "proposal_type")
	if err != nil {
		return nil, "", "", "", "", err
	}
	scope, err := stringArg(args, "scope")
	if err != nil {
		return nil, "", "", "", "", err
	}
	riskAssessment, err := stringArg(args, "risk_assessment")
	if err != nil {
		return nil, "", "", "", "", err
	}
	planHash := optionalStringArg(args, "plan_hash")

	pt := kproposal.ProposalType(typeStr)
	if !kproposal.IsValidType(pt) {
		return nil, "", planHash, "", "", kerr.New(kerr.CodeInvalidInputValue, "unknown proposal_type: "+typeStr)
	}

	root, err := k.session.WorkspaceRoot()
	if err != nil {
		return nil, "", planHash, "", "", err
	}

	p := kproposal.Proposal{
		ProposalType:           pt,
		WorkspaceRoot:          root,
		PlanHash:               planHash,
		EvidenceRefs:           stringSliceArg(args, "evidence_refs"),
		ViolationsAddressed:    stringSliceArg(args, "violations_addressed"),
		FilesAffected:          stringSliceArg(args, "files_affected"),
		Scope:                  scope,
		RiskAssessment:         riskAssessment,
		VerificationAfterApply: stringSliceArg(args, "verification_after_apply"),
		ExactChangesRequested:  changeRequestsArg(args),
		ExpirationCondition:    optionalStringArg(args, "expiration_condition"),
	}

	isStale := func(hash string) (bool, error) {
		_, err := k.plans.RequireApproved(hash)
		return err != nil, nil
	}

	created, err := k.proposals.Create(p, isStale)
	if err != nil {
		return nil, "", planHash, "", "", err
	}
	return created, "remediation proposal: " + string(created.ProposalType), planHash, "", "", nil
}

// toolListProposals is the handler for `list_proposals` (read-only, both
// roles).
func toolListProposals(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	list, err := k.proposals.List()
	if err != nil {
		return nil, "", "", "", "", err
	}
	return list, "", "", "", "", nil
}

// approvalAck is the machine-generated acknowledgement for deciding
// proposal p. Both ceremony steps rebuild it from the stored proposal,
// so a caller that flips the decision (or the proposal somehow changes)
// between steps fails the byte-identical re-submission check.
func approvalAck(p *kproposal.Proposal, approve bool) ktrust.RiskAcknowledgement {
	target := string(kproposal.StatusRejected)
	if approve {
		target = string(kproposal.StatusApproved)
	}
	return ktrust.RiskAcknowledgement{
		OperationID:  "approve_proposal:" + p.ProposalID + ":" + target,
		Consequences: []string{"proposal " + p.ProposalID + " transitions to " + target + " and the decision is immutable"},
		RiskLevel:    ktrust.RiskHigh,
		BlastRadius:  p.FilesAffected,
		Reversible:   false,
	}
}

// toolApproveProposal is the handler for `approve_proposal` (operator
// trust boundary): a human decision, never inferred. The decision runs
// the full trust-boundary ceremony: approval text is screened for
// manipulation language, the first call returns a confirmation token
// plus the machine-generated consequences, the second call must arrive
// after the timelock with the identical decision, the fatigue guard
// admits it, and a HUMAN_FACTOR_DECISION entry lands on the ledger
// alongside the tool call's own audit record.
func toolApproveProposal(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	id, err := stringArg(args, "proposal_id")
	if err != nil {
		return nil, "", "", "", "", err
	}
	approve, err := boolArg(args, "approve")
	if err != nil {
		return nil, "", "", "", "", err
	}

	if justification := optionalStringArg(args, "justification"); justification != "" {
		if err := ktrust.SanitizeApprovalText(justification); err != nil {
			return nil, "", "", "", "", err
		}
	}

	operator, err := resolveOperator(ctx, k, args)
	if err != nil {
		return nil, "", "", "", "", err
	}

	pending, err := k.proposals.Get(id)
	if err != nil {
		return nil, "", "", "", "", err
	}

	ack := approvalAck(pending, approve)
	if initiated, cerr := k.runCeremony(args, ack); cerr != nil {
		return nil, "", pending.PlanHash, "", "", cerr
	} else if initiated != nil {
		return initiated, "", pending.PlanHash, "", "", nil
	}

	if err := k.fatigue.CheckAndRecord(); err != nil {
		return nil, "", "", "", "", err
	}

	p, err := k.proposals.Approve(id, approve, operator.OperatorID)
	if err != nil {
		return nil, "", "", "", "", err
	}

	outcome := "REJECTED"
	if approve {
		outcome = "CONFIRMED"
	}
	decision := ktrust.Decision{
		Operator:        *operator,
		Acknowledgement: ack,
		Outcome:         outcome,
		Reason:          optionalStringArg(args, "justification"),
	}
	if ledger, lerr := k.session.Ledger(); lerr == nil {
		root, _ := k.session.WorkspaceRoot()
		if _, rerr := ktrust.Record(ctx, ledger, decision, k.session.ID(), root); rerr != nil {
			return nil, "", "", "", "", kerr.New(kerr.CodeAuditAppendFailed, "cannot record human factor decision", kerr.WithCause(rerr))
		}
	}

	return p, "proposal decision: " + string(p.Status), p.PlanHash, "", "", nil
}

// resolveOperator determines who is deciding. With JWT operator binding
// configured, the caller must present operator_token (bound once per
// session, rebind refused) and the role comes from the verified claims;
// otherwise a bare approver_id plus an optional self-declared
// operator_role is accepted, defaulting to the session role.
func resolveOperator(ctx context.Context, k *Kernel, args map[string]interface{}) (*ktrust.Operator, error) {
	if k.binder != nil {
		if bound := k.binder.Bound(); bound != nil {
			return bound, nil
		}
		token, err := stringArg(args, "operator_token")
		if err != nil {
			return nil, err
		}
		return k.binder.Bind(ctx, token)
	}
	approverID, err := stringArg(args, "approver_id")
	if err != nil {
		return nil, err
	}
	role := optionalStringArg(args, "operator_role")
	if role == "" {
		role = string(k.session.Role())
	}
	return &ktrust.Operator{OperatorID: approverID, OperatorRole: role}, nil
}

// changeRequestsArg decodes the optional exact_changes_requested list:
// each element is an object with a description and the evidence_refs
// hashes that justify it.
func changeRequestsArg(args map[string]interface{}) []kproposal.ChangeRequest {
	v, ok := args["exact_changes_requested"]
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]kproposal.ChangeRequest, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		cr := kproposal.ChangeRequest{}
		if d, ok := m["description"].(string); ok {
			cr.Description = d
		}
		if refs, ok := m["evidence_refs"].([]interface{}); ok {
			for _, r := range refs {
				if s, ok := r.(string); ok {
					cr.EvidenceRefs = append(cr.EvidenceRefs, s)
				}
			}
		}
		out = append(out, cr)
	}
	return out
}
