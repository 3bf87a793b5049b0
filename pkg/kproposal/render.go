package kproposal

import (
	"fmt"
	"strings"
)

// Render produces the immutable Markdown document stored at
// docs/proposals/PROPOSAL_<id>.md. It is written once, at creation, and
// never rewritten: approval only appends a decision record elsewhere.
func Render(p *Proposal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<!-- KAIZA_PROPOSAL_ID: %s STATUS: %s -->\n", p.ProposalID, p.Status)
	fmt.Fprintf(&b, "# Remediation Proposal: %s\n\n", p.ProposalType)

	fmt.Fprintf(&b, "- proposal_id: %s\n", p.ProposalID)
	fmt.Fprintf(&b, "- created_at: %s\n", p.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&b, "- plan_hash: %s\n\n", p.PlanHash)

	b.WriteString("## Violations Addressed\n\n")
	writeList(&b, p.ViolationsAddressed)

	b.WriteString("## Exact Changes Requested\n\n")
	if len(p.ExactChangesRequested) == 0 {
		b.WriteString("None.\n\n")
	} else {
		for _, c := range p.ExactChangesRequested {
			fmt.Fprintf(&b, "- %s (evidence: %s)\n", c.Description, strings.Join(c.EvidenceRefs, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Files Affected\n\n")
	writeList(&b, p.FilesAffected)

	fmt.Fprintf(&b, "## Scope\n\n%s\n\n", p.Scope)
	fmt.Fprintf(&b, "## Risk Assessment\n\n%s\n\n", p.RiskAssessment)

	b.WriteString("## Verification After Apply\n\n")
	writeList(&b, p.VerificationAfterApply)

	b.WriteString("## Evidence References\n\n")
	writeList(&b, p.EvidenceRefs)

	if p.ExpirationCondition != "" {
		fmt.Fprintf(&b, "## Expiration Condition\n\n%s\n\n", p.ExpirationCondition)
	}

	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}
