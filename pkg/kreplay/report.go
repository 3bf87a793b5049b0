package kreplay

import (
	"fmt"
	"strings"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
)

// MaxTimelineRows is the hard cap on rendered timeline rows; a report
// with more matched entries notes the truncation rather than silently
// dropping it.
const MaxTimelineRows = 50

// Render produces the deterministic Markdown report for a Report:
// executive summary, key findings, a capped timeline table, detailed
// findings with plain-English "what this means" explanations, and
// recommended actions. Identical Reports always render identical bytes.
func Render(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Replay Report\n\n")
	fmt.Fprintf(&b, "**Verdict:** %s\n\n", r.Verdict)

	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "- %d entries matched the requested filter\n", len(r.Timeline))
	fmt.Fprintf(&b, "- %d findings across all families\n", len(r.Findings))
	if r.Verdict == VerdictPass {
		b.WriteString("- no divergence, authority, policy, or tamper findings were recorded\n\n")
	} else {
		b.WriteString("- one or more findings require attention before this window can be trusted\n\n")
	}

	b.WriteString("## Key Findings\n\n")
	if len(r.Findings) == 0 {
		b.WriteString("None.\n\n")
	} else {
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "- **%s** (%s)", f.Code, f.Family)
			if f.Tool != "" {
				fmt.Fprintf(&b, " — %s", f.Tool)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Timeline\n\n")
	renderTimeline(&b, r.Timeline)

	b.WriteString("## Detailed Findings\n\n")
	if len(r.Findings) == 0 {
		b.WriteString("No findings were produced for this window.\n\n")
	} else {
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "### %s\n\n", f.Code)
			fmt.Fprintf(&b, "- family: %s\n", f.Family)
			if f.Seq != 0 {
				fmt.Fprintf(&b, "- seq: %d\n", f.Seq)
			}
			if f.Tool != "" {
				fmt.Fprintf(&b, "- tool: %s\n", f.Tool)
			}
			fmt.Fprintf(&b, "- detail: %s\n", f.Detail)
			fmt.Fprintf(&b, "- what this means: %s\n\n", f.Meaning)
		}
	}

	b.WriteString("## Recommended Actions\n\n")
	renderRecommendations(&b, r.Findings)

	return b.String()
}

func renderTimeline(b *strings.Builder, timeline []kaudit.Entry) {
	if len(timeline) == 0 {
		b.WriteString("No entries matched the requested filter.\n\n")
		return
	}

	rows := timeline
	truncated := false
	if len(rows) > MaxTimelineRows {
		rows = rows[:MaxTimelineRows]
		truncated = true
	}

	b.WriteString("| seq | tool | phase | result | plan_hash |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, e := range rows {
		planHash := e.PlanHash
		if len(planHash) > 12 {
			planHash = planHash[:12]
		}
		fmt.Fprintf(b, "| %d | %s | %s | %s | %s |\n", e.Seq, e.Tool, e.PhaseID, e.Result, planHash)
	}
	b.WriteString("\n")

	if truncated {
		fmt.Fprintf(b, "_showing the first %d of %d matched entries; narrow the filter for the rest_\n\n", MaxTimelineRows, len(timeline))
	}
}

func renderRecommendations(b *strings.Builder, findings []Finding) {
	seen := map[Family]bool{}
	for _, f := range findings {
		if seen[f.Family] {
			continue
		}
		seen[f.Family] = true
		switch f.Family {
		case FamilyTamper:
			b.WriteString("- treat every entry after the first tamper finding as untrusted; restore the ledger from a known-good backup and re-run replay before issuing any attestation\n")
		case FamilyAuthority:
			b.WriteString("- investigate how a mutating call ran without a plan or phase; check for a policy engine bypass\n")
		case FamilyPolicy:
			b.WriteString("- review the write-time policy engine's denylist and co-requirement rules for the flagged tool\n")
		case FamilyDivergence:
			b.WriteString("- re-run the flagged tool in isolation and compare outputs; the operation may depend on external state\n")
		case FamilyEvidenceGap:
			b.WriteString("- backfill or regenerate the missing evidence before relying on this window for an attestation bundle\n")
		}
	}
	if len(seen) == 0 {
		b.WriteString("- none; this window is clean\n")
	}
}
