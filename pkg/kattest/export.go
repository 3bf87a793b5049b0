package kattest

import (
	"fmt"
	"sort"
	"strings"
)

// RenderMarkdown produces a human-readable summary of a signed bundle,
// for operators who want to read an attestation without parsing JSON.
func RenderMarkdown(b *Bundle) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Attestation Bundle %s\n\n", b.BundleID)
	fmt.Fprintf(&sb, "- schema_version: %s\n", b.SchemaVersion)
	fmt.Fprintf(&sb, "- generated: %s\n", b.GeneratedTS.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&sb, "- workspace_root_hash: %s\n", b.WorkspaceRootHash)
	fmt.Fprintf(&sb, "- audit_log_root_hash: %s\n", b.AuditLogRootHash)
	fmt.Fprintf(&sb, "- replay_verdict: %s\n\n", b.ReplayVerdict)

	fmt.Fprintf(&sb, "## Audit Metrics\n\n- entries: %d (ok %d, error %d, buffered %d)\n\n",
		b.AuditMetrics.TotalEntries, b.AuditMetrics.OKEntries, b.AuditMetrics.ErrorEntries, b.AuditMetrics.BufferedCount)

	fmt.Fprintf(&sb, "## Policy Enforcement\n\n- checks: %d, denied: %d\n\n",
		b.PolicyEnforcement.ChecksPerformed, b.PolicyEnforcement.Denied)

	fmt.Fprintf(&sb, "## Intent Coverage\n\n- mutations: %d, with intent: %d\n\n",
		b.IntentCoverage.MutationsTotal, b.IntentCoverage.MutationsWithIntent)

	sb.WriteString("## Maturity Scores\n\n")
	if len(b.MaturityScores) == 0 {
		sb.WriteString("None recorded.\n\n")
	} else {
		dims := make([]string, 0, len(b.MaturityScores))
		for dim := range b.MaturityScores {
			dims = append(dims, dim)
		}
		sort.Strings(dims)
		for _, dim := range dims {
			fmt.Fprintf(&sb, "- %s: %.1f\n", dim, b.MaturityScores[dim])
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "## Plans Covered\n\n")
	if len(b.PlanHashes) == 0 {
		sb.WriteString("None.\n\n")
	} else {
		for _, h := range b.PlanHashes {
			fmt.Fprintf(&sb, "- %s\n", h)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "## Signature\n\n`%s`\n", b.Signature)
	return sb.String()
}
