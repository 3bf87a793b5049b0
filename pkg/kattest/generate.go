package kattest

import (
	"fmt"
	"time"

	"github.com/kaiza-dev/kaiza/pkg/canonicalize"
	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/merkle"
)

// Inputs bundles everything a caller must already have computed before
// generating a bundle: the engine never re-runs a replay or a maturity
// score itself.
type Inputs struct {
	WorkspaceRootHash string
	Window            TimeWindow
	Entries           []kaudit.Entry
	PlanHashes        []string
	ReplayVerdict     string
	MaturityScores    map[string]float64
}

// Generate builds and seals a Bundle from inputs using signer. The
// generated_timestamp is the only wall-clock field; bundle_id and
// signature are computed with it excluded, so back-to-back bundles over
// the same state carry the same id and signature.
func Generate(inputs Inputs, signer *Signer) (*Bundle, error) {
	root, err := auditLogRoot(inputs.Entries)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		SchemaVersion:     SchemaVersion,
		WorkspaceRootHash: inputs.WorkspaceRootHash,
		TimeWindow:        inputs.Window,
		AuditLogRootHash:  root,
		PlanHashes:        inputs.PlanHashes,
		AuditMetrics:      auditMetrics(inputs.Entries),
		PolicyEnforcement: policyEnforcement(inputs.Entries),
		IntentCoverage:    intentCoverage(inputs.Entries),
		ReplayVerdict:     inputs.ReplayVerdict,
		MaturityScores:    inputs.MaturityScores,
		GeneratedTS:       time.Now().UTC(),
	}

	checksums, err := verifierChecksums(b)
	if err != nil {
		return nil, err
	}
	b.VerifierChecksums = checksums

	if err := signer.Seal(b); err != nil {
		return nil, err
	}
	return b, nil
}

// verifierChecksums hashes the three sections an external verifier
// re-derives independently, so a bundle that internally disagrees with
// itself fails verification even under a valid signature.
func verifierChecksums(b *Bundle) (map[string]string, error) {
	auditHash, err := canonicalize.CanonicalHash(b.AuditMetrics)
	if err != nil {
		return nil, err
	}
	policyHash, err := canonicalize.CanonicalHash(b.PolicyEnforcement)
	if err != nil {
		return nil, err
	}
	maturityHash, err := canonicalize.CanonicalHash(b.MaturityScores)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"audit_metrics_hash":  auditHash,
		"policy_summary_hash": policyHash,
		"maturity_hash":       maturityHash,
	}, nil
}

// auditLogRoot builds a Merkle tree over the ledger entries keyed by
// sequence number, so the bundle commits to the full window without
// embedding it.
func auditLogRoot(entries []kaudit.Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	data := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		data[fmt.Sprintf("seq:%d", e.Seq)] = e
	}
	tree, err := merkle.BuildMerkleTree(data)
	if err != nil {
		return "", err
	}
	return tree.Root, nil
}

func auditMetrics(entries []kaudit.Entry) AuditMetrics {
	m := AuditMetrics{TotalEntries: len(entries)}
	for _, e := range entries {
		if e.Result == kaudit.ResultOK {
			m.OKEntries++
		} else {
			m.ErrorEntries++
		}
		if e.Buffered {
			m.BufferedCount++
		}
	}
	return m
}

func policyEnforcement(entries []kaudit.Entry) PolicyEnforcement {
	var pe PolicyEnforcement
	for _, e := range entries {
		if e.Tool != "write_file" {
			continue
		}
		pe.ChecksPerformed++
		if e.ErrorCode == "POLICY_VIOLATION" || e.ErrorCode == "RUST_POLICY_VIOLATION" {
			pe.Denied++
		}
	}
	return pe
}

func intentCoverage(entries []kaudit.Entry) IntentCoverage {
	var ic IntentCoverage
	for _, e := range entries {
		if e.Tool != "write_file" || e.Result != kaudit.ResultOK {
			continue
		}
		ic.MutationsTotal++
		if e.Intent != "" {
			ic.MutationsWithIntent++
		}
	}
	return ic
}
