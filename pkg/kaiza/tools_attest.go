package kaiza

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kaiza-dev/kaiza/pkg/kattest"
	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/kcanon"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kmaturity"
	"github.com/kaiza-dev/kaiza/pkg/kreplay"
)

// toolGenerateAttestation is the handler for
// `generate_attestation_bundle` (execution role): it assembles the
// current ledger, replay verdict, and maturity scores into a signed,
// deterministic bundle.
func toolGenerateAttestation(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	ledger, err := k.session.Ledger()
	if err != nil {
		return nil, "", "", "", "", err
	}
	entries, err := ledger.ReadAll()
	if err != nil {
		return nil, "", "", "", "", kerr.New(kerr.CodeFileReadFailed, "cannot read audit log", kerr.WithCause(err))
	}

	replayEngine := kreplay.NewEngine(ledger)
	replayReport, err := replayEngine.Run(kreplay.Filter{})
	replayVerdict := ""
	if err == nil && replayReport != nil {
		replayVerdict = string(replayReport.Verdict)
	}

	ev, err := buildEvidence(k)
	if err != nil {
		return nil, "", "", "", "", err
	}
	maturity, err := kmaturity.Score(ev)
	if err != nil {
		return nil, "", "", "", "", err
	}
	scores := make(map[string]float64, len(maturity.Scores))
	for d, s := range maturity.Scores {
		scores[string(d)] = s
	}

	root, err := k.session.WorkspaceRoot()
	if err != nil {
		return nil, "", "", "", "", err
	}
	rootHash, err := kcanon.CanonicalJSONHash(map[string]string{"workspace_root": root})
	if err != nil {
		return nil, "", "", "", "", err
	}

	planHashes := uniquePlanHashes(entries)

	window := kattest.TimeWindow{}
	if len(entries) > 0 {
		window.From = entries[0].TS
		window.To = entries[len(entries)-1].TS
	} else {
		now := time.Now().UTC()
		window.From, window.To = now, now
	}

	bundle, err := kattest.Generate(kattest.Inputs{
		WorkspaceRootHash: rootHash,
		Window:            window,
		Entries:           entries,
		PlanHashes:        planHashes,
		ReplayVerdict:     replayVerdict,
		MaturityScores:    scores,
	}, k.attestSigner)
	if err != nil {
		return nil, "", "", "", "", err
	}
	k.archiveBundle(ctx, bundle)
	return bundle, "", "", "", "", nil
}

// archiveBundle mirrors a generated bundle to the configured off-box
// archive backend. Archival is best-effort: a failure is logged and
// never surfaces to the caller, since the workspace-local bundle bytes
// are authoritative on their own.
func (k *Kernel) archiveBundle(ctx context.Context, bundle *kattest.Bundle) {
	if k.archiver == nil {
		return
	}
	raw, err := json.Marshal(bundle)
	if err != nil {
		return
	}
	if err := k.archiver.Archive(ctx, bundle.BundleID+".json", raw); err != nil {
		k.log.Warn("attestation bundle archival failed", "bundle_id", bundle.BundleID, "error", err)
	}
}

// uniquePlanHashes collects the distinct, non-empty plan hashes
// referenced across entries, preserving first-seen order.
func uniquePlanHashes(entries []kaudit.Entry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if e.PlanHash == "" || seen[e.PlanHash] {
			continue
		}
		seen[e.PlanHash] = true
		out = append(out, e.PlanHash)
	}
	return out
}

// toolVerifyAttestation is the handler for `verify_attestation_bundle`
// (read-only, both roles): shape, schema compatibility, then signature.
func toolVerifyAttestation(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	raw, err := stringArg(args, "bundle_json")
	if err != nil {
		return nil, "", "", "", "", err
	}
	if err := k.ensureBound(); err != nil {
		return nil, "", "", "", "", err
	}
	result, verr := kattest.VerifyExported([]byte(raw), k.attestSigner)
	if verr != nil {
		return nil, "", "", "", "", verr
	}
	return result, "", "", "", "", nil
}

// toolExportAttestation is the handler for `export_attestation_bundle`
// (read-only, both roles): generates then renders a bundle as portable
// Markdown + embedded JSON.
func toolExportAttestation(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	result, intent, planHash, phaseID, invariantID, err := toolGenerateAttestation(ctx, k, args)
	if err != nil {
		return nil, intent, planHash, phaseID, invariantID, err
	}
	bundle, ok := result.(*kattest.Bundle)
	if !ok {
		return nil, "", "", "", "", kerr.New(kerr.CodeInternalError, "attestation generator returned unexpected type")
	}
	raw, err := json.Marshal(bundle)
	if err != nil {
		return nil, "", "", "", "", kerr.New(kerr.CodeInternalError, "cannot encode attestation bundle", kerr.WithCause(err))
	}
	return map[string]interface{}{
		"markdown": kattest.RenderMarkdown(bundle),
		"json":     string(raw),
	}, "", "", "", "", nil
}
