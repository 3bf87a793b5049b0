package kaiza

import (
	"context"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kreplay"
)

// toolReadAuditLog is the handler for `read_audit_log` (read-only, both
// roles): a filtered view over the ledger, never the raw file, so a
// caller never bypasses the chain-hash fields.
func toolReadAuditLog(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	ledger, err := k.session.Ledger()
	if err != nil {
		return nil, "", "", "", "", err
	}
	entries, err := ledger.ReadAll()
	if err != nil {
		return nil, "", "", "", "", kerr.New(kerr.CodeFileReadFailed, "cannot read audit log", kerr.WithCause(err))
	}

	planHash := optionalStringArg(args, "plan_hash")
	tool := optionalStringArg(args, "tool")
	filtered := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		if planHash != "" && e.PlanHash != planHash {
			continue
		}
		if tool != "" && e.Tool != tool {
			continue
		}
		filtered = append(filtered, e)
	}
	return map[string]interface{}{"entries": filtered}, "", "", "", "", nil
}

// toolVerifyIntegrity is the handler for `verify_workspace_integrity`
// (read-only, both roles): walks the full hash chain.
func toolVerifyIntegrity(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	ledger, err := k.session.Ledger()
	if err != nil {
		return nil, "", "", "", "", err
	}
	report, err := ledger.Verify()
	if err != nil {
		return nil, "", "", "", "", kerr.New(kerr.CodeFileReadFailed, "cannot verify audit log", kerr.WithCause(err))
	}
	return report, "", "", "", "", nil
}

// toolReplayExecution is the handler for `replay_execution` (read-only,
// both roles): runs the forensic analyzer over the current ledger,
// filtered by the arguments given.
func toolReplayExecution(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	ledger, err := k.session.Ledger()
	if err != nil {
		return nil, "", "", "", "", err
	}
	filter := kreplay.Filter{
		PlanHash: optionalStringArg(args, "plan_hash"),
		PhaseID:  optionalStringArg(args, "phase_id"),
		Tool:     optionalStringArg(args, "tool"),
	}
	engine := kreplay.NewEngine(ledger)
	report, err := engine.Run(filter)
	if err != nil {
		return nil, "", filter.PlanHash, filter.PhaseID, "", kerr.New(kerr.CodeFileReadFailed, "cannot run replay analysis", kerr.WithCause(err))
	}
	k.refreshForensicIndex(ctx, report.Timeline)
	out := map[string]interface{}{
		"report":  report,
		"summary": kreplay.Render(report),
	}
	return out, "", filter.PlanHash, filter.PhaseID, "", nil
}

// refreshForensicIndex opportunistically rebuilds the derived sqlite
// query accelerator after a replay run. It is best-effort: the index is
// never consulted for authority decisions, so a failure here must never
// fail the read-only replay_execution call itself.
func (k *Kernel) refreshForensicIndex(ctx context.Context, entries []kaudit.Entry) {
	path, err := k.Resolver().ForensicIndexPath()
	if err != nil {
		return
	}
	idx, err := kreplay.OpenForensicIndex(path)
	if err != nil {
		k.log.Warn("forensic index open failed", "error", err)
		return
	}
	defer idx.Close()
	if err := idx.Rebuild(ctx, entries); err != nil {
		k.log.Warn("forensic index rebuild failed", "error", err)
	}
}
