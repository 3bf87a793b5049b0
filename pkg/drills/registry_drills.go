//go:build drills

package drills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/kkill"
	"github.com/kaiza-dev/kaiza/pkg/klock"
)

var registry = map[string]Drill{
	"kill_switch_audit_break":  killSwitchAuditBreakDrill{},
	"sandbox_malformed_module": sandboxMalformedModuleDrill{},
}

// killSwitchAuditBreakDrill simulates the F-AUDIT critical failure
// against a disposable, throwaway workspace and asserts the kill-switch
// engages and a HALT report is produced, without touching
// any real session's ledger or kill_switch.json.
type killSwitchAuditBreakDrill struct{}

func (killSwitchAuditBreakDrill) Name() string { return "kill_switch_audit_break" }

func (killSwitchAuditBreakDrill) Run(ctx context.Context) (Report, error) {
	dir, err := os.MkdirTemp("", "kaiza-drill-*")
	if err != nil {
		return Report{}, fmt.Errorf("drills: create scratch workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	lock := klock.NewDirLock(filepath.Join(dir, ".kaiza.lock"))
	ledger := kaudit.New(filepath.Join(dir, "audit.jsonl"), lock)
	sw := kkill.New(filepath.Join(dir, "kill_switch.json"))

	st, err := sw.Engage([]kkill.FailureID{kkill.FAudit}, []string{"I-AUDIT-CHAIN"}, "drill: simulated audit chain break")
	if err != nil {
		return Report{Name: "kill_switch_audit_break"}, fmt.Errorf("drills: engage: %w", err)
	}

	reportPath, err := kkill.SafeHalt(ctx, ledger, dir, st, "drill-session", "EXECUTION", dir)
	if err != nil {
		return Report{Name: "kill_switch_audit_break"}, fmt.Errorf("drills: safe halt: %w", err)
	}
	if _, err := os.Stat(reportPath); err != nil {
		return Report{Name: "kill_switch_audit_break", Passed: false, Detail: "HALT report was not written"}, nil
	}
	return Report{Name: "kill_switch_audit_break", Passed: true, Detail: "HALT report at " + reportPath}, nil
}

// sandboxMalformedModuleDrill feeds a deliberately truncated WASM module
// into a deny-by-default wazero runtime and asserts compilation fails
// closed rather than silently accepting garbage input.
type sandboxMalformedModuleDrill struct{}

func (sandboxMalformedModuleDrill) Name() string { return "sandbox_malformed_module" }

func (sandboxMalformedModuleDrill) Run(ctx context.Context) (Report, error) {
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	// A truncated WASM header: magic bytes with no version/section data.
	malformed := []byte{0x00, 0x61, 0x73, 0x6d}

	_, err := r.CompileModule(ctx, malformed)
	if err == nil {
		return Report{Name: "sandbox_malformed_module", Passed: false, Detail: "sandbox accepted a malformed module"}, nil
	}
	return Report{Name: "sandbox_malformed_module", Passed: true, Detail: "sandbox rejected the malformed module: " + err.Error()}, nil
}
