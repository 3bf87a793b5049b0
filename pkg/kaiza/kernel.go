// Package kaiza is the kernel's tool boundary: the single chokepoint
// every registered tool is threaded through. A mutating call flows
// session gate -> path resolve -> plan authority -> write-time policy
// -> intent co-requirement -> write -> audit append; on any refusal or
// throw the audit entry is written before the error surfaces.
package kaiza

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kaiza-dev/kaiza/pkg/config"
	"github.com/kaiza-dev/kaiza/pkg/karchive"
	"github.com/kaiza-dev/kaiza/pkg/kattest"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kkill"
	"github.com/kaiza-dev/kaiza/pkg/kpath"
	"github.com/kaiza-dev/kaiza/pkg/kplan"
	"github.com/kaiza-dev/kaiza/pkg/kproposal"
	"github.com/kaiza-dev/kaiza/pkg/ksession"
	"github.com/kaiza-dev/kaiza/pkg/ktrust"
	"github.com/kaiza-dev/kaiza/pkg/telemetry"
)

// Kernel bundles every kernel component behind one dispatch surface. A
// Kernel is created once per server process and is safe for sequential
// tool dispatch; concurrent dispatch is serialized by the audit ledger's own
// lock, not by the Kernel itself.
type Kernel struct {
	mu sync.Mutex

	cfg     *config.Config
	log     *slog.Logger
	session *ksession.Session

	recovery *kkill.RecoveryCoordinator
	confirm  *ktrust.Confirmer
	fatigue  *ktrust.FatigueGuard
	binder   *ktrust.Binder

	ceremonyMu      sync.Mutex
	pendingCeremony map[string]*ktrust.PendingConfirmation

	killSwitch *kkill.Switch // bound lazily, after initialize

	plans        *kplan.Registry
	proposals    *kproposal.Store
	attestSigner *kattest.Signer
	archiver     karchive.Archiver

	telemetry      *telemetry.Provider
	telemetryClose func(context.Context) error
}

// New returns a Kernel with its process-lifetime components constructed
// and its startup self-audit run. A self-audit failure
// must terminate the process with exit code 1; callers (cmd/kaiza)
// translate the returned error into that exit behavior.
func New(cfg *config.Config, log *slog.Logger) (*Kernel, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := selfAudit(); err != nil {
		return nil, err
	}

	// Telemetry is best-effort observability, never a correctness
	// dependency: a setup failure is logged and the
	// kernel proceeds with a nil provider, which every telemetry call
	// site treats as a no-op.
	tel, telClose, telErr := telemetry.New()
	if telErr != nil {
		log.Warn("telemetry setup failed; continuing without it", "error", telErr)
		tel, telClose = nil, func(context.Context) error { return nil }
	}

	// Archival is a best-effort durability mirror, never a correctness
	// dependency (pkg/karchive doc comment): a setup failure falls back
	// to a no-op archiver rather than blocking startup.
	arch, archErr := karchive.New(context.Background(), cfg)
	if archErr != nil {
		log.Warn("archive backend setup failed; continuing without off-box archival", "error", archErr)
		arch = karchive.NoopArchiver{}
	}

	k := &Kernel{
		cfg:             cfg,
		log:             log,
		session:         ksession.New(),
		recovery:        kkill.NewRecoveryCoordinator(),
		confirm:         ktrust.NewConfirmer(),
		fatigue:         ktrust.NewFatigueGuard(),
		pendingCeremony: map[string]*ktrust.PendingConfirmation{},
		archiver:        arch,
		telemetry:       tel,
		telemetryClose:  telClose,
	}
	if cfg != nil && cfg.OperatorJWTSecret != "" {
		secret := []byte(cfg.OperatorJWTSecret)
		k.binder = ktrust.NewBinder(func(*jwt.Token) (interface{}, error) { return secret, nil })
	}
	return k, nil
}

// Close releases process-lifetime resources (currently: the telemetry
// providers). Safe to call on a Kernel whose telemetry setup failed.
func (k *Kernel) Close(ctx context.Context) error {
	if k.telemetryClose == nil {
		return nil
	}
	return k.telemetryClose(ctx)
}

// Session exposes the bound session for callers (the CLI, tests) that
// need to read role/workspace state directly rather than through a tool
// call.
func (k *Kernel) Session() *ksession.Session { return k.session }

// Resolver is a convenience accessor over the session's path resolver.
func (k *Kernel) Resolver() *kpath.Resolver { return k.session.Resolver() }

// ensureBound lazily constructs every per-workspace component once
// initialize has locked the root, so none of them hold a path before
// INV_REPO_ROOT_SINGLE is satisfied.
func (k *Kernel) ensureBound() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.plans != nil {
		return nil
	}
	resolver := k.session.Resolver()
	k.plans = kplan.NewRegistry(resolver)
	k.proposals = kproposal.NewStore(resolver)

	ksPath, err := resolver.KillSwitchPath()
	if err != nil {
		return err
	}
	k.killSwitch = kkill.New(ksPath)

	secretPath, err := resolver.AttestationSecretPath()
	if err != nil {
		return err
	}
	key, _, err := kattest.ResolveSecret(secretPath)
	if err != nil {
		return err
	}
	k.attestSigner = kattest.NewSigner(key)
	return nil
}

// selfAudit runs the fixed startup checks before any tool is accepted:
// the role manifest must be disjoint on the mutation axis, every tool a
// role exposes must have a registered handler, and every registered
// handler must be reachable through some role. A failure here terminates
// the process; there is no partial-boot mode.
func selfAudit() error {
	if err := ksession.AssertDisjointToolSets(); err != nil {
		return err
	}

	manifest := map[string]bool{}
	for _, set := range []map[string]bool{ksession.ReadOnlyTools, ksession.PlanningOnlyTools, ksession.ExecutionOnlyTools} {
		for tool := range set {
			manifest[tool] = true
			if _, ok := registry[tool]; !ok {
				return kerr.New(kerr.CodeSelfAuditFailure, "role manifest exposes unregistered tool: "+tool)
			}
		}
	}
	for tool := range registry {
		if !manifest[tool] {
			return kerr.New(kerr.CodeSelfAuditFailure, "registered tool is reachable through no role: "+tool)
		}
	}
	return nil
}

// WithTrustClock overrides the clock behind every two-step ceremony
// (plan approval, proposal approval, kill-switch recovery) for
// deterministic testing of the timelock and confirmation window.
func (k *Kernel) WithTrustClock(clock func() time.Time) *Kernel {
	k.confirm.WithClock(clock)
	k.recovery.WithClock(clock)
	return k
}

// runCeremony drives the two-step confirmation for one high-risk
// operation. Without a confirmation_token argument it initiates the
// ceremony and returns the payload the caller must hand back; with one
// it verifies timelock, window, and byte-identical consequences, and
// returns nil so the caller proceeds with the operation.
func (k *Kernel) runCeremony(args map[string]interface{}, ack ktrust.RiskAcknowledgement) (map[string]interface{}, error) {
	token := optionalStringArg(args, "confirmation_token")
	if token == "" {
		pc, err := k.confirm.Initiate(ack)
		if err != nil {
			return nil, err
		}
		k.ceremonyMu.Lock()
		k.pendingCeremony[pc.Token] = pc
		k.ceremonyMu.Unlock()
		return map[string]interface{}{
			"status":               "CONFIRMATION_REQUIRED",
			"confirmation_token":   pc.Token,
			"minimum_wait_seconds": int(ktrust.MinConfirmationWait.Seconds()),
			"window_seconds":       int(ktrust.ConfirmationWindow.Seconds()),
			"consequences":         ack.Consequences,
		}, nil
	}

	k.ceremonyMu.Lock()
	pc := k.pendingCeremony[token]
	k.ceremonyMu.Unlock()

	if err := k.confirm.Confirm(pc, token, ack); err != nil {
		return nil, err
	}
	k.ceremonyMu.Lock()
	delete(k.pendingCeremony, token)
	k.ceremonyMu.Unlock()
	return nil, nil
}
