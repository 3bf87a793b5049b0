package kkill

import (
	"fmt"
	"sync"
	"time"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/ktrust"
)

// MinConfirmationWait and ConfirmationWindow bound step 2 of recovery:
// no earlier than 30 seconds after step 1, no later than 5 minutes.
// Both are enforced by the ktrust ceremony the coordinator runs on.
const (
	MinConfirmationWait = ktrust.MinConfirmationWait
	ConfirmationWindow  = ktrust.ConfirmationWindow
)

// Acknowledgement is the four-boolean structured record the recovering
// OWNER must restate byte-identically at both steps of recovery.
type Acknowledgement struct {
	UnderstoodReason       bool
	UnderstoodWhatFailed   bool
	UnderstoodForbidden    bool
	ResponsibilityAccepted bool
}

// Complete reports whether every acknowledgement flag is set; recovery
// cannot proceed on a partial acknowledgement.
func (a Acknowledgement) Complete() bool {
	return a.UnderstoodReason && a.UnderstoodWhatFailed && a.UnderstoodForbidden && a.ResponsibilityAccepted
}

// riskRecord renders the acknowledgement as the machine-generated
// consequence record the ceremony compares byte-for-byte: any flag that
// differs between step 1 and step 2 produces a different record and the
// confirmation is refused.
func riskRecord(haltReportPath string, ack Acknowledgement) ktrust.RiskAcknowledgement {
	return ktrust.RiskAcknowledgement{
		OperationID: "kill_switch_recovery:" + haltReportPath,
		Consequences: []string{
			fmt.Sprintf("understood_reason=%t", ack.UnderstoodReason),
			fmt.Sprintf("understood_what_failed=%t", ack.UnderstoodWhatFailed),
			fmt.Sprintf("understood_forbidden=%t", ack.UnderstoodForbidden),
			fmt.Sprintf("responsibility_accepted=%t", ack.ResponsibilityAccepted),
			"kill-switch becomes eligible for unlock once all recovery verifications pass",
		},
		RiskLevel:   ktrust.RiskIrreversible,
		BlastRadius: []string{haltReportPath},
		Reversible:  false,
	}
}

// pendingRecovery is the in-memory state between step 1 and step 2.
type pendingRecovery struct {
	haltReportPath string
	confirmation   *ktrust.PendingConfirmation
}

// RecoveryCoordinator runs the two-step, OWNER-only recovery gate as a
// ktrust confirmation ceremony: acknowledge first, then confirm with
// the issued code after the timelock and before the window closes.
type RecoveryCoordinator struct {
	mu        sync.Mutex
	confirmer *ktrust.Confirmer
	pending   *pendingRecovery
}

// NewRecoveryCoordinator returns a RecoveryCoordinator using the real
// clock.
func NewRecoveryCoordinator() *RecoveryCoordinator {
	return &RecoveryCoordinator{confirmer: ktrust.NewConfirmer()}
}

// WithClock overrides the ceremony clock for deterministic testing.
func (rc *RecoveryCoordinator) WithClock(clock func() time.Time) *RecoveryCoordinator {
	rc.confirmer.WithClock(clock)
	return rc
}

// InitiateRecoveryAcknowledgement is step 1: it takes the halt report
// path and the four acknowledgement booleans and returns a confirmation
// code that must be re-submitted no earlier than MinConfirmationWait
// and within ConfirmationWindow.
func (rc *RecoveryCoordinator) InitiateRecoveryAcknowledgement(haltReportPath string, ack Acknowledgement) (string, error) {
	if !ack.Complete() {
		return "", kerr.New(kerr.CodeInvalidInputValue, "all four recovery acknowledgements must be true")
	}
	if haltReportPath == "" {
		return "", kerr.New(kerr.CodeMissingRequiredField, "halt report path is required")
	}

	pc, err := rc.confirmer.Initiate(riskRecord(haltReportPath, ack))
	if err != nil {
		return "", err
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.pending = &pendingRecovery{haltReportPath: haltReportPath, confirmation: pc}
	return pc.Token, nil
}

// ConfirmRecovery is step 2: it must be called with the step-1 code and
// must re-state the four acknowledgements byte-identically to what was
// given at step 1.
func (rc *RecoveryCoordinator) ConfirmRecovery(code string, ack Acknowledgement) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.pending == nil {
		return kerr.New(kerr.CodeInvalidInputValue, "no recovery acknowledgement has been initiated")
	}
	if err := rc.confirmer.Confirm(rc.pending.confirmation, code, riskRecord(rc.pending.haltReportPath, ack)); err != nil {
		return err
	}

	rc.pending = nil
	return nil
}
