package ktrust

import (
	"time"

	"github.com/google/uuid"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// MinConfirmationWait is the minimum time that must elapse between
// step 1 (initiate) and step 2 (confirm) of the ceremony.
const MinConfirmationWait = 30 * time.Second

// ConfirmationWindow is the maximum time step 2 may lag step 1.
const ConfirmationWindow = 5 * time.Minute

// PendingConfirmation is the state created by step 1 and consumed by
// step 2. Callers persist it keyed by Token for the life of the window;
// ktrust itself holds no storage.
type PendingConfirmation struct {
	Token           string
	Acknowledgement RiskAcknowledgement
	InitiatedAt     time.Time
}

// Confirmer runs the two-step confirmation ceremony. It is stateless and
// safe for concurrent use; all state lives in the PendingConfirmation the
// caller threads between Initiate and Confirm.
type Confirmer struct {
	clock func() time.Time
}

// NewConfirmer returns a Confirmer using the real wall clock.
func NewConfirmer() *Confirmer {
	return &Confirmer{clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (c *Confirmer) WithClock(clock func() time.Time) *Confirmer {
	c.clock = clock
	return c
}

// Initiate is step 1: it stamps ack with a fresh confirmation token and
// the current time. The caller must hold the returned value until Confirm
// is called; no earlier than MinConfirmationWait later.
func (c *Confirmer) Initiate(ack RiskAcknowledgement) (*PendingConfirmation, error) {
	if !ack.RiskLevel.Valid() {
		return nil, kerr.New(kerr.CodeInvalidInputValue, "risk_level must be one of LOW, MEDIUM, HIGH, IRREVERSIBLE")
	}
	if len(ack.Consequences) == 0 {
		return nil, kerr.New(kerr.CodeMissingRequiredField, "risk acknowledgement must carry machine-generated consequences")
	}
	return &PendingConfirmation{
		Token:           uuid.NewString(),
		Acknowledgement: ack,
		InitiatedAt:     c.clock().UTC(),
	}, nil
}

// Confirm is step 2: token and the re-submitted ack must match the
// pending confirmation exactly, the elapsed time since Initiate must be
// at least MinConfirmationWait, and no more than ConfirmationWindow.
func (c *Confirmer) Confirm(pending *PendingConfirmation, token string, resubmitted RiskAcknowledgement) error {
	if pending == nil {
		return kerr.New(kerr.CodeRiskAcknowledgementStale, "no pending confirmation for this operation")
	}
	if pending.Token != token {
		return kerr.New(kerr.CodeRiskAcknowledgementMismatch, "confirmation token does not match the initiating ceremony")
	}
	if !pending.Acknowledgement.Equal(resubmitted) {
		return kerr.New(kerr.CodeRiskAcknowledgementMismatch, "re-submitted consequences are not byte-identical to the initiating acknowledgement")
	}

	elapsed := c.clock().UTC().Sub(pending.InitiatedAt)
	if elapsed < MinConfirmationWait {
		return kerr.New(kerr.CodeConfirmationTimelockActive, "confirmation submitted before the minimum wait elapsed")
	}
	if elapsed > ConfirmationWindow {
		return kerr.New(kerr.CodeRiskAcknowledgementStale, "confirmation window has expired; re-initiate the ceremony")
	}
	return nil
}
