package kkill_test

import (
	"testing"
	"time"

	"github.com/kaiza-dev/kaiza/pkg/kkill"
	"github.com/stretchr/testify/require"
)

func fullAck() kkill.Acknowledgement {
	return kkill.Acknowledgement{
		UnderstoodReason:       true,
		UnderstoodWhatFailed:   true,
		UnderstoodForbidden:    true,
		ResponsibilityAccepted: true,
	}
}

func TestRecoveryCoordinator_TwoStep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rc := kkill.NewRecoveryCoordinator().WithClock(func() time.Time { return now })

	code, err := rc.InitiateRecoveryAcknowledgement("docs/reports/HALT_REPORT_x.md", fullAck())
	require.NoError(t, err)
	require.NotEmpty(t, code)

	now = now.Add(kkill.MinConfirmationWait + time.Second)
	require.NoError(t, rc.ConfirmRecovery(code, fullAck()))
}

func TestRecoveryCoordinator_RejectsConfirmationBeforeTimelock(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rc := kkill.NewRecoveryCoordinator().WithClock(func() time.Time { return now })

	code, err := rc.InitiateRecoveryAcknowledgement("docs/reports/HALT_REPORT_x.md", fullAck())
	require.NoError(t, err)

	// Confirming immediately, before the 30s timelock elapses, refuses.
	require.Error(t, rc.ConfirmRecovery(code, fullAck()))
}

func TestRecoveryCoordinator_RejectsExpiredWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rc := kkill.NewRecoveryCoordinator().WithClock(func() time.Time { return now })

	code, err := rc.InitiateRecoveryAcknowledgement("docs/reports/HALT_REPORT_x.md", fullAck())
	require.NoError(t, err)

	now = now.Add(kkill.ConfirmationWindow + time.Minute)
	require.Error(t, rc.ConfirmRecovery(code, fullAck()))
}

func TestRecoveryCoordinator_RejectsMismatchedAcknowledgement(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rc := kkill.NewRecoveryCoordinator().WithClock(func() time.Time { return now })

	code, err := rc.InitiateRecoveryAcknowledgement("docs/reports/HALT_REPORT_x.md", fullAck())
	require.NoError(t, err)

	now = now.Add(kkill.MinConfirmationWait + time.Second)
	wrong := fullAck()
	wrong.ResponsibilityAccepted = false
	require.Error(t, rc.ConfirmRecovery(code, wrong))
}

func TestRecoveryCoordinator_RejectsIncompleteAcknowledgement(t *testing.T) {
	rc := kkill.NewRecoveryCoordinator()
	partial := fullAck()
	partial.ResponsibilityAccepted = false
	_, err := rc.InitiateRecoveryAcknowledgement("docs/reports/HALT_REPORT_x.md", partial)
	require.Error(t, err)
}
