package kkill_test

import (
	"path/filepath"
	"testing"

	"github.com/kaiza-dev/kaiza/pkg/kkill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitch_EngageAndGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kill_switch.json")
	sw := kkill.New(path)

	engaged, err := sw.IsEngaged()
	require.NoError(t, err)
	assert.False(t, engaged)

	_, err = sw.Engage([]kkill.FailureID{kkill.FAudit}, []string{"INV_AUDIT_CHAIN"}, "tamper detected")
	require.NoError(t, err)

	engaged, err = sw.IsEngaged()
	require.NoError(t, err)
	assert.True(t, engaged)
}

func TestSwitch_UnlockRequiresAllVerifications(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kill_switch.json")
	sw := kkill.New(path)
	_, err := sw.Engage([]kkill.FailureID{kkill.FAuditWrite}, nil, "write failed")
	require.NoError(t, err)

	err = sw.Unlock()
	assert.Error(t, err)

	require.NoError(t, sw.RecordVerification("audit_verify"))
	require.NoError(t, sw.RecordVerification("plan_lint_all"))
	err = sw.Unlock()
	assert.Error(t, err, "still missing maturity_recompute")

	require.NoError(t, sw.RecordVerification("maturity_recompute"))
	require.NoError(t, sw.Unlock())

	engaged, err := sw.IsEngaged()
	require.NoError(t, err)
	assert.False(t, engaged)
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, kkill.SeverityCritical, kkill.SeverityOf(kkill.FSecurity))
	assert.Equal(t, kkill.SeverityHigh, kkill.SeverityOf(kkill.FHumanFatigue))
	assert.True(t, kkill.IsCritical(kkill.FPlanHash))
	assert.False(t, kkill.IsCritical(kkill.FEnvFS))
}
