package ksession

import (
	"context"
	"testing"

	"github.com/kaiza-dev/kaiza/pkg/kaudit"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUninitializedSessionOnlyAllowsInitialize(t *testing.T) {
	s := New()
	assert.False(t, s.IsInitialized())
	assert.Error(t, s.RequireInitialized())
	assert.Equal(t, map[string]bool{"initialize": true}, s.AllowedTools())
}

func TestInitializeBindsRoleAndWorkspaceRoot(t *testing.T) {
	dir := t.TempDir()
	s := New()
	err := s.Initialize(context.Background(), dir, RoleExecution)
	require.NoError(t, err)

	assert.True(t, s.IsInitialized())
	assert.Equal(t, RoleExecution, s.Role())
	root, err := s.WorkspaceRoot()
	require.NoError(t, err)
	assert.NotEmpty(t, root)

	ledger, err := s.Ledger()
	require.NoError(t, err)
	assert.NotNil(t, ledger)
}

func TestSecondInitializeAlwaysFails(t *testing.T) {
	dir := t.TempDir()
	s := New()
	require.NoError(t, s.Initialize(context.Background(), dir, RoleExecution))

	err := s.Initialize(context.Background(), dir, RoleExecution)
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeSessionAlreadyInitialized, env.ErrorCode)
}

func TestInitializeRejectsInvalidRole(t *testing.T) {
	dir := t.TempDir()
	s := New()
	err := s.Initialize(context.Background(), dir, Role("OBSERVER"))
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeInvalidInputValue, env.ErrorCode)
	assert.False(t, s.IsInitialized())
}

func TestPreSessionBufferFlushesOnInitialize(t *testing.T) {
	dir := t.TempDir()
	s := New()
	s.Buffer().Add(kaudit.WriteRequest{SessionID: s.ID(), Tool: "read_file", Result: kaudit.ResultOK})
	s.Buffer().Add(kaudit.WriteRequest{SessionID: s.ID(), Tool: "list_plans", Result: kaudit.ResultOK})

	require.NoError(t, s.Initialize(context.Background(), dir, RolePlanning))

	ledger, err := s.Ledger()
	require.NoError(t, err)
	entries, err := ledger.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Buffered)
	assert.True(t, entries[1].Buffered)
	assert.Equal(t, uint64(1), entries[0].Seq)
	assert.Equal(t, uint64(2), entries[1].Seq)
	assert.Equal(t, 0, s.Buffer().Len())
}

func TestAllowedToolsDisjointByRole(t *testing.T) {
	dir := t.TempDir()
	s := New()
	require.NoError(t, s.Initialize(context.Background(), dir, RolePlanning))

	tools := s.AllowedTools()
	assert.True(t, tools["bootstrap_create_foundation_plan"])
	assert.False(t, tools["write_file"])
	assert.True(t, tools["read_file"])
}

func TestAssertDisjointToolSetsPasses(t *testing.T) {
	assert.NoError(t, AssertDisjointToolSets())
}

func TestLockMarksHardLock(t *testing.T) {
	s := New()
	assert.False(t, s.IsLocked())
	s.Lock()
	assert.True(t, s.IsLocked())
}

func TestParseRoleRejectsUnknown(t *testing.T) {
	_, err := ParseRole("ADMIN")
	require.Error(t, err)
}
