package kplan

import (
	"os"
	"testing"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	r := kpath.New()
	_, err := r.Lock(dir)
	require.NoError(t, err)

	plansDir, err := r.PlansDir()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(plansDir, 0o755))

	return NewRegistry(r)
}

func TestStoreThenLoadRoundTrips(t *testing.T) {
	reg := newTestRegistry(t)
	hash, err := reg.Store(validPlan)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	p, raw, err := reg.Load(hash)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Len(t, p.Phases, 1)
}

func TestStoreIsIdempotentForIdenticalContent(t *testing.T) {
	reg := newTestRegistry(t)
	h1, err := reg.Store(validPlan)
	require.NoError(t, err)
	h2, err := reg.Store(validPlan)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestApproveStampsStatusAndPreservesHash(t *testing.T) {
	reg := newTestRegistry(t)
	hash, err := reg.Store(validPlan)
	require.NoError(t, err)

	require.NoError(t, reg.Approve(hash))

	p, err := reg.RequireApproved(hash)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, p.Header.Status)
	assert.Equal(t, hash, p.Header.Hash)
}

func TestRequireApprovedRefusesDraftPlan(t *testing.T) {
	reg := newTestRegistry(t)
	hash, err := reg.Store(validPlan)
	require.NoError(t, err)

	_, err = reg.RequireApproved(hash)
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodePlanNotApproved, env.ErrorCode)
}

func TestLoadDetectsTamperedContent(t *testing.T) {
	reg := newTestRegistry(t)
	hash, err := reg.Store(validPlan)
	require.NoError(t, err)

	path, err := reg.resolver.ResolvePlanPath(hash)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(validPlan+"\ntampered\n"), 0o644))

	_, _, err = reg.Load(hash)
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeHashMismatch, env.ErrorCode)
}
