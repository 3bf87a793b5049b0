package kproposal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kaiza-dev/kaiza/pkg/kpath"
	"github.com/kaiza-dev/kaiza/pkg/kproposal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) *kpath.Resolver {
	t.Helper()
	dir := t.TempDir()
	r := kpath.New()
	_, err := r.Lock(dir)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".kaiza"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "proposals"), 0o755))
	return r
}

func notStale(string) (bool, error) { return false, nil }

func TestStore_CreateAndList(t *testing.T) {
	store := kproposal.NewStore(newResolver(t))

	p := kproposal.Proposal{
		ProposalType:        kproposal.TypePlanCorrection,
		EvidenceRefs:        []string{"sha256:abc"},
		ViolationsAddressed: []string{"sha256:abc"},
		ExactChangesRequested: []kproposal.ChangeRequest{
			{Description: "fix step 2", EvidenceRefs: []string{"sha256:abc"}},
		},
	}

	created, err := store.Create(p, notStale)
	require.NoError(t, err)
	assert.Equal(t, kproposal.StatusPending, created.Status)
	assert.NotEmpty(t, created.ProposalID)

	all, err := store.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, created.ProposalID, all[0].ProposalID)
}

func TestStore_CreateRejectsUnboundProposal(t *testing.T) {
	store := kproposal.NewStore(newResolver(t))

	p := kproposal.Proposal{
		ProposalType:        kproposal.TypeIntentCorrection,
		ViolationsAddressed: []string{"sha256:not-in-evidence"},
	}

	_, err := store.Create(p, notStale)
	require.Error(t, err)
}

func TestStore_ApproveIsImmutableOnceDecided(t *testing.T) {
	store := kproposal.NewStore(newResolver(t))

	p := kproposal.Proposal{
		ProposalType: kproposal.TypeExecutionRetry,
		EvidenceRefs: []string{"sha256:abc"},
	}
	created, err := store.Create(p, notStale)
	require.NoError(t, err)

	approved, err := store.Approve(created.ProposalID, true, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, kproposal.StatusApproved, approved.Status)

	_, err = store.Approve(created.ProposalID, false, "operator-1")
	require.Error(t, err)
}

func TestStore_ApproveRejectsStalePlan(t *testing.T) {
	store := kproposal.NewStore(newResolver(t))
	p := kproposal.Proposal{
		ProposalType: kproposal.TypePolicyExceptionRequest,
		EvidenceRefs: []string{"sha256:abc"},
		PlanHash:     "deadbeef",
	}

	_, err := store.Create(p, func(string) (bool, error) { return true, nil })
	require.Error(t, err)
}
