package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerWindow() map[string]interface{} {
	return map[string]interface{}{
		"seq:1": map[string]interface{}{"tool": "initialize", "result": "ok"},
		"seq:2": map[string]interface{}{"tool": "write_file", "result": "ok"},
		"seq:3": map[string]interface{}{"tool": "write_file", "result": "error"},
	}
}

func TestBuildMerkleTree_RootIsDeterministic(t *testing.T) {
	t1, err := BuildMerkleTree(ledgerWindow())
	require.NoError(t, err)
	t2, err := BuildMerkleTree(ledgerWindow())
	require.NoError(t, err)

	require.Len(t, t1.Leaves, 3)
	assert.NotEmpty(t, t1.Root)
	assert.Equal(t, t1.Root, t2.Root)
}

func TestBuildMerkleTree_OddLeafCountDuplicatesTail(t *testing.T) {
	tree, err := BuildMerkleTree(ledgerWindow())
	require.NoError(t, err)

	// Three leaves pair as (L1,L2) and (L3,L3); the root covers both
	// intermediate nodes.
	h1, h2, h3 := tree.Leaves[0].LeafHash, tree.Leaves[1].LeafHash, tree.Leaves[2].LeafHash
	n1 := buildNodeHash(h1, h2)
	n2 := buildNodeHash(h3, h3)
	assert.Equal(t, buildNodeHash(n1, n2), tree.Root)
}

func TestBuildMerkleTree_EmptyInput(t *testing.T) {
	tree, err := BuildMerkleTree(nil)
	require.NoError(t, err)
	assert.Empty(t, tree.Root)
}

func TestInclusionProof_RoundTrip(t *testing.T) {
	tree, err := BuildMerkleTree(ledgerWindow())
	require.NoError(t, err)

	for _, leaf := range tree.Leaves {
		proof, err := GenerateInclusionProof(tree, leaf.Path)
		require.NoError(t, err)
		assert.True(t, VerifyInclusionProof(*proof, tree.Root), "proof for %s should verify", leaf.Path)
	}
}

func TestInclusionProof_RejectsWrongLeafHash(t *testing.T) {
	tree, err := BuildMerkleTree(ledgerWindow())
	require.NoError(t, err)

	proof, err := GenerateInclusionProof(tree, "seq:3")
	require.NoError(t, err)

	bad := *proof
	bad.LeafHash = tree.Leaves[0].LeafHash
	assert.False(t, VerifyInclusionProof(bad, tree.Root))
}

func TestInclusionProof_RejectsForeignRoot(t *testing.T) {
	tree, err := BuildMerkleTree(ledgerWindow())
	require.NoError(t, err)

	proof, err := GenerateInclusionProof(tree, "seq:1")
	require.NoError(t, err)
	assert.False(t, VerifyInclusionProof(*proof, "deadbeef"))
}

func TestGenerateInclusionProof_UnknownPath(t *testing.T) {
	tree, err := BuildMerkleTree(ledgerWindow())
	require.NoError(t, err)

	_, err = GenerateInclusionProof(tree, "seq:99")
	assert.Error(t, err)
}
