// Package merkle builds domain-separated Merkle trees over canonical
// JSON values. The attestation bundle commits to the full audit window
// through the tree root, and inclusion proofs let a third party check a
// single ledger entry against a published root without holding the
// whole log.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/kaiza-dev/kaiza/pkg/kcanon"
)

const (
	leafDomain = "kaiza:audit:leaf:v1"
	nodeDomain = "kaiza:audit:node:v1"
)

// Leaf is one committed key/value pair.
type Leaf struct {
	Path      string
	LeafBytes []byte
	LeafHash  string
}

// Tree is a fully-built Merkle tree. Nodes holds every level of node
// hashes, leaf level first, root level last.
type Tree struct {
	Leaves []Leaf
	Root   string
	Nodes  [][]string
}

// BuildMerkleTree constructs a tree from a map of path->value. Keys are
// sorted before hashing so the root never depends on map iteration
// order.
func BuildMerkleTree(data map[string]interface{}) (*Tree, error) {
	paths := make([]string, 0, len(data))
	for k := range data {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	leaves := make([]Leaf, len(paths))
	for i, path := range paths {
		canBytes, err := kcanon.CanonicalJSON(data[path])
		if err != nil {
			return nil, err
		}
		leafBytes := buildLeafBytes(path, canBytes)
		leaves[i] = Leaf{
			Path:      path,
			LeafBytes: leafBytes,
			LeafHash:  sha256Hex(leafBytes),
		}
	}

	if len(leaves) == 0 {
		return &Tree{Root: ""}, nil
	}

	tree := &Tree{Leaves: leaves}
	currentLevel := extractHashes(leaves)

	for len(currentLevel) > 1 {
		tree.Nodes = append(tree.Nodes, currentLevel)
		currentLevel = buildNextLevel(currentLevel)
	}

	tree.Root = currentLevel[0]
	tree.Nodes = append(tree.Nodes, currentLevel)

	return tree, nil
}

// Leaf bytes are leafDomain || 0x00 || path || 0x00 || canonical value.
func buildLeafBytes(path string, canonical []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(leafDomain)
	buf.WriteByte(0)
	buf.WriteString(path)
	buf.WriteByte(0)
	buf.Write(canonical)
	return buf.Bytes()
}

func extractHashes(leaves []Leaf) []string {
	hashes := make([]string, len(leaves))
	for i, l := range leaves {
		hashes[i] = l.LeafHash
	}
	return hashes
}

// buildNextLevel pairs hashes left-to-right, duplicating a trailing odd
// hash so every node has two children.
func buildNextLevel(hashes []string) []string {
	count := len(hashes)
	if count%2 != 0 {
		hashes = append(hashes, hashes[count-1])
		count++
	}

	nextLevel := make([]string, count/2)
	for i := 0; i < count; i += 2 {
		nextLevel[i/2] = buildNodeHash(hashes[i], hashes[i+1])
	}
	return nextLevel
}

func buildNodeHash(left, right string) string {
	var buf bytes.Buffer
	buf.WriteString(nodeDomain)
	buf.WriteByte(0)
	buf.Write(hexToBytes(left))
	buf.Write(hexToBytes(right))
	return sha256Hex(buf.Bytes())
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hexToBytes(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}
