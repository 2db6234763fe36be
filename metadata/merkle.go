package metadata

import (
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

var (
	leafPrefix  = []byte{0x00}
	innerPrefix = []byte{0x01}
)

// MerkleTree is a binary tree over the sliver pair hashes. Levels with an
// odd number of nodes are padded with the Empty node.
type MerkleTree struct {
	leaves int
	levels [][]MerkleNode //levels[0] are the leaves, the last level is the root
}

func leafHash(pair *SliverPairMetadata) MerkleNode {
	return DigestNode(hashParts(leafPrefix, pair.PrimaryHash.Bytes(), pair.SecondaryHash.Bytes()))
}

func innerHash(left, right MerkleNode) MerkleNode {
	return DigestNode(hashParts(innerPrefix, left.Bytes(), right.Bytes()))
}

func NewMerkleTree(hashes []SliverPairMetadata) *MerkleTree {
	if len(hashes) == 0 {
		return &MerkleTree{levels: [][]MerkleNode{{EmptyNode()}}}
	}
	level := make([]MerkleNode, len(hashes))
	for i := range hashes {
		level[i] = leafHash(&hashes[i])
	}
	levels := [][]MerkleNode{level}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, EmptyNode())
			levels[len(levels)-1] = level
		}
		next := make([]MerkleNode, len(level)/2)
		for i := range next {
			next[i] = innerHash(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}
	return &MerkleTree{leaves: len(hashes), levels: levels}
}

func (t *MerkleTree) Root() MerkleNode {
	return t.levels[len(t.levels)-1][0]
}

// Proof returns the sibling path from leaf i to the root.
func (t *MerkleTree) Proof(i int) ([]MerkleNode, error) {
	if i < 0 || i >= t.leaves {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "leaf %d out of range", i)
	}
	proof := make([]MerkleNode, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		proof = append(proof, level[i^1])
		i /= 2
	}
	return proof, nil
}

// VerifyProof checks that pair sits at index i under root.
func VerifyProof(root MerkleNode, i int, pair SliverPairMetadata, proof []MerkleNode) bool {
	node := leafHash(&pair)
	for _, sibling := range proof {
		if i%2 == 0 {
			node = innerHash(node, sibling)
		} else {
			node = innerHash(sibling, node)
		}
		i /= 2
	}
	return i == 0 && node == root
}
