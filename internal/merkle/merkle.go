// Package merkle builds Merkle roots and inclusion proofs over a list of
// leaf hashes, the same way the teacher's blockchain/merkle.go builds a
// tree of hashed transactions, generalized to the spec's duplicate-last-
// leaf rule and direction-tagged proof items.
package merkle

import (
	"errors"

	"github.com/satoshilite/core/internal/crypto"
)

// Direction indicates which side of the accumulator a proof sibling
// combines on.
type Direction int

const (
	Left Direction = iota
	Right
)

// ProofItem is one step of a Merkle inclusion proof.
type ProofItem struct {
	Hash      crypto.Hash
	Direction Direction
}

// ErrNotFound is returned by Proof when the target leaf is absent.
var ErrNotFound = errors.New("merkle: leaf not found")

// Root computes the Merkle root of leaves. An odd-length level duplicates
// its last element before pairing. An empty leaf list yields the zero
// hash.
func Root(leaves []crypto.Hash) crypto.Hash {
	if len(leaves) == 0 {
		return crypto.ZeroHash
	}
	level := evenLevel(leaves)
	for len(level) > 1 {
		level = hashPairs(level)
		if len(level) > 1 {
			level = evenLevel(level)
		}
	}
	return level[0]
}

// Proof returns the inclusion path for leaf within leaves: a list of
// (sibling hash, direction) pairs from the leaf's level up to the root.
// Direction Right means the sibling combines after the accumulated hash.
func Proof(leaf crypto.Hash, leaves []crypto.Hash) ([]ProofItem, error) {
	if len(leaves) == 0 {
		return nil, ErrNotFound
	}

	level := evenLevel(leaves)
	idx := indexOf(level, leaf)
	if idx < 0 {
		return nil, ErrNotFound
	}

	var proof []ProofItem
	for len(level) > 1 {
		siblingIdx, dir := sibling(idx)
		proof = append(proof, ProofItem{Hash: level[siblingIdx], Direction: dir})

		level = hashPairs(level)
		if len(level) > 1 {
			level = evenLevel(level)
		}
		idx /= 2
	}
	return proof, nil
}

// VerifyProof folds proof starting from leaf and checks the result equals
// root.
func VerifyProof(root crypto.Hash, leaf crypto.Hash, proof []ProofItem) bool {
	acc := leaf
	for _, item := range proof {
		if item.Direction == Right {
			acc = crypto.SHA256(append(append([]byte{}, acc[:]...), item.Hash[:]...))
		} else {
			acc = crypto.SHA256(append(append([]byte{}, item.Hash[:]...), acc[:]...))
		}
	}
	return acc == root
}

func indexOf(level []crypto.Hash, target crypto.Hash) int {
	for i, h := range level {
		if h == target {
			return i
		}
	}
	return -1
}

func sibling(idx int) (siblingIdx int, dir Direction) {
	if idx%2 == 0 {
		return idx + 1, Right
	}
	return idx - 1, Left
}

func evenLevel(level []crypto.Hash) []crypto.Hash {
	if len(level)%2 != 0 {
		level = append(append([]crypto.Hash{}, level...), level[len(level)-1])
	}
	return level
}

func hashPairs(level []crypto.Hash) []crypto.Hash {
	next := make([]crypto.Hash, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		combined := append(append([]byte{}, level[i][:]...), level[i+1][:]...)
		next = append(next, crypto.SHA256(combined))
	}
	return next
}
