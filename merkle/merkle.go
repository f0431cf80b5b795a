// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package merkle commits to an ordered list of serialized items.
//
// Leaves are keccak256(item) and each parent is keccak256(left || right), so
// the root depends on the order of the items. When a level has an odd number
// of nodes the last one is promoted to the next level unchanged. The root of
// an empty list is [ids.Empty].
package merkle

import (
	"errors"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/ledgervm/crypto"
)

var ErrIndexOutOfRange = errors.New("leaf index out of range")

// ProofNode is a sibling on the path from a leaf to the root. [Left] is true
// when the sibling sits to the left of the running hash.
type ProofNode struct {
	Hash ids.ID
	Left bool
}

type Tree struct {
	// levels[0] holds the leaf hashes and the last level holds the root.
	levels [][]ids.ID
}

// New builds every level of the tree over [items].
func New(items [][]byte) *Tree {
	if len(items) == 0 {
		return &Tree{}
	}
	level := make([]ids.ID, len(items))
	for i, item := range items {
		level[i] = crypto.Keccak256(item)
	}
	levels := [][]ids.ID{level}
	for len(level) > 1 {
		next := make([]ids.ID, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}
}

// Root returns the committed root, or [ids.Empty] for an empty tree.
func (t *Tree) Root() ids.ID {
	if len(t.levels) == 0 {
		return ids.Empty
	}
	return t.levels[len(t.levels)-1][0]
}

// Leaves returns the number of committed items.
func (t *Tree) Leaves() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Proof returns the siblings needed to recompute the root from leaf [index].
func (t *Tree) Proof(index int) ([]ProofNode, error) {
	if index < 0 || index >= t.Leaves() {
		return nil, ErrIndexOutOfRange
	}
	proof := make([]ProofNode, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling < len(level) {
			proof = append(proof, ProofNode{
				Hash: level[sibling],
				Left: sibling < index,
			})
		}
		index /= 2
	}
	return proof, nil
}

// Root computes the root over [items] without retaining the tree.
func Root(items [][]byte) ids.ID {
	return New(items).Root()
}

// Verify reports whether [item] is included under [root] following [proof].
func Verify(item []byte, proof []ProofNode, root ids.ID) bool {
	h := crypto.Keccak256(item)
	for _, node := range proof {
		if node.Left {
			h = hashPair(node.Hash, h)
		} else {
			h = hashPair(h, node.Hash)
		}
	}
	return h == root
}

func hashPair(left, right ids.ID) ids.ID {
	return crypto.Keccak256(left[:], right[:])
}
