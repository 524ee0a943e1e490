// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package merkle implements the binary commitment trees the proof's column
// data is bound to. The hasher comes from the selected Merkle channel, so
// Poseidon252 and Blake2s proofs commit differently.
package merkle

import (
	"errors"

	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/m31"
)

var ErrNotPowerOfTwo = errors.New("leaf count is not a power of two")

// Tree is a committed vector of leaves.
type Tree struct {
	Root   channel.Hash
	levels [][]channel.Hash
}

// Commit hashes the leaves and builds the tree. The leaf count must be a
// power of two.
func Commit(hasher channel.Hasher, leaves [][]m31.M31) (*Tree, error) {
	n := len(leaves)
	if n == 0 || n&(n-1) != 0 {
		return nil, ErrNotPowerOfTwo
	}
	level := make([]channel.Hash, n)
	for i, leaf := range leaves {
		level[i] = hasher.HashLeaf(leaf)
	}
	levels := [][]channel.Hash{level}
	for len(level) > 1 {
		next := make([]channel.Hash, len(level)/2)
		for i := range next {
			next[i] = hasher.HashPair(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{Root: level[0], levels: levels}, nil
}

// Prove returns the authentication path of one leaf.
func (t *Tree) Prove(index int) []channel.Hash {
	var path []channel.Hash
	for _, level := range t.levels[:len(t.levels)-1] {
		path = append(path, level[index^1])
		index >>= 1
	}
	return path
}

// Verify recomputes the root from a leaf and its path.
func Verify(hasher channel.Hasher, root channel.Hash, leaf []m31.M31, index int, path []channel.Hash) bool {
	current := hasher.HashLeaf(leaf)
	for _, sibling := range path {
		if index&1 == 0 {
			current = hasher.HashPair(current, sibling)
		} else {
			current = hasher.HashPair(sibling, current)
		}
		index >>= 1
	}
	return current == root
}
