// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package channel implements the Fiat-Shamir transcript and the Merkle
// hashers bound to it. The channel is the single ordering authority of the
// protocol: prover and verifier absorb the same data in the same order or
// derive different challenges. Two instantiations are supported, Poseidon252
// and Blake2s; proofs produced under one do not verify under the other.
package channel

import (
	"sort"

	"github.com/luxfi/cairo/m31"
)

// Kind selects the hash the transcript and Merkle trees run on.
type Kind int

const (
	Poseidon252 Kind = iota
	Blake2s
)

func (k Kind) String() string {
	switch k {
	case Poseidon252:
		return "poseidon252"
	case Blake2s:
		return "blake2s"
	default:
		return "invalid"
	}
}

// Hash is a Merkle node. Poseidon252 stores a field element in it; Blake2s a
// raw digest.
type Hash [32]byte

// Channel is the sequential Fiat-Shamir transcript. All Mix and Draw calls
// must go through a single owner; any reordering changes every later
// challenge.
type Channel interface {
	// MixU64 absorbs an integer.
	MixU64(v uint64)
	// MixFelts absorbs extension-field elements.
	MixFelts(felts []m31.QM31)
	// MixRoot absorbs a commitment.
	MixRoot(root Hash)
	// DrawFelt samples one extension-field challenge.
	DrawFelt() m31.QM31
	// DrawFelts samples n challenges.
	DrawFelts(n int) []m31.QM31
}

// New creates the transcript for the given hash choice.
func New(kind Kind) Channel {
	switch kind {
	case Poseidon252:
		return newPoseidonChannel()
	default:
		return newBlake2sChannel()
	}
}

// Hasher hashes leaves and inner nodes of commitment trees.
type Hasher interface {
	HashLeaf(values []m31.M31) Hash
	HashPair(left, right Hash) Hash
}

// NewHasher creates the Merkle hasher matching the channel kind.
func NewHasher(kind Kind) Hasher {
	switch kind {
	case Poseidon252:
		return poseidonHasher{}
	default:
		return blake2sHasher{}
	}
}

// DrawQueries samples nQueries distinct positions in [0, 2^logSize), sorted
// ascending.
func DrawQueries(ch Channel, nQueries, logSize int) []int {
	mask := 1<<logSize - 1
	seen := make(map[int]struct{}, nQueries)
	out := make([]int, 0, nQueries)
	for len(out) < nQueries && len(out) < 1<<logSize {
		felt := ch.DrawFelt()
		for _, c := range felt.Coordinates() {
			if len(out) == nQueries {
				break
			}
			q := int(c.Uint32()) & mask
			if _, dup := seen[q]; dup {
				continue
			}
			seen[q] = struct{}{}
			out = append(out, q)
		}
	}
	sort.Ints(out)
	return out
}
