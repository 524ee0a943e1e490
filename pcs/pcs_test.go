// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pcs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/m31"
)

func testColumns() [][]m31.M31 {
	long := make([]m31.M31, 16)
	short := make([]m31.M31, 4)
	for i := range long {
		long[i] = m31.New(uint32(i + 1))
	}
	for i := range short {
		short[i] = m31.New(uint32(100 + i))
	}
	return [][]m31.M31{long, short}
}

func TestCommitOpenVerify(t *testing.T) {
	hasher := channel.NewHasher(channel.Blake2s)
	tree, err := Commit(hasher, testColumns())
	require.NoError(t, err)
	require.Len(t, tree.Roots, 2)

	lengths := []int{16, 4}
	for _, pos := range []int{0, 5, 15} {
		opening := tree.Open(pos)
		// Shorter columns are opened at the position reduced modulo their
		// length.
		require.Equal(t, tree.Columns[1][pos%4], opening.Columns[1].Value)
		require.NoError(t, VerifyOpening(hasher, tree.Roots, lengths, pos, opening))
	}
}

func TestVerifyOpeningRejectsTamperedValue(t *testing.T) {
	hasher := channel.NewHasher(channel.Blake2s)
	tree, err := Commit(hasher, testColumns())
	require.NoError(t, err)

	opening := tree.Open(3)
	opening.Columns[0].Value = opening.Columns[0].Value.Add(m31.One)
	require.Error(t, VerifyOpening(hasher, tree.Roots, []int{16, 4}, 3, opening))
}

func TestChainRootsOrderSensitive(t *testing.T) {
	hasher := channel.NewHasher(channel.Blake2s)
	a := channel.Hash{1}
	b := channel.Hash{2}
	require.NotEqual(t,
		ChainRoots(hasher, []channel.Hash{a, b}),
		ChainRoots(hasher, []channel.Hash{b, a}),
	)
}
