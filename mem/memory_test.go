// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mem

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/cairo/m31"
)

func TestSplitWordRoundTrip(t *testing.T) {
	for _, hex := range []string{
		"0x0",
		"0x1",
		"0x1ff",
		"0x200",
		"0x123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	} {
		w := uint256.MustFromHex(hex)
		limbs := SplitWord(w)
		require.Equal(t, w, limbs.Word(), "word %s", hex)
	}
}

func TestSplitWordLimbBounds(t *testing.T) {
	w := uint256.MustFromHex("0x7ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	for i, limb := range SplitWord(w) {
		require.LessOrEqual(t, limb.Uint32(), uint32(LimbMask), "limb %d", i)
	}
}

func TestSmallBoundaryClassification(t *testing.T) {
	// 511 is the last small value; 512 is the first big one.
	require.True(t, IsSmallWord(uint256.NewInt(SmallValueMax)))
	require.False(t, IsSmallWord(uint256.NewInt(SmallValueMax+1)))
}

func TestIDTagging(t *testing.T) {
	small := SmallID(7)
	big := BigID(7)
	require.True(t, small.IsSmall())
	require.False(t, big.IsSmall())
	require.Equal(t, uint32(7), small.Index())
	require.Equal(t, uint32(7), big.Index())
	require.NotEqual(t, small, big)
}

func TestBuilderInternsEqualValues(t *testing.T) {
	b := NewMemoryBuilder()
	idA := b.Add(10, uint256.NewInt(42))
	idB := b.Add(20, uint256.NewInt(42))
	idC := b.Add(30, uint256.NewInt(999))
	idD := b.Add(40, uint256.MustFromHex("0x123456789abcdef123456789abcdef"))
	idE := b.Add(50, uint256.MustFromHex("0x123456789abcdef123456789abcdef"))

	require.Equal(t, idA, idB)
	require.NotEqual(t, idA, idC)
	require.Equal(t, idD, idE)
	require.True(t, idA.IsSmall())
	require.False(t, idC.IsSmall())

	m := b.Build()
	require.Equal(t, 1, m.NSmall())
	require.Equal(t, 2, m.NBig())
}

func TestBuilderFirstSeenOrder(t *testing.T) {
	b := NewMemoryBuilder()
	b.Add(3, uint256.NewInt(1000))
	b.Add(1, uint256.NewInt(2000))
	b.Add(2, uint256.NewInt(5))
	m := b.Build()

	id1, ok := m.ID(3)
	require.True(t, ok)
	require.Equal(t, uint32(0), id1.Index())
	id2, _ := m.ID(1)
	require.Equal(t, uint32(1), id2.Index())

	require.Equal(t, []uint64{1, 2, 3}, m.Addresses())
}

func TestMemoryLimbsZeroExtendSmall(t *testing.T) {
	b := NewMemoryBuilder()
	id := b.Add(0, uint256.NewInt(77))
	m := b.Build()

	limbs, err := m.Limbs(id)
	require.NoError(t, err)
	require.Equal(t, m31.New(77), limbs[0])
	for i := 1; i < NLimbs; i++ {
		require.True(t, limbs[i].IsZero())
	}
}

func TestMemoryWordLookup(t *testing.T) {
	b := NewMemoryBuilder()
	w := uint256.MustFromHex("0xdeadbeefdeadbeefdeadbeef")
	b.Add(5, w)
	m := b.Build()

	got, err := m.Word(5)
	require.NoError(t, err)
	require.Equal(t, w, got)

	_, err = m.Word(6)
	require.ErrorIs(t, err, ErrAddressNotSet)
}

func TestLimbsUint64(t *testing.T) {
	w := uint256.NewInt(0x123456789)
	v, ok := SplitWord(w).Uint64()
	require.True(t, ok)
	require.Equal(t, uint64(0x123456789), v)

	_, ok = SplitWord(uint256.MustFromHex("0x10000000000000000000000000")).Uint64()
	require.False(t, ok)
}
