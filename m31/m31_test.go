// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package m31

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewReduces(t *testing.T) {
	require.Equal(t, M31(0), New(Modulus))
	require.Equal(t, M31(1), New(Modulus+1))
	require.Equal(t, M31(Modulus-1), New(Modulus-1))
	require.Equal(t, M31(1), New(1))
}

func TestAddSubRoundTrip(t *testing.T) {
	a := New(0x7ABCDEF0)
	b := New(0x12345678)
	require.Equal(t, a, a.Add(b).Sub(b))
	require.Equal(t, Zero, a.Sub(a))
	require.Equal(t, a, a.Add(Zero))
}

func TestMulKnownValues(t *testing.T) {
	// 2^30 * 2 = 2^31 = 1 mod p.
	require.Equal(t, One, New(1<<30).Mul(New(2)))
	// (p-1)^2 = 1.
	pm1 := New(Modulus - 1)
	require.Equal(t, One, pm1.Mul(pm1))
	require.Equal(t, Zero, pm1.Mul(Zero))
}

func TestNeg(t *testing.T) {
	a := New(12345)
	require.Equal(t, Zero, a.Add(a.Neg()))
	require.Equal(t, Zero, Zero.Neg())
}

func TestInverse(t *testing.T) {
	for _, v := range []uint32{1, 2, 3, 511, 1 << 22, Modulus - 1} {
		a := New(v)
		require.Equal(t, One, a.Mul(a.Inverse()), "v=%d", v)
	}
	require.Equal(t, Zero, Zero.Inverse())
}

func TestCarryScaleIsInverseOf512(t *testing.T) {
	// 2^22 is the inverse of the 9-bit limb weight 2^9 in M31.
	require.Equal(t, One, New(1<<22).Mul(New(1<<9)))
}

func TestBatchInverse(t *testing.T) {
	xs := []M31{New(7), Zero, New(Modulus - 2), One, New(99991)}
	inv := BatchInverse(xs)
	require.Len(t, inv, len(xs))
	for i, x := range xs {
		if x.IsZero() {
			require.Equal(t, Zero, inv[i])
			continue
		}
		require.Equal(t, One, x.Mul(inv[i]))
	}
}

func TestPow(t *testing.T) {
	a := New(5)
	require.Equal(t, One, a.Pow(0))
	require.Equal(t, a, a.Pow(1))
	require.Equal(t, a.Mul(a).Mul(a), a.Pow(3))
	// Fermat: a^(p-1) = 1.
	require.Equal(t, One, a.Pow(uint64(Modulus)-1))
}
