// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package m31

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQM31FieldAxioms(t *testing.T) {
	a := FromUint32x4(1, 2, 3, 4)
	b := FromUint32x4(5, 6, 7, 8)
	c := FromUint32x4(9, 10, 11, 12)

	require.Equal(t, a.Add(b), b.Add(a))
	require.Equal(t, a.Mul(b), b.Mul(a))
	require.Equal(t, a.Mul(b.Mul(c)), a.Mul(b).Mul(c))
	require.Equal(t, a.Mul(b.Add(c)), a.Mul(b).Add(a.Mul(c)))
	require.Equal(t, a, a.Mul(QOne))
	require.Equal(t, QZero, a.Mul(QZero))
	require.Equal(t, QZero, a.Sub(a))
}

func TestQM31Inverse(t *testing.T) {
	for _, v := range []QM31{
		FromUint32x4(1, 2, 3, 4),
		FromM31(New(7)),
		FromUint32x4(0, 1, 0, 0),
		FromUint32x4(Modulus-1, 0, 0, 1),
	} {
		require.Equal(t, QOne, v.Mul(v.Inverse()))
	}
	require.Equal(t, QZero, QZero.Inverse())
}

func TestQM31EmbedsM31(t *testing.T) {
	a := New(123)
	b := New(456)
	require.Equal(t, FromM31(a.Mul(b)), FromM31(a).Mul(FromM31(b)))
	require.Equal(t, FromM31(a.Add(b)), FromM31(a).Add(FromM31(b)))
	require.Equal(t, FromM31(a).MulM31(b), FromM31(a.Mul(b)))
}

func TestQM31NonResidue(t *testing.T) {
	// u^2 = 2 + i.
	u := QM31{B: CM31{Re: One}}
	require.Equal(t, QM31{A: CM31{Re: 2, Im: 1}}, u.Square())
}

func TestQM31Coordinates(t *testing.T) {
	v := FromUint32x4(1, 2, 3, 4)
	require.Equal(t, [4]M31{1, 2, 3, 4}, v.Coordinates())
}

func TestBatchInverseQM31(t *testing.T) {
	xs := []QM31{FromUint32x4(1, 2, 3, 4), QZero, FromM31(New(9)), QOne}
	inv := BatchInverseQM31(xs)
	for i, x := range xs {
		if x.IsZero() {
			require.Equal(t, QZero, inv[i])
			continue
		}
		require.Equal(t, QOne, x.Mul(inv[i]))
	}
}
