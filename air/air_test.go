// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package air

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/m31"
)

func TestLogSize(t *testing.T) {
	require.Equal(t, uint32(LogNLanes), LogSize(0))
	require.Equal(t, uint32(LogNLanes), LogSize(1))
	require.Equal(t, uint32(LogNLanes), LogSize(16))
	require.Equal(t, uint32(5), LogSize(17))
	require.Equal(t, uint32(10), LogSize(1024))
	require.Equal(t, uint32(11), LogSize(1025))
}

func drawTestElements(t *testing.T, arity int) *LookupElements {
	t.Helper()
	ch := channel.New(channel.Blake2s)
	ch.MixU64(7)
	return DrawLookupElements(ch, "test", arity)
}

func TestCombineAgreesAcrossFields(t *testing.T) {
	rel := drawTestElements(t, 3)
	base := []m31.M31{m31.New(5), m31.New(6), m31.New(7)}
	lifted := []m31.QM31{m31.FromM31(base[0]), m31.FromM31(base[1]), m31.FromM31(base[2])}
	require.Equal(t, rel.CombineM31(base), rel.Combine(lifted))
}

func TestCombineDistinguishesRows(t *testing.T) {
	rel := drawTestElements(t, 2)
	a := rel.CombineM31([]m31.M31{1, 2})
	b := rel.CombineM31([]m31.M31{2, 1})
	require.NotEqual(t, a, b)
}

func TestDrawRelationsStableOrder(t *testing.T) {
	mk := func() *Relations {
		ch := channel.New(channel.Blake2s)
		ch.MixU64(99)
		return DrawRelations(ch)
	}
	a, b := mk(), mk()
	require.Equal(t, a.MemoryAddressToID.Z, b.MemoryAddressToID.Z)
	require.Equal(t, a.Opcodes.Alpha, b.Opcodes.Alpha)
	require.NotEqual(t, a.MemoryAddressToID.Z, a.MemoryIDToBig.Z)
}

func TestBuildLogupTraceTelescopes(t *testing.T) {
	rel := drawTestElements(t, 1)
	// Two rows: +1/(c(3)), then +1/(c(4)) - 1/(c(3)).
	row0 := []Fraction{{Rel: rel, Numerator: m31.QOne, Denominator: rel.CombineM31([]m31.M31{3})}}
	row1 := []Fraction{
		{Rel: rel, Numerator: m31.QOne, Denominator: rel.CombineM31([]m31.M31{4})},
		{Rel: rel, Numerator: m31.QOne.Neg(), Denominator: rel.CombineM31([]m31.M31{3})},
	}
	trace := BuildLogupTrace([][]Fraction{row0, row1})

	want := rel.CombineM31([]m31.M31{4}).Inverse()
	require.Equal(t, want, trace.Total)
	require.Equal(t, trace.Sums[1], trace.Total)

	coords := trace.Total.Coordinates()
	for c := 0; c < 4; c++ {
		require.Equal(t, coords[c], trace.Cols[c][1])
	}

	require.True(t, StepHolds(m31.QZero, trace.Sums[0], row0))
	require.True(t, StepHolds(trace.Sums[0], trace.Sums[1], row1))
	require.False(t, StepHolds(trace.Sums[0], trace.Sums[1].Add(m31.QOne), row1))
}

func TestRowEvaluatorCursorAndConstraints(t *testing.T) {
	row := []m31.M31{m31.New(2), m31.New(3), m31.New(6)}
	eval := NewRowEvaluator(row)

	a := eval.NextTraceMask()
	b := eval.NextTraceMask()
	c := eval.NextTraceMask()
	eval.AddConstraint(eval.Sub(eval.Mul(a, b), c))
	require.Zero(t, eval.Remaining())
	require.True(t, eval.AllConstraintsVanish())

	bad := NewRowEvaluator([]m31.M31{1, 1, 3})
	x := bad.NextTraceMask()
	y := bad.NextTraceMask()
	z := bad.NextTraceMask()
	bad.AddConstraint(bad.Sub(bad.Mul(x, y), z))
	require.False(t, bad.AllConstraintsVanish())
}

func TestRowEvaluatorTracksRelations(t *testing.T) {
	rel := drawTestElements(t, 1)
	eval := NewRowEvaluator(nil)
	eval.Tracker = NewRelationTracker()
	eval.AddToRelation(rel, m31.One, []m31.M31{9})
	want := rel.CombineM31([]m31.M31{9}).Inverse()
	require.Equal(t, want, eval.Tracker.Sums["test"])
}

func TestPointEvaluatorAccumulation(t *testing.T) {
	coeff := m31.FromUint32x4(5, 0, 1, 2)
	mask := []m31.QM31{m31.FromM31(m31.New(10)), m31.FromM31(m31.New(20))}
	eval := NewPointEvaluator(mask, coeff)

	c0 := eval.NextTraceMask()
	c1 := eval.NextTraceMask()
	eval.AddConstraint(c0)
	eval.AddConstraint(c1)
	require.Zero(t, eval.Remaining())
	require.Equal(t, 2, eval.NConstraints())

	// Horner: c0*coeff + c1.
	want := c0.Mul(coeff).Add(c1)
	require.Equal(t, want, eval.Accumulation())
}

func TestInteractionClaimMixing(t *testing.T) {
	a := channel.New(channel.Blake2s)
	b := channel.New(channel.Blake2s)
	claim := InteractionClaim{TotalSum: m31.FromUint32x4(1, 2, 3, 4)}
	claim.MixInto(a)
	withClaimed := InteractionClaim{
		TotalSum:   m31.FromUint32x4(1, 2, 3, 4),
		ClaimedSum: &ClaimedSum{Sum: m31.QOne, Row: 3},
	}
	withClaimed.MixInto(b)
	require.NotEqual(t, a.DrawFelt(), b.DrawFelt())
}
