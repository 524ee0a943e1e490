// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package air

import (
	"github.com/luxfi/cairo/m31"
)

// LogupTrace is one component's interaction trace: the running prefix sum of
// its per-row LogUp fractions, stored as four base-field columns, plus the
// final value that becomes the interaction claim.
type LogupTrace struct {
	Cols  [4][]m31.M31
	Sums  []m31.QM31
	Total m31.QM31
}

// BuildLogupTrace folds each row's fractions into a running sum:
// S[i] = S[i-1] + sum_j num_ij / den_ij. Denominators are inverted in one
// batch across the whole component.
func BuildLogupTrace(rowFractions [][]Fraction) LogupTrace {
	var denoms []m31.QM31
	for _, row := range rowFractions {
		for _, f := range row {
			denoms = append(denoms, f.Denominator)
		}
	}
	inverses := m31.BatchInverseQM31(denoms)

	n := len(rowFractions)
	trace := LogupTrace{Sums: make([]m31.QM31, n)}
	for i := range trace.Cols {
		trace.Cols[i] = make([]m31.M31, n)
	}

	acc := m31.QZero
	k := 0
	for i, row := range rowFractions {
		for _, f := range row {
			acc = acc.Add(f.Numerator.Mul(inverses[k]))
			k++
		}
		trace.Sums[i] = acc
		coords := acc.Coordinates()
		for c := 0; c < 4; c++ {
			trace.Cols[c][i] = coords[c]
		}
	}
	trace.Total = acc
	return trace
}

// StepHolds checks the running-sum constraint at one row against the opened
// base-trace fractions: (S[i] - S[i-1]) times the product of all the row's
// denominators equals the sum of each numerator times the other denominators.
func StepHolds(prev, curr m31.QM31, rowFractions []Fraction) bool {
	// (curr - prev) must equal the row's fraction sum; cross-multiplied to
	// avoid inversions.
	diff := curr.Sub(prev)
	denProduct := m31.QOne
	for _, f := range rowFractions {
		denProduct = denProduct.Mul(f.Denominator)
	}
	lhs := diff.Mul(denProduct)
	rhs := m31.QZero
	for j, f := range rowFractions {
		term := f.Numerator
		for j2, f2 := range rowFractions {
			if j2 != j {
				term = term.Mul(f2.Denominator)
			}
		}
		rhs = rhs.Add(term)
	}
	return lhs.Sub(rhs).IsZero()
}
