// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package air

import (
	"github.com/luxfi/cairo/m31"
)

// PointEvaluator runs the same evaluate routine over extension-field mask
// values at the out-of-domain point, folding every constraint into a single
// accumulation with powers of the composition randomness.
type PointEvaluator struct {
	mask   []m31.QM31
	cursor int

	randomCoeff  m31.QM31
	accum        m31.QM31
	nConstraints int
}

// NewPointEvaluator wraps the component's OODS mask values.
func NewPointEvaluator(mask []m31.QM31, randomCoeff m31.QM31) *PointEvaluator {
	return &PointEvaluator{mask: mask, randomCoeff: randomCoeff}
}

func (e *PointEvaluator) Zero() m31.QM31             { return m31.QZero }
func (e *PointEvaluator) One() m31.QM31              { return m31.QOne }
func (e *PointEvaluator) FromM31(v m31.M31) m31.QM31 { return m31.FromM31(v) }
func (e *PointEvaluator) Add(a, b m31.QM31) m31.QM31 { return a.Add(b) }
func (e *PointEvaluator) Sub(a, b m31.QM31) m31.QM31 { return a.Sub(b) }
func (e *PointEvaluator) Mul(a, b m31.QM31) m31.QM31 { return a.Mul(b) }
func (e *PointEvaluator) Neg(a m31.QM31) m31.QM31    { return a.Neg() }

// NextTraceMask reads the next column's value at the point.
func (e *PointEvaluator) NextTraceMask() m31.QM31 {
	v := e.mask[e.cursor]
	e.cursor++
	return v
}

// AddConstraint folds the constraint into the running accumulation
// (Horner in the composition randomness).
func (e *PointEvaluator) AddConstraint(v m31.QM31) {
	e.accum = e.accum.Mul(e.randomCoeff).Add(v)
	e.nConstraints++
}

// AddToRelation is a no-op at the point; the LogUp sums are checked through
// the interaction claims, not per entry.
func (e *PointEvaluator) AddToRelation(rel *LookupElements, numerator m31.QM31, values []m31.QM31) {
}

// Accumulation returns the folded constraint value at the point.
func (e *PointEvaluator) Accumulation() m31.QM31 {
	return e.accum
}

// NConstraints returns how many constraints were folded.
func (e *PointEvaluator) NConstraints() int {
	return e.nConstraints
}

// Remaining returns how many mask values were not consumed.
func (e *PointEvaluator) Remaining() int {
	return len(e.mask) - e.cursor
}
