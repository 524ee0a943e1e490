// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package air

import (
	"github.com/luxfi/cairo/m31"
)

// Fraction is one LogUp entry: numerator over the combined-row denominator.
type Fraction struct {
	Rel         *LookupElements
	Numerator   m31.QM31
	Denominator m31.QM31
}

// RowEvaluator runs a component's evaluate routine over one base-field trace
// row. It records the evaluated zero-constraints (all must vanish on an
// honest trace) and the row's LogUp fractions.
type RowEvaluator struct {
	row    []m31.M31
	cursor int

	Constraints []m31.M31
	Fractions   []Fraction

	// Tracker, when set, accumulates per-relation sums for diagnostics.
	Tracker *RelationTracker
}

// NewRowEvaluator wraps one trace row.
func NewRowEvaluator(row []m31.M31) *RowEvaluator {
	return &RowEvaluator{row: row}
}

func (e *RowEvaluator) Zero() m31.M31               { return m31.Zero }
func (e *RowEvaluator) One() m31.M31                { return m31.One }
func (e *RowEvaluator) FromM31(v m31.M31) m31.M31   { return v }
func (e *RowEvaluator) Add(a, b m31.M31) m31.M31    { return a.Add(b) }
func (e *RowEvaluator) Sub(a, b m31.M31) m31.M31    { return a.Sub(b) }
func (e *RowEvaluator) Mul(a, b m31.M31) m31.M31    { return a.Mul(b) }
func (e *RowEvaluator) Neg(a m31.M31) m31.M31       { return a.Neg() }

// NextTraceMask reads the next column of the row.
func (e *RowEvaluator) NextTraceMask() m31.M31 {
	v := e.row[e.cursor]
	e.cursor++
	return v
}

// AddConstraint records a constraint evaluation.
func (e *RowEvaluator) AddConstraint(v m31.M31) {
	e.Constraints = append(e.Constraints, v)
}

// AddToRelation records one LogUp entry of the row.
func (e *RowEvaluator) AddToRelation(rel *LookupElements, numerator m31.M31, values []m31.M31) {
	frac := Fraction{
		Rel:         rel,
		Numerator:   m31.FromM31(numerator),
		Denominator: rel.CombineM31(values),
	}
	e.Fractions = append(e.Fractions, frac)
	if e.Tracker != nil {
		e.Tracker.add(frac)
	}
}

// Remaining returns how many row columns the evaluator has not consumed; a
// finished evaluate must leave zero.
func (e *RowEvaluator) Remaining() int {
	return len(e.row) - e.cursor
}

// AllConstraintsVanish reports whether every recorded constraint is zero.
func (e *RowEvaluator) AllConstraintsVanish() bool {
	for _, c := range e.Constraints {
		if !c.IsZero() {
			return false
		}
	}
	return true
}

// RelationTracker accumulates the per-relation LogUp sums seen during trace
// generation; enabled by the track_relations diagnostic.
type RelationTracker struct {
	Sums map[string]m31.QM31
}

// NewRelationTracker creates an empty tracker.
func NewRelationTracker() *RelationTracker {
	return &RelationTracker{Sums: make(map[string]m31.QM31)}
}

func (t *RelationTracker) add(f Fraction) {
	t.Sums[f.Rel.Name] = t.Sums[f.Rel.Name].Add(f.Numerator.Mul(f.Denominator.Inverse()))
}

// Add folds a fraction in directly.
func (t *RelationTracker) Add(f Fraction) {
	t.add(f)
}
