// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package air

import (
	"github.com/luxfi/cairo/m31"
)

// Component is one self-contained unit of the AIR: it owns a claim, a
// generated base trace, and a constraint evaluator that runs both per-row
// and at the out-of-domain point.
type Component interface {
	Name() string
	Claim() Claim
	// SetRelations injects the driver-owned relation registry; called once
	// after the interaction elements are drawn.
	SetRelations(r *Relations)
	LogSize() uint32
	// MaxConstraintLogDegreeBound is LogSize()+1 unless the component
	// introduces a higher-degree quotient.
	MaxConstraintLogDegreeBound() uint32
	// Trace returns the base trace, column-major, each column 2^LogSize long.
	Trace() [][]m31.M31
	// EvaluateRow runs the constraint evaluator over one base-field row.
	EvaluateRow(e *RowEvaluator)
	// EvaluatePoint runs the same evaluator over OODS mask values.
	EvaluatePoint(e *PointEvaluator)
}

// RowOf extracts row i of a column-major trace.
func RowOf(trace [][]m31.M31, i int) []m31.M31 {
	row := make([]m31.M31, len(trace))
	for c := range trace {
		row[c] = trace[c][i]
	}
	return row
}
