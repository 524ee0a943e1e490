// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package opcodes

import (
	"fmt"

	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/lookups"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/mem"
)

// Component is one instantiated opcode variant: its claim, generated trace,
// and the table-driven evaluator.
type Component struct {
	spec  Spec
	rels  *air.Relations
	claim air.Claim
	trace [][]m31.M31
}

// NewComponent generates the variant's trace from its bucketed states.
// Buckets are padded to a power of two with copies of the last row whose
// enabler is cleared; empty buckets must not be instantiated.
func NewComponent(
	variant adapter.Variant,
	states []adapter.CasmState,
	memory *mem.Memory,
	collector *lookups.Collector,
	rels *air.Relations,
) (*Component, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("variant %s: empty bucket", variant)
	}
	spec := SpecFor(variant)

	rows := make([][]m31.M31, len(states))
	for i, state := range states {
		row, err := writeRow(spec, state, memory, collector)
		if err != nil {
			return nil, fmt.Errorf("variant %s call %d: %w", variant, i, err)
		}
		if i > 0 && len(row) != len(rows[0]) {
			return nil, fmt.Errorf("variant %s: ragged trace rows", variant)
		}
		rows[i] = row
	}

	claim := air.Claim{NCalls: len(states)}
	size := 1 << claim.LogSize()
	nCols := len(rows[0])

	trace := make([][]m31.M31, nCols)
	for c := range trace {
		trace[c] = make([]m31.M31, size)
	}
	for i, row := range rows {
		for c, v := range row {
			trace[c][i] = v
		}
	}
	last := rows[len(rows)-1]
	for i := len(rows); i < size; i++ {
		trace[0][i] = m31.Zero // enabler off
		for c := 1; c < nCols; c++ {
			trace[c][i] = last[c]
		}
	}

	return &Component{spec: spec, rels: rels, claim: claim, trace: trace}, nil
}

// SetRelations injects the shared relation registry before evaluation.
func (c *Component) SetRelations(r *air.Relations) { c.rels = r }

func (c *Component) Name() string                        { return c.spec.Variant.String() }
func (c *Component) Claim() air.Claim                    { return c.claim }
func (c *Component) LogSize() uint32                     { return c.claim.LogSize() }
func (c *Component) MaxConstraintLogDegreeBound() uint32 { return c.LogSize() + 1 }
func (c *Component) Trace() [][]m31.M31                  { return c.trace }

// EvaluateRow runs the evaluator over base-field row values.
func (c *Component) EvaluateRow(e *air.RowEvaluator) {
	EvaluateVariant[m31.M31](e, c.spec, c.rels)
}

// EvaluatePoint runs the evaluator over extension-field mask values.
func (c *Component) EvaluatePoint(e *air.PointEvaluator) {
	EvaluateVariant[m31.QM31](e, c.spec, c.rels)
}
