// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lookups

import (
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/mem"
)

// BuiltinSegment reads every assigned cell of one builtin's memory segment:
// one address -> id resolution and one id -> limbs resolution per cell. The
// enabler column nulls the padding rows.
type BuiltinSegment struct {
	name  string
	rels  *air.Relations
	trace [][]m31.M31
	claim air.Claim
}

// NewBuiltinSegment writes the segment's read pattern and counts the uses in
// the collector so the shared tables include them.
func NewBuiltinSegment(
	name string,
	begin, stop uint64,
	memory *mem.Memory,
	collector *Collector,
	rels *air.Relations,
) *BuiltinSegment {
	type cell struct {
		addr  uint64
		id    mem.ID
		limbs mem.Limbs
	}
	var cells []cell
	for addr := begin; addr < stop; addr++ {
		id, ok := memory.ID(addr)
		if !ok {
			continue
		}
		limbs, _ := memory.Limbs(id)
		cells = append(cells, cell{addr: addr, id: id, limbs: limbs})
		collector.AddAddr(addr)
		collector.AddID(id)
	}

	n := len(cells)
	size := 1 << air.LogSize(n)
	trace := newTrace(3+mem.NLimbs, size)
	for row, cl := range cells {
		trace[0][row] = m31.One // enabler
		trace[1][row] = m31.FromUint64(cl.addr)
		trace[2][row] = cl.id.M31()
		for i := 0; i < mem.NLimbs; i++ {
			trace[3+i][row] = cl.limbs[i]
		}
	}
	// Padding repeats the last real row with the enabler cleared.
	if n > 0 {
		for row := n; row < size; row++ {
			for c := 1; c < len(trace); c++ {
				trace[c][row] = trace[c][n-1]
			}
		}
	}
	return &BuiltinSegment{
		name:  name,
		rels:  rels,
		trace: trace,
		claim: air.Claim{NCalls: n},
	}
}

func (c *BuiltinSegment) Name() string                        { return "builtin_" + c.name }
func (c *BuiltinSegment) Claim() air.Claim                    { return c.claim }
func (c *BuiltinSegment) LogSize() uint32                     { return c.claim.LogSize() }
func (c *BuiltinSegment) MaxConstraintLogDegreeBound() uint32 { return c.LogSize() + 1 }
func (c *BuiltinSegment) Trace() [][]m31.M31                  { return c.trace }

func (c *BuiltinSegment) SetRelations(r *air.Relations)       { c.rels = r }

func (c *BuiltinSegment) EvaluateRow(e *air.RowEvaluator)     { EvaluateBuiltinSegment[m31.M31](e, c.rels) }
func (c *BuiltinSegment) EvaluatePoint(e *air.PointEvaluator) { EvaluateBuiltinSegment[m31.QM31](e, c.rels) }

func EvaluateBuiltinSegment[T any](e air.Evaluator[T], rels *air.Relations) {
	enabler := e.NextTraceMask()
	addr := e.NextTraceMask()
	id := e.NextTraceMask()
	limbs := make([]T, mem.NLimbs)
	for i := range limbs {
		limbs[i] = e.NextTraceMask()
	}
	e.AddToRelation(rels.MemoryAddressToID, enabler, []T{addr, id})
	idRow := append([]T{id}, limbs...)
	e.AddToRelation(rels.MemoryIDToBig, enabler, idRow)
}
