// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lookups

import (
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/mem"
)

// MemoryAddressToID is the shared address -> id table. One row per assigned
// address, in ascending address order; the multiplicity column counts every
// read the other components (and the public input) performed.
type MemoryAddressToID struct {
	rels  *air.Relations
	trace [][]m31.M31
	claim air.Claim
}

// NewMemoryAddressToID writes the table trace from the canonical memory and
// the collected read counts.
func NewMemoryAddressToID(memory *mem.Memory, collector *Collector, rels *air.Relations) *MemoryAddressToID {
	addrs := memory.Addresses()
	n := len(addrs)
	size := 1 << air.LogSize(n)

	trace := newTrace(3, size)
	for i, addr := range addrs {
		id, _ := memory.ID(addr)
		trace[0][i] = m31.FromUint64(addr)
		trace[1][i] = id.M31()
		trace[2][i] = m31.FromInt64(int64(collector.addrCounts[addr]))
	}
	return &MemoryAddressToID{
		rels:  rels,
		trace: trace,
		claim: air.Claim{NCalls: n},
	}
}

func (c *MemoryAddressToID) Name() string                        { return "memory_address_to_id" }
func (c *MemoryAddressToID) Claim() air.Claim                    { return c.claim }
func (c *MemoryAddressToID) LogSize() uint32                     { return c.claim.LogSize() }
func (c *MemoryAddressToID) MaxConstraintLogDegreeBound() uint32 { return c.LogSize() + 1 }
func (c *MemoryAddressToID) Trace() [][]m31.M31                  { return c.trace }

func (c *MemoryAddressToID) SetRelations(r *air.Relations)       { c.rels = r }

func (c *MemoryAddressToID) EvaluateRow(e *air.RowEvaluator)     { EvaluateAddressToID[m31.M31](e, c.rels) }
func (c *MemoryAddressToID) EvaluatePoint(e *air.PointEvaluator) { EvaluateAddressToID[m31.QM31](e, c.rels) }

func EvaluateAddressToID[T any](e air.Evaluator[T], rels *air.Relations) {
	addr := e.NextTraceMask()
	id := e.NextTraceMask()
	mult := e.NextTraceMask()
	e.AddToRelation(rels.MemoryAddressToID, e.Neg(mult), []T{addr, id})
}

// MemoryIDToBig is the shared id -> limbs table. Big ids come first, then
// small ids with their single limb zero-extended.
type MemoryIDToBig struct {
	rels  *air.Relations
	trace [][]m31.M31
	claim air.Claim
}

// NewMemoryIDToBig writes the table trace for every id in the memory.
func NewMemoryIDToBig(memory *mem.Memory, collector *Collector, rels *air.Relations) *MemoryIDToBig {
	n := memory.NBig() + memory.NSmall()
	size := 1 << air.LogSize(n)

	trace := newTrace(2+mem.NLimbs, size)
	writeRow := func(row int, id mem.ID, limbs mem.Limbs, mult int) {
		trace[0][row] = id.M31()
		for i := 0; i < mem.NLimbs; i++ {
			trace[1+i][row] = limbs[i]
		}
		trace[1+mem.NLimbs][row] = m31.FromInt64(int64(mult))
	}
	row := 0
	for i := 0; i < memory.NBig(); i++ {
		id := mem.BigID(uint32(i))
		writeRow(row, id, memory.BigLimbs(id), collector.idCounts[id])
		row++
	}
	for i := 0; i < memory.NSmall(); i++ {
		id := mem.SmallID(uint32(i))
		var limbs mem.Limbs
		limbs[0] = memory.SmallValue(id)
		writeRow(row, id, limbs, collector.idCounts[id])
		row++
	}
	return &MemoryIDToBig{
		rels:  rels,
		trace: trace,
		claim: air.Claim{NCalls: n},
	}
}

func (c *MemoryIDToBig) Name() string                        { return "memory_id_to_big" }
func (c *MemoryIDToBig) Claim() air.Claim                    { return c.claim }
func (c *MemoryIDToBig) LogSize() uint32                     { return c.claim.LogSize() }
func (c *MemoryIDToBig) MaxConstraintLogDegreeBound() uint32 { return c.LogSize() + 1 }
func (c *MemoryIDToBig) Trace() [][]m31.M31                  { return c.trace }

func (c *MemoryIDToBig) SetRelations(r *air.Relations)       { c.rels = r }

func (c *MemoryIDToBig) EvaluateRow(e *air.RowEvaluator)     { EvaluateIDToBig[m31.M31](e, c.rels) }
func (c *MemoryIDToBig) EvaluatePoint(e *air.PointEvaluator) { EvaluateIDToBig[m31.QM31](e, c.rels) }

func EvaluateIDToBig[T any](e air.Evaluator[T], rels *air.Relations) {
	values := make([]T, air.MemoryIDToBigArity)
	for i := range values {
		values[i] = e.NextTraceMask()
	}
	mult := e.NextTraceMask()
	e.AddToRelation(rels.MemoryIDToBig, e.Neg(mult), values)
}

// RangeCheck is the [0, 2^bits) table; the first column is the value, the
// second its use count.
type RangeCheck struct {
	bits  int
	rels  *air.Relations
	trace [][]m31.M31
}

// NewRangeCheck writes the full-domain table with the collected counts.
func NewRangeCheck(bits int, counts []int, rels *air.Relations) *RangeCheck {
	size := 1 << bits
	trace := newTrace(2, size)
	for i := 0; i < size; i++ {
		trace[0][i] = m31.New(uint32(i))
		trace[1][i] = m31.FromInt64(int64(counts[i]))
	}
	return &RangeCheck{bits: bits, rels: rels, trace: trace}
}

func (c *RangeCheck) Name() string {
	if c.bits == RangeCheck9Bits {
		return "range_check_9"
	}
	return "range_check_16"
}

func (c *RangeCheck) Claim() air.Claim                    { return air.Claim{NCalls: 1 << c.bits} }
func (c *RangeCheck) LogSize() uint32                     { return uint32(c.bits) }
func (c *RangeCheck) MaxConstraintLogDegreeBound() uint32 { return c.LogSize() + 1 }
func (c *RangeCheck) Trace() [][]m31.M31                  { return c.trace }

func (c *RangeCheck) SetRelations(r *air.Relations)       { c.rels = r }

func (c *RangeCheck) EvaluateRow(e *air.RowEvaluator)     { EvaluateRangeCheck[m31.M31](e, c.relFor()) }
func (c *RangeCheck) EvaluatePoint(e *air.PointEvaluator) { EvaluateRangeCheck[m31.QM31](e, c.relFor()) }

func (c *RangeCheck) relFor() *air.LookupElements {
	if c.bits == RangeCheck9Bits {
		return c.rels.RangeCheck9
	}
	return c.rels.RangeCheck16
}

func EvaluateRangeCheck[T any](e air.Evaluator[T], rel *air.LookupElements) {
	value := e.NextTraceMask()
	mult := e.NextTraceMask()
	e.AddToRelation(rel, e.Neg(mult), []T{value})
}

// VerifyInstruction is the shared decoded-instruction table: one row per
// distinct (pc, offsets, flags) tuple used by the execution.
type VerifyInstruction struct {
	rels  *air.Relations
	trace [][]m31.M31
	claim air.Claim
}

// NewVerifyInstruction writes the table trace in first-seen tuple order.
func NewVerifyInstruction(collector *Collector, rels *air.Relations) *VerifyInstruction {
	n := len(collector.viOrder)
	size := 1 << air.LogSize(n)

	trace := newTrace(air.VerifyInstructionArity+1, size)
	for row, tuple := range collector.viOrder {
		for i, v := range tuple {
			trace[i][row] = v
		}
		trace[air.VerifyInstructionArity][row] = m31.FromInt64(int64(collector.viCount[row]))
	}
	return &VerifyInstruction{
		rels:  rels,
		trace: trace,
		claim: air.Claim{NCalls: n},
	}
}

func (c *VerifyInstruction) Name() string                        { return "verify_instruction" }
func (c *VerifyInstruction) Claim() air.Claim                    { return c.claim }
func (c *VerifyInstruction) LogSize() uint32                     { return c.claim.LogSize() }
func (c *VerifyInstruction) MaxConstraintLogDegreeBound() uint32 { return c.LogSize() + 1 }
func (c *VerifyInstruction) Trace() [][]m31.M31                  { return c.trace }

func (c *VerifyInstruction) SetRelations(r *air.Relations)       { c.rels = r }

func (c *VerifyInstruction) EvaluateRow(e *air.RowEvaluator)     { EvaluateVerifyInstruction[m31.M31](e, c.rels) }
func (c *VerifyInstruction) EvaluatePoint(e *air.PointEvaluator) { EvaluateVerifyInstruction[m31.QM31](e, c.rels) }

func EvaluateVerifyInstruction[T any](e air.Evaluator[T], rels *air.Relations) {
	values := make([]T, air.VerifyInstructionArity)
	for i := range values {
		values[i] = e.NextTraceMask()
	}
	mult := e.NextTraceMask()
	e.AddToRelation(rels.VerifyInstruction, e.Neg(mult), values)
}

func newTrace(nCols, size int) [][]m31.M31 {
	trace := make([][]m31.M31, nCols)
	for i := range trace {
		trace[i] = make([]m31.M31, size)
	}
	return trace
}

// Table column widths, used to slice positional proof data.
const (
	AddressToIDColumns       = 3
	IDToBigColumns           = 2 + mem.NLimbs
	RangeCheckColumns        = 2
	VerifyInstructionColumns = air.VerifyInstructionArity + 1
	BuiltinColumns           = 3 + mem.NLimbs
)
