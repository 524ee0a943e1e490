// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package prover drives the proof of one adapted Cairo execution: it mixes
// the claims in a fixed order, commits the base, interaction and composition
// data, runs the folding argument, and serializes the proof as an ordered
// felt252 list. The matching verifier lives in the verifier package and
// replays the exact same transcript.
package prover

import (
	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/lookups"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/mem"
	"github.com/luxfi/cairo/opcodes"
)

// CairoClaim is the full public statement: the VM public data plus every
// component's claim, in the stable visitation order.
type CairoClaim struct {
	Public adapter.PublicData

	Opcodes  [adapter.NVariants]air.Claim
	Builtins []air.Claim

	AddressToID       air.Claim
	IDToBig           air.Claim
	RangeCheck9       air.Claim
	RangeCheck16      air.Claim
	VerifyInstruction air.Claim
}

// BuiltinNames returns the segment names that became builtin components:
// every segment except the program and execution ones, sorted.
func (c *CairoClaim) BuiltinNames() []string {
	var names []string
	for _, name := range c.Public.SegmentNames {
		if name == "program" || name == "execution" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// MixInto absorbs the whole statement: public input first, then every
// claim in visitation order. Prover and verifier must not diverge here.
func (c *CairoClaim) MixInto(ch channel.Channel) {
	mixState(ch, c.Public.Initial)
	mixState(ch, c.Public.Final)
	ch.MixU64(uint64(len(c.Public.SegmentNames)))
	for _, name := range c.Public.SegmentNames {
		seg := c.Public.Segments[name]
		ch.MixU64(seg.BeginAddr)
		ch.MixU64(seg.StopPtr)
	}
	ch.MixU64(uint64(len(c.Public.PublicMemory)))
	for _, entry := range c.Public.PublicMemory {
		ch.MixU64(entry.Address)
		ch.MixU64(uint64(entry.ID))
		ch.MixFelts(packLimbs(mem.SplitWord(entry.Value)))
	}

	for v := adapter.Variant(0); v < adapter.NVariants; v++ {
		c.Opcodes[v].MixInto(ch)
	}
	for _, b := range c.Builtins {
		b.MixInto(ch)
	}
	c.AddressToID.MixInto(ch)
	c.IDToBig.MixInto(ch)
	c.RangeCheck9.MixInto(ch)
	c.RangeCheck16.MixInto(ch)
	c.VerifyInstruction.MixInto(ch)
}

func mixState(ch channel.Channel, s adapter.CasmState) {
	ch.MixU64(s.PC)
	ch.MixU64(s.AP)
	ch.MixU64(s.FP)
}

// packLimbs folds 28 limbs into 7 extension felts for transcript mixing.
func packLimbs(limbs mem.Limbs) []m31.QM31 {
	out := make([]m31.QM31, 0, mem.NLimbs/4)
	for i := 0; i < mem.NLimbs; i += 4 {
		out = append(out, m31.FromUint32x4(
			limbs[i].Uint32(),
			limbs[i+1].Uint32(),
			limbs[i+2].Uint32(),
			limbs[i+3].Uint32(),
		))
	}
	return out
}

// PublicLogupSum is the public side of the global LogUp equation: the
// positive memory reads of the public input and the initial/final state
// boundary of the Opcodes relation. The component sums plus this value must
// cancel to zero.
func PublicLogupSum(rels *air.Relations, public *adapter.PublicData) m31.QM31 {
	sum := m31.QZero
	for _, entry := range public.PublicMemory {
		addrRow := []m31.M31{m31.FromUint64(entry.Address), entry.ID.M31()}
		sum = sum.Add(rels.MemoryAddressToID.CombineM31(addrRow).Inverse())

		limbs := mem.SplitWord(entry.Value)
		idRow := make([]m31.M31, 0, air.MemoryIDToBigArity)
		idRow = append(idRow, entry.ID.M31())
		idRow = append(idRow, limbs[:]...)
		sum = sum.Add(rels.MemoryIDToBig.CombineM31(idRow).Inverse())
	}
	sum = sum.Add(rels.Opcodes.CombineM31(stateRow(public.Final)).Inverse())
	sum = sum.Sub(rels.Opcodes.CombineM31(stateRow(public.Initial)).Inverse())
	return sum
}

func stateRow(s adapter.CasmState) []m31.M31 {
	return []m31.M31{m31.FromUint64(s.PC), m31.FromUint64(s.AP), m31.FromUint64(s.FP)}
}

// Shape is the verifier's view of one component: enough to slice positional
// proof data and run the symbolic evaluator, without any trace.
type Shape struct {
	Name      string
	NCalls    int
	LogSize   uint32
	NCols     int
	EvalRow   func(*air.RowEvaluator)
	EvalPoint func(*air.PointEvaluator)
}

// BuildShapes derives the component list from the claim alone, in the same
// visitation order the prover instantiated it.
func BuildShapes(claim *CairoClaim, rels *air.Relations) []Shape {
	var shapes []Shape
	add := func(s Shape) {
		shapes = append(shapes, s)
	}

	for v := adapter.Variant(0); v < adapter.NVariants; v++ {
		if claim.Opcodes[v].NCalls == 0 {
			continue
		}
		spec := opcodes.SpecFor(v)
		add(Shape{
			Name:    v.String(),
			NCalls:  claim.Opcodes[v].NCalls,
			LogSize: claim.Opcodes[v].LogSize(),
			NCols:   opcodes.NColumns(spec),
			EvalRow: func(e *air.RowEvaluator) {
				opcodes.EvaluateVariant[m31.M31](e, spec, rels)
			},
			EvalPoint: func(e *air.PointEvaluator) {
				opcodes.EvaluateVariant[m31.QM31](e, spec, rels)
			},
		})
	}
	for i, name := range claim.BuiltinNames() {
		add(Shape{
			Name:    "builtin_" + name,
			NCalls:  claim.Builtins[i].NCalls,
			LogSize: claim.Builtins[i].LogSize(),
			NCols:   lookups.BuiltinColumns,
			EvalRow: func(e *air.RowEvaluator) {
				lookups.EvaluateBuiltinSegment[m31.M31](e, rels)
			},
			EvalPoint: func(e *air.PointEvaluator) {
				lookups.EvaluateBuiltinSegment[m31.QM31](e, rels)
			},
		})
	}
	add(Shape{
		Name:    "memory_address_to_id",
		NCalls:  claim.AddressToID.NCalls,
		LogSize: claim.AddressToID.LogSize(),
		NCols:   lookups.AddressToIDColumns,
		EvalRow: func(e *air.RowEvaluator) {
			lookups.EvaluateAddressToID[m31.M31](e, rels)
		},
		EvalPoint: func(e *air.PointEvaluator) {
			lookups.EvaluateAddressToID[m31.QM31](e, rels)
		},
	})
	add(Shape{
		Name:    "memory_id_to_big",
		NCalls:  claim.IDToBig.NCalls,
		LogSize: claim.IDToBig.LogSize(),
		NCols:   lookups.IDToBigColumns,
		EvalRow: func(e *air.RowEvaluator) {
			lookups.EvaluateIDToBig[m31.M31](e, rels)
		},
		EvalPoint: func(e *air.PointEvaluator) {
			lookups.EvaluateIDToBig[m31.QM31](e, rels)
		},
	})
	add(Shape{
		Name:    "range_check_9",
		NCalls:  claim.RangeCheck9.NCalls,
		LogSize: uint32(lookups.RangeCheck9Bits),
		NCols:   lookups.RangeCheckColumns,
		EvalRow: func(e *air.RowEvaluator) {
			lookups.EvaluateRangeCheck[m31.M31](e, rels.RangeCheck9)
		},
		EvalPoint: func(e *air.PointEvaluator) {
			lookups.EvaluateRangeCheck[m31.QM31](e, rels.RangeCheck9)
		},
	})
	add(Shape{
		Name:    "range_check_16",
		NCalls:  claim.RangeCheck16.NCalls,
		LogSize: uint32(lookups.RangeCheck16Bits),
		NCols:   lookups.RangeCheckColumns,
		EvalRow: func(e *air.RowEvaluator) {
			lookups.EvaluateRangeCheck[m31.M31](e, rels.RangeCheck16)
		},
		EvalPoint: func(e *air.PointEvaluator) {
			lookups.EvaluateRangeCheck[m31.QM31](e, rels.RangeCheck16)
		},
	})
	add(Shape{
		Name:    "verify_instruction",
		NCalls:  claim.VerifyInstruction.NCalls,
		LogSize: claim.VerifyInstruction.LogSize(),
		NCols:   lookups.VerifyInstructionColumns,
		EvalRow: func(e *air.RowEvaluator) {
			lookups.EvaluateVerifyInstruction[m31.M31](e, rels)
		},
		EvalPoint: func(e *air.PointEvaluator) {
			lookups.EvaluateVerifyInstruction[m31.QM31](e, rels)
		},
	})
	return shapes
}
