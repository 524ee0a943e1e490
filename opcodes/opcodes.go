// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package opcodes implements the per-opcode-variant AIR components. All
// variants share one skeleton - instruction binding through the
// VerifyInstruction table, operand reads through the memory tables, the
// opcode's ring semantics on the limb representation, and the control-flow
// update through the Opcodes relation - so the package interprets a
// declarative variant table instead of repeating the evaluator body per
// variant.
package opcodes

import (
	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/mem"
)

// Kind is the constraint family a variant belongs to.
type Kind int

const (
	KindRet Kind = iota
	KindAddAp
	KindJumpRel
	KindJnz
	KindCall
	KindAssertEq
	KindAdd
	KindMul
)

// Spec describes one opcode variant: its family plus the modifiers that
// select column layout, literal flag constants and semantics.
type Spec struct {
	Variant     adapter.Variant
	Kind        Kind
	Imm         bool
	Small       bool
	Taken       bool
	DoubleDeref bool
}

var specs = [adapter.NVariants]Spec{
	adapter.VariantRet:                 {Kind: KindRet, Imm: false},
	adapter.VariantAddApImm:            {Kind: KindAddAp, Imm: true},
	adapter.VariantJumpRelImm:          {Kind: KindJumpRel, Imm: true},
	adapter.VariantJnz:                 {Kind: KindJnz, Imm: true},
	adapter.VariantJnzTaken:            {Kind: KindJnz, Imm: true, Taken: true},
	adapter.VariantCallRelImm:          {Kind: KindCall, Imm: true},
	adapter.VariantAssertEq:            {Kind: KindAssertEq},
	adapter.VariantAssertEqImm:         {Kind: KindAssertEq, Imm: true},
	adapter.VariantAssertEqDoubleDeref: {Kind: KindAssertEq, DoubleDeref: true},
	adapter.VariantAdd:                 {Kind: KindAdd},
	adapter.VariantAddImm:              {Kind: KindAdd, Imm: true},
	adapter.VariantAddSmall:            {Kind: KindAdd, Small: true},
	adapter.VariantAddSmallImm:         {Kind: KindAdd, Small: true, Imm: true},
	adapter.VariantMul:                 {Kind: KindMul},
	adapter.VariantMulImm:              {Kind: KindMul, Imm: true},
	adapter.VariantMulSmall:            {Kind: KindMul, Small: true},
	adapter.VariantMulSmallImm:         {Kind: KindMul, Small: true, Imm: true},
}

// SpecFor returns the declarative description of a variant.
func SpecFor(v adapter.Variant) Spec {
	s := specs[v]
	s.Variant = v
	return s
}

// Literal constants of the shared skeleton. CarryScale is the inverse of the
// 9-bit limb weight in M31; the limb-21 and limb-27 corrections encode the
// 252-bit modulus 2^251 + 17*2^192 + 1 during wraparound subtraction.
const (
	OffsetBiasM31    = 32768
	OffsetImm        = 32769 // bias + 1, the immediate cell at pc+1
	CarryScale       = 4194304
	PLimb0           = 1
	PLimb21          = 136
	PLimb27          = 256
	Carry16Offset    = 1 << 15
	addrLimbs        = 3 // addresses and deltas are recomposed from 3 limbs
)

// pLimbs is the 28-limb decomposition of the 252-bit field modulus.
var pLimbs = func() [mem.NLimbs]uint32 {
	var l [mem.NLimbs]uint32
	l[0] = PLimb0
	l[21] = PLimb21
	l[27] = PLimb27
	return l
}()

// NColumns returns the trace width of a variant, matching the evaluator's
// column cursor exactly.
func NColumns(spec Spec) int {
	const common = 4 // enabler, pc, ap, fp
	cell := 1 + mem.NLimbs

	switch spec.Kind {
	case KindRet:
		return common + 2*cell
	case KindAddAp, KindJumpRel:
		return common + cell
	case KindJnz:
		n := common + 3 + cell
		if spec.Taken {
			n += 1 + cell
		}
		return n
	case KindCall:
		return common + 3*cell
	case KindAssertEq:
		switch {
		case spec.Imm:
			return common + 3 + cell
		case spec.DoubleDeref:
			return common + 6 + 2*cell
		default:
			return common + 5 + cell
		}
	case KindAdd, KindMul:
		n := common + 5
		if !spec.Imm {
			n += 2
		}
		if spec.Small {
			return n + 6
		}
		n += 3 * cell
		if spec.Kind == KindAdd {
			return n + 1
		}
		return n + mem.NLimbs + (2*mem.NLimbs - 2)
	}
	return 0
}
