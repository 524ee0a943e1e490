// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package adapter

// Instruction word layout: three 16-bit offsets (biased by 2^15) followed by
// a 15-bit flag word, 63 bits in total.
const OffsetBias = 1 << 15

// Flag bit positions within the 15-bit flag word.
const (
	FlagDstBaseFP = iota
	FlagOp0BaseFP
	FlagOp1Imm
	FlagOp1BaseFP
	FlagOp1BaseAP
	FlagResAdd
	FlagResMul
	FlagPCJumpAbs
	FlagPCJumpRel
	FlagPCJnz
	FlagAPAdd
	FlagAPAdd1
	FlagOpcodeCall
	FlagOpcodeRet
	FlagOpcodeAssertEq
	NFlags
)

// Instruction is a decoded Cairo instruction word.
type Instruction struct {
	Offset0 uint16 // biased dst offset
	Offset1 uint16 // biased op0 offset
	Offset2 uint16 // biased op1 offset
	Flags   uint16 // 15 flag bits
}

// DecodeInstruction splits a 63-bit instruction word.
func DecodeInstruction(word uint64) (Instruction, error) {
	if word >= 1<<63 {
		return Instruction{}, ErrInstructionTooWide
	}
	return Instruction{
		Offset0: uint16(word),
		Offset1: uint16(word >> 16),
		Offset2: uint16(word >> 32),
		Flags:   uint16(word >> 48),
	}, nil
}

// Flag returns the given flag bit as 0 or 1.
func (ins Instruction) Flag(bit int) uint16 {
	return (ins.Flags >> bit) & 1
}

// SignedOffset0 removes the bias from the dst offset.
func (ins Instruction) SignedOffset0() int64 {
	return int64(ins.Offset0) - OffsetBias
}

// SignedOffset1 removes the bias from the op0 offset.
func (ins Instruction) SignedOffset1() int64 {
	return int64(ins.Offset1) - OffsetBias
}

// SignedOffset2 removes the bias from the op1 offset.
func (ins Instruction) SignedOffset2() int64 {
	return int64(ins.Offset2) - OffsetBias
}

// Variant identifies one per-opcode AIR component. The order here is the
// stable visitation order the prover and verifier both follow.
type Variant int

const (
	VariantRet Variant = iota
	VariantAddApImm
	VariantJumpRelImm
	VariantJnz
	VariantJnzTaken
	VariantCallRelImm
	VariantAssertEq
	VariantAssertEqImm
	VariantAssertEqDoubleDeref
	VariantAdd
	VariantAddImm
	VariantAddSmall
	VariantAddSmallImm
	VariantMul
	VariantMulImm
	VariantMulSmall
	VariantMulSmallImm
	NVariants
)

var variantNames = [NVariants]string{
	"ret",
	"add_ap_imm",
	"jump_rel_imm",
	"jnz",
	"jnz_taken",
	"call_rel_imm",
	"assert_eq",
	"assert_eq_imm",
	"assert_eq_double_deref",
	"add",
	"add_imm",
	"add_small",
	"add_small_imm",
	"mul",
	"mul_imm",
	"mul_small",
	"mul_small_imm",
}

func (v Variant) String() string {
	if v < 0 || v >= NVariants {
		return "invalid"
	}
	return variantNames[v]
}

// classify determines the instruction family before operand inspection.
// Small/big and jnz taken-ness need memory values and are resolved by the
// caller; this returns the "big"/"not taken" representative of the family.
func classify(ins Instruction) (Variant, bool) {
	callF := ins.Flag(FlagOpcodeCall) == 1
	retF := ins.Flag(FlagOpcodeRet) == 1
	assertF := ins.Flag(FlagOpcodeAssertEq) == 1
	imm := ins.Flag(FlagOp1Imm) == 1
	op1FP := ins.Flag(FlagOp1BaseFP) == 1
	op1AP := ins.Flag(FlagOp1BaseAP) == 1
	resAdd := ins.Flag(FlagResAdd) == 1
	resMul := ins.Flag(FlagResMul) == 1
	jumpAbs := ins.Flag(FlagPCJumpAbs) == 1
	jumpRel := ins.Flag(FlagPCJumpRel) == 1
	jnz := ins.Flag(FlagPCJnz) == 1
	apAdd := ins.Flag(FlagAPAdd) == 1

	// At most one op1 source (none selects the double-deref form), at most one
	// res op, at most one pc update.
	if btoi(imm)+btoi(op1FP)+btoi(op1AP) > 1 || (resAdd && resMul) ||
		btoi(jumpAbs)+btoi(jumpRel)+btoi(jnz) > 1 {
		return 0, false
	}

	switch {
	case retF:
		if callF || assertF || !jumpAbs || imm || !op1FP || resAdd || resMul || apAdd {
			return 0, false
		}
		return VariantRet, true
	case callF:
		if assertF || !jumpRel || !imm || resAdd || resMul || apAdd {
			return 0, false
		}
		return VariantCallRelImm, true
	case assertF:
		if jumpAbs || jumpRel || jnz {
			return 0, false
		}
		switch {
		case resAdd && imm:
			return VariantAddImm, true
		case resAdd && (op1FP || op1AP):
			return VariantAdd, true
		case resMul && imm:
			return VariantMulImm, true
		case resMul && (op1FP || op1AP):
			return VariantMul, true
		case !resAdd && !resMul && imm:
			return VariantAssertEqImm, true
		case !resAdd && !resMul && (op1FP || op1AP):
			return VariantAssertEq, true
		default:
			return VariantAssertEqDoubleDeref, true
		}
	case jnz:
		if resAdd || resMul || !imm || apAdd {
			return 0, false
		}
		return VariantJnz, true
	case jumpRel:
		if resAdd || resMul || !imm || apAdd {
			return 0, false
		}
		return VariantJumpRelImm, true
	case apAdd:
		if !imm || resAdd || resMul || jumpAbs || jumpRel {
			return 0, false
		}
		return VariantAddApImm, true
	}
	return 0, false
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
