// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package casm assembles and executes small Cairo assembly programs. It
// exists so callers (and tests) can produce consistent VM artifacts -
// relocated memory plus register trace - without a full Cairo VM: the
// executor covers exactly the instruction set the AIR components prove.
package casm

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/cairo/adapter"
)

// FieldModulus is the 252-bit Cairo field prime 2^251 + 17*2^192 + 1.
var FieldModulus = uint256.MustFromHex("0x800000000000011000000000000000000000000000000000000000000000001")

// Word packs signed offsets and a flag word into a 63-bit instruction.
func Word(off0, off1, off2 int64, flags uint16) uint64 {
	return uint64(uint16(off0+adapter.OffsetBias)) |
		uint64(uint16(off1+adapter.OffsetBias))<<16 |
		uint64(uint16(off2+adapter.OffsetBias))<<32 |
		uint64(flags)<<48
}

func bit(pos int) uint16 {
	return 1 << pos
}

// Ret encodes the return instruction.
func Ret() uint64 {
	return Word(-2, -1, -1,
		bit(adapter.FlagDstBaseFP)|bit(adapter.FlagOp0BaseFP)|bit(adapter.FlagOp1BaseFP)|
			bit(adapter.FlagPCJumpAbs)|bit(adapter.FlagOpcodeRet))
}

// AddApImm encodes ap += imm; the immediate is the following word.
func AddApImm() uint64 {
	return Word(-1, -1, 1,
		bit(adapter.FlagDstBaseFP)|bit(adapter.FlagOp0BaseFP)|bit(adapter.FlagOp1Imm)|
			bit(adapter.FlagAPAdd))
}

// JmpRelImm encodes pc += imm; the immediate is the following word.
func JmpRelImm() uint64 {
	return Word(-1, -1, 1,
		bit(adapter.FlagDstBaseFP)|bit(adapter.FlagOp0BaseFP)|bit(adapter.FlagOp1Imm)|
			bit(adapter.FlagPCJumpRel))
}

// Jnz encodes jmp rel imm if [dst] != 0.
func Jnz(off0 int64, dstFP bool) uint64 {
	flags := bit(adapter.FlagOp0BaseFP) | bit(adapter.FlagOp1Imm) | bit(adapter.FlagPCJnz)
	if dstFP {
		flags |= bit(adapter.FlagDstBaseFP)
	}
	return Word(off0, -1, 1, flags)
}

// CallRelImm encodes call rel imm.
func CallRelImm() uint64 {
	return Word(0, 1, 1,
		bit(adapter.FlagOp1Imm)|bit(adapter.FlagPCJumpRel)|bit(adapter.FlagOpcodeCall))
}

// AssertEqImm encodes [dst] = imm.
func AssertEqImm(off0 int64, dstFP, apAdd1 bool) uint64 {
	flags := bit(adapter.FlagOp0BaseFP) | bit(adapter.FlagOp1Imm) | bit(adapter.FlagOpcodeAssertEq)
	if dstFP {
		flags |= bit(adapter.FlagDstBaseFP)
	}
	if apAdd1 {
		flags |= bit(adapter.FlagAPAdd1)
	}
	return Word(off0, -1, 1, flags)
}

// AssertEq encodes [dst] = [op1].
func AssertEq(off0, off2 int64, dstFP, op1FP, apAdd1 bool) uint64 {
	flags := bit(adapter.FlagOp0BaseFP) | bit(adapter.FlagOpcodeAssertEq)
	if dstFP {
		flags |= bit(adapter.FlagDstBaseFP)
	}
	if op1FP {
		flags |= bit(adapter.FlagOp1BaseFP)
	} else {
		flags |= bit(adapter.FlagOp1BaseAP)
	}
	if apAdd1 {
		flags |= bit(adapter.FlagAPAdd1)
	}
	return Word(off0, -1, off2, flags)
}

// AssertEqDoubleDeref encodes [dst] = [[op0 + off1] + off2].
func AssertEqDoubleDeref(off0, off1, off2 int64, dstFP, op0FP, apAdd1 bool) uint64 {
	flags := bit(adapter.FlagOpcodeAssertEq)
	if dstFP {
		flags |= bit(adapter.FlagDstBaseFP)
	}
	if op0FP {
		flags |= bit(adapter.FlagOp0BaseFP)
	}
	if apAdd1 {
		flags |= bit(adapter.FlagAPAdd1)
	}
	return Word(off0, off1, off2, flags)
}

// AddImm encodes [dst] = [op0] + imm.
func AddImm(off0, off1 int64, dstFP, op0FP, apAdd1 bool) uint64 {
	return resOp(off0, off1, 1, dstFP, op0FP, false, true, apAdd1, adapter.FlagResAdd)
}

// Add encodes [dst] = [op0] + [op1].
func Add(off0, off1, off2 int64, dstFP, op0FP, op1FP, apAdd1 bool) uint64 {
	return resOp(off0, off1, off2, dstFP, op0FP, op1FP, false, apAdd1, adapter.FlagResAdd)
}

// MulImm encodes [dst] = [op0] * imm.
func MulImm(off0, off1 int64, dstFP, op0FP, apAdd1 bool) uint64 {
	return resOp(off0, off1, 1, dstFP, op0FP, false, true, apAdd1, adapter.FlagResMul)
}

// Mul encodes [dst] = [op0] * [op1].
func Mul(off0, off1, off2 int64, dstFP, op0FP, op1FP, apAdd1 bool) uint64 {
	return resOp(off0, off1, off2, dstFP, op0FP, op1FP, false, apAdd1, adapter.FlagResMul)
}

func resOp(off0, off1, off2 int64, dstFP, op0FP, op1FP, imm, apAdd1 bool, resFlag int) uint64 {
	flags := bit(adapter.FlagOpcodeAssertEq) | bit(resFlag)
	if dstFP {
		flags |= bit(adapter.FlagDstBaseFP)
	}
	if op0FP {
		flags |= bit(adapter.FlagOp0BaseFP)
	}
	switch {
	case imm:
		flags |= bit(adapter.FlagOp1Imm)
	case op1FP:
		flags |= bit(adapter.FlagOp1BaseFP)
	default:
		flags |= bit(adapter.FlagOp1BaseAP)
	}
	if apAdd1 {
		flags |= bit(adapter.FlagAPAdd1)
	}
	return Word(off0, off1, off2, flags)
}
