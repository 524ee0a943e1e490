// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package opcodes

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/lookups"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/mem"
)

// fieldModulus is the 252-bit prime, needed to witness the quotient of the
// multiplication constraint.
var fieldModulus = uint256.MustFromHex("0x800000000000011000000000000000000000000000000000000000000000001")
var fieldModulusBig = fieldModulus.ToBig()

// rowWriter builds one trace row in the exact order the evaluator reads
// columns, and records every positive lookup emission in the collector.
type rowWriter struct {
	memory    *mem.Memory
	collector *lookups.Collector
	row       []m31.M31
}

func (w *rowWriter) push(vs ...m31.M31) {
	w.row = append(w.row, vs...)
}

func (w *rowWriter) readCell(addr uint64) (mem.ID, mem.Limbs, error) {
	id, ok := w.memory.ID(addr)
	if !ok {
		return 0, mem.Limbs{}, fmt.Errorf("address %d: %w", addr, adapter.ErrMissingMemoryValue)
	}
	limbs, err := w.memory.Limbs(id)
	if err != nil {
		return 0, mem.Limbs{}, err
	}
	w.push(id.M31())
	w.push(limbs[:]...)
	w.collector.AddAddr(addr)
	w.collector.AddID(id)
	return id, limbs, nil
}

func (w *rowWriter) readSmall(addr uint64) (mem.ID, m31.M31, error) {
	id, ok := w.memory.ID(addr)
	if !ok {
		return 0, 0, fmt.Errorf("address %d: %w", addr, adapter.ErrMissingMemoryValue)
	}
	value := w.memory.SmallValue(id)
	w.push(id.M31(), value)
	w.collector.AddAddr(addr)
	w.collector.AddID(id)
	return id, value, nil
}

func (w *rowWriter) resolveID(addr uint64) {
	w.collector.AddAddr(addr)
}

// viTuple records the VerifyInstruction row matching the evaluator's
// emission: pc, the three (possibly literal) biased offsets, then the flags.
func (w *rowWriter) viTuple(pc uint64, off0, off1, off2 uint32, flags [adapter.NFlags]uint32) {
	var t lookups.VITuple
	t[0] = m31.FromUint64(pc)
	t[1] = m31.New(off0)
	t[2] = m31.New(off1)
	t[3] = m31.New(off2)
	for i := 0; i < adapter.NFlags; i++ {
		t[4+i] = m31.New(flags[i])
	}
	w.collector.AddVI(t)
}

// viFlagsFor assembles the flag word exactly the way the evaluator does:
// literal constants of the variant's contract merged with the flag bits the
// trace carries as columns.
func viFlagsFor(spec Spec, ins adapter.Instruction) [adapter.NFlags]uint32 {
	var f [adapter.NFlags]uint32
	switch spec.Kind {
	case KindRet:
		f[adapter.FlagDstBaseFP] = 1
		f[adapter.FlagOp0BaseFP] = 1
		f[adapter.FlagOp1BaseFP] = 1
		f[adapter.FlagPCJumpAbs] = 1
		f[adapter.FlagOpcodeRet] = 1
	case KindAddAp:
		f[adapter.FlagDstBaseFP] = 1
		f[adapter.FlagOp0BaseFP] = 1
		f[adapter.FlagOp1Imm] = 1
		f[adapter.FlagAPAdd] = 1
	case KindJumpRel:
		f[adapter.FlagDstBaseFP] = 1
		f[adapter.FlagOp0BaseFP] = 1
		f[adapter.FlagOp1Imm] = 1
		f[adapter.FlagPCJumpRel] = 1
	case KindJnz:
		f[adapter.FlagDstBaseFP] = uint32(ins.Flag(adapter.FlagDstBaseFP))
		f[adapter.FlagOp0BaseFP] = 1
		f[adapter.FlagOp1Imm] = 1
		f[adapter.FlagPCJnz] = 1
		f[adapter.FlagAPAdd1] = uint32(ins.Flag(adapter.FlagAPAdd1))
	case KindCall:
		f[adapter.FlagOp1Imm] = 1
		f[adapter.FlagPCJumpRel] = 1
		f[adapter.FlagOpcodeCall] = 1
	case KindAssertEq:
		f[adapter.FlagDstBaseFP] = uint32(ins.Flag(adapter.FlagDstBaseFP))
		f[adapter.FlagAPAdd1] = uint32(ins.Flag(adapter.FlagAPAdd1))
		f[adapter.FlagOpcodeAssertEq] = 1
		switch {
		case spec.Imm:
			f[adapter.FlagOp0BaseFP] = 1
			f[adapter.FlagOp1Imm] = 1
		case spec.DoubleDeref:
			f[adapter.FlagOp0BaseFP] = uint32(ins.Flag(adapter.FlagOp0BaseFP))
		default:
			f[adapter.FlagOp0BaseFP] = 1
			f[adapter.FlagOp1BaseFP] = uint32(ins.Flag(adapter.FlagOp1BaseFP))
			f[adapter.FlagOp1BaseAP] = 1 - uint32(ins.Flag(adapter.FlagOp1BaseFP))
		}
	case KindAdd, KindMul:
		f[adapter.FlagDstBaseFP] = uint32(ins.Flag(adapter.FlagDstBaseFP))
		f[adapter.FlagOp0BaseFP] = uint32(ins.Flag(adapter.FlagOp0BaseFP))
		f[adapter.FlagAPAdd1] = uint32(ins.Flag(adapter.FlagAPAdd1))
		f[adapter.FlagOpcodeAssertEq] = 1
		if spec.Kind == KindAdd {
			f[adapter.FlagResAdd] = 1
		} else {
			f[adapter.FlagResMul] = 1
		}
		if spec.Imm {
			f[adapter.FlagOp1Imm] = 1
		} else {
			f[adapter.FlagOp1BaseFP] = uint32(ins.Flag(adapter.FlagOp1BaseFP))
			f[adapter.FlagOp1BaseAP] = 1 - uint32(ins.Flag(adapter.FlagOp1BaseFP))
		}
	}
	return f
}

// writeRow produces one component row for a bucketed state.
func writeRow(
	spec Spec,
	state adapter.CasmState,
	memory *mem.Memory,
	collector *lookups.Collector,
) ([]m31.M31, error) {
	word, err := memory.Word(state.PC)
	if err != nil {
		return nil, err
	}
	ins, err := adapter.DecodeInstruction(word.Uint64())
	if err != nil {
		return nil, err
	}

	w := &rowWriter{memory: memory, collector: collector}
	w.push(m31.One, m31.FromUint64(state.PC), m31.FromUint64(state.AP), m31.FromUint64(state.FP))

	switch spec.Kind {
	case KindRet:
		err = writeRet(w, spec, state, ins)
	case KindAddAp, KindJumpRel:
		err = writeImmDelta(w, spec, state, ins)
	case KindJnz:
		err = writeJnz(w, spec, state, ins)
	case KindCall:
		err = writeCall(w, spec, state, ins)
	case KindAssertEq:
		err = writeAssertEq(w, spec, state, ins)
	case KindAdd, KindMul:
		err = writeArithmetic(w, spec, state, ins)
	}
	if err != nil {
		return nil, err
	}
	return w.row, nil
}

func writeRet(w *rowWriter, spec Spec, state adapter.CasmState, ins adapter.Instruction) error {
	w.viTuple(state.PC, OffsetBiasM31-2, OffsetBiasM31-1, OffsetBiasM31-1, viFlagsFor(spec, ins))
	if _, _, err := w.readCell(state.FP - 1); err != nil {
		return err
	}
	_, _, err := w.readCell(state.FP - 2)
	return err
}

func writeImmDelta(w *rowWriter, spec Spec, state adapter.CasmState, ins adapter.Instruction) error {
	w.viTuple(state.PC, OffsetBiasM31-1, OffsetBiasM31-1, OffsetImm, viFlagsFor(spec, ins))
	_, _, err := w.readCell(state.PC + 1)
	return err
}

func writeJnz(w *rowWriter, spec Spec, state adapter.CasmState, ins adapter.Instruction) error {
	w.push(m31.New(uint32(ins.Offset0)), m31.New(uint32(ins.Flag(adapter.FlagDstBaseFP))), m31.New(uint32(ins.Flag(adapter.FlagAPAdd1))))
	w.viTuple(state.PC, uint32(ins.Offset0), OffsetBiasM31-1, OffsetImm, viFlagsFor(spec, ins))

	dstBase := state.AP
	if ins.Flag(adapter.FlagDstBaseFP) == 1 {
		dstBase = state.FP
	}
	dstAddr := uint64(int64(dstBase) + ins.SignedOffset0())
	_, dstLimbs, err := w.readCell(dstAddr)
	if err != nil {
		return err
	}

	if spec.Taken {
		limbSum := m31.Zero
		for _, l := range dstLimbs {
			limbSum = limbSum.Add(l)
		}
		w.push(limbSum.Inverse())
		_, _, err = w.readCell(state.PC + 1)
		return err
	}
	return nil
}

func writeCall(w *rowWriter, spec Spec, state adapter.CasmState, ins adapter.Instruction) error {
	w.viTuple(state.PC, OffsetBiasM31, OffsetBiasM31+1, OffsetImm, viFlagsFor(spec, ins))
	if _, _, err := w.readCell(state.AP); err != nil {
		return err
	}
	if _, _, err := w.readCell(state.AP + 1); err != nil {
		return err
	}
	_, _, err := w.readCell(state.PC + 1)
	return err
}

func writeAssertEq(w *rowWriter, spec Spec, state adapter.CasmState, ins adapter.Instruction) error {
	w.push(m31.New(uint32(ins.Offset0)), m31.New(uint32(ins.Flag(adapter.FlagDstBaseFP))), m31.New(uint32(ins.Flag(adapter.FlagAPAdd1))))

	dstBase := state.AP
	if ins.Flag(adapter.FlagDstBaseFP) == 1 {
		dstBase = state.FP
	}
	dstAddr := uint64(int64(dstBase) + ins.SignedOffset0())

	switch {
	case spec.Imm:
		w.viTuple(state.PC, uint32(ins.Offset0), OffsetBiasM31-1, OffsetImm, viFlagsFor(spec, ins))
		if _, _, err := w.readCell(state.PC + 1); err != nil {
			return err
		}
		w.resolveID(dstAddr)

	case spec.DoubleDeref:
		w.push(m31.New(uint32(ins.Offset1)), m31.New(uint32(ins.Offset2)), m31.New(uint32(ins.Flag(adapter.FlagOp0BaseFP))))
		w.viTuple(state.PC, uint32(ins.Offset0), uint32(ins.Offset1), uint32(ins.Offset2), viFlagsFor(spec, ins))

		op0Base := state.AP
		if ins.Flag(adapter.FlagOp0BaseFP) == 1 {
			op0Base = state.FP
		}
		op0Addr := uint64(int64(op0Base) + ins.SignedOffset1())
		_, op0Limbs, err := w.readCell(op0Addr)
		if err != nil {
			return err
		}
		inner, ok := op0Limbs.Uint64()
		if !ok {
			return fmt.Errorf("double deref pointer at pc %d exceeds the address space", state.PC)
		}
		innerAddr := uint64(int64(inner) + ins.SignedOffset2())
		if _, _, err := w.readCell(innerAddr); err != nil {
			return err
		}
		w.resolveID(dstAddr)

	default:
		w.push(m31.New(uint32(ins.Offset2)), m31.New(uint32(ins.Flag(adapter.FlagOp1BaseFP))))
		w.viTuple(state.PC, uint32(ins.Offset0), OffsetBiasM31-1, uint32(ins.Offset2), viFlagsFor(spec, ins))

		op1Base := state.AP
		if ins.Flag(adapter.FlagOp1BaseFP) == 1 {
			op1Base = state.FP
		}
		op1Addr := uint64(int64(op1Base) + ins.SignedOffset2())
		if _, _, err := w.readCell(op1Addr); err != nil {
			return err
		}
		w.resolveID(dstAddr)
	}
	return nil
}

func writeArithmetic(w *rowWriter, spec Spec, state adapter.CasmState, ins adapter.Instruction) error {
	w.push(m31.New(uint32(ins.Offset0)), m31.New(uint32(ins.Offset1)))
	if !spec.Imm {
		w.push(m31.New(uint32(ins.Offset2)))
	}
	w.push(m31.New(uint32(ins.Flag(adapter.FlagDstBaseFP))), m31.New(uint32(ins.Flag(adapter.FlagOp0BaseFP))))
	if !spec.Imm {
		w.push(m31.New(uint32(ins.Flag(adapter.FlagOp1BaseFP))))
	}
	w.push(m31.New(uint32(ins.Flag(adapter.FlagAPAdd1))))

	off2 := uint32(OffsetImm)
	if !spec.Imm {
		off2 = uint32(ins.Offset2)
	}
	w.viTuple(state.PC, uint32(ins.Offset0), uint32(ins.Offset1), off2, viFlagsFor(spec, ins))

	dstBase := state.AP
	if ins.Flag(adapter.FlagDstBaseFP) == 1 {
		dstBase = state.FP
	}
	dstAddr := uint64(int64(dstBase) + ins.SignedOffset0())
	op0Base := state.AP
	if ins.Flag(adapter.FlagOp0BaseFP) == 1 {
		op0Base = state.FP
	}
	op0Addr := uint64(int64(op0Base) + ins.SignedOffset1())
	var op1Addr uint64
	if spec.Imm {
		op1Addr = state.PC + 1
	} else {
		op1Base := state.AP
		if ins.Flag(adapter.FlagOp1BaseFP) == 1 {
			op1Base = state.FP
		}
		op1Addr = uint64(int64(op1Base) + ins.SignedOffset2())
	}

	if spec.Small {
		if _, _, err := w.readSmall(dstAddr); err != nil {
			return err
		}
		if _, _, err := w.readSmall(op0Addr); err != nil {
			return err
		}
		_, _, err := w.readSmall(op1Addr)
		return err
	}

	_, dstLimbs, err := w.readCell(dstAddr)
	if err != nil {
		return err
	}
	_, op0Limbs, err := w.readCell(op0Addr)
	if err != nil {
		return err
	}
	_, op1Limbs, err := w.readCell(op1Addr)
	if err != nil {
		return err
	}

	if spec.Kind == KindAdd {
		writeAdd252Witness(w, dstLimbs, op0Limbs, op1Limbs)
		return nil
	}
	return writeMul252Witness(w, dstLimbs, op0Limbs, op1Limbs)
}

// writeAdd252Witness appends the sub_p bit. The carries are evaluator
// intermediates, not columns.
func writeAdd252Witness(w *rowWriter, dst, op0, op1 mem.Limbs) {
	sum := new(uint256.Int).Add(op0.Word(), op1.Word())
	subP := uint32(0)
	if !sum.Lt(fieldModulus) {
		subP = 1
	}
	w.push(m31.New(subP))
}

// writeMul252Witness appends the 28 quotient limbs and the 54 base-512
// carries of op0*op1 - q*P - dst = 0, recording their range checks.
func writeMul252Witness(w *rowWriter, dst, op0, op1 mem.Limbs) error {
	product := new(big.Int).Mul(op0.Word().ToBig(), op1.Word().ToBig())
	product.Sub(product, dst.Word().ToBig())
	q := new(big.Int).Div(product, fieldModulusBig)
	if new(big.Int).Mod(product, fieldModulusBig).Sign() != 0 {
		return fmt.Errorf("multiplication witness does not divide by the field modulus")
	}
	qInt, overflow := uint256.FromBig(q)
	if overflow {
		return fmt.Errorf("multiplication quotient exceeds 256 bits")
	}
	qLimbs := mem.SplitWord(qInt)
	for _, l := range qLimbs {
		w.push(l)
		w.collector.AddRC9(l.Uint32())
	}

	// Integer convolution terms; all bounds fit comfortably in int64.
	conv := func(k int) int64 {
		var acc int64
		for i := 0; i < mem.NLimbs; i++ {
			j := k - i
			if j < 0 || j >= mem.NLimbs {
				continue
			}
			acc += int64(op0[i].Uint32()) * int64(op1[j].Uint32())
			acc -= int64(qLimbs[i].Uint32()) * int64(pLimbs[j])
		}
		if k < mem.NLimbs {
			acc -= int64(dst[k].Uint32())
		}
		return acc
	}

	nConv := 2*mem.NLimbs - 1
	carry := int64(0)
	for k := 0; k < nConv-1; k++ {
		total := carry + conv(k)
		if total%512 != 0 {
			return fmt.Errorf("multiplication carry at limb %d is not 512-aligned", k)
		}
		carry = total / 512
		w.push(m31.FromInt64(carry))
		shifted := carry + Carry16Offset
		if shifted < 0 || shifted >= 1<<lookups.RangeCheck16Bits {
			return fmt.Errorf("multiplication carry at limb %d out of range", k)
		}
		w.collector.AddRC16(uint32(shifted))
	}
	if carry+conv(nConv-1) != 0 {
		return fmt.Errorf("multiplication convolution does not telescope")
	}
	return nil
}
