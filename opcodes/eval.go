// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package opcodes

import (
	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/mem"
)

// ctx bundles the evaluator with the relation registry and the row enabler.
type ctx[T any] struct {
	e       air.Evaluator[T]
	rels    *air.Relations
	enabler T
}

func (c *ctx[T]) m(v uint32) T { return c.e.FromM31(m31.New(v)) }

// readCell emits the address->id and id->limbs lookups of one memory read
// and returns the id column and the 28 limb columns.
func (c *ctx[T]) readCell(addr T) (T, []T) {
	id := c.e.NextTraceMask()
	limbs := make([]T, mem.NLimbs)
	for i := range limbs {
		limbs[i] = c.e.NextTraceMask()
	}
	c.e.AddToRelation(c.rels.MemoryAddressToID, c.enabler, []T{addr, id})
	c.e.AddToRelation(c.rels.MemoryIDToBig, c.enabler, append([]T{id}, limbs...))
	return id, limbs
}

// readSmall is readCell for single-limb values: one id column, one value
// column, the remaining limbs literal zero.
func (c *ctx[T]) readSmall(addr T) (T, T) {
	id := c.e.NextTraceMask()
	value := c.e.NextTraceMask()
	c.e.AddToRelation(c.rels.MemoryAddressToID, c.enabler, []T{addr, id})
	row := make([]T, air.MemoryIDToBigArity)
	row[0] = id
	row[1] = value
	for i := 2; i < air.MemoryIDToBigArity; i++ {
		row[i] = c.m(0)
	}
	c.e.AddToRelation(c.rels.MemoryIDToBig, c.enabler, row)
	return id, value
}

// resolveID emits only the address->id lookup; used when two addresses bind
// to one shared id column.
func (c *ctx[T]) resolveID(addr, id T) {
	c.e.AddToRelation(c.rels.MemoryAddressToID, c.enabler, []T{addr, id})
}

// vi emits the VerifyInstruction binding.
func (c *ctx[T]) vi(pc, off0, off1, off2 T, flags [adapter.NFlags]T) {
	values := make([]T, 0, air.VerifyInstructionArity)
	values = append(values, pc, off0, off1, off2)
	values = append(values, flags[:]...)
	c.e.AddToRelation(c.rels.VerifyInstruction, c.enabler, values)
}

// transition emits the +1 pre-state and -1 post-state Opcodes entries.
func (c *ctx[T]) transition(prePC, preAP, preFP, postPC, postAP, postFP T) {
	c.e.AddToRelation(c.rels.Opcodes, c.enabler, []T{prePC, preAP, preFP})
	c.e.AddToRelation(c.rels.Opcodes, c.e.Neg(c.enabler), []T{postPC, postAP, postFP})
}

// highLimbsZero constrains every limb from index addrLimbs up to be zero;
// the low limbs recompose into an address-sized value.
func (c *ctx[T]) highLimbsZero(limbs []T) {
	for i := addrLimbs; i < len(limbs); i++ {
		c.e.AddConstraint(limbs[i])
	}
}

// recompose folds the three low limbs back into one value.
func (c *ctx[T]) recompose(limbs []T) T {
	acc := c.m(0)
	for i := addrLimbs - 1; i >= 0; i-- {
		acc = c.e.Add(c.e.Mul(acc, c.m(1<<9)), limbs[i])
	}
	return acc
}

// baseSelect computes sel*fp + (1-sel)*ap.
func (c *ctx[T]) baseSelect(sel, ap, fp T) T {
	one := c.e.One()
	return c.e.Add(c.e.Mul(sel, fp), c.e.Mul(c.e.Sub(one, sel), ap))
}

// unbias turns a biased offset column into a signed address delta.
func (c *ctx[T]) unbias(off T) T {
	return c.e.Sub(off, c.m(OffsetBiasM31))
}

func noFlags[T any](e air.Evaluator[T]) [adapter.NFlags]T {
	var flags [adapter.NFlags]T
	for i := range flags {
		flags[i] = e.Zero()
	}
	return flags
}

// EvaluateVariant is the shared evaluator, symbolic over the field type: it
// runs on base-field rows during trace generation and on extension-field
// mask values at the OODS point.
func EvaluateVariant[T any](e air.Evaluator[T], spec Spec, rels *air.Relations) {
	enabler := e.NextTraceMask()
	pc := e.NextTraceMask()
	ap := e.NextTraceMask()
	fp := e.NextTraceMask()
	c := &ctx[T]{e: e, rels: rels, enabler: enabler}

	// The enabler is a bit; padding rows clear it so they contribute to no
	// relation.
	e.AddConstraint(e.Mul(enabler, e.Sub(enabler, e.One())))

	switch spec.Kind {
	case KindRet:
		evalRet(c, pc, ap, fp)
	case KindAddAp:
		evalAddAp(c, pc, ap, fp)
	case KindJumpRel:
		evalJumpRel(c, pc, ap, fp)
	case KindJnz:
		evalJnz(c, spec, pc, ap, fp)
	case KindCall:
		evalCall(c, pc, ap, fp)
	case KindAssertEq:
		evalAssertEq(c, spec, pc, ap, fp)
	case KindAdd, KindMul:
		evalArithmetic(c, spec, pc, ap, fp)
	}
}

func evalRet[T any](c *ctx[T], pc, ap, fp T) {
	e := c.e
	flags := noFlags(e)
	flags[adapter.FlagDstBaseFP] = e.One()
	flags[adapter.FlagOp0BaseFP] = e.One()
	flags[adapter.FlagOp1BaseFP] = e.One()
	flags[adapter.FlagPCJumpAbs] = e.One()
	flags[adapter.FlagOpcodeRet] = e.One()
	c.vi(pc, c.m(OffsetBiasM31-2), c.m(OffsetBiasM31-1), c.m(OffsetBiasM31-1), flags)

	_, pcLimbs := c.readCell(e.Sub(fp, e.One()))
	_, fpLimbs := c.readCell(e.Sub(fp, c.m(2)))
	c.highLimbsZero(pcLimbs)
	c.highLimbsZero(fpLimbs)

	nextPC := c.recompose(pcLimbs)
	nextFP := c.recompose(fpLimbs)
	c.transition(pc, ap, fp, nextPC, ap, nextFP)
}

func evalAddAp[T any](c *ctx[T], pc, ap, fp T) {
	e := c.e
	flags := noFlags(e)
	flags[adapter.FlagDstBaseFP] = e.One()
	flags[adapter.FlagOp0BaseFP] = e.One()
	flags[adapter.FlagOp1Imm] = e.One()
	flags[adapter.FlagAPAdd] = e.One()
	c.vi(pc, c.m(OffsetBiasM31-1), c.m(OffsetBiasM31-1), c.m(OffsetImm), flags)

	_, immLimbs := c.readCell(e.Add(pc, e.One()))
	c.highLimbsZero(immLimbs)
	delta := c.recompose(immLimbs)
	c.transition(pc, ap, fp, e.Add(pc, c.m(2)), e.Add(ap, delta), fp)
}

func evalJumpRel[T any](c *ctx[T], pc, ap, fp T) {
	e := c.e
	flags := noFlags(e)
	flags[adapter.FlagDstBaseFP] = e.One()
	flags[adapter.FlagOp0BaseFP] = e.One()
	flags[adapter.FlagOp1Imm] = e.One()
	flags[adapter.FlagPCJumpRel] = e.One()
	c.vi(pc, c.m(OffsetBiasM31-1), c.m(OffsetBiasM31-1), c.m(OffsetImm), flags)

	_, immLimbs := c.readCell(e.Add(pc, e.One()))
	c.highLimbsZero(immLimbs)
	delta := c.recompose(immLimbs)
	c.transition(pc, ap, fp, e.Add(pc, delta), ap, fp)
}

func evalJnz[T any](c *ctx[T], spec Spec, pc, ap, fp T) {
	e := c.e
	off0 := e.NextTraceMask()
	dstBaseFP := e.NextTraceMask()
	apAdd1 := e.NextTraceMask()

	flags := noFlags(e)
	flags[adapter.FlagDstBaseFP] = dstBaseFP
	flags[adapter.FlagOp0BaseFP] = e.One()
	flags[adapter.FlagOp1Imm] = e.One()
	flags[adapter.FlagPCJnz] = e.One()
	flags[adapter.FlagAPAdd1] = apAdd1
	c.vi(pc, off0, c.m(OffsetBiasM31-1), c.m(OffsetImm), flags)

	dstAddr := e.Add(c.baseSelect(dstBaseFP, ap, fp), c.unbias(off0))
	_, dstLimbs := c.readCell(dstAddr)

	limbSum := e.Zero()
	for _, limb := range dstLimbs {
		limbSum = e.Add(limbSum, limb)
	}

	nextAP := e.Add(ap, apAdd1)
	if spec.Taken {
		// The witness inverse proves the destination is non-zero; limbs
		// are non-negative so their plain sum vanishes only on zero.
		invSum := e.NextTraceMask()
		e.AddConstraint(e.Mul(c.enabler, e.Sub(e.Mul(limbSum, invSum), e.One())))

		_, immLimbs := c.readCell(e.Add(pc, e.One()))
		c.highLimbsZero(immLimbs)
		delta := c.recompose(immLimbs)
		c.transition(pc, ap, fp, e.Add(pc, delta), nextAP, fp)
		return
	}
	e.AddConstraint(limbSum)
	c.transition(pc, ap, fp, e.Add(pc, c.m(2)), nextAP, fp)
}

func evalCall[T any](c *ctx[T], pc, ap, fp T) {
	e := c.e
	flags := noFlags(e)
	flags[adapter.FlagOp1Imm] = e.One()
	flags[adapter.FlagPCJumpRel] = e.One()
	flags[adapter.FlagOpcodeCall] = e.One()
	c.vi(pc, c.m(OffsetBiasM31), c.m(OffsetBiasM31+1), c.m(OffsetImm), flags)

	_, savedFPLimbs := c.readCell(ap)
	_, retPCLimbs := c.readCell(e.Add(ap, e.One()))
	_, immLimbs := c.readCell(e.Add(pc, e.One()))
	c.highLimbsZero(savedFPLimbs)
	c.highLimbsZero(retPCLimbs)
	c.highLimbsZero(immLimbs)

	// [ap] holds the caller frame pointer, [ap+1] the return pc.
	e.AddConstraint(e.Sub(c.recompose(savedFPLimbs), fp))
	e.AddConstraint(e.Sub(c.recompose(retPCLimbs), e.Add(pc, c.m(2))))

	delta := c.recompose(immLimbs)
	newFrame := e.Add(ap, c.m(2))
	c.transition(pc, ap, fp, e.Add(pc, delta), newFrame, newFrame)
}

func evalAssertEq[T any](c *ctx[T], spec Spec, pc, ap, fp T) {
	e := c.e
	off0 := e.NextTraceMask()
	dstBaseFP := e.NextTraceMask()
	apAdd1 := e.NextTraceMask()

	flags := noFlags(e)
	flags[adapter.FlagDstBaseFP] = dstBaseFP
	flags[adapter.FlagAPAdd1] = apAdd1
	flags[adapter.FlagOpcodeAssertEq] = e.One()

	dstAddr := e.Add(c.baseSelect(dstBaseFP, ap, fp), c.unbias(off0))
	size := c.m(1)

	switch {
	case spec.Imm:
		flags[adapter.FlagOp0BaseFP] = e.One()
		flags[adapter.FlagOp1Imm] = e.One()
		c.vi(pc, off0, c.m(OffsetBiasM31-1), c.m(OffsetImm), flags)

		id, _ := c.readCell(e.Add(pc, e.One()))
		c.resolveID(dstAddr, id)
		size = c.m(2)

	case spec.DoubleDeref:
		off1 := e.NextTraceMask()
		off2 := e.NextTraceMask()
		op0BaseFP := e.NextTraceMask()
		flags[adapter.FlagOp0BaseFP] = op0BaseFP
		c.vi(pc, off0, off1, off2, flags)

		op0Addr := e.Add(c.baseSelect(op0BaseFP, ap, fp), c.unbias(off1))
		_, op0Limbs := c.readCell(op0Addr)
		c.highLimbsZero(op0Limbs)
		innerAddr := e.Add(c.recompose(op0Limbs), c.unbias(off2))

		id, _ := c.readCell(innerAddr)
		c.resolveID(dstAddr, id)

	default:
		off2 := e.NextTraceMask()
		op1BaseFP := e.NextTraceMask()
		flags[adapter.FlagOp0BaseFP] = e.One()
		flags[adapter.FlagOp1BaseFP] = op1BaseFP
		flags[adapter.FlagOp1BaseAP] = e.Sub(e.One(), op1BaseFP)
		c.vi(pc, off0, c.m(OffsetBiasM31-1), off2, flags)

		op1Addr := e.Add(c.baseSelect(op1BaseFP, ap, fp), c.unbias(off2))
		id, _ := c.readCell(op1Addr)
		c.resolveID(dstAddr, id)
	}

	c.transition(pc, ap, fp, e.Add(pc, size), e.Add(ap, apAdd1), fp)
}

func evalArithmetic[T any](c *ctx[T], spec Spec, pc, ap, fp T) {
	e := c.e
	off0 := e.NextTraceMask()
	off1 := e.NextTraceMask()
	var off2 T
	if !spec.Imm {
		off2 = e.NextTraceMask()
	}
	dstBaseFP := e.NextTraceMask()
	op0BaseFP := e.NextTraceMask()
	var op1BaseFP T
	if !spec.Imm {
		op1BaseFP = e.NextTraceMask()
	}
	apAdd1 := e.NextTraceMask()

	flags := noFlags(e)
	flags[adapter.FlagDstBaseFP] = dstBaseFP
	flags[adapter.FlagOp0BaseFP] = op0BaseFP
	flags[adapter.FlagAPAdd1] = apAdd1
	flags[adapter.FlagOpcodeAssertEq] = e.One()
	if spec.Kind == KindAdd {
		flags[adapter.FlagResAdd] = e.One()
	} else {
		flags[adapter.FlagResMul] = e.One()
	}

	dstAddr := e.Add(c.baseSelect(dstBaseFP, ap, fp), c.unbias(off0))
	op0Addr := e.Add(c.baseSelect(op0BaseFP, ap, fp), c.unbias(off1))
	var op1Addr T
	size := c.m(1)
	if spec.Imm {
		flags[adapter.FlagOp1Imm] = e.One()
		c.vi(pc, off0, off1, c.m(OffsetImm), flags)
		op1Addr = e.Add(pc, e.One())
		size = c.m(2)
	} else {
		flags[adapter.FlagOp1BaseFP] = op1BaseFP
		flags[adapter.FlagOp1BaseAP] = e.Sub(e.One(), op1BaseFP)
		c.vi(pc, off0, off1, off2, flags)
		op1Addr = e.Add(c.baseSelect(op1BaseFP, ap, fp), c.unbias(off2))
	}

	if spec.Small {
		_, dstVal := c.readSmall(dstAddr)
		_, op0Val := c.readSmall(op0Addr)
		_, op1Val := c.readSmall(op1Addr)
		if spec.Kind == KindAdd {
			// Single-limb operands cannot wrap the field.
			e.AddConstraint(e.Sub(dstVal, e.Add(op0Val, op1Val)))
		} else {
			e.AddConstraint(e.Sub(dstVal, e.Mul(op0Val, op1Val)))
		}
	} else {
		_, dstLimbs := c.readCell(dstAddr)
		_, op0Limbs := c.readCell(op0Addr)
		_, op1Limbs := c.readCell(op1Addr)
		if spec.Kind == KindAdd {
			verifyAdd252(c, dstLimbs, op0Limbs, op1Limbs)
		} else {
			verifyMul252(c, dstLimbs, op0Limbs, op1Limbs)
		}
	}

	c.transition(pc, ap, fp, e.Add(pc, size), e.Add(ap, apAdd1), fp)
}

// verifyAdd252 enforces dst = op0 + op1 over the 252-bit field: limb-wise
// addition with ternary carries, an optional modulus subtraction selected by
// sub_p_bit, and the limb-21/limb-27 corrections of the prime.
func verifyAdd252[T any](c *ctx[T], dst, op0, op1 []T) {
	e := c.e
	subPBit := e.NextTraceMask()
	e.AddConstraint(e.Mul(subPBit, e.Sub(subPBit, e.One())))

	carry := e.Zero()
	for k := 0; k < mem.NLimbs-1; k++ {
		carry = e.Mul(
			e.Sub(
				e.Sub(e.Add(e.Add(op0[k], op1[k]), carry), dst[k]),
				e.Mul(c.m(pLimbs[k]), subPBit),
			),
			c.m(CarryScale),
		)
		e.AddConstraint(e.Mul(carry, e.Sub(e.Mul(carry, carry), e.One())))
	}
	last := mem.NLimbs - 1
	e.AddConstraint(
		e.Sub(
			e.Sub(e.Add(e.Add(op0[last], op1[last]), carry), dst[last]),
			e.Mul(c.m(PLimb27), subPBit),
		),
	)
}

// verifyMul252 enforces dst = op0 * op1 over the 252-bit field via a
// witnessed quotient: op0*op1 - q*P - dst telescopes to zero limb-wise with
// base-512 carries. Quotient limbs are 9-bit range-checked; carries are
// 16-bit range-checked around a central offset.
func verifyMul252[T any](c *ctx[T], dst, op0, op1 []T) {
	e := c.e
	q := make([]T, mem.NLimbs)
	for i := range q {
		q[i] = e.NextTraceMask()
		c.e.AddToRelation(c.rels.RangeCheck9, c.enabler, []T{q[i]})
	}

	conv := func(k int) T {
		acc := e.Zero()
		for i := 0; i < mem.NLimbs; i++ {
			j := k - i
			if j < 0 || j >= mem.NLimbs {
				continue
			}
			acc = e.Add(acc, e.Mul(op0[i], op1[j]))
			acc = e.Sub(acc, e.Mul(q[i], c.m(pLimbs[j])))
		}
		if k < mem.NLimbs {
			acc = e.Sub(acc, dst[k])
		}
		return acc
	}

	nConv := 2*mem.NLimbs - 1
	carry := e.Zero()
	for k := 0; k < nConv-1; k++ {
		next := e.NextTraceMask()
		// prev + conv_k = 512 * carry_k exactly.
		e.AddConstraint(e.Sub(e.Add(carry, conv(k)), e.Mul(c.m(1<<9), next)))
		c.e.AddToRelation(c.rels.RangeCheck16, c.enabler, []T{e.Add(next, c.m(Carry16Offset))})
		carry = next
	}
	e.AddConstraint(e.Add(carry, conv(nConv-1)))
}
