// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package air

import (
	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/m31"
)

// Lookup relation arities.
const (
	MemoryAddressToIDArity = 2
	MemoryIDToBigArity     = 29
	RangeCheckArity        = 1
	VerifyInstructionArity = 19
	OpcodesArity           = 3
)

// LookupElements are the interaction challenges of one named relation: a
// shift z and per-column powers of alpha. A row (v0..vk) hashes to
// sum(alpha^i * v_i) - z in the extension field.
type LookupElements struct {
	Name  string
	Z     m31.QM31
	Alpha m31.QM31

	alphaPowers []m31.QM31
}

// DrawLookupElements samples the relation's challenges from the channel.
func DrawLookupElements(ch channel.Channel, name string, arity int) *LookupElements {
	z := ch.DrawFelt()
	alpha := ch.DrawFelt()
	powers := make([]m31.QM31, arity)
	acc := m31.QOne
	for i := range powers {
		powers[i] = acc
		acc = acc.Mul(alpha)
	}
	return &LookupElements{Name: name, Z: z, Alpha: alpha, alphaPowers: powers}
}

// CombineM31 hashes a base-field row.
func (e *LookupElements) CombineM31(values []m31.M31) m31.QM31 {
	acc := m31.QZero
	for i, v := range values {
		acc = acc.Add(e.alphaPowers[i].MulM31(v))
	}
	return acc.Sub(e.Z)
}

// Combine hashes an extension-field row.
func (e *LookupElements) Combine(values []m31.QM31) m31.QM31 {
	acc := m31.QZero
	for i, v := range values {
		acc = acc.Add(e.alphaPowers[i].Mul(v))
	}
	return acc.Sub(e.Z)
}

// Relations is the registry of every lookup relation in the Cairo AIR. The
// prover driver owns it and hands shared immutable references to component
// evaluators; nothing else may draw from the channel between the draws.
type Relations struct {
	MemoryAddressToID *LookupElements
	MemoryIDToBig     *LookupElements
	RangeCheck9       *LookupElements
	RangeCheck16      *LookupElements
	VerifyInstruction *LookupElements
	Opcodes           *LookupElements
}

// DrawRelations samples all relations in their fixed order.
func DrawRelations(ch channel.Channel) *Relations {
	return &Relations{
		MemoryAddressToID: DrawLookupElements(ch, "MemoryAddressToId", MemoryAddressToIDArity),
		MemoryIDToBig:     DrawLookupElements(ch, "MemoryIdToBig", MemoryIDToBigArity),
		RangeCheck9:       DrawLookupElements(ch, "RangeCheck_9", RangeCheckArity),
		RangeCheck16:      DrawLookupElements(ch, "RangeCheck_16", RangeCheckArity),
		VerifyInstruction: DrawLookupElements(ch, "VerifyInstruction", VerifyInstructionArity),
		Opcodes:           DrawLookupElements(ch, "Opcodes", OpcodesArity),
	}
}
