// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package adapter

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/zeebo/blake3"

	"github.com/luxfi/cairo/mem"
)

// MemoryEntry is one assigned cell of the relocated memory image.
type MemoryEntry struct {
	Address uint64
	Value   *uint256.Int
}

// Adapt canonicalizes memory and buckets every executed step by opcode
// variant. The last trace entry is the final register state, not an executed
// step.
func Adapt(
	trace []CasmState,
	builder *mem.MemoryBuilder,
	publicMemoryAddresses []uint32,
	segments map[string]MemorySegment,
) (*ProverInput, error) {
	if len(trace) == 0 {
		return nil, ErrEmptyTrace
	}
	memory := builder.Build()

	transitions := StateTransitions{
		Initial: trace[0],
		Final:   trace[len(trace)-1],
	}
	for _, state := range trace[:len(trace)-1] {
		variant, err := bucketFor(memory, state)
		if err != nil {
			return nil, err
		}
		transitions.StatesByOpcode[variant] = append(transitions.StatesByOpcode[variant], state)
	}

	public, err := buildPublicData(memory, transitions, publicMemoryAddresses, segments)
	if err != nil {
		return nil, err
	}

	input := &ProverInput{
		Memory:           memory,
		StateTransitions: transitions,
		Public:           *public,
	}
	input.Fingerprint = fingerprint(input, trace, publicMemoryAddresses)
	return input, nil
}

// FromRelocated adapts in-memory artifacts directly, bypassing the JSON
// files.
func FromRelocated(
	memoryEntries []MemoryEntry,
	trace []CasmState,
	publicMemoryAddresses []uint32,
	segments map[string]MemorySegment,
) (*ProverInput, error) {
	builder := mem.NewMemoryBuilder()
	for _, e := range memoryEntries {
		builder.Add(e.Address, e.Value)
	}
	return Adapt(trace, builder, publicMemoryAddresses, segments)
}

// FromRelocatedWithStepLimit adapts only the first stepLimit-1 steps; the
// state at stepLimit becomes the final state.
func FromRelocatedWithStepLimit(
	memoryEntries []MemoryEntry,
	trace []CasmState,
	publicMemoryAddresses []uint32,
	segments map[string]MemorySegment,
	stepLimit int,
) (*ProverInput, error) {
	if stepLimit < 1 || stepLimit > len(trace) {
		return nil, fmt.Errorf("step limit %d out of range for %d trace entries", stepLimit, len(trace))
	}
	return FromRelocated(memoryEntries, trace[:stepLimit], publicMemoryAddresses, segments)
}

// bucketFor decodes the instruction at the state's pc and resolves the exact
// component variant, inspecting operand values where the split depends on
// them (small/big arithmetic, jnz branch direction).
func bucketFor(memory *mem.Memory, state CasmState) (Variant, error) {
	word, err := memory.Word(state.PC)
	if err != nil {
		return 0, fmt.Errorf("instruction fetch at pc %d: %w", state.PC, ErrMissingMemoryValue)
	}
	if !word.IsUint64() {
		return 0, ErrInstructionTooWide
	}
	ins, err := DecodeInstruction(word.Uint64())
	if err != nil {
		return 0, err
	}
	family, ok := classify(ins)
	if !ok {
		return 0, &UnknownOpcodeError{PC: state.PC, Flags: ins.Flags}
	}

	switch family {
	case VariantAdd, VariantAddImm, VariantMul, VariantMulImm:
		small, err := operandsAreSmall(memory, state, ins)
		if err != nil {
			return 0, err
		}
		if small {
			switch family {
			case VariantAdd:
				return VariantAddSmall, nil
			case VariantAddImm:
				return VariantAddSmallImm, nil
			case VariantMul:
				return VariantMulSmall, nil
			case VariantMulImm:
				return VariantMulSmallImm, nil
			}
		}
		return family, nil
	case VariantJnz:
		dst, err := memory.Word(dstAddr(state, ins))
		if err != nil {
			return 0, fmt.Errorf("jnz dst at pc %d: %w", state.PC, ErrMissingMemoryValue)
		}
		if !dst.IsZero() {
			return VariantJnzTaken, nil
		}
		return VariantJnz, nil
	default:
		return family, nil
	}
}

// applyOffset adds a signed biased offset to a base register.
func applyOffset(base uint64, signed int64) uint64 {
	return uint64(int64(base) + signed)
}

func dstAddr(state CasmState, ins Instruction) uint64 {
	base := state.AP
	if ins.Flag(FlagDstBaseFP) == 1 {
		base = state.FP
	}
	return applyOffset(base, ins.SignedOffset0())
}

func op0Addr(state CasmState, ins Instruction) uint64 {
	base := state.AP
	if ins.Flag(FlagOp0BaseFP) == 1 {
		base = state.FP
	}
	return applyOffset(base, ins.SignedOffset1())
}

func op1Addr(state CasmState, ins Instruction) uint64 {
	switch {
	case ins.Flag(FlagOp1Imm) == 1:
		return state.PC + 1
	case ins.Flag(FlagOp1BaseFP) == 1:
		return applyOffset(state.FP, ins.SignedOffset2())
	default:
		return applyOffset(state.AP, ins.SignedOffset2())
	}
}

func operandsAreSmall(memory *mem.Memory, state CasmState, ins Instruction) (bool, error) {
	for _, addr := range []uint64{dstAddr(state, ins), op0Addr(state, ins), op1Addr(state, ins)} {
		id, ok := memory.ID(addr)
		if !ok {
			return false, fmt.Errorf("operand at address %d: %w", addr, ErrMissingMemoryValue)
		}
		if !id.IsSmall() {
			return false, nil
		}
	}
	return true, nil
}

func buildPublicData(
	memory *mem.Memory,
	transitions StateTransitions,
	publicMemoryAddresses []uint32,
	segments map[string]MemorySegment,
) (*PublicData, error) {
	public := &PublicData{
		Initial:      transitions.Initial,
		Final:        transitions.Final,
		Segments:     make(map[string]MemorySegment, len(segments)),
		SegmentNames: sortedSegmentNames(segments),
	}
	for name, seg := range segments {
		if seg.StopPtr < seg.BeginAddr {
			return nil, fmt.Errorf("segment %q [%d, %d): %w", name, seg.BeginAddr, seg.StopPtr, ErrSegmentOutOfRange)
		}
		public.Segments[name] = seg
	}
	seen := make(map[uint32]struct{}, len(publicMemoryAddresses))
	for _, addr := range publicMemoryAddresses {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		id, ok := memory.ID(uint64(addr))
		if !ok {
			return nil, fmt.Errorf("address %d: %w", addr, ErrPublicMemoryMissing)
		}
		limbs, err := memory.Limbs(id)
		if err != nil {
			return nil, err
		}
		public.PublicMemory = append(public.PublicMemory, PublicMemoryEntry{
			Address: uint64(addr),
			ID:      id,
			Value:   limbs.Word(),
		})
	}
	// Stable order regardless of the order addresses arrived in.
	sort.Slice(public.PublicMemory, func(i, j int) bool {
		return public.PublicMemory[i].Address < public.PublicMemory[j].Address
	})
	return public, nil
}

// fingerprint hashes the canonicalized input so identical VM outputs can be
// recognized across runs.
func fingerprint(input *ProverInput, trace []CasmState, publicAddrs []uint32) [32]byte {
	h := blake3.New()
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	for _, addr := range input.Memory.Addresses() {
		writeU64(addr)
		word, _ := input.Memory.Word(addr)
		b := word.Bytes32()
		h.Write(b[:])
	}
	for _, s := range trace {
		writeU64(s.PC)
		writeU64(s.AP)
		writeU64(s.FP)
	}
	for _, a := range publicAddrs {
		writeU64(uint64(a))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
