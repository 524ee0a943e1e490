// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package casm

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/luxfi/cairo/adapter"
)

// Run holds the VM artifacts of one finished execution, in the shape the
// adapter consumes.
type Run struct {
	MemoryEntries   []adapter.MemoryEntry
	Trace           []adapter.CasmState
	PublicAddresses []uint32
	Segments        map[string]adapter.MemorySegment
}

type machine struct {
	memory map[uint64]*uint256.Int
	pc     uint64
	ap     uint64
	fp     uint64
}

// Execute runs the program to completion (or maxSteps) and returns the
// relocated artifacts. The program is loaded at address 1; the initial frame
// follows the code with the conventional return cell pair.
func Execute(program []*uint256.Int, maxSteps int) (*Run, error) {
	const base = 1
	endPC := base + uint64(len(program))
	fp0 := endPC + 2

	m := &machine{
		memory: make(map[uint64]*uint256.Int),
		pc:     base,
		ap:     fp0,
		fp:     fp0,
	}
	for i, w := range program {
		m.memory[base+uint64(i)] = new(uint256.Int).Set(w)
	}
	// Conventional frame: [fp-2] holds the caller fp, [fp-1] the return pc.
	m.memory[fp0-2] = uint256.NewInt(fp0)
	m.memory[fp0-1] = uint256.NewInt(endPC)

	run := &Run{
		Segments: map[string]adapter.MemorySegment{
			"program": {BeginAddr: base, StopPtr: endPC},
		},
	}
	for step := 0; step < maxSteps && m.pc != endPC; step++ {
		run.Trace = append(run.Trace, adapter.CasmState{PC: m.pc, AP: m.ap, FP: m.fp})
		if err := m.step(); err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
	}
	run.Trace = append(run.Trace, adapter.CasmState{PC: m.pc, AP: m.ap, FP: m.fp})

	run.Segments["execution"] = adapter.MemorySegment{BeginAddr: fp0 - 2, StopPtr: m.ap}

	addrs := make([]uint64, 0, len(m.memory))
	for addr := range m.memory {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, addr := range addrs {
		run.MemoryEntries = append(run.MemoryEntries, adapter.MemoryEntry{
			Address: addr,
			Value:   m.memory[addr],
		})
	}
	for a := uint64(base); a < endPC; a++ {
		run.PublicAddresses = append(run.PublicAddresses, uint32(a))
	}
	run.PublicAddresses = append(run.PublicAddresses, uint32(fp0-2), uint32(fp0-1))
	return run, nil
}

func (m *machine) read(addr uint64) (*uint256.Int, error) {
	v, ok := m.memory[addr]
	if !ok {
		return nil, fmt.Errorf("read of unset address %d", addr)
	}
	return v, nil
}

func (m *machine) readU64(addr uint64) (uint64, error) {
	v, err := m.read(addr)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("value at address %d does not fit 64 bits", addr)
	}
	return v.Uint64(), nil
}

func (m *machine) write(addr uint64, v *uint256.Int) error {
	if existing, ok := m.memory[addr]; ok {
		if !existing.Eq(v) {
			return fmt.Errorf("write conflict at address %d", addr)
		}
		return nil
	}
	m.memory[addr] = new(uint256.Int).Set(v)
	return nil
}

func (m *machine) step() error {
	word, err := m.readU64(m.pc)
	if err != nil {
		return err
	}
	ins, err := adapter.DecodeInstruction(word)
	if err != nil {
		return err
	}
	state := adapter.CasmState{PC: m.pc, AP: m.ap, FP: m.fp}

	size := uint64(1)
	if ins.Flag(adapter.FlagOp1Imm) == 1 {
		size = 2
	}
	apAdd1 := uint64(ins.Flag(adapter.FlagAPAdd1))

	switch {
	case ins.Flag(adapter.FlagOpcodeRet) == 1:
		newPC, err := m.readU64(m.fp - 1)
		if err != nil {
			return err
		}
		newFP, err := m.readU64(m.fp - 2)
		if err != nil {
			return err
		}
		m.pc, m.fp = newPC, newFP
		return nil

	case ins.Flag(adapter.FlagOpcodeCall) == 1:
		imm, err := m.readU64(m.pc + 1)
		if err != nil {
			return err
		}
		if err := m.write(m.ap, uint256.NewInt(m.fp)); err != nil {
			return err
		}
		if err := m.write(m.ap+1, uint256.NewInt(m.pc+size)); err != nil {
			return err
		}
		m.pc += imm
		m.ap += 2
		m.fp = m.ap
		return nil

	case ins.Flag(adapter.FlagPCJnz) == 1:
		dst, err := m.read(dstAddr(state, ins))
		if err != nil {
			return err
		}
		if dst.IsZero() {
			m.pc += size
		} else {
			imm, err := m.readU64(m.pc + 1)
			if err != nil {
				return err
			}
			m.pc += imm
		}
		m.ap += apAdd1
		return nil

	case ins.Flag(adapter.FlagPCJumpRel) == 1 && ins.Flag(adapter.FlagOpcodeAssertEq) == 0:
		imm, err := m.readU64(m.pc + 1)
		if err != nil {
			return err
		}
		m.pc += imm
		return nil

	case ins.Flag(adapter.FlagAPAdd) == 1:
		imm, err := m.readU64(m.pc + 1)
		if err != nil {
			return err
		}
		m.pc += size
		m.ap += imm
		return nil

	case ins.Flag(adapter.FlagOpcodeAssertEq) == 1:
		res, err := m.computeRes(state, ins)
		if err != nil {
			return err
		}
		if err := m.write(dstAddr(state, ins), res); err != nil {
			return err
		}
		m.pc += size
		m.ap += apAdd1
		return nil
	}
	return fmt.Errorf("unsupported instruction %#x at pc %d", word, m.pc)
}

func (m *machine) computeRes(state adapter.CasmState, ins adapter.Instruction) (*uint256.Int, error) {
	op1Address := op1Addr(state, ins)
	if ins.Flag(adapter.FlagOp1Imm) == 0 && ins.Flag(adapter.FlagOp1BaseFP) == 0 &&
		ins.Flag(adapter.FlagOp1BaseAP) == 0 {
		// Double deref: op1 = [[op0 base + off1] + off2].
		inner, err := m.readU64(op0Addr(state, ins))
		if err != nil {
			return nil, err
		}
		op1Address = uint64(int64(inner) + ins.SignedOffset2())
	}
	op1, err := m.read(op1Address)
	if err != nil {
		return nil, err
	}
	switch {
	case ins.Flag(adapter.FlagResAdd) == 1:
		op0, err := m.read(op0Addr(state, ins))
		if err != nil {
			return nil, err
		}
		return new(uint256.Int).AddMod(op0, op1, FieldModulus), nil
	case ins.Flag(adapter.FlagResMul) == 1:
		op0, err := m.read(op0Addr(state, ins))
		if err != nil {
			return nil, err
		}
		return new(uint256.Int).MulMod(op0, op1, FieldModulus), nil
	default:
		return new(uint256.Int).Set(op1), nil
	}
}

func dstAddr(state adapter.CasmState, ins adapter.Instruction) uint64 {
	base := state.AP
	if ins.Flag(adapter.FlagDstBaseFP) == 1 {
		base = state.FP
	}
	return uint64(int64(base) + ins.SignedOffset0())
}

func op0Addr(state adapter.CasmState, ins adapter.Instruction) uint64 {
	base := state.AP
	if ins.Flag(adapter.FlagOp0BaseFP) == 1 {
		base = state.FP
	}
	return uint64(int64(base) + ins.SignedOffset1())
}

func op1Addr(state adapter.CasmState, ins adapter.Instruction) uint64 {
	switch {
	case ins.Flag(adapter.FlagOp1Imm) == 1:
		return state.PC + 1
	case ins.Flag(adapter.FlagOp1BaseFP) == 1:
		return uint64(int64(state.FP) + ins.SignedOffset2())
	default:
		return uint64(int64(state.AP) + ins.SignedOffset2())
	}
}
