// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package adapter converts the artifacts of a finished Cairo VM run - a
// relocated memory image, a relocated register trace, public memory addresses
// and the memory segment table - into the structured algebraic statement the
// prover consumes: a canonicalized Memory, per-opcode state buckets, and the
// public data the verifier re-derives the statement from.
package adapter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/holiman/uint256"

	"github.com/luxfi/cairo/mem"
)

// CasmState is the register triple at one step boundary.
type CasmState struct {
	PC uint64
	AP uint64
	FP uint64
}

// StateTransitions buckets every executed step by opcode variant, in
// execution order within each bucket.
type StateTransitions struct {
	Initial CasmState
	Final   CasmState

	StatesByOpcode CasmStatesByOpcode
}

// CasmStatesByOpcode holds one bucket per variant, indexed by Variant.
type CasmStatesByOpcode [NVariants][]CasmState

// Counts returns the per-variant call counts.
func (c *CasmStatesByOpcode) Counts() [NVariants]int {
	var out [NVariants]int
	for v := range c {
		out[v] = len(c[v])
	}
	return out
}

// String renders the non-empty buckets, one per line.
func (c *CasmStatesByOpcode) String() string {
	var sb strings.Builder
	for v := Variant(0); v < NVariants; v++ {
		if n := len(c[v]); n > 0 {
			fmt.Fprintf(&sb, "%s: %d\n", v, n)
		}
	}
	return sb.String()
}

// MemorySegment is a half-open address range owned by one builtin.
type MemorySegment struct {
	BeginAddr uint64
	StopPtr   uint64
}

// PublicMemoryEntry exposes one public memory cell: its address, the id the
// adapter assigned, and the full value.
type PublicMemoryEntry struct {
	Address uint64
	ID      mem.ID
	Value   *uint256.Int
}

// PublicData is everything the verifier reconstructs the statement from.
type PublicData struct {
	Initial CasmState
	Final   CasmState

	// Segments maps builtin name to its address range. SegmentNames gives
	// the deterministic iteration order.
	Segments     map[string]MemorySegment
	SegmentNames []string

	PublicMemory []PublicMemoryEntry
}

// ProverInput is the adapter's output and the prover's sole input.
type ProverInput struct {
	Memory           *mem.Memory
	StateTransitions StateTransitions
	Public           PublicData

	// Fingerprint is the blake3 digest of the canonicalized input, logged
	// for determinism diagnostics. It is not part of the statement.
	Fingerprint [32]byte
}

func sortedSegmentNames(segments map[string]MemorySegment) []string {
	names := make([]string, 0, len(segments))
	for name := range segments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
