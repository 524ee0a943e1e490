// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prover

import (
	"fmt"

	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/lookups"
	"github.com/luxfi/cairo/opcodes"
)

// buildComponents instantiates every component of the run in the canonical
// visitation order: opcode variants, builtin segments, then the shared
// tables. Table multiplicities must see every positive emission first, so
// the order of construction is load-bearing.
func buildComponents(input *adapter.ProverInput) ([]air.Component, *CairoClaim, error) {
	collector := lookups.NewCollector()
	claim := &CairoClaim{Public: input.Public}

	var components []air.Component
	for v := adapter.Variant(0); v < adapter.NVariants; v++ {
		states := input.StateTransitions.StatesByOpcode[v]
		claim.Opcodes[v] = air.Claim{NCalls: len(states)}
		if len(states) == 0 {
			continue
		}
		comp, err := opcodes.NewComponent(v, states, input.Memory, collector, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("building %s: %w", v, err)
		}
		components = append(components, comp)
	}

	for _, name := range claim.BuiltinNames() {
		seg := input.Public.Segments[name]
		comp := lookups.NewBuiltinSegment(name, seg.BeginAddr, seg.StopPtr, input.Memory, collector, nil)
		claim.Builtins = append(claim.Builtins, comp.Claim())
		components = append(components, comp)
	}

	// The verifier emits the public memory reads; the tables must count them.
	for _, entry := range input.Public.PublicMemory {
		collector.AddAddr(entry.Address)
		collector.AddID(entry.ID)
	}

	addrTable := lookups.NewMemoryAddressToID(input.Memory, collector, nil)
	idTable := lookups.NewMemoryIDToBig(input.Memory, collector, nil)
	rc9 := lookups.NewRangeCheck(lookups.RangeCheck9Bits, collector.RC9Counts(), nil)
	rc16 := lookups.NewRangeCheck(lookups.RangeCheck16Bits, collector.RC16Counts(), nil)
	viTable := lookups.NewVerifyInstruction(collector, nil)

	claim.AddressToID = addrTable.Claim()
	claim.IDToBig = idTable.Claim()
	claim.RangeCheck9 = rc9.Claim()
	claim.RangeCheck16 = rc16.Claim()
	claim.VerifyInstruction = viTable.Claim()

	components = append(components, addrTable, idTable, rc9, rc16, viTable)
	return components, claim, nil
}

// maxLogSize is the evaluation domain of the run: the largest component
// trace.
func maxLogSize(components []air.Component) uint32 {
	var max uint32
	for _, c := range components {
		if l := c.LogSize(); l > max {
			max = l
		}
	}
	return max
}
