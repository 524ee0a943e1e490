// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lookups implements the shared lookup-table components of the Cairo
// AIR: MemoryAddressToId, MemoryIdToBig, RangeCheck[N] and VerifyInstruction,
// plus the builtin-segment readers. Table components emit every row with a
// negative multiplicity; the opcode components (and the verifier's public
// data) emit the matching positive uses, so each relation's global LogUp sum
// cancels.
package lookups

import (
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/mem"
)

// RangeCheck bit-widths used by the limb decompositions.
const (
	RangeCheck9Bits  = 9
	RangeCheck16Bits = 16
)

// VITuple is one decoded instruction row of the VerifyInstruction relation:
// pc, the three biased offsets, and the 15 flag bits.
type VITuple [19]m31.M31

// Values returns the tuple as a slice for relation combining.
func (t VITuple) Values() []m31.M31 {
	return t[:]
}

// Collector counts, during trace generation, every positive lookup emission
// so the table components can write matching multiplicities.
type Collector struct {
	viOrder []VITuple
	viIndex map[VITuple]int
	viCount []int

	addrCounts map[uint64]int
	idCounts   map[mem.ID]int

	rc9  []int
	rc16 []int
}

// NewCollector creates empty counters.
func NewCollector() *Collector {
	return &Collector{
		viIndex:    make(map[VITuple]int),
		addrCounts: make(map[uint64]int),
		idCounts:   make(map[mem.ID]int),
		rc9:        make([]int, 1<<RangeCheck9Bits),
		rc16:       make([]int, 1<<RangeCheck16Bits),
	}
}

// AddVI counts one VerifyInstruction use. Tuples are interned in first-seen
// order, which is the table's row order.
func (c *Collector) AddVI(t VITuple) {
	if i, ok := c.viIndex[t]; ok {
		c.viCount[i]++
		return
	}
	c.viIndex[t] = len(c.viOrder)
	c.viOrder = append(c.viOrder, t)
	c.viCount = append(c.viCount, 1)
}

// AddAddr counts one MemoryAddressToId use.
func (c *Collector) AddAddr(addr uint64) {
	c.addrCounts[addr]++
}

// AddID counts one MemoryIdToBig use.
func (c *Collector) AddID(id mem.ID) {
	c.idCounts[id]++
}

// AddRC9 counts one 9-bit range-check use.
func (c *Collector) AddRC9(v uint32) {
	c.rc9[v]++
}

// AddRC16 counts one 16-bit range-check use.
func (c *Collector) AddRC16(v uint32) {
	c.rc16[v]++
}

// RC9Counts exposes the 9-bit multiplicities for table construction.
func (c *Collector) RC9Counts() []int {
	return c.rc9
}

// RC16Counts exposes the 16-bit multiplicities for table construction.
func (c *Collector) RC16Counts() []int {
	return c.rc16
}
