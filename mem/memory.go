// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mem

import (
	"errors"
	"sort"

	"github.com/holiman/uint256"

	"github.com/luxfi/cairo/m31"
)

var (
	ErrAddressNotSet = errors.New("memory address has no value")
	ErrUnknownID     = errors.New("unknown memory id")
)

// Memory is the canonicalized address -> id mapping together with the two
// value stores the ids index. It is built once by the adapter and immutable
// afterwards.
type Memory struct {
	addrToID map[uint64]ID
	small    []m31.M31
	big      []Limbs

	// addresses is the sorted key set; every iteration over memory goes
	// through it so trace generation is deterministic.
	addresses []uint64
}

// ID resolves an address to its id.
func (m *Memory) ID(addr uint64) (ID, bool) {
	id, ok := m.addrToID[addr]
	return id, ok
}

// Limbs returns the 28-limb decomposition of the value behind id. Small
// values are zero-extended.
func (m *Memory) Limbs(id ID) (Limbs, error) {
	if id.IsSmall() {
		idx := id.Index()
		if int(idx) >= len(m.small) {
			return Limbs{}, ErrUnknownID
		}
		var l Limbs
		l[0] = m.small[idx]
		return l, nil
	}
	idx := id.Index()
	if int(idx) >= len(m.big) {
		return Limbs{}, ErrUnknownID
	}
	return m.big[idx], nil
}

// Word returns the full 252-bit value at addr.
func (m *Memory) Word(addr uint64) (*uint256.Int, error) {
	id, ok := m.addrToID[addr]
	if !ok {
		return nil, ErrAddressNotSet
	}
	limbs, err := m.Limbs(id)
	if err != nil {
		return nil, err
	}
	return limbs.Word(), nil
}

// Addresses returns every assigned address in ascending order.
func (m *Memory) Addresses() []uint64 {
	return m.addresses
}

// NSmall returns the size of the small-value store.
func (m *Memory) NSmall() int {
	return len(m.small)
}

// NBig returns the size of the big-value store.
func (m *Memory) NBig() int {
	return len(m.big)
}

// SmallValue returns the single limb behind a small id.
func (m *Memory) SmallValue(id ID) m31.M31 {
	return m.small[id.Index()]
}

// BigLimbs returns the limbs behind a big id.
func (m *Memory) BigLimbs(id ID) Limbs {
	return m.big[id.Index()]
}

// MemoryBuilder interns memory entries and assigns ids in first-seen order.
// Equal values map to equal ids regardless of address.
type MemoryBuilder struct {
	mem        *Memory
	smallIndex map[uint32]ID
	bigIndex   map[[32]byte]ID
}

// NewMemoryBuilder creates an empty builder.
func NewMemoryBuilder() *MemoryBuilder {
	return &MemoryBuilder{
		mem: &Memory{
			addrToID: make(map[uint64]ID),
		},
		smallIndex: make(map[uint32]ID),
		bigIndex:   make(map[[32]byte]ID),
	}
}

// Add interns the value and binds addr to its id. Re-adding an address with
// the same value is a no-op; the id of the value is returned.
func (b *MemoryBuilder) Add(addr uint64, w *uint256.Int) ID {
	id := b.intern(w)
	if _, seen := b.mem.addrToID[addr]; !seen {
		b.mem.addrToID[addr] = id
		b.mem.addresses = append(b.mem.addresses, addr)
	}
	return id
}

func (b *MemoryBuilder) intern(w *uint256.Int) ID {
	if IsSmallWord(w) {
		v := uint32(w.Uint64())
		if id, ok := b.smallIndex[v]; ok {
			return id
		}
		id := SmallID(uint32(len(b.mem.small)))
		b.smallIndex[v] = id
		b.mem.small = append(b.mem.small, m31.New(v))
		return id
	}
	key := w.Bytes32()
	if id, ok := b.bigIndex[key]; ok {
		return id
	}
	id := BigID(uint32(len(b.mem.big)))
	b.bigIndex[key] = id
	b.mem.big = append(b.mem.big, SplitWord(w))
	return id
}

// Build finalizes the memory. The builder must not be used afterwards.
func (b *MemoryBuilder) Build() *Memory {
	sort.Slice(b.mem.addresses, func(i, j int) bool {
		return b.mem.addresses[i] < b.mem.addresses[j]
	})
	return b.mem
}
