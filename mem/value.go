// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mem implements the big-integer memory model of the Cairo AIR.
// A 252-bit memory word is split into 28 limbs of 9 bits each; every word
// referenced by the execution is interned under a 32-bit id whose top bit
// distinguishes single-limb ("small") values from full 28-limb ("big") ones.
package mem

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/cairo/m31"
)

const (
	// NLimbs is the number of 9-bit limbs in a 252-bit word.
	NLimbs = 28
	// LimbBits is the width of one limb.
	LimbBits = 9
	// LimbMask selects one limb.
	LimbMask = 1<<LimbBits - 1
	// SmallValueMax is the largest word classified as small. Words on the
	// boundary are small.
	SmallValueMax = LimbMask
)

// smallIDBit tags ids of single-limb values.
const smallIDBit uint32 = 1 << 31

// ID is a 32-bit memory id. The top bit set means the id indexes the
// small-value store; otherwise it indexes the big-value store.
type ID uint32

// SmallID builds the id of the index'th small value.
func SmallID(index uint32) ID {
	return ID(smallIDBit | index)
}

// BigID builds the id of the index'th big value.
func BigID(index uint32) ID {
	return ID(index)
}

// IsSmall reports whether the id indexes the small-value store.
func (id ID) IsSmall() bool {
	return uint32(id)&smallIDBit != 0
}

// Index returns the id's position within its store.
func (id ID) Index() uint32 {
	return uint32(id) &^ smallIDBit
}

// M31 returns the id as a trace value.
func (id ID) M31() m31.M31 {
	return m31.New(uint32(id))
}

// Limbs is a 252-bit word split into 28 base-field limbs, least significant
// first.
type Limbs [NLimbs]m31.M31

// IsSmallWord reports whether w fits in a single limb.
func IsSmallWord(w *uint256.Int) bool {
	return w.LtUint64(SmallValueMax + 1)
}

// SplitWord decomposes w into limbs. w must be below 2^252.
func SplitWord(w *uint256.Int) Limbs {
	var limbs Limbs
	var tmp uint256.Int
	tmp.Set(w)
	for i := 0; i < NLimbs; i++ {
		limbs[i] = m31.New(uint32(tmp.Uint64() & LimbMask))
		tmp.Rsh(&tmp, LimbBits)
	}
	return limbs
}

// Word reassembles the 252-bit value from its limbs.
func (l Limbs) Word() *uint256.Int {
	w := new(uint256.Int)
	var tmp uint256.Int
	for i := NLimbs - 1; i >= 0; i-- {
		w.Lsh(w, LimbBits)
		tmp.SetUint64(uint64(l[i].Uint32()))
		w.Or(w, &tmp)
	}
	return w
}

// Uint64 reassembles the low 63 bits of the word and reports whether all
// higher limbs are zero. Instruction words and addresses use this view.
func (l Limbs) Uint64() (uint64, bool) {
	var v uint64
	for i := 6; i >= 0; i-- {
		v = v<<LimbBits | uint64(l[i].Uint32())
	}
	for i := 7; i < NLimbs; i++ {
		if !l[i].IsZero() {
			return 0, false
		}
	}
	return v, true
}
