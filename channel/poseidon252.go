// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/zeebo/blake3"

	"github.com/luxfi/cairo/m31"
)

// Hades parameters for the width-3 permutation over the 252-bit field.
const (
	poseidonWidth         = 3
	poseidonFullRounds    = 8
	poseidonPartialRounds = 83
)

// Round constants are derived once from a fixed blake3 stream so prover and
// verifier share them without carrying a table in source.
var poseidonRoundConstants = derivePoseidonConstants()

func derivePoseidonConstants() [][poseidonWidth]fp.Element {
	h := blake3.New()
	h.Write([]byte("cairo-poseidon252-round-constants"))
	xof := h.Digest()

	nRounds := poseidonFullRounds + poseidonPartialRounds
	constants := make([][poseidonWidth]fp.Element, nRounds)
	var buf [32]byte
	for r := 0; r < nRounds; r++ {
		for i := 0; i < poseidonWidth; i++ {
			xof.Read(buf[:])
			constants[r][i].SetBytes(buf[:])
		}
	}
	return constants
}

// poseidonPermute runs the Hades rounds in place: full rounds sandwich the
// partial rounds, the S-box is x^3, and the matrix is
// [[3,1,1],[1,-1,1],[1,1,-2]].
func poseidonPermute(state *[poseidonWidth]fp.Element) {
	half := poseidonFullRounds / 2
	round := 0
	for r := 0; r < half; r++ {
		poseidonRound(state, round, true)
		round++
	}
	for r := 0; r < poseidonPartialRounds; r++ {
		poseidonRound(state, round, false)
		round++
	}
	for r := 0; r < half; r++ {
		poseidonRound(state, round, true)
		round++
	}
}

func poseidonRound(state *[poseidonWidth]fp.Element, round int, full bool) {
	for i := 0; i < poseidonWidth; i++ {
		state[i].Add(&state[i], &poseidonRoundConstants[round][i])
	}
	if full {
		for i := 0; i < poseidonWidth; i++ {
			cube(&state[i])
		}
	} else {
		cube(&state[2])
	}
	mixState(state)
}

func cube(x *fp.Element) {
	var sq fp.Element
	sq.Square(x)
	x.Mul(&sq, x)
}

func mixState(state *[poseidonWidth]fp.Element) {
	var s0, s1, s2, sum, t fp.Element
	sum.Add(&state[0], &state[1])
	sum.Add(&sum, &state[2])

	// 3*s0 + s1 + s2 = sum + 2*s0
	t.Double(&state[0])
	s0.Add(&sum, &t)
	// s0 - s1 + s2 = sum - 2*s1
	t.Double(&state[1])
	s1.Sub(&sum, &t)
	// s0 + s1 - 2*s2 = sum - 3*s2
	t.Double(&state[2])
	t.Add(&t, &state[2])
	s2.Sub(&sum, &t)

	state[0], state[1], state[2] = s0, s1, s2
}

// hashFelts is a rate-2 sponge with 10* padding.
func hashFelts(inputs []fp.Element) fp.Element {
	var state [poseidonWidth]fp.Element
	i := 0
	for ; i+1 < len(inputs); i += 2 {
		state[0].Add(&state[0], &inputs[i])
		state[1].Add(&state[1], &inputs[i+1])
		poseidonPermute(&state)
	}
	var one fp.Element
	one.SetOne()
	if i < len(inputs) {
		state[0].Add(&state[0], &inputs[i])
		state[1].Add(&state[1], &one)
	} else {
		state[0].Add(&state[0], &one)
	}
	poseidonPermute(&state)
	return state[0]
}

// poseidonChannel keeps the transcript digest as one field element.
type poseidonChannel struct {
	digest  fp.Element
	counter uint64
}

func newPoseidonChannel() *poseidonChannel {
	c := &poseidonChannel{}
	c.digest.SetBytes([]byte("cairo-poseidon252-channel"))
	return c
}

func (c *poseidonChannel) absorb(felts []fp.Element) {
	all := make([]fp.Element, 0, len(felts)+1)
	all = append(all, c.digest)
	all = append(all, felts...)
	c.digest = hashFelts(all)
	c.counter = 0
}

func (c *poseidonChannel) MixU64(v uint64) {
	var f fp.Element
	f.SetUint64(v)
	c.absorb([]fp.Element{f})
}

// shift31 is 2^31, the packing radix for QM31 coordinates.
var shift31 = func() fp.Element {
	var f fp.Element
	f.SetUint64(1 << 31)
	return f
}()

func packQM31(v m31.QM31) fp.Element {
	coords := v.Coordinates()
	var f, c fp.Element
	for i := 3; i >= 0; i-- {
		f.Mul(&f, &shift31)
		c.SetUint64(uint64(coords[i].Uint32()))
		f.Add(&f, &c)
	}
	return f
}

func (c *poseidonChannel) MixFelts(felts []m31.QM31) {
	packed := make([]fp.Element, len(felts))
	for i, f := range felts {
		packed[i] = packQM31(f)
	}
	c.absorb(packed)
}

func (c *poseidonChannel) MixRoot(root Hash) {
	var f fp.Element
	f.SetBytes(root[:])
	c.absorb([]fp.Element{f})
}

func (c *poseidonChannel) DrawFelt() m31.QM31 {
	var counterFelt fp.Element
	counterFelt.SetUint64(c.counter)
	c.counter++
	h := hashFelts([]fp.Element{c.digest, counterFelt})
	bytes := h.Bytes()
	return m31.FromUint32x4(
		binary.BigEndian.Uint32(bytes[0:4]),
		binary.BigEndian.Uint32(bytes[4:8]),
		binary.BigEndian.Uint32(bytes[8:12]),
		binary.BigEndian.Uint32(bytes[12:16]),
	)
}

func (c *poseidonChannel) DrawFelts(n int) []m31.QM31 {
	out := make([]m31.QM31, n)
	for i := range out {
		out[i] = c.DrawFelt()
	}
	return out
}

// poseidonHasher commits trees with the same permutation; nodes are field
// elements serialized big-endian.
type poseidonHasher struct{}

func (poseidonHasher) HashLeaf(values []m31.M31) Hash {
	// Pack eight 31-bit values per felt; 248 bits stay below the modulus.
	packed := make([]fp.Element, 0, len(values)/8+1)
	for start := 0; start < len(values); start += 8 {
		end := start + 8
		if end > len(values) {
			end = len(values)
		}
		var f, c fp.Element
		for i := end - 1; i >= start; i-- {
			f.Mul(&f, &shift31)
			c.SetUint64(uint64(values[i].Uint32()))
			f.Add(&f, &c)
		}
		packed = append(packed, f)
	}
	h := hashFelts(packed)
	return Hash(h.Bytes())
}

func (poseidonHasher) HashPair(left, right Hash) Hash {
	var l, r fp.Element
	l.SetBytes(left[:])
	r.SetBytes(right[:])
	h := hashFelts([]fp.Element{l, r})
	return Hash(h.Bytes())
}
