// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2s"

	"github.com/luxfi/cairo/m31"
)

// blake2sChannel chains a Blake2s digest over everything absorbed; draws
// rehash the digest with a counter so successive challenges differ.
type blake2sChannel struct {
	digest  [blake2s.Size]byte
	counter uint64
}

func newBlake2sChannel() *blake2sChannel {
	return &blake2sChannel{digest: blake2s.Sum256([]byte("cairo-blake2s-channel"))}
}

func (c *blake2sChannel) absorb(data []byte) {
	buf := make([]byte, 0, len(c.digest)+len(data))
	buf = append(buf, c.digest[:]...)
	buf = append(buf, data...)
	c.digest = blake2s.Sum256(buf)
	c.counter = 0
}

func (c *blake2sChannel) MixU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	c.absorb(b[:])
}

func (c *blake2sChannel) MixFelts(felts []m31.QM31) {
	buf := make([]byte, 0, 16*len(felts))
	var b [4]byte
	for _, f := range felts {
		for _, coord := range f.Coordinates() {
			binary.LittleEndian.PutUint32(b[:], coord.Uint32())
			buf = append(buf, b[:]...)
		}
	}
	c.absorb(buf)
}

func (c *blake2sChannel) MixRoot(root Hash) {
	c.absorb(root[:])
}

func (c *blake2sChannel) DrawFelt() m31.QM31 {
	buf := make([]byte, len(c.digest)+8)
	copy(buf, c.digest[:])
	binary.LittleEndian.PutUint64(buf[len(c.digest):], c.counter)
	c.counter++
	h := blake2s.Sum256(buf)
	return m31.FromUint32x4(
		binary.LittleEndian.Uint32(h[0:4]),
		binary.LittleEndian.Uint32(h[4:8]),
		binary.LittleEndian.Uint32(h[8:12]),
		binary.LittleEndian.Uint32(h[12:16]),
	)
}

func (c *blake2sChannel) DrawFelts(n int) []m31.QM31 {
	out := make([]m31.QM31, n)
	for i := range out {
		out[i] = c.DrawFelt()
	}
	return out
}

// blake2sHasher hashes tree leaves and nodes with raw Blake2s.
type blake2sHasher struct{}

func (blake2sHasher) HashLeaf(values []m31.M31) Hash {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], v.Uint32())
	}
	return Hash(blake2s.Sum256(buf))
}

func (blake2sHasher) HashPair(left, right Hash) Hash {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return Hash(blake2s.Sum256(buf[:]))
}
