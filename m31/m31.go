// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package m31 implements the Mersenne prime field of order 2^31 - 1 and its
// degree-4 extension QM31, the two field layers the Cairo AIR is built on.
// Base-field elements carry trace values; extension elements carry
// Fiat-Shamir challenges and LogUp denominators.
package m31

// Modulus is the Mersenne prime 2^31 - 1.
const Modulus uint32 = 1<<31 - 1

// M31 is an element of the prime field of order 2^31 - 1, stored in [0, p).
type M31 uint32

// Zero and One are the additive and multiplicative identities.
var (
	Zero = M31(0)
	One  = M31(1)
)

// New reduces v into the field.
func New(v uint32) M31 {
	// A single fold is enough for 32-bit inputs: v = hi*2^31 + lo = hi + lo (mod p).
	v = (v >> 31) + (v & Modulus)
	if v >= Modulus {
		v -= Modulus
	}
	return M31(v)
}

// FromUint64 reduces a 64-bit value into the field.
func FromUint64(v uint64) M31 {
	return M31(v % uint64(Modulus))
}

// FromInt64 reduces a signed value into the field.
func FromInt64(v int64) M31 {
	m := v % int64(Modulus)
	if m < 0 {
		m += int64(Modulus)
	}
	return M31(m)
}

// Add returns a + b mod p.
func (a M31) Add(b M31) M31 {
	s := uint32(a) + uint32(b)
	if s >= Modulus {
		s -= Modulus
	}
	return M31(s)
}

// Sub returns a - b mod p.
func (a M31) Sub(b M31) M31 {
	if a >= b {
		return a - b
	}
	return M31(Modulus - uint32(b) + uint32(a))
}

// Neg returns -a mod p.
func (a M31) Neg() M31 {
	if a == 0 {
		return 0
	}
	return M31(Modulus - uint32(a))
}

// Mul returns a * b mod p, using the Mersenne folding reduction.
func (a M31) Mul(b M31) M31 {
	prod := uint64(a) * uint64(b)
	// prod = hi*2^31 + lo = hi + lo (mod p); one more fold handles the carry.
	folded := (prod >> 31) + (prod & uint64(Modulus))
	folded = (folded >> 31) + (folded & uint64(Modulus))
	if folded >= uint64(Modulus) {
		folded -= uint64(Modulus)
	}
	return M31(folded)
}

// Square returns a * a.
func (a M31) Square() M31 {
	return a.Mul(a)
}

// Pow returns a^exp using square-and-multiply.
func (a M31) Pow(exp uint64) M31 {
	result := One
	base := a
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Square()
		exp >>= 1
	}
	return result
}

// Inverse returns a^-1, or 0 for a = 0.
func (a M31) Inverse() M31 {
	if a == 0 {
		return 0
	}
	// Fermat: a^(p-2).
	return a.Pow(uint64(Modulus) - 2)
}

// IsZero reports whether a is the additive identity.
func (a M31) IsZero() bool {
	return a == 0
}

// Uint32 returns the canonical representative in [0, p).
func (a M31) Uint32() uint32 {
	return uint32(a)
}

// BatchInverse inverts every element of xs with a single field inversion
// (Montgomery's trick). Zero entries invert to zero.
func BatchInverse(xs []M31) []M31 {
	out := make([]M31, len(xs))
	prefix := make([]M31, len(xs))
	acc := One
	for i, x := range xs {
		prefix[i] = acc
		if !x.IsZero() {
			acc = acc.Mul(x)
		}
	}
	inv := acc.Inverse()
	for i := len(xs) - 1; i >= 0; i-- {
		if xs[i].IsZero() {
			out[i] = Zero
			continue
		}
		out[i] = inv.Mul(prefix[i])
		inv = inv.Mul(xs[i])
	}
	return out
}
