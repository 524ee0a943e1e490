// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package m31

// CM31 is the degree-2 extension M31[i] / (i^2 + 1).
type CM31 struct {
	Re, Im M31
}

// QM31 is the degree-4 extension CM31[u] / (u^2 - (2 + i)), the SecureField.
// Challenges, LogUp denominators and composition values live here.
type QM31 struct {
	A, B CM31
}

// QZero and QOne are the extension identities.
var (
	QZero = QM31{}
	QOne  = QM31{A: CM31{Re: One}}
)

func (a CM31) add(b CM31) CM31 {
	return CM31{a.Re.Add(b.Re), a.Im.Add(b.Im)}
}

func (a CM31) sub(b CM31) CM31 {
	return CM31{a.Re.Sub(b.Re), a.Im.Sub(b.Im)}
}

func (a CM31) neg() CM31 {
	return CM31{a.Re.Neg(), a.Im.Neg()}
}

func (a CM31) mul(b CM31) CM31 {
	// (ar + ai*i)(br + bi*i) = (ar*br - ai*bi) + (ar*bi + ai*br)i
	return CM31{
		a.Re.Mul(b.Re).Sub(a.Im.Mul(b.Im)),
		a.Re.Mul(b.Im).Add(a.Im.Mul(b.Re)),
	}
}

func (a CM31) mulM31(b M31) CM31 {
	return CM31{a.Re.Mul(b), a.Im.Mul(b)}
}

func (a CM31) inverse() CM31 {
	// 1/(r + si) = (r - si) / (r^2 + s^2)
	norm := a.Re.Square().Add(a.Im.Square())
	normInv := norm.Inverse()
	return CM31{a.Re.Mul(normInv), a.Im.Neg().Mul(normInv)}
}

func (a CM31) isZero() bool {
	return a.Re.IsZero() && a.Im.IsZero()
}

// r is the non-residue u^2 = 2 + i.
var qm31R = CM31{Re: 2, Im: 1}

// FromM31 embeds a base-field element into QM31.
func FromM31(v M31) QM31 {
	return QM31{A: CM31{Re: v}}
}

// FromUint32x4 builds a QM31 from its four M31 coordinates (a.re, a.im, b.re, b.im).
func FromUint32x4(v0, v1, v2, v3 uint32) QM31 {
	return QM31{
		A: CM31{New(v0), New(v1)},
		B: CM31{New(v2), New(v3)},
	}
}

// Coordinates returns the four M31 coordinates in mixing order.
func (a QM31) Coordinates() [4]M31 {
	return [4]M31{a.A.Re, a.A.Im, a.B.Re, a.B.Im}
}

// Add returns a + b.
func (a QM31) Add(b QM31) QM31 {
	return QM31{a.A.add(b.A), a.B.add(b.B)}
}

// Sub returns a - b.
func (a QM31) Sub(b QM31) QM31 {
	return QM31{a.A.sub(b.A), a.B.sub(b.B)}
}

// Neg returns -a.
func (a QM31) Neg() QM31 {
	return QM31{a.A.neg(), a.B.neg()}
}

// Mul returns a * b.
func (a QM31) Mul(b QM31) QM31 {
	// (a0 + a1 u)(b0 + b1 u) = (a0 b0 + r a1 b1) + (a0 b1 + a1 b0) u
	a0b0 := a.A.mul(b.A)
	a1b1 := a.B.mul(b.B)
	return QM31{
		a0b0.add(qm31R.mul(a1b1)),
		a.A.mul(b.B).add(a.B.mul(b.A)),
	}
}

// MulM31 returns a scaled by a base-field element.
func (a QM31) MulM31(b M31) QM31 {
	return QM31{a.A.mulM31(b), a.B.mulM31(b)}
}

// Square returns a * a.
func (a QM31) Square() QM31 {
	return a.Mul(a)
}

// Inverse returns a^-1, or 0 for a = 0.
func (a QM31) Inverse() QM31 {
	if a.IsZero() {
		return QZero
	}
	// 1/(a0 + a1 u) = (a0 - a1 u) / (a0^2 - r a1^2)
	denom := a.A.mul(a.A).sub(qm31R.mul(a.B.mul(a.B)))
	denomInv := denom.inverse()
	return QM31{a.A.mul(denomInv), a.B.neg().mul(denomInv)}
}

// IsZero reports whether a is the additive identity.
func (a QM31) IsZero() bool {
	return a.A.isZero() && a.B.isZero()
}

// BatchInverseQM31 inverts every element of xs with a single extension
// inversion. Zero entries invert to zero.
func BatchInverseQM31(xs []QM31) []QM31 {
	out := make([]QM31, len(xs))
	prefix := make([]QM31, len(xs))
	acc := QOne
	for i, x := range xs {
		prefix[i] = acc
		if !x.IsZero() {
			acc = acc.Mul(x)
		}
	}
	inv := acc.Inverse()
	for i := len(xs) - 1; i >= 0; i-- {
		if xs[i].IsZero() {
			out[i] = QZero
			continue
		}
		out[i] = inv.Mul(prefix[i])
		inv = inv.Mul(xs[i])
	}
	return out
}
