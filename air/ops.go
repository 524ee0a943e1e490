// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package air is the component framework of the Cairo AIR. A component owns
// a claim (its public scalars), a trace schema, a constraint evaluator and a
// LogUp interaction contribution. Constraint evaluators are written once
// against the symbolic Evaluator interface and run in two modes: over base
// field rows during trace generation and composition, and over extension
// field mask values at the out-of-domain point during verification.
package air

import (
	"github.com/luxfi/cairo/m31"
)

// LogNLanes is the minimum log trace length; every bucket is padded to at
// least 2^LogNLanes rows.
const LogNLanes = 4

// LogSize returns the trace log-length for a bucket of nCalls rows.
func LogSize(nCalls int) uint32 {
	logSize := uint32(LogNLanes)
	for 1<<logSize < nCalls {
		logSize++
	}
	return logSize
}

// Ops is the field-like capability set constraint evaluators are generic
// over: extension scalars at the OODS point, base-field scalars on rows.
type Ops[T any] interface {
	Zero() T
	One() T
	FromM31(v m31.M31) T
	Add(a, b T) T
	Sub(a, b T) T
	Mul(a, b T) T
	Neg(a T) T
}

// Evaluator is what a component's evaluate routine sees: an ordered cursor
// over its trace columns, a zero-constraint accumulator, and the named
// lookup tables it participates in.
type Evaluator[T any] interface {
	Ops[T]

	// NextTraceMask reads the next trace column at the current row/point.
	NextTraceMask() T
	// AddConstraint pushes a polynomial that must vanish on the trace.
	AddConstraint(v T)
	// AddToRelation pushes one LogUp entry with the given numerator.
	AddToRelation(rel *LookupElements, numerator T, values []T)
}
