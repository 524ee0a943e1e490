// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package adapter

import (
	"errors"
	"fmt"
)

// VM import failures. I/O and JSON errors surface to the caller unchanged;
// everything below is a semantic rejection of the artifacts themselves.
var (
	ErrTraceNotRelocated   = errors.New("trace not relocated")
	ErrUnknownOpcode       = errors.New("unknown opcode")
	ErrInstructionTooWide  = errors.New("instruction word exceeds 63 bits")
	ErrMissingMemoryValue  = errors.New("trace references unset memory")
	ErrPublicMemoryMissing = errors.New("public memory address has no id")
	ErrEmptyTrace          = errors.New("empty execution trace")
	ErrSegmentOutOfRange   = errors.New("memory segment stop pointer below its begin address")
)

// UnknownOpcodeError reports the offending program counter and raw flag word.
type UnknownOpcodeError struct {
	PC    uint64
	Flags uint16
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode at pc %d (flags %#04x)", e.PC, e.Flags)
}

func (e *UnknownOpcodeError) Unwrap() error {
	return ErrUnknownOpcode
}
