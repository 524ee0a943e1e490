// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package casm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/cairo/adapter"
)

func TestWordRoundTripsThroughDecode(t *testing.T) {
	word := Word(-2, -1, 3, 1<<adapter.FlagOpcodeAssertEq|1<<adapter.FlagOp1BaseAP)
	ins, err := adapter.DecodeInstruction(word)
	require.NoError(t, err)
	require.Equal(t, int64(-2), ins.SignedOffset0())
	require.Equal(t, int64(-1), ins.SignedOffset1())
	require.Equal(t, int64(3), ins.SignedOffset2())
	require.Equal(t, uint16(1), ins.Flag(adapter.FlagOpcodeAssertEq))
	require.Equal(t, uint16(1), ins.Flag(adapter.FlagOp1BaseAP))
	require.Equal(t, uint16(0), ins.Flag(adapter.FlagOp1Imm))
}

func TestExecuteRetOnly(t *testing.T) {
	run, err := Execute([]*uint256.Int{uint256.NewInt(Ret())}, 10)
	require.NoError(t, err)
	require.Len(t, run.Trace, 2)
	require.Equal(t, uint64(1), run.Trace[0].PC)
	require.Equal(t, uint64(2), run.Trace[1].PC)
	require.Contains(t, run.Segments, "program")
	require.Contains(t, run.Segments, "execution")
}

func TestExecuteWriteConflict(t *testing.T) {
	// Two asserts binding the same cell to different values must fail.
	_, err := Execute([]*uint256.Int{
		uint256.NewInt(AssertEqImm(0, false, false)), uint256.NewInt(1),
		uint256.NewInt(AssertEqImm(0, false, false)), uint256.NewInt(2),
		uint256.NewInt(Ret()),
	}, 10)
	require.Error(t, err)
}

func TestExecuteFieldArithmeticWraps(t *testing.T) {
	big := new(uint256.Int).Sub(FieldModulus, uint256.NewInt(1))
	program := []*uint256.Int{
		uint256.NewInt(AssertEqImm(0, false, true)), big,
		uint256.NewInt(AddImm(0, -1, false, false, true)), uint256.NewInt(5),
		uint256.NewInt(Ret()),
	}
	run, err := Execute(program, 10)
	require.NoError(t, err)

	// [fp0+1] = (p-1) + 5 = 4 mod p.
	var result *uint256.Int
	for _, e := range run.MemoryEntries {
		if e.Address == run.Trace[0].FP+1 {
			result = e.Value
		}
	}
	require.NotNil(t, result)
	require.Equal(t, uint256.NewInt(4), result)
}
