// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package opcodes_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/casm"
	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/lookups"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/opcodes"
)

// allVariantsProgram exercises every implemented opcode variant once or
// twice, including a wrapping 252-bit addition and multiplication.
func allVariantsProgram() []*uint256.Int {
	big := new(uint256.Int).Sub(casm.FieldModulus, uint256.NewInt(1))
	ws := []uint64{
		casm.AssertEqImm(0, false, true), 3, // [b]=3
		casm.AssertEqImm(0, false, true), 0, // [b+1]=p-1 (patched)
		casm.AddImm(0, -1, false, false, true), 5, // big add, wraps
		casm.AddImm(0, -3, false, false, true), 4, // small add imm
		casm.Add(0, -1, -4, false, false, false, true),  // small add
		casm.MulImm(0, -1, false, false, true), 2, // small mul imm
		casm.Mul(0, -5, -5, false, false, false, true),  // big mul: (p-1)^2 = 1
		casm.AssertEq(0, -1, false, false, true),        // assert eq mem
		casm.AssertEqDoubleDeref(0, -8, 0, false, false, true),
		casm.Add(0, -8, -9, false, false, false, true),  // big add mem
		casm.MulImm(0, -9, false, false, true), 3, // big mul imm
		casm.Mul(0, -11, -7, false, false, false, true), // small mul mem
		casm.AddApImm(), 1,
		casm.JmpRelImm(), 2,
		casm.AssertEqImm(0, false, true), 1,
		casm.Jnz(-1, false), 2, // taken
		casm.AssertEqImm(0, false, true), 0,
		casm.Jnz(-1, false), 2, // not taken
		casm.CallRelImm(), 3,
		casm.Ret(), // main ret, resumed after the subroutine
		casm.Ret(), // subroutine
	}
	program := make([]*uint256.Int, len(ws))
	for i, w := range ws {
		program[i] = uint256.NewInt(w)
	}
	program[3] = big
	return program
}

func adaptProgram(t *testing.T, program []*uint256.Int) *adapter.ProverInput {
	t.Helper()
	run, err := casm.Execute(program, 1000)
	require.NoError(t, err)
	input, err := adapter.FromRelocated(run.MemoryEntries, run.Trace, run.PublicAddresses, run.Segments)
	require.NoError(t, err)
	return input
}

func drawRelations() *air.Relations {
	ch := channel.New(channel.Blake2s)
	ch.MixU64(7)
	return air.DrawRelations(ch)
}

func TestProgramCoversEveryVariant(t *testing.T) {
	input := adaptProgram(t, allVariantsProgram())
	counts := input.StateTransitions.StatesByOpcode.Counts()
	for v := adapter.Variant(0); v < adapter.NVariants; v++ {
		require.Positive(t, counts[v], "variant %s not exercised", v)
	}
	require.Equal(t, 2, counts[adapter.VariantRet])
}

func TestEveryVariantTraceSatisfiesItsConstraints(t *testing.T) {
	input := adaptProgram(t, allVariantsProgram())
	rels := drawRelations()
	collector := lookups.NewCollector()

	for v := adapter.Variant(0); v < adapter.NVariants; v++ {
		states := input.StateTransitions.StatesByOpcode[v]
		comp, err := opcodes.NewComponent(v, states, input.Memory, collector, rels)
		require.NoError(t, err, "variant %s", v)

		trace := comp.Trace()
		size := 1 << comp.LogSize()
		require.Len(t, trace[0], size)

		for row := 0; row < size; row++ {
			eval := air.NewRowEvaluator(air.RowOf(trace, row))
			comp.EvaluateRow(eval)
			require.Zerof(t, eval.Remaining(), "variant %s row %d: unread columns", v, row)
			for ci, c := range eval.Constraints {
				require.Truef(t, c.IsZero(), "variant %s row %d constraint %d", v, row, ci)
			}
		}
	}
}

func TestPaddingRowsAreDisabled(t *testing.T) {
	input := adaptProgram(t, allVariantsProgram())
	rels := drawRelations()
	collector := lookups.NewCollector()

	states := input.StateTransitions.StatesByOpcode[adapter.VariantRet]
	comp, err := opcodes.NewComponent(adapter.VariantRet, states, input.Memory, collector, rels)
	require.NoError(t, err)

	trace := comp.Trace()
	size := 1 << comp.LogSize()
	require.Greater(t, size, len(states), "bucket must be padded")
	for row := len(states); row < size; row++ {
		require.True(t, trace[0][row].IsZero(), "padding enabler must be clear")

		eval := air.NewRowEvaluator(air.RowOf(trace, row))
		comp.EvaluateRow(eval)
		for _, f := range eval.Fractions {
			require.True(t, f.Numerator.IsZero(), "padding must not feed any relation")
		}
	}
}

func TestEmptyBucketRejected(t *testing.T) {
	input := adaptProgram(t, allVariantsProgram())
	_, err := opcodes.NewComponent(adapter.VariantRet, nil, input.Memory, lookups.NewCollector(), drawRelations())
	require.Error(t, err)
}

func TestPointEvaluatorConsumesSameMask(t *testing.T) {
	// The symbolic evaluator must read the same number of columns in both
	// modes; the OODS mask is the lifted row.
	input := adaptProgram(t, allVariantsProgram())
	rels := drawRelations()
	collector := lookups.NewCollector()

	for v := adapter.Variant(0); v < adapter.NVariants; v++ {
		states := input.StateTransitions.StatesByOpcode[v]
		comp, err := opcodes.NewComponent(v, states, input.Memory, collector, rels)
		require.NoError(t, err)

		trace := comp.Trace()
		row := air.RowOf(trace, 0)
		mask := make([]m31.QM31, len(row))
		for i, val := range row {
			mask[i] = m31.FromM31(val)
		}
		point := air.NewPointEvaluator(mask, m31.FromUint32x4(9, 8, 7, 6))
		comp.EvaluatePoint(point)
		require.Zerof(t, point.Remaining(), "variant %s: point evaluator mask width", v)
		// A lifted satisfied row accumulates to zero.
		require.True(t, point.Accumulation().IsZero(), "variant %s", v)
	}
}

func TestCollectorCountsMatchEmissions(t *testing.T) {
	input := adaptProgram(t, allVariantsProgram())
	rels := drawRelations()
	collector := lookups.NewCollector()

	var fromRows []air.Fraction
	for v := adapter.Variant(0); v < adapter.NVariants; v++ {
		states := input.StateTransitions.StatesByOpcode[v]
		comp, err := opcodes.NewComponent(v, states, input.Memory, collector, rels)
		require.NoError(t, err)
		trace := comp.Trace()
		for row := 0; row < 1<<comp.LogSize(); row++ {
			eval := air.NewRowEvaluator(air.RowOf(trace, row))
			comp.EvaluateRow(eval)
			fromRows = append(fromRows, eval.Fractions...)
		}
	}

	// Replay the collected table multiplicities as negative entries; memory
	// and instruction relations must cancel exactly (no public reads and no
	// range checks counted here beyond what the rows emitted).
	tracker := air.NewRelationTracker()
	for _, f := range fromRows {
		tracker.Add(f)
	}
	addrTable := lookups.NewMemoryAddressToID(input.Memory, collector, rels)
	idTable := lookups.NewMemoryIDToBig(input.Memory, collector, rels)
	viTable := lookups.NewVerifyInstruction(collector, rels)
	for _, comp := range []air.Component{addrTable, idTable, viTable} {
		trace := comp.Trace()
		for row := 0; row < 1<<comp.LogSize(); row++ {
			eval := air.NewRowEvaluator(air.RowOf(trace, row))
			comp.EvaluateRow(eval)
			for _, f := range eval.Fractions {
				tracker.Add(f)
			}
		}
	}
	require.True(t, tracker.Sums["MemoryAddressToId"].IsZero(), "address relation must cancel")
	require.True(t, tracker.Sums["MemoryIdToBig"].IsZero(), "id relation must cancel")
	require.True(t, tracker.Sums["VerifyInstruction"].IsZero(), "instruction relation must cancel")
}

func TestNColumnsMatchesGeneratedTraceWidth(t *testing.T) {
	input := adaptProgram(t, allVariantsProgram())
	rels := drawRelations()
	collector := lookups.NewCollector()

	for v := adapter.Variant(0); v < adapter.NVariants; v++ {
		states := input.StateTransitions.StatesByOpcode[v]
		comp, err := opcodes.NewComponent(v, states, input.Memory, collector, rels)
		require.NoError(t, err)
		require.Equalf(t, opcodes.NColumns(opcodes.SpecFor(v)), len(comp.Trace()),
			"variant %s trace width", v)
	}
}
