// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package adapter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/casm"
)

func adapt(t *testing.T, program []*uint256.Int) *adapter.ProverInput {
	t.Helper()
	run, err := casm.Execute(program, 1000)
	require.NoError(t, err)
	input, err := adapter.FromRelocated(run.MemoryEntries, run.Trace, run.PublicAddresses, run.Segments)
	require.NoError(t, err)
	return input
}

func words(vs ...uint64) []*uint256.Int {
	out := make([]*uint256.Int, len(vs))
	for i, v := range vs {
		out[i] = uint256.NewInt(v)
	}
	return out
}

func TestAdaptRetOnly(t *testing.T) {
	input := adapt(t, words(casm.Ret()))

	counts := input.StateTransitions.StatesByOpcode.Counts()
	require.Equal(t, 1, counts[adapter.VariantRet])
	for v := adapter.Variant(0); v < adapter.NVariants; v++ {
		if v != adapter.VariantRet {
			require.Zero(t, counts[v], "unexpected calls in %s", v)
		}
	}
	require.Equal(t, uint64(1), input.StateTransitions.Initial.PC)
	require.Equal(t, uint64(2), input.StateTransitions.Final.PC)
	require.NotEmpty(t, input.Public.PublicMemory)
	require.Equal(t, []string{"execution", "program"}, input.Public.SegmentNames)
}

func TestAdaptAssertEqImm(t *testing.T) {
	input := adapt(t, words(
		casm.AssertEqImm(0, false, true), 5,
		casm.Ret(),
	))
	counts := input.StateTransitions.StatesByOpcode.Counts()
	require.Equal(t, 1, counts[adapter.VariantAssertEqImm])
	require.Equal(t, 1, counts[adapter.VariantRet])
}

func TestAdaptAddSmallImm(t *testing.T) {
	input := adapt(t, words(
		casm.AssertEqImm(0, false, true), 3, // [ap] = 3; ap++
		casm.AddImm(0, -1, false, false, true), 4, // [ap] = [ap-1] + 4
		casm.Ret(),
	))
	counts := input.StateTransitions.StatesByOpcode.Counts()
	require.Equal(t, 1, counts[adapter.VariantAddSmallImm])
	require.Zero(t, counts[adapter.VariantAddImm])
}

func TestAdaptAddBigRoutesToBigBucket(t *testing.T) {
	big := new(uint256.Int).Sub(casm.FieldModulus, uint256.NewInt(1))
	program := words(
		casm.AssertEqImm(0, false, true), 0, // placeholder, patched below
		casm.AddImm(0, -1, false, false, true), 5, // [ap] = [ap-1] + 5 (wraps past p)
		casm.Ret(),
	)
	program[1] = big
	input := adapt(t, program)

	counts := input.StateTransitions.StatesByOpcode.Counts()
	require.Equal(t, 1, counts[adapter.VariantAddImm])
	require.Zero(t, counts[adapter.VariantAddSmallImm])
}

func TestAdaptJnzBothDirections(t *testing.T) {
	// [ap] = 1; ap++; jnz [ap-1] -> taken (the jump of 2 lands on the next instruction).
	// [ap] = 0; ap++; jnz [ap-1] -> not taken.
	input := adapt(t, words(
		casm.AssertEqImm(0, false, true), 1,
		casm.Jnz(-1, false), 2,
		casm.AssertEqImm(0, false, true), 0,
		casm.Jnz(-1, false), 2,
		casm.Ret(),
	))
	counts := input.StateTransitions.StatesByOpcode.Counts()
	require.Equal(t, 1, counts[adapter.VariantJnzTaken])
	require.Equal(t, 1, counts[adapter.VariantJnz])
}

func TestAdaptCallAndMul(t *testing.T) {
	// call rel 3 enters the subroutine with a fresh frame; its ret resumes
	// at the main ret.
	input := adapt(t, words(
		casm.CallRelImm(), 3,
		casm.Ret(),
		casm.AssertEqImm(0, false, true), 6,
		casm.MulImm(0, -1, false, false, true), 7, // 6*7 = 42, all small
		casm.Ret(),
	))
	counts := input.StateTransitions.StatesByOpcode.Counts()
	require.Equal(t, 1, counts[adapter.VariantCallRelImm])
	require.Equal(t, 1, counts[adapter.VariantMulSmallImm])
	require.Equal(t, 2, counts[adapter.VariantRet])
}

func TestAdaptUnknownOpcodeFatal(t *testing.T) {
	// res_add and res_mul together is no valid encoding.
	bad := casm.Word(0, 0, 0, 1<<adapter.FlagResAdd|1<<adapter.FlagResMul|1<<adapter.FlagOp1Imm|1<<adapter.FlagOpcodeAssertEq)
	entries := []adapter.MemoryEntry{{Address: 1, Value: uint256.NewInt(bad)}}
	trace := []adapter.CasmState{{PC: 1, AP: 10, FP: 10}, {PC: 3, AP: 10, FP: 10}}

	_, err := adapter.FromRelocated(entries, trace, nil, nil)
	require.ErrorIs(t, err, adapter.ErrUnknownOpcode)
	var ue *adapter.UnknownOpcodeError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, uint64(1), ue.PC)
}

func TestAdaptDeterministic(t *testing.T) {
	program := words(
		casm.AssertEqImm(0, false, true), 3,
		casm.AddImm(0, -1, false, false, true), 4,
		casm.Ret(),
	)
	a := adapt(t, program)
	b := adapt(t, program)

	require.Equal(t, a.Fingerprint, b.Fingerprint)
	require.Equal(t, a.Memory.Addresses(), b.Memory.Addresses())
	require.Equal(t, a.StateTransitions, b.StateTransitions)
	require.Equal(t, a.Public, b.Public)
}

func TestAdaptIDsCoverAllReferences(t *testing.T) {
	input := adapt(t, words(
		casm.AssertEqImm(0, false, true), 9,
		casm.Ret(),
	))
	for _, e := range input.Public.PublicMemory {
		limbs, err := input.Memory.Limbs(e.ID)
		require.NoError(t, err)
		require.Equal(t, e.Value, limbs.Word())
	}
}

func TestAdaptStepLimit(t *testing.T) {
	program := words(
		casm.AssertEqImm(0, false, true), 1,
		casm.AssertEqImm(0, false, true), 2,
		casm.Ret(),
	)
	run, err := casm.Execute(program, 1000)
	require.NoError(t, err)

	input, err := adapter.FromRelocatedWithStepLimit(run.MemoryEntries, run.Trace, run.PublicAddresses, run.Segments, 2)
	require.NoError(t, err)
	counts := input.StateTransitions.StatesByOpcode.Counts()
	require.Equal(t, 1, counts[adapter.VariantAssertEqImm])
	require.Zero(t, counts[adapter.VariantRet])
}

func TestAdaptEmptyTrace(t *testing.T) {
	_, err := adapter.FromRelocated(nil, nil, nil, nil)
	require.ErrorIs(t, err, adapter.ErrEmptyTrace)
}

func TestAdaptVMOutputFiles(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "pub.json")
	privPath := filepath.Join(dir, "priv.json")

	pub := `{
		"memory_segments": {"program": {"begin_addr": 1, "stop_ptr": 2}},
		"public_memory": [{"address": 1, "value": "0x1", "page": 0}]
	}`
	// ret at address 1 with the conventional frame.
	ret := uint256.NewInt(casm.Ret()).Dec()
	priv := `{
		"memory": [
			{"address": 1, "value": "` + ret + `"},
			{"address": 2, "value": "0x4"},
			{"address": 3, "value": "0x2"}
		],
		"trace": [
			{"pc": 1, "ap": 4, "fp": 4},
			{"pc": 2, "ap": 4, "fp": 4}
		]
	}`
	require.NoError(t, os.WriteFile(pubPath, []byte(pub), 0o600))
	require.NoError(t, os.WriteFile(privPath, []byte(priv), 0o600))

	input, err := adapter.AdaptVMOutput(pubPath, privPath)
	require.NoError(t, err)
	require.Equal(t, 1, input.StateTransitions.StatesByOpcode.Counts()[adapter.VariantRet])
}

func TestAdaptVMOutputMissingTrace(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "pub.json")
	privPath := filepath.Join(dir, "priv.json")
	require.NoError(t, os.WriteFile(pubPath, []byte(`{}`), 0o600))
	require.NoError(t, os.WriteFile(privPath, []byte(`{"memory": []}`), 0o600))

	_, err := adapter.AdaptVMOutput(pubPath, privPath)
	require.ErrorIs(t, err, adapter.ErrTraceNotRelocated)
}
