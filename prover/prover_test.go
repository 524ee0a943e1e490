// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prover_test

import (
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/casm"
	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/prover"
	"github.com/luxfi/cairo/verifier"
)

func adaptProgram(t *testing.T, program []*uint256.Int) *adapter.ProverInput {
	t.Helper()
	run, err := casm.Execute(program, 1000)
	require.NoError(t, err)
	input, err := adapter.FromRelocated(run.MemoryEntries, run.Trace, run.PublicAddresses, run.Segments)
	require.NoError(t, err)
	return input
}

func retOnlyInput(t *testing.T) *adapter.ProverInput {
	return adaptProgram(t, []*uint256.Int{uint256.NewInt(casm.Ret())})
}

func addSmallImmInput(t *testing.T) *adapter.ProverInput {
	return adaptProgram(t, []*uint256.Int{
		uint256.NewInt(casm.AssertEqImm(0, false, true)), uint256.NewInt(3),
		uint256.NewInt(casm.AddImm(0, -1, false, false, true)), uint256.NewInt(4),
		uint256.NewInt(casm.Ret()),
	})
}

func overflowAddInput(t *testing.T) *adapter.ProverInput {
	big := new(uint256.Int).Sub(casm.FieldModulus, uint256.NewInt(1))
	program := []*uint256.Int{
		uint256.NewInt(casm.AssertEqImm(0, false, true)), big,
		uint256.NewInt(casm.AddImm(0, -1, false, false, true)), uint256.NewInt(5),
		uint256.NewInt(casm.Ret()),
	}
	return adaptProgram(t, program)
}

func TestProveVerifyRetOnly(t *testing.T) {
	for _, kind := range []channel.Kind{channel.Poseidon252, channel.Blake2s} {
		input := retOnlyInput(t)
		proof, err := prover.ProveCairo(kind, input, prover.ProverConfig{})
		require.NoError(t, err, "kind %s", kind)
		require.Equal(t, 1, proof.Claim.Opcodes[adapter.VariantRet].NCalls)

		require.NoError(t, verifier.VerifyCairo(kind, proof), "kind %s", kind)
	}
}

func TestProveVerifyAddSmallImm(t *testing.T) {
	input := addSmallImmInput(t)
	proof, err := prover.ProveCairo(channel.Blake2s, input, prover.ProverConfig{})
	require.NoError(t, err)
	require.Equal(t, 1, proof.Claim.Opcodes[adapter.VariantAddSmallImm].NCalls)
	require.NoError(t, verifier.VerifyCairo(channel.Blake2s, proof))
}

func TestProveVerifyOverflowAdd(t *testing.T) {
	// The sum crosses the 252-bit modulus, so the big-add component with
	// sub_p_bit = 1 carries the row.
	input := overflowAddInput(t)
	proof, err := prover.ProveCairo(channel.Blake2s, input, prover.ProverConfig{})
	require.NoError(t, err)
	require.Equal(t, 1, proof.Claim.Opcodes[adapter.VariantAddImm].NCalls)
	require.NoError(t, verifier.VerifyCairo(channel.Blake2s, proof))
}

func TestProofDeterministic(t *testing.T) {
	a, err := prover.ProveCairo(channel.Blake2s, addSmallImmInput(t), prover.ProverConfig{})
	require.NoError(t, err)
	b, err := prover.ProveCairo(channel.Blake2s, addSmallImmInput(t), prover.ProverConfig{})
	require.NoError(t, err)
	require.Equal(t, prover.FormatProof(a), prover.FormatProof(b))
}

func TestProofsDifferAcrossChannels(t *testing.T) {
	p, err := prover.ProveCairo(channel.Poseidon252, addSmallImmInput(t), prover.ProverConfig{})
	require.NoError(t, err)
	b, err := prover.ProveCairo(channel.Blake2s, addSmallImmInput(t), prover.ProverConfig{})
	require.NoError(t, err)
	require.NotEqual(t, prover.FormatProof(p), prover.FormatProof(b))

	// Proofs are not interchangeable across hash choices.
	require.Error(t, verifier.VerifyCairo(channel.Blake2s, p))
	require.Error(t, verifier.VerifyCairo(channel.Poseidon252, b))
}

func TestSerializationRoundTrip(t *testing.T) {
	proof, err := prover.ProveCairo(channel.Blake2s, addSmallImmInput(t), prover.ProverConfig{})
	require.NoError(t, err)

	text := prover.FormatProof(proof)
	require.True(t, strings.HasPrefix(text, "["))
	require.True(t, strings.HasSuffix(text, "]"))

	parsed, err := prover.ParseProof(text)
	require.NoError(t, err)
	require.Equal(t, text, prover.FormatProof(parsed))
	require.NoError(t, verifier.VerifyCairo(channel.Blake2s, parsed))
}

func TestTruncatedProofRejectedBeforeVerification(t *testing.T) {
	proof, err := prover.ProveCairo(channel.Blake2s, retOnlyInput(t), prover.ProverConfig{})
	require.NoError(t, err)

	text := prover.FormatProof(proof)
	cut := strings.LastIndex(text, " ")
	truncated := text[:cut] + "]"
	_, err = prover.ParseProof(truncated)
	require.ErrorIs(t, err, prover.ErrSerialization)
}

func TestCorruptedProofRejected(t *testing.T) {
	proof, err := prover.ProveCairo(channel.Blake2s, addSmallImmInput(t), prover.ProverConfig{})
	require.NoError(t, err)

	tampered := *proof
	tampered.OodsValues = append([]m31.QM31{}, proof.OodsValues...)
	tampered.OodsValues[0] = tampered.OodsValues[0].Add(m31.QOne)

	err = verifier.VerifyCairo(channel.Blake2s, &tampered)
	require.Error(t, err)
	var ve *verifier.CairoVerificationError
	require.ErrorAs(t, err, &ve)
}

func TestTamperedTotalSumIsLogupFailure(t *testing.T) {
	proof, err := prover.ProveCairo(channel.Blake2s, addSmallImmInput(t), prover.ProverConfig{})
	require.NoError(t, err)

	tampered := *proof
	claims := append([]air.InteractionClaim{}, proof.InteractionClaims...)
	claims[0].TotalSum = claims[0].TotalSum.Add(m31.QOne)
	tampered.InteractionClaims = claims

	err = verifier.VerifyCairo(channel.Blake2s, &tampered)
	require.Error(t, err)
	var ve *verifier.CairoVerificationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, verifier.LogUpSumMismatch, ve.Kind)
}

func TestTrackRelationsAndDisplayComponents(t *testing.T) {
	config := prover.NewConfigBuilder().TrackRelations(true).DisplayComponents(true).Build()
	proof, err := prover.ProveCairo(channel.Blake2s, addSmallImmInput(t), config)
	require.NoError(t, err)
	require.NoError(t, verifier.VerifyCairo(channel.Blake2s, proof))
}
