// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verifier_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/casm"
	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/prover"
	"github.com/luxfi/cairo/verifier"
)

func proveRetOnly(t *testing.T) *prover.CairoProof {
	t.Helper()
	run, err := casm.Execute([]*uint256.Int{uint256.NewInt(casm.Ret())}, 10)
	require.NoError(t, err)
	input, err := adapter.FromRelocated(run.MemoryEntries, run.Trace, run.PublicAddresses, run.Segments)
	require.NoError(t, err)
	proof, err := prover.ProveCairo(channel.Blake2s, input, prover.ProverConfig{})
	require.NoError(t, err)
	return proof
}

func TestErrorKindStrings(t *testing.T) {
	require.Equal(t, "claim mismatch", verifier.ClaimMismatch.String())
	require.Equal(t, "logup sum non-zero", verifier.LogUpSumMismatch.String())
	require.Equal(t, "fri rejection", verifier.FriRejection.String())

	err := &verifier.CairoVerificationError{Kind: verifier.OodsMismatch, Detail: "x"}
	require.Contains(t, err.Error(), "oods mismatch")
	require.Contains(t, err.Error(), "x")
}

func TestVerifyAccepts(t *testing.T) {
	proof := proveRetOnly(t)
	require.NoError(t, verifier.VerifyCairo(channel.Blake2s, proof))
}

func TestTamperedClaimRejected(t *testing.T) {
	proof := proveRetOnly(t)
	tampered := *proof
	tampered.Claim.Opcodes[adapter.VariantRet].NCalls++

	err := verifier.VerifyCairo(channel.Blake2s, &tampered)
	require.Error(t, err)
	var ve *verifier.CairoVerificationError
	require.ErrorAs(t, err, &ve)
}

func TestTamperedCompositionClaimIsOodsMismatch(t *testing.T) {
	proof := proveRetOnly(t)
	tampered := *proof
	tampered.CompositionClaim = tampered.CompositionClaim.Add(m31.QOne)

	err := verifier.VerifyCairo(channel.Blake2s, &tampered)
	require.Error(t, err)
	var ve *verifier.CairoVerificationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, verifier.OodsMismatch, ve.Kind)
}

func TestTamperedBaseRootIsRejected(t *testing.T) {
	proof := proveRetOnly(t)
	tampered := *proof
	roots := append([]channel.Hash{}, proof.BaseColumnRoots...)
	roots[0][0] ^= 1
	tampered.BaseColumnRoots = roots

	err := verifier.VerifyCairo(channel.Blake2s, &tampered)
	require.Error(t, err)
	var ve *verifier.CairoVerificationError
	require.ErrorAs(t, err, &ve)
}
