// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fri

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/m31"
)

func testColumn(n int) []m31.QM31 {
	col := make([]m31.QM31, n)
	for i := range col {
		col[i] = m31.FromUint32x4(uint32(i+1), uint32(2*i), uint32(i*i), 7)
	}
	return col
}

func proveVerifyChannels(kind channel.Kind) (channel.Channel, channel.Channel) {
	p := channel.New(kind)
	v := channel.New(kind)
	p.MixU64(1)
	v.MixU64(1)
	return p, v
}

func TestProveVerifyRoundTrip(t *testing.T) {
	for _, kind := range []channel.Kind{channel.Poseidon252, channel.Blake2s} {
		p, v := proveVerifyChannels(kind)
		hasher := channel.NewHasher(kind)

		proof, err := Prove(p, hasher, testColumn(64))
		require.NoError(t, err, "kind %s", kind)
		require.Len(t, proof.LayerRoots, 3)
		require.Len(t, proof.FinalLayer, FinalLayerSize)

		require.NoError(t, Verify(v, hasher, proof), "kind %s", kind)
	}
}

func TestVerifyRejectsTamperedFinalLayer(t *testing.T) {
	p, v := proveVerifyChannels(channel.Blake2s)
	hasher := channel.NewHasher(channel.Blake2s)
	proof, err := Prove(p, hasher, testColumn(64))
	require.NoError(t, err)

	proof.FinalLayer[0] = proof.FinalLayer[0].Add(m31.QOne)
	require.Error(t, Verify(v, hasher, proof))
}

func TestVerifyRejectsTamperedQueryValue(t *testing.T) {
	p, v := proveVerifyChannels(channel.Blake2s)
	hasher := channel.NewHasher(channel.Blake2s)
	proof, err := Prove(p, hasher, testColumn(64))
	require.NoError(t, err)

	proof.Queries[0].Layers[0].Values[1] = proof.Queries[0].Layers[0].Values[1].Add(m31.QOne)
	require.Error(t, Verify(v, hasher, proof))
}

func TestVerifyRejectsWrongChannelSeed(t *testing.T) {
	p := channel.New(channel.Blake2s)
	p.MixU64(1)
	hasher := channel.NewHasher(channel.Blake2s)
	proof, err := Prove(p, hasher, testColumn(64))
	require.NoError(t, err)

	v := channel.New(channel.Blake2s)
	v.MixU64(2)
	require.Error(t, Verify(v, hasher, proof))
}

func TestMinimalColumnHasNoLayers(t *testing.T) {
	p, v := proveVerifyChannels(channel.Blake2s)
	hasher := channel.NewHasher(channel.Blake2s)
	proof, err := Prove(p, hasher, testColumn(FinalLayerSize))
	require.NoError(t, err)
	require.Empty(t, proof.LayerRoots)
	require.NoError(t, Verify(v, hasher, proof))

	_, err = Prove(p, hasher, testColumn(4))
	require.ErrorIs(t, err, ErrColumnTooSmall)
}
