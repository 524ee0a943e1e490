// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fri implements the low-degree folding argument that closes the
// STARK. Layers fold pairs with a channel-drawn alpha; each layer is
// committed over its value pairs so one query opens both folding inputs.
package fri

import (
	"errors"
	"fmt"

	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/merkle"
)

const (
	// FinalLayerSize is where folding stops; the last layer ships in clear.
	FinalLayerSize = 8
	// NQueries is the query count of the folding check.
	NQueries = 16
)

var (
	ErrColumnTooSmall = errors.New("fri column smaller than the final layer")
	ErrProofShape     = errors.New("malformed fri proof")
)

// QueryLayer opens one folding pair of one layer.
type QueryLayer struct {
	Values [2]m31.QM31
	Path   []channel.Hash
}

// Query is one full folding trail from the first layer down to the final
// layer.
type Query struct {
	Index  int
	Layers []QueryLayer
}

// Proof is the transcript side of the folding argument.
type Proof struct {
	LayerRoots []channel.Hash
	FinalLayer []m31.QM31
	Queries    []Query
}

// pairLeaf flattens a value pair into a Merkle leaf.
func pairLeaf(a, b m31.QM31) []m31.M31 {
	ac := a.Coordinates()
	bc := b.Coordinates()
	leaf := make([]m31.M31, 0, 8)
	leaf = append(leaf, ac[:]...)
	leaf = append(leaf, bc[:]...)
	return leaf
}

func commitLayer(hasher channel.Hasher, column []m31.QM31) (*merkle.Tree, error) {
	leaves := make([][]m31.M31, len(column)/2)
	for i := range leaves {
		leaves[i] = pairLeaf(column[2*i], column[2*i+1])
	}
	return merkle.Commit(hasher, leaves)
}

func foldLayer(column []m31.QM31, alpha m31.QM31) []m31.QM31 {
	next := make([]m31.QM31, len(column)/2)
	for i := range next {
		next[i] = column[2*i].Add(alpha.Mul(column[2*i+1]))
	}
	return next
}

// Prove commits to the column and answers the folding queries. The channel
// drives every root absorption and challenge draw in order.
func Prove(ch channel.Channel, hasher channel.Hasher, column []m31.QM31) (*Proof, error) {
	if len(column) < FinalLayerSize {
		return nil, ErrColumnTooSmall
	}

	var trees []*merkle.Tree
	var layers [][]m31.QM31
	proof := &Proof{}
	for len(column) > FinalLayerSize {
		tree, err := commitLayer(hasher, column)
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
		layers = append(layers, column)
		proof.LayerRoots = append(proof.LayerRoots, tree.Root)
		ch.MixRoot(tree.Root)
		alpha := ch.DrawFelt()
		column = foldLayer(column, alpha)
	}
	proof.FinalLayer = column
	ch.MixFelts(column)

	if len(layers) == 0 {
		return proof, nil
	}
	indices := channel.DrawQueries(ch, NQueries, log2(len(layers[0])/2))
	for _, idx := range indices {
		q := Query{Index: idx}
		pair := idx
		for l, layer := range layers {
			q.Layers = append(q.Layers, QueryLayer{
				Values: [2]m31.QM31{layer[2*pair], layer[2*pair+1]},
				Path:   trees[l].Prove(pair),
			})
			pair /= 2
		}
		proof.Queries = append(proof.Queries, q)
	}
	return proof, nil
}

// Verify replays the transcript, checks every authentication path and the
// per-layer folding relation, and pins the trail to the final layer.
func Verify(ch channel.Channel, hasher channel.Hasher, proof *Proof) error {
	alphas := make([]m31.QM31, len(proof.LayerRoots))
	for i, root := range proof.LayerRoots {
		ch.MixRoot(root)
		alphas[i] = ch.DrawFelt()
	}
	if len(proof.FinalLayer) != FinalLayerSize {
		return ErrProofShape
	}
	ch.MixFelts(proof.FinalLayer)

	if len(proof.LayerRoots) == 0 {
		return nil
	}
	firstLayerSize := FinalLayerSize << len(proof.LayerRoots)
	indices := channel.DrawQueries(ch, NQueries, log2(firstLayerSize/2))
	if len(indices) != len(proof.Queries) {
		return ErrProofShape
	}

	for qi, q := range proof.Queries {
		if q.Index != indices[qi] {
			return fmt.Errorf("%w: query %d index mismatch", ErrProofShape, qi)
		}
		if len(q.Layers) != len(proof.LayerRoots) {
			return ErrProofShape
		}
		pair := q.Index
		for l, layer := range q.Layers {
			if !merkle.Verify(hasher, proof.LayerRoots[l], pairLeaf(layer.Values[0], layer.Values[1]), pair, layer.Path) {
				return fmt.Errorf("%w: query %d layer %d authentication", ErrProofShape, qi, l)
			}
			folded := layer.Values[0].Add(alphas[l].Mul(layer.Values[1]))
			if l+1 < len(q.Layers) {
				next := q.Layers[l+1].Values[pair%2]
				if !folded.Sub(next).IsZero() {
					return fmt.Errorf("%w: query %d layer %d folding", ErrProofShape, qi, l)
				}
			} else {
				position := pair
				if !folded.Sub(proof.FinalLayer[position]).IsZero() {
					return fmt.Errorf("%w: query %d final layer", ErrProofShape, qi)
				}
			}
			pair /= 2
		}
	}
	return nil
}

func log2(n int) int {
	l := 0
	for 1<<l < n {
		l++
	}
	return l
}
