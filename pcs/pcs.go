// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pcs is the commitment-scheme driver the prover and verifier share.
// One tree commits a heterogeneous group of columns (one Merkle tree per
// column, chained into a single root the channel absorbs); query openings
// reveal one value per column with its authentication path.
package pcs

import (
	"errors"
	"fmt"

	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/merkle"
)

var ErrOpeningShape = errors.New("malformed query opening")

// TreeProver holds one committed column group on the prover side.
type TreeProver struct {
	Columns [][]m31.M31
	Roots   []channel.Hash
	Root    channel.Hash

	trees []*merkle.Tree
}

// Commit builds one Merkle tree per column and chains the roots.
func Commit(hasher channel.Hasher, columns [][]m31.M31) (*TreeProver, error) {
	tp := &TreeProver{Columns: columns}
	for _, col := range columns {
		leaves := make([][]m31.M31, len(col))
		for i, v := range col {
			leaves[i] = []m31.M31{v}
		}
		tree, err := merkle.Commit(hasher, leaves)
		if err != nil {
			return nil, err
		}
		tp.trees = append(tp.trees, tree)
		tp.Roots = append(tp.Roots, tree.Root)
	}
	tp.Root = ChainRoots(hasher, tp.Roots)
	return tp, nil
}

// ChainRoots folds per-column roots into the single absorbed root.
func ChainRoots(hasher channel.Hasher, roots []channel.Hash) channel.Hash {
	var acc channel.Hash
	for _, root := range roots {
		acc = hasher.HashPair(acc, root)
	}
	return acc
}

// ColumnOpening reveals one column value at a queried row.
type ColumnOpening struct {
	Value m31.M31
	Path  []channel.Hash
}

// QueryOpening reveals every column of a tree at one query position; the
// position is reduced modulo each column's length.
type QueryOpening struct {
	Columns []ColumnOpening
}

// Open answers one query position.
func (tp *TreeProver) Open(position int) QueryOpening {
	opening := QueryOpening{}
	for ci, col := range tp.Columns {
		row := position % len(col)
		opening.Columns = append(opening.Columns, ColumnOpening{
			Value: col[row],
			Path:  tp.trees[ci].Prove(row),
		})
	}
	return opening
}

// VerifyOpening checks one query opening against the per-column roots.
func VerifyOpening(
	hasher channel.Hasher,
	roots []channel.Hash,
	columnLengths []int,
	position int,
	opening QueryOpening,
) error {
	if len(opening.Columns) != len(roots) || len(columnLengths) != len(roots) {
		return ErrOpeningShape
	}
	for ci, col := range opening.Columns {
		row := position % columnLengths[ci]
		if !merkle.Verify(hasher, roots[ci], []m31.M31{col.Value}, row, col.Path) {
			return fmt.Errorf("%w: column %d at position %d", ErrOpeningShape, ci, position)
		}
	}
	return nil
}
