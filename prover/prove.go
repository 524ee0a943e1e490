// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prover

import (
	"errors"
	"fmt"
	"runtime"

	log "github.com/luxfi/log"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/fri"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/pcs"
)

// NQueries is the number of query positions opened on the commitment trees.
const NQueries = 16

// Proving failures. A constraint that does not vanish on a generated trace
// is a prover bug, never a recoverable condition.
var (
	ErrConstraintUnsatisfied = errors.New("constraint unsatisfied during composition")
	ErrLogupSumNonZero       = errors.New("global logup sum is non-zero")
	ErrCommitmentFailure     = errors.New("commitment failure")
)

// CairoProver proves adapted Cairo executions under one Merkle channel.
type CairoProver struct {
	kind   channel.Kind
	config ProverConfig
	log    log.Logger
}

// NewCairoProver creates a prover for the given hash choice.
func NewCairoProver(kind channel.Kind, config ProverConfig) *CairoProver {
	return &CairoProver{
		kind:   kind,
		config: config,
		log:    log.NewTestLogger(log.InfoLevel),
	}
}

// ProveCairo proves one adapted execution with the default prover.
func ProveCairo(kind channel.Kind, input *adapter.ProverInput, config ProverConfig) (*CairoProof, error) {
	return NewCairoProver(kind, config).Prove(input)
}

// Prove runs the full pipeline: claims, base commitment, interaction,
// composition, OODS, FRI, queries. The channel absorptions below are the
// protocol's fixed order; the verifier replays them bit-exactly.
func (p *CairoProver) Prove(input *adapter.ProverInput) (*CairoProof, error) {
	components, claim, err := buildComponents(input)
	if err != nil {
		return nil, err
	}
	if p.config.DisplayComponents {
		for _, c := range components {
			p.log.Info("component", "name", c.Name(), "log_size", c.LogSize(), "columns", len(c.Trace()))
		}
	}
	p.log.Info("casm states by opcode", "counts", input.StateTransitions.StatesByOpcode.String(), "fingerprint", fmt.Sprintf("%x", input.Fingerprint[:8]))

	ch := channel.New(p.kind)
	hasher := channel.NewHasher(p.kind)
	claim.MixInto(ch)

	// Base trace commitment.
	var baseCols [][]m31.M31
	for _, c := range components {
		baseCols = append(baseCols, c.Trace()...)
	}
	base, err := pcs.Commit(hasher, baseCols)
	if err != nil {
		return nil, fmt.Errorf("%w: base trace: %v", ErrCommitmentFailure, err)
	}
	ch.MixRoot(base.Root)

	// Interaction elements, then interaction traces and claims.
	rels := air.DrawRelations(ch)
	for _, c := range components {
		c.SetRelations(rels)
	}

	var tracker *air.RelationTracker
	if p.config.TrackRelations {
		tracker = air.NewRelationTracker()
	}

	var interactionClaims []air.InteractionClaim
	var interactionCols [][]m31.M31
	totalSum := m31.QZero
	for _, c := range components {
		size := 1 << c.LogSize()
		rowFractions := make([][]air.Fraction, size)
		for row := 0; row < size; row++ {
			eval := air.NewRowEvaluator(air.RowOf(c.Trace(), row))
			eval.Tracker = tracker
			c.EvaluateRow(eval)
			if eval.Remaining() != 0 {
				return nil, fmt.Errorf("%w: %s row %d left %d columns unread", ErrConstraintUnsatisfied, c.Name(), row, eval.Remaining())
			}
			if !eval.AllConstraintsVanish() {
				return nil, fmt.Errorf("%w: %s row %d", ErrConstraintUnsatisfied, c.Name(), row)
			}
			rowFractions[row] = eval.Fractions
		}
		logup := air.BuildLogupTrace(rowFractions)
		interactionCols = append(interactionCols, logup.Cols[0], logup.Cols[1], logup.Cols[2], logup.Cols[3])
		interactionClaims = append(interactionClaims, air.InteractionClaim{TotalSum: logup.Total})
		totalSum = totalSum.Add(logup.Total)
	}
	if tracker != nil {
		for name, sum := range tracker.Sums {
			p.log.Info("relation sum", "relation", name, "sum", sum)
		}
	}
	for _, ic := range interactionClaims {
		ic.MixInto(ch)
	}
	interaction, err := pcs.Commit(hasher, interactionCols)
	if err != nil {
		return nil, fmt.Errorf("%w: interaction trace: %v", ErrCommitmentFailure, err)
	}
	ch.MixRoot(interaction.Root)

	// The aggregate of all partial sums must cancel against the public
	// contribution before anything else is committed.
	if !totalSum.Add(PublicLogupSum(rels, &claim.Public)).IsZero() {
		return nil, ErrLogupSumNonZero
	}

	// Composition polynomial.
	coeff := ch.DrawFelt()
	domainLog := int(maxLogSize(components))
	domain := 1 << domainLog

	accumulations := make([][]m31.QM31, len(components))
	g := errgroup.Group{}
	g.SetLimit(runtime.NumCPU())
	for ci, c := range components {
		g.Go(func() error {
			size := 1 << c.LogSize()
			acc := make([]m31.QM31, size)
			for row := 0; row < size; row++ {
				eval := air.NewRowEvaluator(air.RowOf(c.Trace(), row))
				c.EvaluateRow(eval)
				acc[row] = HornerFold(eval.Constraints, coeff)
			}
			accumulations[ci] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	compositionColumn := make([]m31.QM31, domain)
	for i := range compositionColumn {
		acc := m31.QZero
		for ci := range components {
			size := len(accumulations[ci])
			acc = acc.Add(accumulations[ci][i%size])
		}
		compositionColumn[i] = acc
	}
	compositionCols := splitSecureColumn(compositionColumn)
	composition, err := pcs.Commit(hasher, compositionCols)
	if err != nil {
		return nil, fmt.Errorf("%w: composition: %v", ErrCommitmentFailure, err)
	}
	ch.MixRoot(composition.Root)

	// OODS: sample the evaluation row, expose the masks, and bind the
	// accumulated composition value.
	oodsFelt := ch.DrawFelt()
	oodsRow := int(oodsFelt.Coordinates()[0].Uint32()) % domain

	var oodsValues []m31.QM31
	compositionClaim := m31.QZero
	for _, c := range components {
		size := 1 << c.LogSize()
		row := air.RowOf(c.Trace(), oodsRow%size)
		mask := liftRow(row)
		oodsValues = append(oodsValues, mask...)
		point := air.NewPointEvaluator(mask, coeff)
		c.EvaluatePoint(point)
		compositionClaim = compositionClaim.Add(point.Accumulation())
	}
	ch.MixFelts(oodsValues)
	ch.MixFelts([]m31.QM31{compositionClaim})

	// FRI over the composition column.
	friProof, err := fri.Prove(ch, hasher, compositionColumn)
	if err != nil {
		return nil, err
	}

	// Query phase.
	positions := channel.DrawQueries(ch, NQueries, domainLog)
	queries := make([]QueryBundle, len(positions))
	for i, pos := range positions {
		queries[i] = QueryBundle{
			Base:            base.Open(pos),
			Interaction:     interaction.Open(pos),
			InteractionPrev: interaction.Open((pos - 1 + domain) % domain),
			Composition:     composition.Open(pos),
		}
	}

	return &CairoProof{
		Claim:                  *claim,
		BaseColumnRoots:        base.Roots,
		InteractionClaims:      interactionClaims,
		InteractionColumnRoots: interaction.Roots,
		CompositionColumnRoots: composition.Roots,
		OodsValues:             oodsValues,
		CompositionClaim:       compositionClaim,
		TailOpening:            interaction.Open(domain - 1),
		OodsOpening:            base.Open(oodsRow),
		Queries:                queries,
		Fri:                    friProof,
	}, nil
}

// HornerFold folds base-field constraint values with powers of the
// composition randomness, matching the point evaluator's accumulation.
func HornerFold(constraints []m31.M31, coeff m31.QM31) m31.QM31 {
	acc := m31.QZero
	for _, c := range constraints {
		acc = acc.Mul(coeff).Add(m31.FromM31(c))
	}
	return acc
}

// liftRow embeds a base-field row into the extension field.
func liftRow(row []m31.M31) []m31.QM31 {
	out := make([]m31.QM31, len(row))
	for i, v := range row {
		out[i] = m31.FromM31(v)
	}
	return out
}

// splitSecureColumn stores an extension column as its four coordinate
// columns.
func splitSecureColumn(col []m31.QM31) [][]m31.M31 {
	out := make([][]m31.M31, 4)
	for i := range out {
		out[i] = make([]m31.M31, len(col))
	}
	for i, v := range col {
		coords := v.Coordinates()
		for c := 0; c < 4; c++ {
			out[c][i] = coords[c]
		}
	}
	return out
}
