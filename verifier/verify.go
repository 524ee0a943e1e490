// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verifier

import (
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/fri"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/pcs"
	"github.com/luxfi/cairo/prover"
)

// VerifyCairo checks a proof under the given Merkle channel. The transcript
// replay below must match the prover's absorption order exactly; every
// divergence surfaces as one of the CairoVerificationError kinds.
func VerifyCairo(kind channel.Kind, proof *prover.CairoProof) error {
	claim := &proof.Claim
	ch := channel.New(kind)
	hasher := channel.NewHasher(kind)
	claim.MixInto(ch)

	baseRoot := pcs.ChainRoots(hasher, proof.BaseColumnRoots)
	ch.MixRoot(baseRoot)

	rels := air.DrawRelations(ch)
	shapes := prover.BuildShapes(claim, rels)

	totalBaseCols := 0
	domainLog := 0
	for _, s := range shapes {
		totalBaseCols += s.NCols
		if int(s.LogSize) > domainLog {
			domainLog = int(s.LogSize)
		}
	}
	domain := 1 << domainLog

	if len(proof.BaseColumnRoots) != totalBaseCols {
		return fail(ClaimMismatch, "base columns: claimed %d, proof carries %d", totalBaseCols, len(proof.BaseColumnRoots))
	}
	if len(proof.InteractionClaims) != len(shapes) {
		return fail(ClaimMismatch, "interaction claims: %d components, %d claims", len(shapes), len(proof.InteractionClaims))
	}
	if len(proof.InteractionColumnRoots) != 4*len(shapes) {
		return fail(ClaimMismatch, "interaction columns")
	}
	if len(proof.CompositionColumnRoots) != 4 {
		return fail(ClaimMismatch, "composition columns")
	}
	if len(proof.OodsValues) != totalBaseCols {
		return fail(ClaimMismatch, "oods mask width")
	}

	for _, ic := range proof.InteractionClaims {
		ic.MixInto(ch)
	}
	interactionRoot := pcs.ChainRoots(hasher, proof.InteractionColumnRoots)
	ch.MixRoot(interactionRoot)

	// Global LogUp equation.
	total := m31.QZero
	for _, ic := range proof.InteractionClaims {
		total = total.Add(ic.TotalSum)
	}
	if !total.Add(prover.PublicLogupSum(rels, &claim.Public)).IsZero() {
		return fail(LogUpSumMismatch, "aggregate of partial sums does not cancel the public contribution")
	}

	coeff := ch.DrawFelt()
	compositionRoot := pcs.ChainRoots(hasher, proof.CompositionColumnRoots)
	ch.MixRoot(compositionRoot)

	oodsFelt := ch.DrawFelt()
	oodsRow := int(oodsFelt.Coordinates()[0].Uint32()) % domain

	// Pointwise constraint check at the OODS mask.
	expected := m31.QZero
	offset := 0
	for _, s := range shapes {
		mask := proof.OodsValues[offset : offset+s.NCols]
		point := air.NewPointEvaluator(mask, coeff)
		s.EvalPoint(point)
		if point.Remaining() != 0 {
			return fail(ClaimMismatch, "component %s consumed %d of %d mask values", s.Name, s.NCols-point.Remaining(), s.NCols)
		}
		expected = expected.Add(point.Accumulation())
		offset += s.NCols
	}
	ch.MixFelts(proof.OodsValues)
	ch.MixFelts([]m31.QM31{proof.CompositionClaim})
	if !expected.Sub(proof.CompositionClaim).IsZero() {
		return fail(OodsMismatch, "composition value at the oods point")
	}

	// FRI.
	if fri.FinalLayerSize<<len(proof.Fri.LayerRoots) != domain {
		return fail(FriRejection, "layer count does not match the domain")
	}
	if err := fri.Verify(ch, hasher, &proof.Fri); err != nil {
		return fail(FriRejection, "%v", err)
	}

	// Query phase.
	positions := channel.DrawQueries(ch, prover.NQueries, domainLog)
	if len(proof.Queries) != len(positions) {
		return fail(CommitmentMismatch, "query count")
	}

	baseLens := make([]int, 0, totalBaseCols)
	interLens := make([]int, 0, 4*len(shapes))
	for _, s := range shapes {
		size := 1 << s.LogSize
		for i := 0; i < s.NCols; i++ {
			baseLens = append(baseLens, size)
		}
		for i := 0; i < 4; i++ {
			interLens = append(interLens, size)
		}
	}
	compLens := []int{domain, domain, domain, domain}

	// The tail opening binds every claimed total sum to the committed
	// running-sum columns.
	if err := pcs.VerifyOpening(hasher, proof.InteractionColumnRoots, interLens, domain-1, proof.TailOpening); err != nil {
		return fail(CommitmentMismatch, "tail opening: %v", err)
	}
	for si := range shapes {
		tail := secureFromOpening(proof.TailOpening, si)
		if !tail.Sub(proof.InteractionClaims[si].TotalSum).IsZero() {
			return fail(LogUpSumMismatch, "component %s total sum does not match its running sum", shapes[si].Name)
		}
	}

	// The OODS opening binds the exposed mask to the base commitment.
	if err := pcs.VerifyOpening(hasher, proof.BaseColumnRoots, baseLens, oodsRow, proof.OodsOpening); err != nil {
		return fail(CommitmentMismatch, "oods opening: %v", err)
	}
	for i, col := range proof.OodsOpening.Columns {
		if !m31.FromM31(col.Value).Sub(proof.OodsValues[i]).IsZero() {
			return fail(OodsMismatch, "mask value %d does not match the committed trace", i)
		}
	}

	for qi, pos := range positions {
		q := proof.Queries[qi]
		prevPos := (pos - 1 + domain) % domain
		if err := pcs.VerifyOpening(hasher, proof.BaseColumnRoots, baseLens, pos, q.Base); err != nil {
			return fail(CommitmentMismatch, "query %d base: %v", qi, err)
		}
		if err := pcs.VerifyOpening(hasher, proof.InteractionColumnRoots, interLens, pos, q.Interaction); err != nil {
			return fail(CommitmentMismatch, "query %d interaction: %v", qi, err)
		}
		if err := pcs.VerifyOpening(hasher, proof.InteractionColumnRoots, interLens, prevPos, q.InteractionPrev); err != nil {
			return fail(CommitmentMismatch, "query %d interaction prev: %v", qi, err)
		}
		if err := pcs.VerifyOpening(hasher, proof.CompositionColumnRoots, compLens, pos, q.Composition); err != nil {
			return fail(CommitmentMismatch, "query %d composition: %v", qi, err)
		}

		// Re-evaluate every component on the opened row.
		compAcc := m31.QZero
		colOffset := 0
		for si, s := range shapes {
			row := make([]m31.M31, s.NCols)
			for i := range row {
				row[i] = q.Base.Columns[colOffset+i].Value
			}
			eval := air.NewRowEvaluator(row)
			s.EvalRow(eval)
			if eval.Remaining() != 0 {
				return fail(ClaimMismatch, "component %s row width at query %d", s.Name, qi)
			}
			if !eval.AllConstraintsVanish() {
				return fail(OodsMismatch, "component %s constraint violated at query position %d", s.Name, pos)
			}
			compAcc = compAcc.Add(prover.HornerFold(eval.Constraints, coeff))

			size := 1 << s.LogSize
			rowIdx := pos % size
			curr := secureFromOpening(q.Interaction, si)
			prev := m31.QZero
			if rowIdx != 0 {
				prev = secureFromOpening(q.InteractionPrev, si)
			}
			if !air.StepHolds(prev, curr, eval.Fractions) {
				return fail(LogUpSumMismatch, "component %s running-sum step at query position %d", s.Name, pos)
			}
			colOffset += s.NCols
		}
		compVal := secureFromOpening(q.Composition, 0)
		if !compAcc.Sub(compVal).IsZero() {
			return fail(OodsMismatch, "composition column at query position %d", pos)
		}
	}
	return nil
}

// secureFromOpening reassembles the component'th extension value from four
// consecutive opened coordinate columns.
func secureFromOpening(opening pcs.QueryOpening, component int) m31.QM31 {
	base := 4 * component
	return m31.FromUint32x4(
		opening.Columns[base].Value.Uint32(),
		opening.Columns[base+1].Value.Uint32(),
		opening.Columns[base+2].Value.Uint32(),
		opening.Columns[base+3].Value.Uint32(),
	)
}
