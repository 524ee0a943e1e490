// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prover

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"

	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/fri"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/pcs"
)

var ErrSerialization = errors.New("proof serialization")

// QueryBundle opens all three commitment trees at one query position. The
// interaction tree is additionally opened one row earlier so the running-sum
// step can be rechecked.
type QueryBundle struct {
	Base            pcs.QueryOpening
	Interaction     pcs.QueryOpening
	InteractionPrev pcs.QueryOpening
	Composition     pcs.QueryOpening
}

// CairoProof is the full proof object. Serialization is positional: the
// field order here, together with the claim's component order, fully
// determines the felt stream.
type CairoProof struct {
	Claim CairoClaim

	BaseColumnRoots        []channel.Hash
	InteractionClaims      []air.InteractionClaim
	InteractionColumnRoots []channel.Hash
	CompositionColumnRoots []channel.Hash

	OodsValues       []m31.QM31
	CompositionClaim m31.QM31

	TailOpening pcs.QueryOpening
	OodsOpening pcs.QueryOpening
	Queries     []QueryBundle

	Fri fri.Proof
}

type feltWriter struct {
	out []fp.Element
}

func (w *feltWriter) u64(v uint64) {
	var f fp.Element
	f.SetUint64(v)
	w.out = append(w.out, f)
}

func (w *feltWriter) m31(v m31.M31) {
	w.u64(uint64(v.Uint32()))
}

func (w *feltWriter) qm31(v m31.QM31) {
	for _, c := range v.Coordinates() {
		w.m31(c)
	}
}

func (w *feltWriter) hash(h channel.Hash) {
	var hi, lo fp.Element
	hi.SetBytes(h[:16])
	lo.SetBytes(h[16:])
	w.out = append(w.out, hi, lo)
}

type feltReader struct {
	felts []fp.Element
	pos   int
}

func (r *feltReader) next() (fp.Element, error) {
	if r.pos >= len(r.felts) {
		return fp.Element{}, fmt.Errorf("%w: truncated at felt %d", ErrSerialization, r.pos)
	}
	f := r.felts[r.pos]
	r.pos++
	return f, nil
}

func (r *feltReader) u64(out *uint64) error {
	f, err := r.next()
	if err != nil {
		return err
	}
	b := f.Bytes()
	for _, v := range b[:24] {
		if v != 0 {
			return fmt.Errorf("%w: value exceeds 64 bits", ErrSerialization)
		}
	}
	*out = binary.BigEndian.Uint64(b[24:])
	return nil
}

func (r *feltReader) count(out *int) error {
	var v uint64
	if err := r.u64(&v); err != nil {
		return err
	}
	if v > 1<<40 {
		return fmt.Errorf("%w: implausible length %d", ErrSerialization, v)
	}
	*out = int(v)
	return nil
}

func (r *feltReader) m31(out *m31.M31) error {
	var v uint64
	if err := r.u64(&v); err != nil {
		return err
	}
	if v >= uint64(m31.Modulus) {
		return fmt.Errorf("%w: value exceeds the M31 field", ErrSerialization)
	}
	*out = m31.M31(v)
	return nil
}

func (r *feltReader) qm31(out *m31.QM31) error {
	var coords [4]m31.M31
	for i := range coords {
		if err := r.m31(&coords[i]); err != nil {
			return err
		}
	}
	*out = m31.FromUint32x4(coords[0].Uint32(), coords[1].Uint32(), coords[2].Uint32(), coords[3].Uint32())
	return nil
}

func (r *feltReader) hash(out *channel.Hash) error {
	hi, err := r.next()
	if err != nil {
		return err
	}
	lo, err := r.next()
	if err != nil {
		return err
	}
	hiB := hi.Bytes()
	loB := lo.Bytes()
	var h channel.Hash
	copy(h[:16], hiB[16:])
	copy(h[16:], loB[16:])
	*out = h
	return nil
}

func (w *feltWriter) hashes(hs []channel.Hash) {
	w.u64(uint64(len(hs)))
	for _, h := range hs {
		w.hash(h)
	}
}

func (r *feltReader) hashes(out *[]channel.Hash) error {
	var n int
	if err := r.count(&n); err != nil {
		return err
	}
	*out = make([]channel.Hash, n)
	for i := range *out {
		if err := r.hash(&(*out)[i]); err != nil {
			return err
		}
	}
	return nil
}

func (w *feltWriter) opening(o pcs.QueryOpening) {
	w.u64(uint64(len(o.Columns)))
	for _, col := range o.Columns {
		w.m31(col.Value)
		w.hashes(col.Path)
	}
}

func (r *feltReader) opening(out *pcs.QueryOpening) error {
	var n int
	if err := r.count(&n); err != nil {
		return err
	}
	out.Columns = make([]pcs.ColumnOpening, n)
	for i := range out.Columns {
		if err := r.m31(&out.Columns[i].Value); err != nil {
			return err
		}
		if err := r.hashes(&out.Columns[i].Path); err != nil {
			return err
		}
	}
	return nil
}

// Serialize flattens the proof into its positional felt stream.
func (p *CairoProof) Serialize() []fp.Element {
	w := &feltWriter{}

	// Public data.
	pub := &p.Claim.Public
	for _, s := range []uint64{
		pub.Initial.PC, pub.Initial.AP, pub.Initial.FP,
		pub.Final.PC, pub.Final.AP, pub.Final.FP,
	} {
		w.u64(s)
	}
	w.u64(uint64(len(pub.SegmentNames)))
	for _, name := range pub.SegmentNames {
		w.u64(uint64(len(name)))
		for _, b := range []byte(name) {
			w.u64(uint64(b))
		}
		seg := pub.Segments[name]
		w.u64(seg.BeginAddr)
		w.u64(seg.StopPtr)
	}
	w.u64(uint64(len(pub.PublicMemory)))
	for _, entry := range pub.PublicMemory {
		w.u64(entry.Address)
		w.u64(uint64(entry.ID))
		b := entry.Value.Bytes32()
		var f fp.Element
		f.SetBytes(b[:])
		w.out = append(w.out, f)
	}

	// Component claims.
	for _, c := range p.Claim.Opcodes {
		w.u64(uint64(c.NCalls))
	}
	w.u64(uint64(len(p.Claim.Builtins)))
	for _, c := range p.Claim.Builtins {
		w.u64(uint64(c.NCalls))
	}
	for _, c := range []air.Claim{
		p.Claim.AddressToID, p.Claim.IDToBig,
		p.Claim.RangeCheck9, p.Claim.RangeCheck16, p.Claim.VerifyInstruction,
	} {
		w.u64(uint64(c.NCalls))
	}

	// Commitments and interaction claims.
	w.hashes(p.BaseColumnRoots)
	w.u64(uint64(len(p.InteractionClaims)))
	for _, ic := range p.InteractionClaims {
		w.qm31(ic.TotalSum)
		if ic.ClaimedSum != nil {
			w.u64(1)
			w.qm31(ic.ClaimedSum.Sum)
			w.u64(uint64(ic.ClaimedSum.Row))
		} else {
			w.u64(0)
		}
	}
	w.hashes(p.InteractionColumnRoots)
	w.hashes(p.CompositionColumnRoots)

	// OODS.
	w.u64(uint64(len(p.OodsValues)))
	for _, v := range p.OodsValues {
		w.qm31(v)
	}
	w.qm31(p.CompositionClaim)

	// Openings.
	w.opening(p.TailOpening)
	w.opening(p.OodsOpening)
	w.u64(uint64(len(p.Queries)))
	for _, q := range p.Queries {
		w.opening(q.Base)
		w.opening(q.Interaction)
		w.opening(q.InteractionPrev)
		w.opening(q.Composition)
	}

	// FRI.
	w.hashes(p.Fri.LayerRoots)
	w.u64(uint64(len(p.Fri.FinalLayer)))
	for _, v := range p.Fri.FinalLayer {
		w.qm31(v)
	}
	w.u64(uint64(len(p.Fri.Queries)))
	for _, q := range p.Fri.Queries {
		w.u64(uint64(q.Index))
		w.u64(uint64(len(q.Layers)))
		for _, layer := range q.Layers {
			w.qm31(layer.Values[0])
			w.qm31(layer.Values[1])
			w.hashes(layer.Path)
		}
	}
	return w.out
}
