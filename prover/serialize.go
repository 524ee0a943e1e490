// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prover

import (
	"fmt"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/holiman/uint256"

	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/air"
	"github.com/luxfi/cairo/fri"
	"github.com/luxfi/cairo/m31"
	"github.com/luxfi/cairo/mem"
)

// DeserializeProof rebuilds a proof from its positional felt stream. Every
// shape error is reported before any cryptographic check can run.
func DeserializeProof(felts []fp.Element) (*CairoProof, error) {
	r := &feltReader{felts: felts}
	p := &CairoProof{}
	pub := &p.Claim.Public

	for _, out := range []*uint64{
		&pub.Initial.PC, &pub.Initial.AP, &pub.Initial.FP,
		&pub.Final.PC, &pub.Final.AP, &pub.Final.FP,
	} {
		if err := r.u64(out); err != nil {
			return nil, err
		}
	}
	var nSegments int
	if err := r.count(&nSegments); err != nil {
		return nil, err
	}
	pub.Segments = make(map[string]adapter.MemorySegment, nSegments)
	for i := 0; i < nSegments; i++ {
		var nameLen int
		if err := r.count(&nameLen); err != nil {
			return nil, err
		}
		nameBytes := make([]byte, nameLen)
		for j := range nameBytes {
			var b uint64
			if err := r.u64(&b); err != nil {
				return nil, err
			}
			if b > 255 {
				return nil, fmt.Errorf("%w: segment name byte out of range", ErrSerialization)
			}
			nameBytes[j] = byte(b)
		}
		name := string(nameBytes)
		var seg adapter.MemorySegment
		if err := r.u64(&seg.BeginAddr); err != nil {
			return nil, err
		}
		if err := r.u64(&seg.StopPtr); err != nil {
			return nil, err
		}
		pub.Segments[name] = seg
		pub.SegmentNames = append(pub.SegmentNames, name)
	}
	var nPublicMemory int
	if err := r.count(&nPublicMemory); err != nil {
		return nil, err
	}
	for i := 0; i < nPublicMemory; i++ {
		var entry adapter.PublicMemoryEntry
		if err := r.u64(&entry.Address); err != nil {
			return nil, err
		}
		var id uint64
		if err := r.u64(&id); err != nil {
			return nil, err
		}
		if id > 1<<32-1 {
			return nil, fmt.Errorf("%w: memory id out of range", ErrSerialization)
		}
		entry.ID = mem.ID(uint32(id))
		f, err := r.next()
		if err != nil {
			return nil, err
		}
		b := f.Bytes()
		entry.Value = new(uint256.Int).SetBytes(b[:])
		pub.PublicMemory = append(pub.PublicMemory, entry)
	}

	readClaim := func(out *air.Claim) error {
		var n int
		if err := r.count(&n); err != nil {
			return err
		}
		out.NCalls = n
		return nil
	}
	for v := 0; v < int(adapter.NVariants); v++ {
		if err := readClaim(&p.Claim.Opcodes[v]); err != nil {
			return nil, err
		}
	}
	var nBuiltins int
	if err := r.count(&nBuiltins); err != nil {
		return nil, err
	}
	p.Claim.Builtins = make([]air.Claim, nBuiltins)
	for i := range p.Claim.Builtins {
		if err := readClaim(&p.Claim.Builtins[i]); err != nil {
			return nil, err
		}
	}
	for _, out := range []*air.Claim{
		&p.Claim.AddressToID, &p.Claim.IDToBig,
		&p.Claim.RangeCheck9, &p.Claim.RangeCheck16, &p.Claim.VerifyInstruction,
	} {
		if err := readClaim(out); err != nil {
			return nil, err
		}
	}

	if err := r.hashes(&p.BaseColumnRoots); err != nil {
		return nil, err
	}
	var nInteraction int
	if err := r.count(&nInteraction); err != nil {
		return nil, err
	}
	p.InteractionClaims = make([]air.InteractionClaim, nInteraction)
	for i := range p.InteractionClaims {
		if err := r.qm31(&p.InteractionClaims[i].TotalSum); err != nil {
			return nil, err
		}
		var hasClaimed uint64
		if err := r.u64(&hasClaimed); err != nil {
			return nil, err
		}
		if hasClaimed == 1 {
			cs := &air.ClaimedSum{}
			if err := r.qm31(&cs.Sum); err != nil {
				return nil, err
			}
			var row uint64
			if err := r.u64(&row); err != nil {
				return nil, err
			}
			cs.Row = int(row)
			p.InteractionClaims[i].ClaimedSum = cs
		} else if hasClaimed != 0 {
			return nil, fmt.Errorf("%w: invalid claimed-sum marker", ErrSerialization)
		}
	}
	if err := r.hashes(&p.InteractionColumnRoots); err != nil {
		return nil, err
	}
	if err := r.hashes(&p.CompositionColumnRoots); err != nil {
		return nil, err
	}

	var nOods int
	if err := r.count(&nOods); err != nil {
		return nil, err
	}
	p.OodsValues = make([]m31.QM31, nOods)
	for i := range p.OodsValues {
		if err := r.qm31(&p.OodsValues[i]); err != nil {
			return nil, err
		}
	}
	if err := r.qm31(&p.CompositionClaim); err != nil {
		return nil, err
	}

	if err := r.opening(&p.TailOpening); err != nil {
		return nil, err
	}
	if err := r.opening(&p.OodsOpening); err != nil {
		return nil, err
	}
	var nQueries int
	if err := r.count(&nQueries); err != nil {
		return nil, err
	}
	p.Queries = make([]QueryBundle, nQueries)
	for i := range p.Queries {
		if err := r.opening(&p.Queries[i].Base); err != nil {
			return nil, err
		}
		if err := r.opening(&p.Queries[i].Interaction); err != nil {
			return nil, err
		}
		if err := r.opening(&p.Queries[i].InteractionPrev); err != nil {
			return nil, err
		}
		if err := r.opening(&p.Queries[i].Composition); err != nil {
			return nil, err
		}
	}

	if err := r.hashes(&p.Fri.LayerRoots); err != nil {
		return nil, err
	}
	var nFinal int
	if err := r.count(&nFinal); err != nil {
		return nil, err
	}
	p.Fri.FinalLayer = make([]m31.QM31, nFinal)
	for i := range p.Fri.FinalLayer {
		if err := r.qm31(&p.Fri.FinalLayer[i]); err != nil {
			return nil, err
		}
	}
	var nFriQueries int
	if err := r.count(&nFriQueries); err != nil {
		return nil, err
	}
	p.Fri.Queries = make([]fri.Query, nFriQueries)
	for i := range p.Fri.Queries {
		var idx uint64
		if err := r.u64(&idx); err != nil {
			return nil, err
		}
		p.Fri.Queries[i].Index = int(idx)
		var nLayers int
		if err := r.count(&nLayers); err != nil {
			return nil, err
		}
		p.Fri.Queries[i].Layers = make([]fri.QueryLayer, nLayers)
		for l := range p.Fri.Queries[i].Layers {
			layer := &p.Fri.Queries[i].Layers[l]
			if err := r.qm31(&layer.Values[0]); err != nil {
				return nil, err
			}
			if err := r.qm31(&layer.Values[1]); err != nil {
				return nil, err
			}
			if err := r.hashes(&layer.Path); err != nil {
				return nil, err
			}
		}
	}

	if r.pos != len(r.felts) {
		return nil, fmt.Errorf("%w: %d trailing felts", ErrSerialization, len(r.felts)-r.pos)
	}
	return p, nil
}

// FormatProof renders the felt stream as the on-disk text format: a single
// bracketed, space-separated decimal list.
func FormatProof(p *CairoProof) string {
	felts := p.Serialize()
	parts := make([]string, len(felts))
	for i, f := range felts {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// ParseProof reads the on-disk text format back into a proof.
func ParseProof(text string) (*CairoProof, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, fmt.Errorf("%w: missing brackets", ErrSerialization)
	}
	body := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	var felts []fp.Element
	if body != "" {
		for _, part := range strings.Fields(body) {
			var f fp.Element
			if _, err := f.SetString(part); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
			}
			felts = append(felts, f)
		}
	}
	return DeserializeProof(felts)
}
