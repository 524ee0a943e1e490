// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package air

import (
	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/m31"
)

// Claim is the public data of one component: the number of real calls. The
// trace log-size is derived, never transmitted.
type Claim struct {
	NCalls int
}

// LogSize returns the component's trace log-length.
func (c Claim) LogSize() uint32 {
	return LogSize(c.NCalls)
}

// MixInto absorbs the claim into the transcript.
func (c Claim) MixInto(ch channel.Channel) {
	ch.MixU64(uint64(c.NCalls))
}

// ClaimedSum is a LogUp partial sum pinned to a specific row, reported when
// a component's multiplicity pattern is non-uniform at the tail.
type ClaimedSum struct {
	Sum m31.QM31
	Row int
}

// InteractionClaim is the public data of one component's interaction trace.
type InteractionClaim struct {
	TotalSum   m31.QM31
	ClaimedSum *ClaimedSum
}

// MixInto absorbs the interaction claim into the transcript.
func (c InteractionClaim) MixInto(ch channel.Channel) {
	ch.MixFelts([]m31.QM31{c.TotalSum})
	if c.ClaimedSum != nil {
		ch.MixFelts([]m31.QM31{c.ClaimedSum.Sum})
		ch.MixU64(uint64(c.ClaimedSum.Row))
	}
}
