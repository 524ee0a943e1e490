// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
)

// publicInputJSON mirrors the Cairo AIR public-input schema.
type publicInputJSON struct {
	MemorySegments map[string]segmentJSON `json:"memory_segments"`
	PublicMemory   []publicMemoryJSON     `json:"public_memory"`
}

type segmentJSON struct {
	BeginAddr uint64 `json:"begin_addr"`
	StopPtr   uint64 `json:"stop_ptr"`
}

type publicMemoryJSON struct {
	Address uint32 `json:"address"`
	Value   string `json:"value"`
	Page    uint32 `json:"page"`
}

// privateInputJSON carries the relocated memory image and register trace.
type privateInputJSON struct {
	Memory []memoryEntryJSON `json:"memory"`
	Trace  []traceEntryJSON  `json:"trace"`
}

type memoryEntryJSON struct {
	Address uint64 `json:"address"`
	Value   string `json:"value"`
}

type traceEntryJSON struct {
	PC uint64 `json:"pc"`
	AP uint64 `json:"ap"`
	FP uint64 `json:"fp"`
}

// AdaptVMOutput reads the public and private VM artifact files and adapts
// them into a ProverInput. I/O and JSON errors surface unchanged.
func AdaptVMOutput(pubPath, privPath string) (*ProverInput, error) {
	pubBytes, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, err
	}
	var pub publicInputJSON
	if err := json.Unmarshal(pubBytes, &pub); err != nil {
		return nil, err
	}

	privBytes, err := os.ReadFile(privPath)
	if err != nil {
		return nil, err
	}
	var priv privateInputJSON
	if err := json.Unmarshal(privBytes, &priv); err != nil {
		return nil, err
	}
	if len(priv.Trace) == 0 {
		return nil, ErrTraceNotRelocated
	}

	entries := make([]MemoryEntry, 0, len(priv.Memory))
	for _, e := range priv.Memory {
		value, err := parseWord(e.Value)
		if err != nil {
			return nil, fmt.Errorf("memory value at address %d: %w", e.Address, err)
		}
		entries = append(entries, MemoryEntry{Address: e.Address, Value: value})
	}

	trace := make([]CasmState, len(priv.Trace))
	for i, t := range priv.Trace {
		trace[i] = CasmState{PC: t.PC, AP: t.AP, FP: t.FP}
	}

	segments := make(map[string]MemorySegment, len(pub.MemorySegments))
	for name, seg := range pub.MemorySegments {
		segments[name] = MemorySegment{BeginAddr: seg.BeginAddr, StopPtr: seg.StopPtr}
	}

	publicAddresses := make([]uint32, len(pub.PublicMemory))
	for i, e := range pub.PublicMemory {
		publicAddresses[i] = e.Address
	}

	return FromRelocated(entries, trace, publicAddresses, segments)
}

// parseWord accepts 0x-prefixed hex or plain decimal 252-bit values.
func parseWord(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return uint256.FromHex(strings.ToLower(s))
	}
	return uint256.FromDecimal(s)
}
