// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// cairo-prove adapts the JSON artifacts of a finished Cairo VM run, produces
// a STARK proof, and optionally verifies it before exiting.
//
// Example:
//
//	cairo-prove --pub_json pub.json --priv_json priv.json --proof_path proof \
//	    --verify
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/cairo/adapter"
	"github.com/luxfi/cairo/channel"
	"github.com/luxfi/cairo/prover"
	"github.com/luxfi/cairo/verifier"
)

// Exit codes; CI distinguishes a rejected proof from bad arguments.
const (
	exitOK = iota
	exitUsage
	exitVMImport
	exitProving
	exitVerification
)

type exitError struct {
	code   int
	prefix string
	err    error
}

func (e *exitError) Error() string {
	return fmt.Sprintf("%s: %v", e.prefix, e.err)
}

func main() {
	var (
		pubJSON           string
		privJSON          string
		proofPath         string
		hashName          string
		trackRelations    bool
		displayComponents bool
		runVerify         bool
	)

	cmd := &cobra.Command{
		Use:           "cairo-prove",
		Short:         "Prove a finished Cairo VM execution",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind channel.Kind
			switch hashName {
			case "poseidon252":
				kind = channel.Poseidon252
			case "blake2s":
				kind = channel.Blake2s
			default:
				return &exitError{exitUsage, "cli", fmt.Errorf("unknown hash %q", hashName)}
			}

			input, err := adapter.AdaptVMOutput(pubJSON, privJSON)
			if err != nil {
				return &exitError{exitVMImport, "vm-import", err}
			}

			config := prover.NewConfigBuilder().
				TrackRelations(trackRelations).
				DisplayComponents(displayComponents).
				Build()
			proof, err := prover.ProveCairo(kind, input, config)
			if err != nil {
				return &exitError{exitProving, "proving", err}
			}

			if err := os.WriteFile(proofPath, []byte(prover.FormatProof(proof)), 0o644); err != nil {
				return &exitError{exitVMImport, "io", err}
			}

			if runVerify {
				if err := verifier.VerifyCairo(kind, proof); err != nil {
					return &exitError{exitVerification, "verification", err}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pubJSON, "pub_json", "", "path to the public input JSON")
	cmd.Flags().StringVar(&privJSON, "priv_json", "", "path to the private input JSON")
	cmd.Flags().StringVar(&proofPath, "proof_path", "", "output path for the proof")
	cmd.Flags().StringVar(&hashName, "hash", "poseidon252", "merkle channel: poseidon252 or blake2s")
	cmd.Flags().BoolVar(&trackRelations, "track_relations", false, "log per-relation logup sums")
	cmd.Flags().BoolVar(&displayComponents, "display_components", false, "log component sizes")
	cmd.Flags().BoolVar(&runVerify, "verify", false, "verify the produced proof before exit")
	for _, required := range []string{"pub_json", "priv_json", "proof_path"} {
		if err := cmd.MarkFlagRequired(required); err != nil {
			panic(err)
		}
	}

	if err := cmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.Error())
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "cli: %v\n", err)
		os.Exit(exitUsage)
	}
}
