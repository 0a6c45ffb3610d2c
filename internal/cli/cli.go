// Package cli wires the cobra command tree: a root command and a single
// "start" subcommand carrying every flag from spec §6. The actual node
// wiring lives in cmd/solechain and is injected as a callback so this
// package stays free of any dependency on chainstore/network/etc.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unisalento/solechain/internal/config"
)

// StartFunc runs the node given its fully resolved configuration. It
// returns a non-nil error only on a genuine startup failure; a clean
// shutdown (e.g. SIGINT) returns nil.
type StartFunc func(cfg *config.Config) error

// Execute builds the command tree and runs it against os.Args, invoking
// start when the "start" subcommand is selected. It returns the process
// exit code: 0 on success, 1 on argument parse failure or start error.
func Execute(start StartFunc) int {
	root := &cobra.Command{
		Use:   "solechain",
		Short: "SOLECHAIN — educational account-model proof-of-work node",
		Long:  "A single-binary P2P node implementing an account-model, proof-of-work blockchain for teaching purposes.",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the P2P node and HTTP control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}
			return start(cfg)
		},
	}
	config.RegisterFlags(startCmd)
	root.AddCommand(startCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
