package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/connoryin/crawler/internal/peer"
)

// NewKillPeerCmd builds the killpeer subcommand: a thin CLI surface over
// the peer wire protocol's inbound "kill\0" contract, for an operator to
// remotely stop a node.
func NewKillPeerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "killpeer <host>",
		Short: "send a graceful shutdown message to a running peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := peer.SendKill(args[0]); err != nil {
				return fmt.Errorf("sending kill to %s: %w", args[0], err)
			}
			fmt.Printf("sent kill to %s\n", args[0])
			return nil
		},
	}
}
