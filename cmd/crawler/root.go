// Package main provides the crawler CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the crawler command tree: the default run command's
// flags live directly on the root, plus a killpeer subcommand, mirroring
// the flat single-purpose-CLI shape of a crawler that is not meant to
// grow many subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crawler",
		Short:         "distributed multi-threaded web crawler",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCrawlCmd,
	}

	cmd.Flags().String("seed_file", "", "path to a newline-delimited list of seed URLs")
	cmd.Flags().Int("num_threads", 0, "number of worker threads (default: config/XDG default)")
	cmd.Flags().String("log_path", "", "log file path (default: stderr or XDG state dir)")
	cmd.Flags().String("data_dir", "", "artifact output directory")
	cmd.Flags().String("checkpoint_path", "", "checkpoint file path")
	cmd.Flags().Int("stats_refresh_interval", 0, "stats log interval in seconds")
	cmd.Flags().Int("expected_num_urls", 0, "expected crawl size, sizes the Bloom filter")
	cmd.Flags().Int("checkpoint_interval", 0, "checkpoint interval in seconds")
	cmd.Flags().Int("serverID", 0, "this node's server ID within the peer list")
	cmd.Flags().String("hostname_path", "", "path to a newline-delimited list of peer hostnames")
	cmd.Flags().Bool("assume_yes", false, "skip interactive startup confirmations")
	cmd.Flags().String("config", "", "optional YAML config file overlaying flag defaults")

	cmd.AddCommand(NewKillPeerCmd())
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
