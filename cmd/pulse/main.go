// Pulse - Minecraft server status monitor.
//
// Pulse polls a server over the status (ping) and query protocols, turns
// successive snapshots into lifecycle events, and fans those events out to
// SQLite history, a REST API, Prometheus metrics, MQTT and Discord.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

const banner = `
  ____        _
 |  _ \ _   _| |___  ___
 | |_) | | | | / __|/ _ \
 |  __/| |_| | \__ \  __/
 |_|    \__,_|_|___/\___|  v%s
 Minecraft Server Monitor
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulse",
		Short: "Minecraft server status monitor",
		Long: `Pulse watches a Minecraft server and reports when it goes online or
offline, when players join or leave, and when population milestones are hit.

Run without a subcommand to start the monitor daemon.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts := &daemonOptions{}
	rootCmd.Flags().StringVarP(&opts.configDir, "config-dir", "c", "config", "Directory holding config.json")
	rootCmd.Flags().BoolVar(&opts.noCLI, "no-cli", false, "Disable the interactive console")
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context(), opts)
	}

	rootCmd.AddCommand(
		pingCmd(),
		queryCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pulse %s (%s)\n", version, commit)
		},
	}
}
