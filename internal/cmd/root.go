package cmd

import (
	"github.com/spf13/cobra"
)

// Version is the build version, set with -ldflags at release time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "poker",
	Short: "Realtime planning poker server",
	Long: `poker runs a websocket server for planning poker sessions. Hosts create
a session, participants join it, propose items and vote, and every member of
the session sees the same updates in the same order.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
