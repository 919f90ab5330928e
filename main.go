package main

import (
	"fmt"
	"os"

	"github.com/rohanthewiz/logger"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "Multi-device note sync hub and client",
	Long: `notesync keeps notes consistent across devices through a central hub.
Run "notesync serve" for the hub; the other commands act as a sync client.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLogLevel("debug")
			return
		}
		logger.SetLogLevel("info")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
