package main

import (
	"fmt"
	"os"

	"github.com/bobuk/gcalstats"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gcalstats",
	Short: "Total up the time you spend on calendar events",
	Long: `gcalstats signs in to your calendar, searches events by text and reports
how many matched and how much time they add up to.

Quick Start:
  gcalstats login              # Authorize calendar access
  gcalstats search standup     # Count and total every "standup" event
  gcalstats whoami             # Show the signed-in account
  gcalstats logout             # Revoke access and forget the token`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", gcalstats.ConfigFileName, "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}
