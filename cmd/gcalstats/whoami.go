package main

import (
	"fmt"

	"github.com/bobuk/gcalstats"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Fprintln(cmd.OutOrStdout(), renderSession(a.session.State()))
		return nil
	},
}

func renderSession(state gcalstats.SessionState) string {
	if state.Status != gcalstats.SignedIn {
		return "👋 " + titleStyle.Render("Not signed in") + " (run `gcalstats login`)"
	}
	id := state.Identity
	if id == nil {
		return "👤 " + titleStyle.Render("Signed in") + dimStyle.Render(" (profile unavailable)")
	}
	line := "👤 " + titleStyle.Render(id.Name)
	if id.Email != "" {
		line += " " + dimStyle.Render("<"+id.Email+">")
	}
	if id.AvatarURL != "" {
		line += "\n   " + dimStyle.Render(id.AvatarURL)
	}
	return line
}

func welcomeSuffix(id *gcalstats.Identity) string {
	if id == nil || id.Name == "" {
		return ""
	}
	return ", welcome " + id.Name
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
