package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize access to your calendar",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if a.session.IsSignedIn() {
			fmt.Fprintf(out, "✅ Already signed in%s\n", welcomeSuffix(a.session.Identity()))
			return nil
		}

		fmt.Fprintf(out, "🚀 Signing in to %s...\n", a.config.Provider)
		if err := a.session.SignIn(ctx); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		fmt.Fprintf(out, "✅ Signed in%s\n", welcomeSuffix(a.session.Identity()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
