package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var logoutYes bool

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke calendar access and forget the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if !a.session.IsSignedIn() {
			fmt.Fprintln(out, "👋 Not signed in")
			return nil
		}

		if !logoutYes {
			fmt.Fprint(out, "⚠️  Are you sure you want to sign out? (y/N): ")
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if !strings.EqualFold(strings.TrimSpace(answer), "y") {
				fmt.Fprintln(out, "❌ Sign out cancelled")
				return nil
			}
		}

		if err := a.session.SignOut(ctx); err != nil {
			return fmt.Errorf("signed out, but the stored token could not be removed: %w", err)
		}
		fmt.Fprintln(out, "✅ Signed out")
		return nil
	},
}

func init() {
	logoutCmd.Flags().BoolVarP(&logoutYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(logoutCmd)
}
