package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobuk/gcalstats"
	"github.com/spf13/cobra"
)

var (
	searchTitleOnly    bool
	searchDescriptions bool
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Count matching events and total their time",
	Long: `Search the calendar for events matching the text and report how many
were found and how much time they add up to. The provider matches titles,
descriptions and locations; --title-only keeps only title matches.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.session.IsSignedIn() {
			return fmt.Errorf("not signed in (run `gcalstats login`)")
		}

		query := strings.Join(args, " ")
		raws, err := a.query.Search(ctx, query)
		if err != nil {
			var qerr *gcalstats.QueryError
			if errors.As(err, &qerr) && qerr.NeedsReauth() {
				return fmt.Errorf("error loading calendar events, sign out and back in: %w", err)
			}
			return fmt.Errorf("error loading calendar events: %w", err)
		}
		if searchTitleOnly {
			raws = gcalstats.FilterByTitle(raws, query)
		}

		report := gcalstats.BuildReport(query, gcalstats.NormalizeEvents(raws), gcalstats.ReportOptions{
			Location: time.Local,
			Identity: a.session.Identity(),
		})
		fmt.Fprint(cmd.OutOrStdout(), renderReport(report, searchDescriptions))
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchTitleOnly, "title-only", false, "Only count events whose title contains the text")
	searchCmd.Flags().BoolVarP(&searchDescriptions, "descriptions", "d", false, "Print event descriptions")
	rootCmd.AddCommand(searchCmd)
}
