package main

import (
	"fmt"
	"strings"

	"github.com/bobuk/gcalstats"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	labelStyle = lipgloss.NewStyle().
			Width(12)
)

// renderReport prints the stats block followed by one entry per event.
func renderReport(r gcalstats.Report, descriptions bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 %s %s\n", headerStyle.Render("Stats for"), titleStyle.Render(r.Query))
	fmt.Fprintf(&b, "  %s%s\n", labelStyle.Render("Events"), countStyle.Render(fmt.Sprint(r.Stats.EventCount)))
	fmt.Fprintf(&b, "  %s%s\n\n", labelStyle.Render("Total Time"), countStyle.Render(r.TotalTime))

	if len(r.Events) == 0 {
		b.WriteString(dimStyle.Render("No events found") + "\n")
		return b.String()
	}

	for _, e := range r.Events {
		fmt.Fprintf(&b, "📅 %s\n", titleStyle.Render(e.Title))
		fmt.Fprintf(&b, "   %s · %s\n", e.When, e.Duration)
		if e.Link != "" {
			fmt.Fprintf(&b, "   %s\n", dimStyle.Render(e.Link))
		}
		if e.DescriptionChars > 0 {
			if descriptions {
				fmt.Fprintf(&b, "   %s\n", strings.ReplaceAll(e.Description, "\n", "\n   "))
			} else {
				fmt.Fprintf(&b, "   %s\n", dimStyle.Render(fmt.Sprintf("%d characters", e.DescriptionChars)))
			}
		}
	}
	return b.String()
}
