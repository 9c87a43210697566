package gcalstats

import (
	"time"
	"unicode/utf8"
)

// AggregateStats summarizes a set of events. TotalMinutes is always in [0,59].
type AggregateStats struct {
	EventCount   int
	TotalHours   int
	TotalMinutes int
}

// Summarize counts events and adds up their durations. All-day events
// contribute 24 hours for every day they span.
func Summarize(events []NormalizedEvent) AggregateStats {
	total := 0
	for _, e := range events {
		total += e.Duration.TotalMinutes()
	}
	d := DurationFromMinutes(total)
	return AggregateStats{
		EventCount:   len(events),
		TotalHours:   d.Hours,
		TotalMinutes: d.Minutes,
	}
}

// TotalTime renders the aggregate duration for display.
func (s AggregateStats) TotalTime() string {
	return FormatHoursMinutes(s.TotalHours, s.TotalMinutes)
}

// ReportOptions controls how BuildReport renders times and links.
type ReportOptions struct {
	// Location is the display timezone. nil means time.Local.
	Location *time.Location
	// Now anchors the "omit the current year" rule. Zero means time.Now().
	Now time.Time
	// Identity, when known, pins event links to the signed-in account.
	Identity *Identity
}

// EventLine is one event rendered for display.
type EventLine struct {
	ID               string
	Title            string
	When             string
	Duration         string
	Link             string
	Description      string
	DescriptionChars int
}

// Report is the statistics view for one search.
type Report struct {
	Query     string
	Stats     AggregateStats
	TotalTime string
	Events    []EventLine
}

// BuildReport folds events into totals and per-event display lines.
func BuildReport(query string, events []NormalizedEvent, opts ReportOptions) Report {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	var email string
	if opts.Identity != nil {
		email = opts.Identity.Email
	}

	stats := Summarize(events)
	lines := make([]EventLine, 0, len(events))
	for _, e := range events {
		lines = append(lines, EventLine{
			ID:               e.ID,
			Title:            e.Title,
			When:             FormatEventTime(e.Start, e.End, opts.Location, now),
			Duration:         FormatEventDuration(e),
			Link:             EventLink(e.Link, email),
			Description:      e.Description,
			DescriptionChars: utf8.RuneCountInString(e.Description),
		})
	}
	return Report{
		Query:     query,
		Stats:     stats,
		TotalTime: stats.TotalTime(),
		Events:    lines,
	}
}
