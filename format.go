package gcalstats

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AllDayLabel is shown instead of an hour count for all-day events.
const AllDayLabel = "All Day"

// FormatHoursMinutes renders "1 hour 30 minutes", dropping a zero clause.
// Both clauses zero render as "0 minutes".
func FormatHoursMinutes(hours, minutes int) string {
	var parts []string
	if hours != 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes != 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 {
		return plural(0, "minute")
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatDuration renders d with FormatHoursMinutes.
func FormatDuration(d Duration) string {
	return FormatHoursMinutes(d.Hours, d.Minutes)
}

// FormatEventDuration renders an event's duration, labelling all-day events
// "All Day" whatever the number of days they span.
func FormatEventDuration(e NormalizedEvent) string {
	if e.AllDay {
		return AllDayLabel
	}
	return FormatDuration(e.Duration)
}

// FormatEventTime renders when an event happens, e.g. "Mar 1 9am — 10:30am".
// Dates carry a year only when it differs from now's. The end date is left out
// when both ends fall on the same day in loc. All-day events show their start date.
func FormatEventTime(start, end EventTime, loc *time.Location, now time.Time) string {
	if start.AllDay {
		return start.Time.Format(time.DateOnly)
	}
	if loc == nil {
		loc = time.Local
	}
	s := start.Time.In(loc)
	e := end.Time.In(loc)
	currentYear := now.In(loc).Year()

	var b strings.Builder
	b.WriteString(formatDay(s, currentYear))
	b.WriteString(" ")
	b.WriteString(formatClock(s))
	b.WriteString(" — ")
	if !SameLocalDay(s, e, loc) {
		b.WriteString(formatDay(e, currentYear))
		b.WriteString(" ")
	}
	b.WriteString(formatClock(e))
	return b.String()
}

func formatDay(t time.Time, currentYear int) string {
	if t.Year() != currentYear {
		return t.Format("Jan 2, 2006")
	}
	return t.Format("Jan 2")
}

func formatClock(t time.Time) string {
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	ampm := "am"
	if t.Hour() >= 12 {
		ampm = "pm"
	}
	if t.Minute() > 0 {
		return fmt.Sprintf("%d:%02d%s", hour, t.Minute(), ampm)
	}
	return fmt.Sprintf("%d%s", hour, ampm)
}

// EventLink returns the provider deep link, pinned to the signed-in account
// when email is known.
func EventLink(link, email string) string {
	if link == "" || email == "" {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	q := u.Query()
	q.Set("authuser", email)
	u.RawQuery = q.Encode()
	return u.String()
}
