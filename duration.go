package gcalstats

import "time"

const hoursPerDay = 24

// Duration is an elapsed time split into whole hours and minutes.
// Minutes is always in [0,59]; a negative span shows up in Hours.
type Duration struct {
	Hours   int
	Minutes int
}

// TotalMinutes returns the duration as a single minute count.
func (d Duration) TotalMinutes() int {
	return d.Hours*60 + d.Minutes
}

// DurationFromMinutes splits a minute count with floor semantics.
func DurationFromMinutes(total int) Duration {
	hours := total / 60
	minutes := total % 60
	if minutes < 0 {
		hours--
		minutes += 60
	}
	return Duration{Hours: hours, Minutes: minutes}
}

// CalculateDuration returns the elapsed time between start and end.
//
// When both ends are whole-day dates the event spans end-start calendar days
// (end exclusive) and each day counts as exactly 24 hours. Otherwise the span
// between the two instants is truncated to whole minutes. Negative spans are
// passed through unclamped.
func CalculateDuration(start, end EventTime) Duration {
	if start.AllDay && end.AllDay {
		return Duration{Hours: daysBetween(start.Time, end.Time) * hoursPerDay}
	}
	span := end.Time.Sub(start.Time).Truncate(time.Minute)
	return DurationFromMinutes(int(span / time.Minute))
}

func daysBetween(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()) / hoursPerDay
}

// SameLocalDay reports whether a and b fall on the same calendar date in loc.
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// NormalizedEvent is an event shaped for reporting, with its duration derived.
type NormalizedEvent struct {
	ID          string
	Title       string
	Start       EventTime
	End         EventTime
	Duration    Duration
	AllDay      bool
	Description string
	Link        string
}

// Normalize derives a NormalizedEvent from a provider record.
func Normalize(raw RawEvent) NormalizedEvent {
	return NormalizedEvent{
		ID:          raw.ID,
		Title:       raw.Title,
		Start:       raw.Start,
		End:         raw.End,
		Duration:    CalculateDuration(raw.Start, raw.End),
		AllDay:      raw.Start.AllDay && raw.End.AllDay,
		Description: raw.Description,
		Link:        raw.Link,
	}
}

// NormalizeEvents normalizes every record, preserving order.
func NormalizeEvents(raws []RawEvent) []NormalizedEvent {
	events := make([]NormalizedEvent, 0, len(raws))
	for _, raw := range raws {
		events = append(events, Normalize(raw))
	}
	return events
}
