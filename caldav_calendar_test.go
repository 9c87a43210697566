package gcalstats

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeCalendar(t *testing.T, lines ...string) *ical.Calendar {
	t.Helper()
	data := strings.Join(append(append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
	}, lines...), "END:VCALENDAR"), "\r\n") + "\r\n"
	cal, err := ical.NewDecoder(strings.NewReader(data)).Decode()
	require.NoError(t, err)
	return cal
}

var (
	windowFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windowTo   = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestEventsFromObjectsSingle(t *testing.T) {
	objects := []caldav.CalendarObject{
		{
			Path: "/cal/a.ics",
			Data: decodeCalendar(t,
				"BEGIN:VEVENT",
				"UID:a",
				"SUMMARY:Gym",
				"DESCRIPTION:legs",
				"DTSTART:20240301T090000Z",
				"DTEND:20240301T103000Z",
				"LAST-MODIFIED:20240201T000000Z",
				"END:VEVENT"),
		},
		{
			Path: "/cal/b.ics",
			Data: decodeCalendar(t,
				"BEGIN:VEVENT",
				"UID:b",
				"SUMMARY:Offsite",
				"DTSTART;VALUE=DATE:20240304",
				"DTEND;VALUE=DATE:20240306",
				"LAST-MODIFIED:20240101T000000Z",
				"END:VEVENT"),
		},
	}

	events := eventsFromObjects(objects, ListQuery{SingleEvents: true}, "https://dav.example.com/", windowFrom, windowTo)
	require.Len(t, events, 2)

	// ordered by last modification
	offsite, gym := events[0], events[1]
	assert.Equal(t, "b", offsite.ID)
	assert.True(t, offsite.Start.AllDay)
	assert.Equal(t, Duration{48, 0}, CalculateDuration(offsite.Start, offsite.End))

	assert.Equal(t, "a", gym.ID)
	assert.Equal(t, "Gym", gym.Title)
	assert.Equal(t, "legs", gym.Description)
	assert.Equal(t, "https://dav.example.com/cal/a.ics", gym.Link)
	assert.Equal(t, Duration{1, 30}, CalculateDuration(gym.Start, gym.End))
}

func TestEventsFromObjectsFiltersText(t *testing.T) {
	cal := decodeCalendar(t,
		"BEGIN:VEVENT",
		"UID:a",
		"SUMMARY:Gym",
		"DTSTART:20240301T090000Z",
		"DTEND:20240301T100000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:b",
		"SUMMARY:Lunch",
		"LOCATION:Gym cafe",
		"DTSTART:20240302T120000Z",
		"DTEND:20240302T130000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:c",
		"SUMMARY:Dentist",
		"DTSTART:20240303T120000Z",
		"DTEND:20240303T130000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:d",
		"SUMMARY:Gym cancelled",
		"STATUS:CANCELLED",
		"DTSTART:20240304T120000Z",
		"DTEND:20240304T130000Z",
		"END:VEVENT")
	objects := []caldav.CalendarObject{{Path: "/cal/x.ics", Data: cal}}

	events := eventsFromObjects(objects, ListQuery{Text: "GYM", SingleEvents: true}, "", windowFrom, windowTo)
	var ids []string
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)

	withDeleted := eventsFromObjects(objects, ListQuery{Text: "gym", SingleEvents: true, ShowDeleted: true}, "", windowFrom, windowTo)
	assert.Len(t, withDeleted, 3)
}

func TestEventsFromObjectsExpandsRecurrence(t *testing.T) {
	cal := decodeCalendar(t,
		"BEGIN:VEVENT",
		"UID:weekly",
		"SUMMARY:Gym",
		"DTSTART:20240301T090000Z",
		"DTEND:20240301T100000Z",
		"RRULE:FREQ=WEEKLY;COUNT=3",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:weekly",
		"RECURRENCE-ID:20240308T090000Z",
		"SUMMARY:Gym (moved)",
		"DTSTART:20240308T110000Z",
		"DTEND:20240308T123000Z",
		"END:VEVENT")
	objects := []caldav.CalendarObject{{Path: "/cal/weekly.ics", Data: cal}}

	events := eventsFromObjects(objects, ListQuery{Text: "gym", SingleEvents: true}, "", windowFrom, windowTo)
	require.Len(t, events, 3)

	assert.Equal(t, "weekly_20240301T090000Z", events[0].ID)
	assert.Equal(t, Duration{1, 0}, CalculateDuration(events[0].Start, events[0].End))

	assert.Equal(t, "weekly_20240308T090000Z", events[1].ID)
	assert.Equal(t, "Gym (moved)", events[1].Title)
	assert.Equal(t, Duration{1, 30}, CalculateDuration(events[1].Start, events[1].End))

	assert.Equal(t, "weekly_20240315T090000Z", events[2].ID)

	capped := eventsFromObjects(objects, ListQuery{Text: "gym", SingleEvents: true, MaxResults: 2}, "", windowFrom, windowTo)
	assert.Len(t, capped, 2)

	series := eventsFromObjects(objects, ListQuery{Text: "gym"}, "", windowFrom, windowTo)
	require.Len(t, series, 1)
	assert.Equal(t, "weekly", series[0].ID)
}

func TestEventsFromObjectsRecurrenceWindow(t *testing.T) {
	cal := decodeCalendar(t,
		"BEGIN:VEVENT",
		"UID:daily",
		"SUMMARY:Standup",
		"DTSTART:20231230T090000Z",
		"DTEND:20231230T091500Z",
		"RRULE:FREQ=DAILY",
		"END:VEVENT")
	objects := []caldav.CalendarObject{{Data: cal}}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	events := eventsFromObjects(objects, ListQuery{SingleEvents: true}, "", from, to)
	assert.Len(t, events, 7)
}

func TestRawEventFromICalDefaultsEnd(t *testing.T) {
	cal := decodeCalendar(t,
		"BEGIN:VEVENT",
		"UID:holiday",
		"SUMMARY:Holiday",
		"DTSTART;VALUE=DATE:20240704",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:reminder",
		"SUMMARY:Reminder",
		"DTSTART:20240704T120000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:broken",
		"SUMMARY:No start",
		"END:VEVENT")
	events := cal.Events()
	require.Len(t, events, 3)

	holiday, ok := rawEventFromICal(events[0], "")
	require.True(t, ok)
	assert.Equal(t, Duration{24, 0}, CalculateDuration(holiday.Start, holiday.End))

	reminder, ok := rawEventFromICal(events[1], "")
	require.True(t, ok)
	assert.Equal(t, Duration{}, CalculateDuration(reminder.Start, reminder.End))

	_, ok = rawEventFromICal(events[2], "")
	assert.False(t, ok)
}

func TestObjectLink(t *testing.T) {
	assert.Equal(t, "https://dav.example.com/cal/a.ics", objectLink("https://dav.example.com/dav/", "/cal/a.ics"))
	assert.Equal(t, "https://dav.example.com/dav/a.ics", objectLink("https://dav.example.com/dav/", "a.ics"))
	assert.Equal(t, "https://dav.example.com/", objectLink("https://dav.example.com/", ""))
}

func TestCalDAVProviderWithoutCredential(t *testing.T) {
	ctx := context.Background()
	p := NewCalDAVProvider(CalDAVConfig{ServerURL: "https://dav.example.com/", Username: "ada@example.com"})
	require.NoError(t, p.Init(ctx))

	_, err := p.Authorize(ctx, false)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = p.ListEvents(ctx, PrimaryCalendar, ListQuery{Text: "x"})
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = p.GetIdentity(ctx)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.NoError(t, p.Revoke(ctx, &Credential{AccessToken: "pw"}))
}

func TestCalDAVProviderInit(t *testing.T) {
	assert.Error(t, NewCalDAVProvider(CalDAVConfig{ServerURL: "not a url"}).Init(context.Background()))
	assert.Error(t, NewCalDAVProvider(CalDAVConfig{ServerURL: ""}).Init(context.Background()))
}

func TestCalDAVProviderCredential(t *testing.T) {
	p := NewCalDAVProvider(CalDAVConfig{ServerURL: "https://dav.example.com/"})
	assert.Nil(t, p.CurrentCredential())

	cred := &Credential{AccessToken: "pw", TokenType: "Basic"}
	p.SetCredential(cred)
	got := p.CurrentCredential()
	assert.Equal(t, cred, got)
	got.AccessToken = "changed"
	assert.Equal(t, "pw", p.CurrentCredential().AccessToken)

	p.SetCredential(nil)
	assert.Nil(t, p.CurrentCredential())
}

func TestMapCalDAVError(t *testing.T) {
	err := mapCalDAVError(assert.AnError)
	assert.NotErrorIs(t, err, ErrCredentialExpired)
	err = mapCalDAVError(errorString("HTTP 401: Unauthorized"))
	assert.ErrorIs(t, err, ErrCredentialExpired)
}

type errorString string

func (e errorString) Error() string { return string(e) }
