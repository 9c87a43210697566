package gcalstats

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
)

// PasswordPrompt asks the user for the CalDAV password.
type PasswordPrompt func(ctx context.Context, username, serverURL string) (string, error)

// CalDAVProvider reads events from a CalDAV server with basic-auth
// credentials. Recurring events are expanded inside a window around now.
type CalDAVProvider struct {
	serverURL    string
	username     string
	password     string
	prompt       PasswordPrompt
	httpClient   webdav.HTTPClient
	expandPast   time.Duration
	expandFuture time.Duration
	now          func() time.Time
	logger       *zap.Logger

	mu     sync.Mutex
	cred   *Credential
	client *caldav.Client
}

// CalDAVOption configures a CalDAVProvider.
type CalDAVOption func(*CalDAVProvider)

// WithPasswordPrompt is used by interactive sign-in when no password is configured.
func WithPasswordPrompt(prompt PasswordPrompt) CalDAVOption {
	return func(c *CalDAVProvider) { c.prompt = prompt }
}

// WithCalDAVHTTPClient sets the base client every request goes through.
func WithCalDAVHTTPClient(client webdav.HTTPClient) CalDAVOption {
	return func(c *CalDAVProvider) { c.httpClient = client }
}

// WithExpandWindow bounds recurrence expansion to [now-past, now+future].
func WithExpandWindow(past, future time.Duration) CalDAVOption {
	return func(c *CalDAVProvider) {
		c.expandPast = past
		c.expandFuture = future
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) CalDAVOption {
	return func(c *CalDAVProvider) { c.now = now }
}

// WithCalDAVLogger sets the logger.
func WithCalDAVLogger(logger *zap.Logger) CalDAVOption {
	return func(c *CalDAVProvider) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCalDAVProvider(cfg CalDAVConfig, opts ...CalDAVOption) *CalDAVProvider {
	c := &CalDAVProvider{
		serverURL:    cfg.ServerURL,
		username:     cfg.Username,
		password:     cfg.Password,
		httpClient:   http.DefaultClient,
		expandPast:   cfg.ExpandPast,
		expandFuture: cfg.ExpandFuture,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CalDAVProvider) Init(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid CalDAV server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid CalDAV server URL: %q", c.serverURL)
	}
	return nil
}

func (c *CalDAVProvider) CurrentCredential() *Credential {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred == nil {
		return nil
	}
	cred := *c.cred
	return &cred
}

func (c *CalDAVProvider) SetCredential(cred *Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = nil
	if cred == nil {
		c.cred = nil
		return
	}
	copied := *cred
	c.cred = &copied
}

// Authorize checks the password against the server. The configured password
// is used when present; otherwise interactive sign-in prompts for it and
// silent sign-in reuses the current credential.
func (c *CalDAVProvider) Authorize(ctx context.Context, interactive bool) (*Credential, error) {
	password := c.password
	if password == "" {
		if cur := c.CurrentCredential(); cur != nil && !interactive {
			password = cur.AccessToken
		} else if interactive && c.prompt != nil {
			var err error
			password, err = c.prompt(ctx, c.username, c.serverURL)
			if err != nil {
				return nil, fmt.Errorf("unable to read password: %w", err)
			}
		}
	}
	if password == "" {
		return nil, ErrNotAuthorized
	}

	client, err := c.newClient(password)
	if err != nil {
		return nil, err
	}
	if _, err := client.FindCurrentUserPrincipal(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to CalDAV server: %w", mapCalDAVError(err))
	}
	return &Credential{AccessToken: password, TokenType: "Basic"}, nil
}

// Revoke is a no-op: basic-auth passwords cannot be revoked remotely.
func (c *CalDAVProvider) Revoke(ctx context.Context, cred *Credential) error {
	c.logger.Debug("caldav credentials have no revocation endpoint")
	return nil
}

func (c *CalDAVProvider) GetIdentity(ctx context.Context) (*Identity, error) {
	client, err := c.authedClient()
	if err != nil {
		return nil, err
	}
	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal: %w", mapCalDAVError(err))
	}
	identity := &Identity{Name: c.username}
	if strings.Contains(c.username, "@") {
		identity.Email = c.username
	}
	c.logger.Debug("caldav principal", zap.String("principal", principal))
	return identity, nil
}

func (c *CalDAVProvider) ListEvents(ctx context.Context, calendarID string, q ListQuery) ([]RawEvent, error) {
	client, err := c.authedClient()
	if err != nil {
		return nil, err
	}
	calPath, err := c.calendarPath(ctx, client, calendarID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	from, to := now.Add(-c.expandPast), now.Add(c.expandFuture)
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: from,
				End:   to,
			}},
		},
	}

	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", mapCalDAVError(err))
	}
	return eventsFromObjects(objects, q, c.serverURL, from, to), nil
}

// calendarPath resolves PrimaryCalendar (or an empty ID) to the first calendar
// in the user's home set.
func (c *CalDAVProvider) calendarPath(ctx context.Context, client *caldav.Client, calendarID string) (string, error) {
	if calendarID != "" && calendarID != PrimaryCalendar {
		calURL, err := url.Parse(calendarID)
		if err != nil {
			return "", fmt.Errorf("invalid calendar URL: %w", err)
		}
		return calURL.Path, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal: %w", mapCalDAVError(err))
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", mapCalDAVError(err))
	}
	calendars, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", mapCalDAVError(err))
	}
	if len(calendars) == 0 {
		return "", fmt.Errorf("no calendars found in %s", homeSet)
	}
	return calendars[0].Path, nil
}

func (c *CalDAVProvider) authedClient() (*caldav.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred == nil {
		return nil, ErrNotAuthorized
	}
	if c.client == nil {
		client, err := c.newClient(c.cred.AccessToken)
		if err != nil {
			return nil, err
		}
		c.client = client
	}
	return c.client, nil
}

func (c *CalDAVProvider) newClient(password string) (*caldav.Client, error) {
	httpClient := webdav.HTTPClientWithBasicAuth(c.httpClient, c.username, password)
	client, err := caldav.NewClient(httpClient, c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create CalDAV client: %w", err)
	}
	return client, nil
}

func mapCalDAVError(err error) error {
	if strings.Contains(err.Error(), "401") {
		return fmt.Errorf("%w: %w", ErrCredentialExpired, err)
	}
	return err
}

// eventsFromObjects turns query results into RawEvents: cancelled events are
// dropped unless q.ShowDeleted, q.Text is matched against summary, description
// and location, recurring events are expanded within [from, to) when
// q.SingleEvents, and the result is ordered by last modification and capped.
func eventsFromObjects(objects []caldav.CalendarObject, q ListQuery, serverURL string, from, to time.Time) []RawEvent {
	needle := strings.ToLower(q.Text)
	result := []RawEvent{}

	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		link := objectLink(serverURL, obj.Path)

		overrides := make(map[int64]ical.Event)
		var masters []ical.Event
		for _, ev := range obj.Data.Events() {
			if ev.Props.Get(ical.PropRecurrenceID) != nil {
				if rid, err := ev.Props.DateTime(ical.PropRecurrenceID, time.UTC); err == nil {
					overrides[rid.Unix()] = ev
				}
				continue
			}
			masters = append(masters, ev)
		}

		for _, ev := range masters {
			base, ok := rawEventFromICal(ev, link)
			if !ok {
				continue
			}

			set, err := ev.RecurrenceSet(time.UTC)
			if err != nil || set == nil || !q.SingleEvents {
				if keepEvent(ev, base, needle, q.ShowDeleted) {
					result = append(result, base)
				}
				continue
			}

			span := base.End.Time.Sub(base.Start.Time)
			for _, start := range occurrencesBetween(set, from, to, q.MaxResults) {
				inst := base
				inst.ID = instanceID(base.ID, start, base.Start.AllDay)
				inst.Start = EventTime{Time: start, AllDay: base.Start.AllDay}
				inst.End = EventTime{Time: start.Add(span), AllDay: base.End.AllDay}
				src := ev
				if override, ok := overrides[start.Unix()]; ok {
					if o, ok := rawEventFromICal(override, link); ok {
						o.ID = inst.ID
						inst = o
						src = override
					}
				}
				if keepEvent(src, inst, needle, q.ShowDeleted) {
					result = append(result, inst)
				}
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Updated.Before(result[j].Updated)
	})
	if q.MaxResults > 0 && len(result) > q.MaxResults {
		result = result[:q.MaxResults]
	}
	return result
}

func keepEvent(ev ical.Event, raw RawEvent, needle string, showDeleted bool) bool {
	if !showDeleted && strings.EqualFold(getTextProp(ev.Props, ical.PropStatus), "CANCELLED") {
		return false
	}
	if needle == "" {
		return true
	}
	haystack := strings.ToLower(raw.Title + "\n" + raw.Description + "\n" + raw.Location)
	return strings.Contains(haystack, needle)
}

func rawEventFromICal(ev ical.Event, link string) (RawEvent, bool) {
	startProp := ev.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return RawEvent{}, false
	}
	allDay := startProp.ValueType() == ical.ValueDate

	start, err := ev.Props.DateTime(ical.PropDateTimeStart, time.UTC)
	if err != nil {
		return RawEvent{}, false
	}

	// DTEND, else DTSTART+DURATION, else one day for dates and zero for instants.
	end, err := ev.DateTimeEnd(time.UTC)
	if err != nil {
		return RawEvent{}, false
	}
	if end.IsZero() {
		end = start
		if allDay {
			end = start.AddDate(0, 0, 1)
		}
	}
	updated, _ := ev.Props.DateTime(ical.PropLastModified, time.UTC)

	return RawEvent{
		ID:          getTextProp(ev.Props, ical.PropUID),
		Title:       getTextProp(ev.Props, ical.PropSummary),
		Start:       EventTime{Time: start, AllDay: allDay},
		End:         EventTime{Time: end, AllDay: allDay},
		Description: getTextProp(ev.Props, ical.PropDescription),
		Location:    getTextProp(ev.Props, ical.PropLocation),
		Link:        link,
		Updated:     updated,
	}, true
}

// occurrencesBetween lists recurrence starts in [from, to), at most limit of them.
func occurrencesBetween(set *rrule.Set, from, to time.Time, limit int) []time.Time {
	starts := set.Between(from, to, true)
	if len(starts) > 0 && !starts[len(starts)-1].Before(to) {
		starts = starts[:len(starts)-1]
	}
	if limit > 0 && len(starts) > limit {
		starts = starts[:limit]
	}
	return starts
}

func instanceID(uid string, start time.Time, allDay bool) string {
	if allDay {
		return uid + "_" + start.UTC().Format("20060102")
	}
	return uid + "_" + start.UTC().Format("20060102T150405Z")
}

func objectLink(serverURL, objectPath string) string {
	u, err := url.Parse(serverURL)
	if err != nil || objectPath == "" {
		return serverURL
	}
	if strings.HasPrefix(objectPath, "/") {
		u.Path = objectPath
	} else {
		u.Path = path.Join(u.Path, objectPath)
	}
	return u.String()
}

func getTextProp(props ical.Props, name string) string {
	text, err := props.Text(name)
	if err != nil {
		prop := props.Get(name)
		if prop == nil {
			return ""
		}
		return prop.Value
	}
	return text
}
