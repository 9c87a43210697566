package gcalstats

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleRevokeURL is the OAuth token revocation endpoint.
const GoogleRevokeURL = "https://oauth2.googleapis.com/revoke"

// Google returns at most 2500 events per page.
const googleMaxPageSize = 2500

// GoogleCalendarProvider talks to Google Calendar with an installed-app OAuth
// credential.
type GoogleCalendarProvider struct {
	oauth      *oauth2.Config
	prompt     CodePrompt
	httpClient *http.Client
	revokeURL  string
	clientOpts []option.ClientOption
	onRefresh  func(*Credential)
	logger     *zap.Logger

	mu   sync.Mutex
	cred *Credential
}

// GoogleOption configures a GoogleCalendarProvider.
type GoogleOption func(*GoogleCalendarProvider)

// WithHTTPClient sets the base client every request goes through.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(g *GoogleCalendarProvider) { g.httpClient = client }
}

// WithCodePrompt sets how the interactive flow collects the authorization code.
func WithCodePrompt(prompt CodePrompt) GoogleOption {
	return func(g *GoogleCalendarProvider) { g.prompt = prompt }
}

// WithRevokeURL overrides GoogleRevokeURL.
func WithRevokeURL(u string) GoogleOption {
	return func(g *GoogleCalendarProvider) { g.revokeURL = u }
}

// WithClientOptions passes extra options to the generated API clients.
func WithClientOptions(opts ...option.ClientOption) GoogleOption {
	return func(g *GoogleCalendarProvider) { g.clientOpts = append(g.clientOpts, opts...) }
}

// WithTokenRefreshHook is called with the new credential whenever the access
// token is refreshed during an API call.
func WithTokenRefreshHook(fn func(*Credential)) GoogleOption {
	return func(g *GoogleCalendarProvider) { g.onRefresh = fn }
}

// WithGoogleLogger sets the logger.
func WithGoogleLogger(logger *zap.Logger) GoogleOption {
	return func(g *GoogleCalendarProvider) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGoogleCalendarProvider(oauthConfig *oauth2.Config, opts ...GoogleOption) *GoogleCalendarProvider {
	g := &GoogleCalendarProvider{
		oauth:     oauthConfig,
		revokeURL: GoogleRevokeURL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GoogleCalendarProvider) Init(ctx context.Context) error {
	if g.oauth == nil || g.oauth.ClientID == "" {
		return fmt.Errorf("google provider: missing OAuth client configuration")
	}
	return nil
}

func (g *GoogleCalendarProvider) CurrentCredential() *Credential {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cred == nil {
		return nil
	}
	c := *g.cred
	return &c
}

func (g *GoogleCalendarProvider) SetCredential(cred *Credential) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cred == nil {
		g.cred = nil
		return
	}
	c := *cred
	g.cred = &c
}

// Authorize runs the consent flow when interactive, otherwise renews the
// current credential through its refresh token.
func (g *GoogleCalendarProvider) Authorize(ctx context.Context, interactive bool) (*Credential, error) {
	ctx = g.clientContext(ctx)
	if !interactive {
		cur := g.CurrentCredential()
		if cur == nil {
			return nil, ErrNotAuthorized
		}
		tok, err := g.oauth.TokenSource(ctx, cur.Token()).Token()
		if err != nil {
			return nil, fmt.Errorf("failed to renew token: %w", mapGoogleError(err))
		}
		return CredentialFromToken(tok), nil
	}

	if g.prompt == nil {
		return nil, fmt.Errorf("interactive authorization needs a code prompt")
	}
	authURL := g.oauth.AuthCodeURL(uuid.NewString(), oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
	code, err := g.prompt(ctx, authURL)
	if err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return CredentialFromToken(tok), nil
}

func (g *GoogleCalendarProvider) Revoke(ctx context.Context, cred *Credential) error {
	if cred == nil {
		return nil
	}
	token := cred.RefreshToken
	if token == "" {
		token = cred.AccessToken
	}
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := g.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token: %s", resp.Status)
	}
	return nil
}

func (g *GoogleCalendarProvider) GetIdentity(ctx context.Context) (*Identity, error) {
	client, err := g.authedClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, g.clientOpts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", mapGoogleError(err))
	}
	return &Identity{
		Name:      info.Name,
		Email:     info.Email,
		AvatarURL: info.Picture,
	}, nil
}

func (g *GoogleCalendarProvider) ListEvents(ctx context.Context, calendarID string, q ListQuery) ([]RawEvent, error) {
	client, err := g.authedClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, g.clientOpts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	limit := q.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	call := svc.Events.List(calendarID).
		Q(q.Text).
		SingleEvents(q.SingleEvents).
		ShowDeleted(q.ShowDeleted).
		Context(ctx)
	if q.OrderBy != "" {
		call = call.OrderBy(q.OrderBy)
	}

	result := []RawEvent{}
	pageToken := ""
	for len(result) < limit {
		call = call.MaxResults(int64(min(limit-len(result), googleMaxPageSize)))
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		events, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", mapGoogleError(err))
		}

		for _, item := range events.Items {
			if len(result) == limit {
				break
			}
			ev, err := rawEventFromGoogle(item)
			if err != nil {
				return nil, err
			}
			result = append(result, ev)
		}

		pageToken = events.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return result, nil
}

func (g *GoogleCalendarProvider) clientContext(ctx context.Context) context.Context {
	if g.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}
	return ctx
}

// authedClient returns an HTTP client that signs requests with the current
// credential and refreshes it when it expires.
func (g *GoogleCalendarProvider) authedClient(ctx context.Context) (*http.Client, error) {
	cred := g.CurrentCredential()
	if cred == nil {
		return nil, ErrNotAuthorized
	}
	ctx = g.clientContext(ctx)
	ts := &refreshNotifier{
		base:     g.oauth.TokenSource(ctx, cred.Token()),
		last:     cred.AccessToken,
		provider: g,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(cred.Token(), ts)), nil
}

// refreshNotifier records refreshed tokens on the provider.
type refreshNotifier struct {
	base     oauth2.TokenSource
	provider *GoogleCalendarProvider

	mu   sync.Mutex
	last string
}

func (r *refreshNotifier) Token() (*oauth2.Token, error) {
	tok, err := r.base.Token()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	changed := tok.AccessToken != r.last
	r.last = tok.AccessToken
	r.mu.Unlock()

	if changed {
		cred := CredentialFromToken(tok)
		r.provider.SetCredential(cred)
		r.provider.logger.Debug("access token refreshed")
		if r.provider.onRefresh != nil {
			r.provider.onRefresh(cred)
		}
	}
	return tok, nil
}

// mapGoogleError marks rejected or unrefreshable credentials with ErrCredentialExpired.
func mapGoogleError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrCredentialExpired, err)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %w", ErrCredentialExpired, err)
	}
	return err
}

func rawEventFromGoogle(item *calendar.Event) (RawEvent, error) {
	start, err := parseEventDateTime(item.Start)
	if err != nil {
		return RawEvent{}, fmt.Errorf("malformed start of event %s: %w", item.Id, err)
	}
	end, err := parseEventDateTime(item.End)
	if err != nil {
		return RawEvent{}, fmt.Errorf("malformed end of event %s: %w", item.Id, err)
	}
	updated, _ := time.Parse(time.RFC3339, item.Updated)

	return RawEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Start:       start,
		End:         end,
		Description: item.Description,
		Location:    item.Location,
		Link:        item.HtmlLink,
		Updated:     updated,
	}, nil
}

func parseEventDateTime(edt *calendar.EventDateTime) (EventTime, error) {
	if edt == nil {
		return EventTime{}, fmt.Errorf("missing time")
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return EventTime{}, err
		}
		return Timed(t), nil
	}
	if edt.Date != "" {
		t, err := time.Parse(time.DateOnly, edt.Date)
		if err != nil {
			return EventTime{}, err
		}
		return EventTime{Time: t, AllDay: true}, nil
	}
	return EventTime{}, fmt.Errorf("neither dateTime nor date set")
}
