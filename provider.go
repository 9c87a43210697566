package gcalstats

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

const (
	// PrimaryCalendar addresses the signed-in user's own calendar.
	PrimaryCalendar = "primary"

	// DefaultMaxResults caps a single search so responses stay bounded.
	DefaultMaxResults = 2000

	// DefaultOrderBy sorts results by last modification time.
	DefaultOrderBy = "updated"
)

// CalendarProvider is the external calendar service: authorization, identity
// and event listing. Implementations are constructed explicitly and injected.
type CalendarProvider interface {
	// Init performs the provider handshake. It must succeed before any other call.
	Init(ctx context.Context) error
	// CurrentCredential returns the credential the provider is using, if any.
	CurrentCredential() *Credential
	// SetCredential replaces the provider's credential. nil drops it.
	SetCredential(cred *Credential)
	// Authorize obtains a new credential. interactive requests explicit user consent.
	Authorize(ctx context.Context, interactive bool) (*Credential, error)
	// Revoke invalidates cred with the provider.
	Revoke(ctx context.Context, cred *Credential) error
	// GetIdentity returns the profile of the user owning the current credential.
	GetIdentity(ctx context.Context) (*Identity, error)
	// ListEvents runs a filtered search on calendarID.
	ListEvents(ctx context.Context, calendarID string, q ListQuery) ([]RawEvent, error)
}

// ListQuery describes a single provider search.
type ListQuery struct {
	Text         string
	MaxResults   int
	OrderBy      string
	SingleEvents bool
	ShowDeleted  bool
}

// Credential is an opaque bearer token with optional expiry and refresh material.
type Credential struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Expiry       time.Time
}

// CredentialFromToken converts an oauth2 token. nil stays nil.
func CredentialFromToken(tok *oauth2.Token) *Credential {
	if tok == nil {
		return nil
	}
	return &Credential{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}

// Token converts the credential back into an oauth2 token.
func (c *Credential) Token() *oauth2.Token {
	if c == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// Identity is the display profile of the signed-in user.
type Identity struct {
	Name      string
	Email     string
	AvatarURL string
}

// EventTime is either an instant or, when AllDay is set, a whole calendar date
// stored as midnight UTC.
type EventTime struct {
	Time   time.Time
	AllDay bool
}

// Timed returns an EventTime for an instant.
func Timed(t time.Time) EventTime {
	return EventTime{Time: t}
}

// Day returns an all-day EventTime for the given date.
func Day(year int, month time.Month, day int) EventTime {
	return EventTime{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), AllDay: true}
}

// RawEvent is an event as the provider reports it.
type RawEvent struct {
	ID          string
	Title       string
	Start       EventTime
	End         EventTime
	Description string
	Location    string
	Link        string
	Updated     time.Time
}
