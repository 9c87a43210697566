package gcalstats

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ProviderDeps carries the interactive hooks and shared plumbing a provider
// may need. Zero values are fine for non-interactive use.
type ProviderDeps struct {
	CodePrompt     CodePrompt
	PasswordPrompt PasswordPrompt
	HTTPClient     *http.Client
	OnTokenRefresh func(*Credential)
	Logger         *zap.Logger
}

// NewProvider creates the calendar provider selected by config.Provider.
func NewProvider(config *Config, deps ProviderDeps) (CalendarProvider, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", config.Provider))

	switch config.Provider {
	case ProviderGoogle:
		opts := []GoogleOption{
			WithCodePrompt(deps.CodePrompt),
			WithTokenRefreshHook(deps.OnTokenRefresh),
			WithGoogleLogger(logger),
		}
		if deps.HTTPClient != nil {
			opts = append(opts, WithHTTPClient(deps.HTTPClient))
		}
		return NewGoogleCalendarProvider(NewOAuthConfig(config), opts...), nil

	case ProviderCalDAV:
		opts := []CalDAVOption{
			WithPasswordPrompt(deps.PasswordPrompt),
			WithCalDAVLogger(logger),
		}
		if deps.HTTPClient != nil {
			opts = append(opts, WithCalDAVHTTPClient(deps.HTTPClient))
		}
		return NewCalDAVProvider(config.CalDAV, opts...), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Provider)
	}
}

// NewQueryService builds an EventQueryService from the search settings in config.
func NewQueryService(config *Config, provider CalendarProvider, logger *zap.Logger) *EventQueryService {
	calendarID := config.CalendarID
	if calendarID == "" {
		calendarID = PrimaryCalendar
	}
	return NewEventQueryService(provider,
		WithCalendarID(calendarID),
		WithMaxResults(config.MaxResults),
		WithOrderBy(config.OrderBy),
		WithTimeout(config.QueryTimeout),
		WithRateLimit(config.SearchesPerSecond),
		WithQueryLogger(logger),
	)
}
