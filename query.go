package gcalstats

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// EventQueryService runs filtered event searches against a provider. When
// searches overlap, only the most recently submitted one delivers results.
type EventQueryService struct {
	provider   CalendarProvider
	calendarID string
	maxResults int
	orderBy    string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// QueryOption configures an EventQueryService.
type QueryOption func(*EventQueryService)

// WithCalendarID searches a calendar other than the primary one.
func WithCalendarID(id string) QueryOption {
	return func(s *EventQueryService) {
		if id != "" {
			s.calendarID = id
		}
	}
}

// WithMaxResults changes the per-search result cap.
func WithMaxResults(n int) QueryOption {
	return func(s *EventQueryService) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithOrderBy changes the provider ordering.
func WithOrderBy(orderBy string) QueryOption {
	return func(s *EventQueryService) {
		if orderBy != "" {
			s.orderBy = orderBy
		}
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) QueryOption {
	return func(s *EventQueryService) {
		s.timeout = d
	}
}

// WithRateLimit allows at most perSecond provider calls per second, with a
// burst of one. Zero or less disables limiting.
func WithRateLimit(perSecond float64) QueryOption {
	return func(s *EventQueryService) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			s.limiter = nil
		}
	}
}

// WithQueryLogger sets the logger.
func WithQueryLogger(logger *zap.Logger) QueryOption {
	return func(s *EventQueryService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewEventQueryService returns a service searching the primary calendar with
// recurring events expanded and deleted events hidden.
func NewEventQueryService(provider CalendarProvider, opts ...QueryOption) *EventQueryService {
	s := &EventQueryService{
		provider:   provider,
		calendarID: PrimaryCalendar,
		maxResults: DefaultMaxResults,
		orderBy:    DefaultOrderBy,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns the events matching query.
//
// A blank query performs no search and returns (nil, nil); a search that
// matched nothing returns an empty, non-nil slice. Submitting a new search
// cancels the one in flight, which then returns ErrSuperseded.
func (s *EventQueryService) Search(ctx context.Context, query string) ([]RawEvent, error) {
	ctx, seq, done := s.begin(ctx)
	defer done()

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			if !s.current(seq) {
				return nil, ErrSuperseded
			}
			return nil, &QueryError{Query: query, Err: err}
		}
	}

	s.logger.Debug("searching events",
		zap.String("query", query),
		zap.String("calendar_id", s.calendarID))

	events, err := s.provider.ListEvents(ctx, s.calendarID, ListQuery{
		Text:         query,
		MaxResults:   s.maxResults,
		OrderBy:      s.orderBy,
		SingleEvents: true,
		ShowDeleted:  false,
	})
	if !s.current(seq) {
		s.logger.Debug("discarding superseded search", zap.String("query", query))
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	if events == nil {
		events = []RawEvent{}
	}
	if len(events) > s.maxResults {
		events = events[:s.maxResults]
	}
	return events, nil
}

// begin registers a new search, cancelling the previous one.
func (s *EventQueryService) begin(parent context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.mu.Unlock()

	return ctx, seq, func() {
		s.mu.Lock()
		if s.seq == seq {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}
}

func (s *EventQueryService) current(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq == seq
}

// FilterByTitle keeps events whose title contains needle, ignoring case.
// Provider search also matches descriptions and locations; use this when only
// titles should count.
func FilterByTitle(events []RawEvent, needle string) []RawEvent {
	needle = strings.ToLower(needle)
	filtered := make([]RawEvent, 0, len(events))
	for _, e := range events {
		if strings.Contains(strings.ToLower(e.Title), needle) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
