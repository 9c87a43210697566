package gcalstats

import (
	"context"
	"sync"
)

// fakeProvider is a scriptable CalendarProvider.
type fakeProvider struct {
	mu sync.Mutex

	initErr     error
	authCred    *Credential
	authErr     error
	revokeErr   error
	identity    *Identity
	identityErr error
	events      []RawEvent
	listErr     error

	// listHook runs inside ListEvents before it returns.
	listHook func(ctx context.Context, q ListQuery) ([]RawEvent, error)

	cred         *Credential
	interactive  []bool
	revoked      []*Credential
	revokeDone   chan struct{}
	listCalls    int
	lastQuery    ListQuery
	lastCalendar string
}

func (f *fakeProvider) Init(ctx context.Context) error { return f.initErr }

func (f *fakeProvider) CurrentCredential() *Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred
}

func (f *fakeProvider) SetCredential(cred *Credential) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred = cred
}

func (f *fakeProvider) Authorize(ctx context.Context, interactive bool) (*Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interactive = append(f.interactive, interactive)
	return f.authCred, f.authErr
}

func (f *fakeProvider) Revoke(ctx context.Context, cred *Credential) error {
	f.mu.Lock()
	f.revoked = append(f.revoked, cred)
	done := f.revokeDone
	f.mu.Unlock()
	if done != nil {
		close(done)
	}
	return f.revokeErr
}

func (f *fakeProvider) GetIdentity(ctx context.Context) (*Identity, error) {
	return f.identity, f.identityErr
}

func (f *fakeProvider) ListEvents(ctx context.Context, calendarID string, q ListQuery) ([]RawEvent, error) {
	f.mu.Lock()
	f.listCalls++
	f.lastQuery = q
	f.lastCalendar = calendarID
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, q)
	}
	return f.events, f.listErr
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// memoryStore is an in-process TokenStore with injectable failures.
type memoryStore struct {
	mu       sync.Mutex
	cred     *Credential
	saveErr  error
	loadErr  error
	clearErr error
	saves    int
	clears   int
}

func (m *memoryStore) Save(ctx context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cred = cred
	return nil
}

func (m *memoryStore) Load(ctx context.Context) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred, m.loadErr
}

func (m *memoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cred = nil
	return nil
}
