package gcalstats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the authentication state of a session.
type Status int

const (
	Uninitialized Status = iota
	Initializing
	SignedOut
	SignedIn
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case SignedOut:
		return "signed out"
	case SignedIn:
		return "signed in"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// SessionState is a snapshot of the session. Identity is nil unless Status is
// SignedIn; it may also be nil while signed in if the profile could not be fetched.
type SessionState struct {
	Status   Status
	Identity *Identity
}

const defaultRevokeTimeout = 10 * time.Second

// SessionManager owns the authentication state machine. State only changes
// through Initialize, SignIn and SignOut, and those calls must not overlap.
type SessionManager struct {
	provider      CalendarProvider
	store         TokenStore
	logger        *zap.Logger
	revokeTimeout time.Duration

	mu       sync.Mutex
	state    SessionState
	inFlight bool

	revocations sync.WaitGroup
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithSessionLogger sets the logger.
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRevokeTimeout bounds the background revocation call.
func WithRevokeTimeout(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.revokeTimeout = d
		}
	}
}

// NewSessionManager returns an uninitialized session.
func NewSessionManager(provider CalendarProvider, store TokenStore, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		provider:      provider,
		store:         store,
		logger:        zap.NewNop(),
		revokeTimeout: defaultRevokeTimeout,
		state:         SessionState{Status: Uninitialized},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a copy of the current state.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.state
	if state.Identity != nil {
		id := *state.Identity
		state.Identity = &id
	}
	return state
}

// Identity returns the signed-in user's profile, or nil.
func (m *SessionManager) Identity() *Identity {
	return m.State().Identity
}

// IsSignedIn reports whether the session holds a credential.
func (m *SessionManager) IsSignedIn() bool {
	return m.State().Status == SignedIn
}

// acquire marks an operation as running if the session is in one of the
// allowed states.
func (m *SessionManager) acquire(allowed ...Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return ErrOperationInProgress
	}
	for _, s := range allowed {
		if m.state.Status == s {
			m.inFlight = true
			return nil
		}
	}
	return fmt.Errorf("%w: session is %s", ErrInvalidTransition, m.state.Status)
}

func (m *SessionManager) release() {
	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
}

func (m *SessionManager) transition(status Status, identity *Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status != SignedIn {
		identity = nil
	}
	m.state = SessionState{Status: status, Identity: identity}
}

// Initialize performs the provider handshake and recovers a previous session,
// first from the token store and then from the provider's own session.
func (m *SessionManager) Initialize(ctx context.Context) error {
	if err := m.acquire(Uninitialized); err != nil {
		return err
	}
	defer m.release()

	m.transition(Initializing, nil)
	if err := m.provider.Init(ctx); err != nil {
		m.transition(Uninitialized, nil)
		return &AuthError{Op: "init", Err: err}
	}

	cred, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("failed to load stored credential", zap.Error(err))
	}
	if cred != nil {
		m.logger.Debug("restored credential from token store")
		m.provider.SetCredential(cred)
	} else {
		cred = m.provider.CurrentCredential()
		if cred != nil {
			m.logger.Debug("using provider session")
		}
	}

	if cred == nil {
		m.transition(SignedOut, nil)
		return nil
	}

	m.transition(SignedIn, nil)
	m.loadIdentity(ctx)
	return nil
}

// SignIn requests a new credential from the provider. Consent is interactive
// unless the provider already holds a credential that can be renewed silently.
func (m *SessionManager) SignIn(ctx context.Context) error {
	if err := m.acquire(SignedOut); err != nil {
		return err
	}
	defer m.release()

	interactive := m.provider.CurrentCredential() == nil
	cred, err := m.provider.Authorize(ctx, interactive)
	if err != nil {
		return &AuthError{Op: "authorize", Err: err}
	}
	if cred == nil {
		return &AuthError{Op: "authorize", Err: ErrNotAuthorized}
	}

	if err := m.store.Save(ctx, cred); err != nil {
		return &AuthError{Op: "persist", Err: err}
	}
	m.provider.SetCredential(cred)

	m.transition(SignedIn, nil)
	m.loadIdentity(ctx)
	return nil
}

// SignOut revokes the credential in the background, clears the token store and
// returns to SignedOut. Revocation failures never block the transition.
func (m *SessionManager) SignOut(ctx context.Context) error {
	if err := m.acquire(SignedIn); err != nil {
		return err
	}
	defer m.release()

	if cred := m.provider.CurrentCredential(); cred != nil {
		m.revokeAsync(ctx, cred)
	}
	m.provider.SetCredential(nil)
	clearErr := m.store.Clear(ctx)
	m.transition(SignedOut, nil)

	if clearErr != nil {
		m.logger.Error("failed to clear stored credential", zap.Error(clearErr))
		return clearErr
	}
	return nil
}

// Close waits for background revocations to finish.
func (m *SessionManager) Close() {
	m.revocations.Wait()
}

func (m *SessionManager) revokeAsync(ctx context.Context, cred *Credential) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.revokeTimeout)
	m.revocations.Add(1)
	go func() {
		defer m.revocations.Done()
		defer cancel()
		if err := m.provider.Revoke(ctx, cred); err != nil {
			m.logger.Warn("failed to revoke credential", zap.Error(err))
		}
	}()
}

// loadIdentity fetches the profile for a fresh SignedIn state. A failure is
// logged and leaves the session signed in without an identity.
func (m *SessionManager) loadIdentity(ctx context.Context) {
	identity, err := m.provider.GetIdentity(ctx)
	if err != nil {
		m.logger.Error("failed to fetch user identity", zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status == SignedIn {
		m.state.Identity = identity
	}
}
