package gcalstats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWithoutCredential(t *testing.T) {
	provider := &fakeProvider{}
	m := NewSessionManager(provider, &memoryStore{})

	assert.Equal(t, Uninitialized, m.State().Status)
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, SessionState{Status: SignedOut}, m.State())
	assert.False(t, m.IsSignedIn())
}

func TestInitializeRestoresStoredCredential(t *testing.T) {
	stored := &Credential{AccessToken: "stored"}
	provider := &fakeProvider{identity: &Identity{Name: "Ada", Email: "ada@example.com"}}
	m := NewSessionManager(provider, &memoryStore{cred: stored})

	require.NoError(t, m.Initialize(context.Background()))
	state := m.State()
	assert.Equal(t, SignedIn, state.Status)
	require.NotNil(t, state.Identity)
	assert.Equal(t, "Ada", state.Identity.Name)
	assert.Equal(t, stored, provider.CurrentCredential())
}

func TestInitializeUsesProviderSession(t *testing.T) {
	provider := &fakeProvider{cred: &Credential{AccessToken: "provider"}}
	m := NewSessionManager(provider, &memoryStore{loadErr: errors.New("disk gone")})

	require.NoError(t, m.Initialize(context.Background()))
	assert.True(t, m.IsSignedIn())
}

func TestInitializeIdentityFailure(t *testing.T) {
	provider := &fakeProvider{identityErr: errors.New("userinfo down")}
	m := NewSessionManager(provider, &memoryStore{cred: &Credential{AccessToken: "a"}})

	require.NoError(t, m.Initialize(context.Background()))
	state := m.State()
	assert.Equal(t, SignedIn, state.Status)
	assert.Nil(t, state.Identity)
}

func TestInitializeHandshakeFailure(t *testing.T) {
	provider := &fakeProvider{initErr: errors.New("no network")}
	m := NewSessionManager(provider, &memoryStore{})

	err := m.Initialize(context.Background())
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "init", aerr.Op)
	assert.Equal(t, Uninitialized, m.State().Status)

	provider.initErr = nil
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, SignedOut, m.State().Status)
}

func TestInitializeTwice(t *testing.T) {
	m := NewSessionManager(&fakeProvider{}, &memoryStore{})
	require.NoError(t, m.Initialize(context.Background()))
	assert.ErrorIs(t, m.Initialize(context.Background()), ErrInvalidTransition)
}

func TestSignInPersistsCredential(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	store := NewSQLiteTokenStore(db, "", nil)

	cred := &Credential{AccessToken: "fresh", RefreshToken: "r"}
	provider := &fakeProvider{authCred: cred, identity: &Identity{Name: "Ada"}}
	m := NewSessionManager(provider, store)
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.SignIn(ctx))

	assert.Equal(t, []bool{true}, provider.interactive)
	assert.Equal(t, SignedIn, m.State().Status)
	assert.Equal(t, "Ada", m.Identity().Name)

	saved, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "fresh", saved.AccessToken)

	restarted := NewSessionManager(&fakeProvider{}, store)
	require.NoError(t, restarted.Initialize(ctx))
	assert.True(t, restarted.IsSignedIn())
}

func TestSignInFailure(t *testing.T) {
	provider := &fakeProvider{authErr: errors.New("access_denied")}
	store := &memoryStore{}
	m := NewSessionManager(provider, store)
	require.NoError(t, m.Initialize(context.Background()))

	err := m.SignIn(context.Background())
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "authorize", aerr.Op)
	assert.Equal(t, SignedOut, m.State().Status)
	assert.Zero(t, store.saves)

	provider.authErr = nil
	err = m.SignIn(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestSignInSaveFailure(t *testing.T) {
	provider := &fakeProvider{authCred: &Credential{AccessToken: "a"}}
	m := NewSessionManager(provider, &memoryStore{saveErr: errors.New("read-only")})
	require.NoError(t, m.Initialize(context.Background()))

	err := m.SignIn(context.Background())
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "persist", aerr.Op)
	assert.Equal(t, SignedOut, m.State().Status)
	assert.Nil(t, provider.CurrentCredential())
}

func TestSignInSilentWhenProviderHoldsCredential(t *testing.T) {
	provider := &fakeProvider{authCred: &Credential{AccessToken: "renewed"}}
	m := NewSessionManager(provider, &memoryStore{})
	require.NoError(t, m.Initialize(context.Background()))

	provider.cred = &Credential{AccessToken: "old"}
	require.NoError(t, m.SignIn(context.Background()))
	assert.Equal(t, []bool{false}, provider.interactive)
	assert.Equal(t, "renewed", provider.CurrentCredential().AccessToken)
}

func TestSignInWhileSignedIn(t *testing.T) {
	m := NewSessionManager(&fakeProvider{}, &memoryStore{cred: &Credential{AccessToken: "a"}})
	require.NoError(t, m.Initialize(context.Background()))

	assert.ErrorIs(t, m.SignIn(context.Background()), ErrInvalidTransition)
	assert.True(t, m.IsSignedIn())
}

func TestSignOut(t *testing.T) {
	cred := &Credential{AccessToken: "a"}
	provider := &fakeProvider{revokeDone: make(chan struct{})}
	store := &memoryStore{cred: cred}
	m := NewSessionManager(provider, store)
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.SignOut(context.Background()))
	assert.Equal(t, SessionState{Status: SignedOut}, m.State())
	assert.Nil(t, provider.CurrentCredential())
	assert.Nil(t, store.cred)

	m.Close()
	require.Len(t, provider.revoked, 1)
	assert.Equal(t, "a", provider.revoked[0].AccessToken)
}

func TestSignOutRevokeFailureDoesNotBlock(t *testing.T) {
	provider := &fakeProvider{revokeErr: errors.New("revoke endpoint down")}
	m := NewSessionManager(provider, &memoryStore{cred: &Credential{AccessToken: "a"}},
		WithRevokeTimeout(time.Second))
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.SignOut(context.Background()))
	assert.Equal(t, SignedOut, m.State().Status)
	m.Close()
}

func TestSignOutRevokeOutlivesCallerContext(t *testing.T) {
	release := make(chan struct{})
	provider := &blockingRevokeProvider{fakeProvider: &fakeProvider{}, release: release}
	m := NewSessionManager(provider, &memoryStore{cred: &Credential{AccessToken: "a"}})
	require.NoError(t, m.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.SignOut(ctx))
	cancel()

	close(release)
	m.Close()
	assert.NoError(t, provider.ctxErr)
}

type blockingRevokeProvider struct {
	*fakeProvider
	release chan struct{}
	ctxErr  error
}

func (p *blockingRevokeProvider) Revoke(ctx context.Context, cred *Credential) error {
	<-p.release
	p.ctxErr = ctx.Err()
	return nil
}

func TestSignOutClearFailure(t *testing.T) {
	clearErr := &PersistenceError{Op: "clear", Err: errors.New("locked")}
	m := NewSessionManager(&fakeProvider{}, &memoryStore{cred: &Credential{AccessToken: "a"}, clearErr: clearErr})
	require.NoError(t, m.Initialize(context.Background()))

	err := m.SignOut(context.Background())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, SignedOut, m.State().Status)
	m.Close()
}

func TestSignOutWhileSignedOut(t *testing.T) {
	m := NewSessionManager(&fakeProvider{}, &memoryStore{})
	assert.ErrorIs(t, m.SignOut(context.Background()), ErrInvalidTransition)
	require.NoError(t, m.Initialize(context.Background()))
	assert.ErrorIs(t, m.SignOut(context.Background()), ErrInvalidTransition)
}

func TestOverlappingOperations(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	provider := &blockingAuthProvider{fakeProvider: &fakeProvider{authCred: &Credential{AccessToken: "a"}}, entered: entered, release: release}
	m := NewSessionManager(provider, &memoryStore{})
	require.NoError(t, m.Initialize(context.Background()))

	errc := make(chan error, 1)
	go func() { errc <- m.SignIn(context.Background()) }()
	<-entered

	assert.ErrorIs(t, m.SignIn(context.Background()), ErrOperationInProgress)
	assert.ErrorIs(t, m.SignOut(context.Background()), ErrOperationInProgress)

	close(release)
	require.NoError(t, <-errc)
	assert.True(t, m.IsSignedIn())
}

type blockingAuthProvider struct {
	*fakeProvider
	entered chan struct{}
	release chan struct{}
}

func (p *blockingAuthProvider) Authorize(ctx context.Context, interactive bool) (*Credential, error) {
	close(p.entered)
	<-p.release
	return p.fakeProvider.Authorize(ctx, interactive)
}

func TestStateReturnsCopy(t *testing.T) {
	m := NewSessionManager(&fakeProvider{identity: &Identity{Name: "Ada"}}, &memoryStore{cred: &Credential{AccessToken: "a"}})
	require.NoError(t, m.Initialize(context.Background()))

	m.State().Identity.Name = "changed"
	assert.Equal(t, "Ada", m.Identity().Name)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "signed in", SignedIn.String())
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "status(9)", Status(9).String())
}
