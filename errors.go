package gcalstats

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a session operation is called from a
	// state that does not allow it (e.g. SignIn while already signed in).
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrOperationInProgress is returned when Initialize, SignIn or SignOut is
	// called while another one of them is still running.
	ErrOperationInProgress = errors.New("session operation already in progress")

	// ErrSuperseded is returned by Search when a newer search was submitted
	// before this one resolved. The result has been discarded.
	ErrSuperseded = errors.New("search superseded by a newer query")

	// ErrCredentialExpired is wrapped by providers when the provider rejected
	// the credential as expired or revoked.
	ErrCredentialExpired = errors.New("credential expired or revoked")

	// ErrNotAuthorized is returned by providers asked to act without a credential.
	ErrNotAuthorized = errors.New("no credential available")
)

// AuthError reports a failed authorization step: the interactive flow was
// denied, the token exchange failed, or the provider handshake failed.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// QueryError reports a failed event search, carrying the proximate cause.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// NeedsReauth reports whether the failure means the user has to sign in again.
func (e *QueryError) NeedsReauth() bool {
	return errors.Is(e.Err, ErrCredentialExpired) || errors.Is(e.Err, ErrNotAuthorized)
}

// PersistenceError reports a token store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("token store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
