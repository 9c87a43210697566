package gcalstats

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultTokenSlot is the tokens row used when no slot name is configured.
const DefaultTokenSlot = "default"

// TokenStore persists a single credential across process restarts.
type TokenStore interface {
	// Save overwrites any previously stored credential.
	Save(ctx context.Context, cred *Credential) error
	// Load returns the stored credential, or nil when the slot is empty.
	// Unreadable data is cleared and reported as absent.
	Load(ctx context.Context) (*Credential, error)
	// Clear empties the slot.
	Clear(ctx context.Context) error
}

// SQLiteTokenStore keeps the credential as a JSON-encoded oauth2 token in one
// row of the tokens table.
type SQLiteTokenStore struct {
	db     *sql.DB
	slot   string
	logger *zap.Logger
}

// NewSQLiteTokenStore returns a store bound to the named slot. An empty slot
// uses DefaultTokenSlot. The database must already be migrated.
func NewSQLiteTokenStore(db *sql.DB, slot string, logger *zap.Logger) *SQLiteTokenStore {
	if slot == "" {
		slot = DefaultTokenSlot
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteTokenStore{db: db, slot: slot, logger: logger}
}

func (s *SQLiteTokenStore) Save(ctx context.Context, cred *Credential) error {
	if cred == nil {
		return &PersistenceError{Op: "save", Err: errors.New("nil credential")}
	}
	tokenJSON, err := json.Marshal(cred.Token())
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	_, err = s.db.ExecContext(ctx, "INSERT OR REPLACE INTO tokens (account_name, token) VALUES (?, ?)", s.slot, string(tokenJSON))
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (s *SQLiteTokenStore) Load(ctx context.Context) (*Credential, error) {
	var tokenJSON sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT token FROM tokens WHERE account_name = ?", s.slot).Scan(&tokenJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(tokenJSON.String), &token); err != nil || token.AccessToken == "" {
		if err == nil {
			err = errors.New("stored token has no access token")
		}
		s.logger.Warn("discarding unreadable stored credential",
			zap.String("slot", s.slot),
			zap.Error(&PersistenceError{Op: "load", Err: err}))
		if clearErr := s.Clear(ctx); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}
	return CredentialFromToken(&token), nil
}

func (s *SQLiteTokenStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE account_name = ?", s.slot)
	if err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}
	return nil
}
