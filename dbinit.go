package gcalstats

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaName = "gcalstats"

// OpenDB opens the sqlite database holding the credential slot and brings its
// schema up to date.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the version table on first use and applies pending schema steps.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS db_version (
		name TEXT PRIMARY KEY,
		version INTEGER
	)`)
	if err != nil {
		return fmt.Errorf("failed to create db_version table: %w", err)
	}

	var dbVersion int
	err = db.QueryRowContext(ctx, "SELECT version FROM db_version WHERE name = ?", schemaName).Scan(&dbVersion)
	if err == sql.ErrNoRows {
		_, err = db.ExecContext(ctx, "INSERT INTO db_version (name, version) VALUES (?, 0)", schemaName)
		if err != nil {
			return fmt.Errorf("failed to initialize db_version table: %w", err)
		}
		dbVersion = 0
	} else if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if dbVersion == 0 {
		_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tokens (
		account_name TEXT PRIMARY KEY,
		token TEXT)`)
		if err != nil {
			return fmt.Errorf("failed to create tokens table: %w", err)
		}

		_, err = db.ExecContext(ctx, "UPDATE db_version SET version = 1 WHERE name = ?", schemaName)
		if err != nil {
			return fmt.Errorf("failed to update db_version table: %w", err)
		}
	}
	return nil
}
