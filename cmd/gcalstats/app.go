package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bobuk/gcalstats"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// app is everything a command needs once the session is initialized.
type app struct {
	config  *gcalstats.Config
	logger  *zap.Logger
	db      *sql.DB
	store   gcalstats.TokenStore
	session *gcalstats.SessionManager
	query   *gcalstats.EventQueryService
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	config, err := gcalstats.ReadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	logger, err := newLogger(config.VerbosityLevel, verbose)
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}

	db, err := gcalstats.OpenDB(ctx, config.TokenDBPath())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	store := gcalstats.NewSQLiteTokenStore(db, gcalstats.DefaultTokenSlot, logger)

	provider, err := gcalstats.NewProvider(config, gcalstats.ProviderDeps{
		CodePrompt:     gcalstats.ReaderCodePrompt(cmd.InOrStdin(), cmd.OutOrStdout()),
		PasswordPrompt: passwordPrompt(cmd.InOrStdin(), cmd.OutOrStdout()),
		OnTokenRefresh: func(cred *gcalstats.Credential) {
			if err := store.Save(context.Background(), cred); err != nil {
				logger.Warn("failed to save refreshed token", zap.Error(err))
			}
		},
		Logger: logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	session := gcalstats.NewSessionManager(provider, store, gcalstats.WithSessionLogger(logger))
	if err := session.Initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		config:  config,
		logger:  logger,
		db:      db,
		store:   store,
		session: session,
		query:   gcalstats.NewQueryService(config, provider, logger),
	}, nil
}

func (a *app) Close() {
	a.session.Close()
	a.db.Close()
	_ = a.logger.Sync()
}

// passwordPrompt hides input on a terminal and reads a plain line otherwise.
func passwordPrompt(in io.Reader, out io.Writer) gcalstats.PasswordPrompt {
	return func(ctx context.Context, username, serverURL string) (string, error) {
		fmt.Fprintf(out, "🔑 Password for %s at %s: ", username, serverURL)
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			pw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(out)
			return string(pw), err
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}
