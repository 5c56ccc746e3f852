package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"accesos/internal/config"
	"accesos/internal/database"
	"accesos/internal/logger"
	"accesos/internal/mongo"
	"accesos/pkg/audit"
	"accesos/pkg/auth"
	"accesos/pkg/backend"
	"accesos/pkg/tokenstore"
)

type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "consola",
		Short: "Operator console of the access-control system.",
		Long: `consola keeps the operator session of the access-control system: it logs in
against the authentication service, stores the token locally and serves the
console views guarded by role.

Configuration is read from the environment and from the file named by START.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger.Load(cfg.LogLevel)
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newAuthstubCmd(a),
		newUseraddCmd(a),
	)
	return root
}

// openStore builds the token store selected by TOKEN_STORE.
func (a *app) openStore(ctx context.Context) (tokenstore.Store, func(), error) {
	switch a.cfg.TokenStore {
	case config.StoreMemory:
		return tokenstore.NewMemoryStore(), func() {}, nil
	case config.StoreFile:
		return tokenstore.NewFileStore(a.cfg.TokenFile), func() {}, nil
	case config.StoreMySQL, config.StoreSQLite:
		db, err := database.LoadDB(ctx, a.cfg.TokenStore, a.cfg.TokenStoreDSN)
		if err != nil {
			return nil, nil, err
		}
		store := tokenstore.NewSQLStore(db)
		if err := database.Migrate(ctx, store); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown TOKEN_STORE %q", a.cfg.TokenStore)
}

// openRecorder always logs session events; with MONGO_URI set they are
// also kept in MongoDB.
func (a *app) openRecorder(ctx context.Context, extra ...audit.Recorder) (audit.Recorder, func()) {
	recorders := append([]audit.Recorder{audit.NewLogRecorder(a.logger)}, extra...)
	closeFn := func() {}

	if a.cfg.MongoURI != "" {
		db, disconnect, err := mongo.LoadDB(ctx, a.cfg.MongoURI, a.cfg.MongoDBName)
		if err != nil {
			a.logger.Warn("audit trail disabled", "error", err)
		} else {
			recorders = append(recorders, audit.NewMongoRepo(db))
			closeFn = func() { _ = disconnect(context.Background()) }
		}
	}
	return audit.Multi(recorders...), closeFn
}

type consoleSession struct {
	manager *auth.Manager
	client  *backend.Client
	close   func()
}

func (a *app) newSession(ctx context.Context, nav auth.Navigator, extra ...audit.Recorder) (*consoleSession, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	recorder, closeRecorder := a.openRecorder(ctx, extra...)

	client := backend.NewClient(a.cfg.AuthBaseURL, a.cfg.APIBaseURL, a.logger)
	manager, err := auth.NewManager(auth.Config{
		Authenticator: client,
		Store:         store,
		Navigator:     nav,
		Recorder:      recorder,
		Logger:        a.logger,
	})
	if err != nil {
		closeRecorder()
		closeStore()
		return nil, err
	}

	return &consoleSession{
		manager: manager,
		client:  client,
		close: func() {
			closeRecorder()
			closeStore()
		},
	}, nil
}
