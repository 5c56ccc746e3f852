package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"accesos/internal/database"
	"accesos/internal/routing"
	"accesos/pkg/handlers"
	"accesos/pkg/role"
	"accesos/pkg/session"
	"accesos/pkg/user"
	"accesos/pkg/validator"
)

type stubDB struct {
	db       *sql.DB
	users    *user.SQLRepo
	sessions *session.SQLSessionRepo
}

func (a *app) openStubDB(ctx context.Context) (*stubDB, error) {
	if err := a.cfg.ValidateStub(); err != nil {
		return nil, err
	}

	db, err := database.LoadDB(ctx, a.cfg.StubDBDriver, a.cfg.StubDBDSN)
	if err != nil {
		return nil, err
	}

	s := &stubDB{
		db:       db,
		users:    user.NewSQLRepo(db, database.AutoIncrement(a.cfg.StubDBDriver)),
		sessions: session.NewSQLSessionRepo(db),
	}
	if err := database.Migrate(ctx, s.users, s.sessions); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newAuthstubCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "authstub",
		Short: "Run a development authentication backend",
		Long: `authstub serves /api/v1/auth/login, /me and /logout backed by a local users
table, and answers every other /api/v1 path with an empty list. It exists so
the console can run without the real services.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := a.openStubDB(ctx)
			if err != nil {
				return err
			}
			defer s.db.Close()

			key := []byte(a.cfg.JWTSecret)
			svc := user.NewService(s.users, s.sessions)
			userHandler := handlers.NewUserHandler(svc, a.logger, key, a.cfg.TokenTTL)

			r := mux.NewRouter()
			api := r.PathPrefix("/api/v1").Subrouter()
			routing.InitStubRoutes(api, userHandler, validator.New(validator.WithKey(key)), s.sessions, a.logger)

			return routing.StartServer(ctx, a.cfg.StubAddr, r, a.logger)
		},
	}
}

func newUseraddCmd(a *app) *cobra.Command {
	var username, password string
	var roleID int

	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create a user of the development backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStubDB(cmd.Context())
			if err != nil {
				return err
			}
			defer s.db.Close()

			u, err := user.NewService(s.users, s.sessions).Register(cmd.Context(), username, password, roleID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Usuario %s creado (id %d, rol %s)\n", u.Username, u.ID, role.Name(u.RoleID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "user name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().IntVarP(&roleID, "role", "r", role.Operator, "role id: 1 admin, 2 supervisor, 3 operador, 4 auditor")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
