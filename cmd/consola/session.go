package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"accesos/internal/mongo"
	"accesos/pkg/audit"
	"accesos/pkg/auth"
	"accesos/pkg/role"
)

func newLoginCmd(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the token in the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("CONSOLA_PASSWORD")
			}

			sess, err := a.newSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer sess.close()

			sess.manager.Init(cmd.Context())
			res := sess.manager.Login(cmd.Context(), username, password)
			if !res.Success {
				return errors.New(res.Message)
			}

			u, _ := sess.manager.User()
			fmt.Fprintf(cmd.OutOrStdout(), "Sesión iniciada: %s (%s)\n", u.Username, sess.manager.RoleName())
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "user name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (or CONSOLA_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.newSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer sess.close()

			sess.manager.Init(cmd.Context())
			sess.manager.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Sesión cerrada")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	var events int64

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session and what it allows",
		RunE: func(cmd *cobra.Command, args []string) error {
			if events > 0 && a.cfg.MongoURI == "" {
				return errors.New("--events needs MONGO_URI")
			}

			sess, err := a.newSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer sess.close()

			if sess.manager.Init(cmd.Context()) != auth.Authenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "Sin sesión")
				return nil
			}

			u, _ := sess.manager.User()
			caps := role.CapabilitiesOf(sess.manager)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Usuario:    %s (id %d)\n", u.Username, u.ID)
			fmt.Fprintf(out, "Rol:        %s\n", sess.manager.RoleName())
			fmt.Fprintf(out, "Admin:      %t\n", caps.Admin)
			fmt.Fprintf(out, "Supervisor: %t\n", caps.SupervisorOrAbove)
			fmt.Fprintf(out, "Operador:   %t\n", caps.OperatorOrAbove)
			fmt.Fprintf(out, "Auditor:    %t\n", caps.Auditor)

			if events > 0 {
				return a.printEvents(cmd, u.Username, events)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&events, "events", 0, "also list the last N session events of the user (needs MONGO_URI)")
	return cmd
}

func (a *app) printEvents(cmd *cobra.Command, username string, limit int64) error {
	db, disconnect, err := mongo.LoadDB(cmd.Context(), a.cfg.MongoURI, a.cfg.MongoDBName)
	if err != nil {
		return err
	}
	defer func() { _ = disconnect(context.Background()) }()

	list, err := audit.NewMongoRepo(db).ByUsername(cmd.Context(), username, limit)
	if err != nil {
		return err
	}

	writeEvents(cmd.OutOrStdout(), list)
	return nil
}

func writeEvents(out io.Writer, list []audit.Event) {
	fmt.Fprintln(out, "Eventos:")
	for _, e := range list {
		line := fmt.Sprintf("  %s  %s", e.At.Local().Format(time.DateTime), e.Kind)
		if e.Reason != "" {
			line += "  (" + e.Reason + ")"
		}
		fmt.Fprintln(out, line)
	}
}
