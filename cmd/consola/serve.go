package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"accesos/internal/metrics"
	"accesos/internal/routing"
	"accesos/pkg/auth"
	"accesos/pkg/handlers"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the console views",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rec := metrics.NewRecorder()
			nav := auth.NavigatorFunc(func(path string) {
				a.logger.Info("navigate", "to", path)
			})

			sess, err := a.newSession(ctx, nav, rec)
			if err != nil {
				return err
			}
			defer sess.close()

			// the guard answers with the loading page until this finishes
			go func() {
				state := sess.manager.Init(ctx)
				a.logger.Info("session restored", "state", state.String())
			}()

			r := mux.NewRouter()
			h := handlers.NewConsoleHandler(sess.manager, sess.client, a.logger)
			routing.InitConsoleRoutes(r, h, sess.manager, rec)

			return routing.StartServer(ctx, a.cfg.ConsoleAddr, r, a.logger)
		},
	}
	return cmd
}
