package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	appLog "holidaycal/internal/log"
	"holidaycal/internal/planner"
	"holidaycal/internal/web"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string

	c := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Long:    "Serve the planner over HTTP, refreshing public holidays and calendar subscriptions on the configured schedule.",
		Example: "holidaycal serve --config ./holidaycal.yaml --listen :8080",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := openSession(ctx, cfg)
			if err != nil {
				return err
			}

			// Mutations arrive from HTTP handlers and the scheduler concurrently.
			var saveMu sync.Mutex
			persist := func() {
				saveMu.Lock()
				defer saveMu.Unlock()
				if err := sess.save(); err != nil {
					appLog.Error("persist state failed", err)
				}
			}

			refresher := planner.NewRefresher(sess.planner, sess.fetcher, subscriptions(cfg))
			refresher.AfterRun = persist
			if cfg.RefreshCron != "" {
				sched, err := refresher.Schedule(ctx, cfg.RefreshCron)
				if err != nil {
					return err
				}
				defer func() { <-sched.Stop().Done() }()
			}
			if len(cfg.Subscriptions) > 0 {
				go func() {
					if err := refresher.Run(ctx); err != nil {
						appLog.Error("initial subscription refresh incomplete", err)
					}
				}()
			}

			srv := web.NewServer(cfg, sess.planner)
			srv.OnChange = persist

			err = srv.Serve(ctx)
			persist()
			appLog.Info("holidaycal exiting")
			return err
		},
	}
	c.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return c
}
