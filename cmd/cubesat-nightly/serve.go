package main

import (
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cubesat-nightly/internal/dashboard"
	"cubesat-nightly/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily scheduler and web dashboard",
	Long: "serve starts the daily pipeline scheduler and the web dashboard and blocks\n" +
		"until SIGINT or SIGTERM. An in-flight run finishes before shutdown returns.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.EnsureDirs(); err != nil {
			return err
		}

		logger := newLogger()
		r, err := newRunner(cfg, logger)
		if err != nil {
			return err
		}

		sched := scheduler.New(r, logger)
		if err := sched.Start(cfg.Schedule.DailyAt); err != nil {
			return err
		}
		defer sched.Stop()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := dashboard.NewServer(cfg, r, sched, logger)
		if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
			return err
		}
		logger.Info("shutdown complete")
		return nil
	},
}
