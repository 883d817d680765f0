/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/classroll/apiserver/config"
	"github.com/classroll/apiserver/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Delivers queued notification emails",
	Long: `Consumes notification jobs from the configured message queue, sends the
emails and records the outcome. Requires MQ_BACKEND to be set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = log.Sync()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := server.NewApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			_ = app.Close()
		}()

		if app.Queue == nil {
			return errors.New("worker requires a message queue; set MQ_BACKEND")
		}

		log.Info("notification worker started", zap.String("channel", cfg.MQ.Channel))
		err = app.Queue.Consume(ctx, app.Notifications.Handle)
		if err != nil && ctx.Err() == nil {
			return err
		}
		log.Info("notification worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
