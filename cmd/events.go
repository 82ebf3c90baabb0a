/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/events"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/mq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the auth event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log auth events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		log, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer func() { _ = broker.Close() }()

		log.Info("tailing auth events", zap.String("backend", cfg.MQ.Backend), zap.String("channel", cfg.MQ.Channel))
		err = events.Consume(ctx, broker, cfg.MQ.Channel, log, func(ctx context.Context, evt events.Event) error {
			log.Info("auth event",
				zap.String("type", string(evt.Type)),
				zap.Int("userId", evt.UserID),
				zap.String("username", evt.Username),
				zap.Time("occurredAt", evt.OccurredAt),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
