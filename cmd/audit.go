/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cinerate/apiserver/internal/mq"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Follow moderation events and log each one",
	Long: `Subscribes to the moderation event topic and writes every event to the
log. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		backend, err := mq.NewBackend(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if backend == nil {
			return fmt.Errorf("MQ_BACKEND is not set")
		}
		events := mq.NewPublisher(backend, cfg.MQ.Topic, logger)
		defer func() {
			_ = events.Close()
		}()

		logger.Info("following moderation events", slog.String("topic", cfg.MQ.Topic))
		err = events.Subscribe(ctx, func(ctx context.Context, evt mq.Event) error {
			attrs := []slog.Attr{
				slog.String("event_id", evt.ID),
				slog.String("type", string(evt.Type)),
				slog.Time("occurred_at", evt.OccurredAt),
				slog.Int("actor_id", evt.ActorID),
			}
			if evt.UserID != 0 {
				attrs = append(attrs, slog.Int("user_id", evt.UserID))
			}
			if evt.ReviewID != 0 {
				attrs = append(attrs, slog.Int("review_id", evt.ReviewID))
			}
			if evt.OffenseCount != nil {
				attrs = append(attrs, slog.Int("offense_count", *evt.OffenseCount), slog.String("standing", evt.Standing))
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "moderation event", attrs...)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
