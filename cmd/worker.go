/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/schoollms/apiserver/config"
	"github.com/schoollms/apiserver/internal/mq"
	"github.com/schoollms/apiserver/internal/services"
	"github.com/schoollms/apiserver/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes lesson events from the message broker",
	Long: `Subscribes to the lesson-events channel and logs every lesson change.
Requires MQ_BACKEND to be rabbitmq or pubsub. The memory backend only
delivers within one process, so it is rejected here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := checkWorkerBackend(cfg.MQBackend); err != nil {
			return err
		}

		broker, err := mq.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open message broker: %w", err)
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		logger.Info("consuming lesson events", zap.String("channel", services.LessonEventsChannel))
		err = broker.Subscribe(ctx, services.LessonEventsChannel, lessonEventLogger(logger))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func checkWorkerBackend(backend string) error {
	switch backend {
	case config.BackendRabbitMQ, config.BackendPubSub:
		return nil
	case "":
		return errors.New("MQ_BACKEND is not configured")
	default:
		return fmt.Errorf("MQ_BACKEND %q cannot feed a separate worker process; use rabbitmq or pubsub", backend)
	}
}

// lessonEventLogger decodes and logs each event. Undecodable messages are
// returned as errors, which nacks them.
func lessonEventLogger(logger *zap.Logger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		var event types.LessonEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Warn("undecodable lesson event", zap.String("id", msg.ID), zap.Error(err))
			return err
		}
		logger.Info("lesson event",
			zap.String("id", msg.ID),
			zap.String("type", event.Type),
			zap.Int("lesson_id", event.Lesson.ID),
			zap.String("subject", event.Lesson.Subject),
			zap.String("teacher", event.Lesson.Teacher),
			zap.String("day", event.Lesson.DayOfWeek),
			zap.String("start", event.Lesson.StartTime),
			zap.String("actor", event.Actor),
			zap.Time("occurred_at", event.OccurredAt))
		return nil
	}
}
