/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/taskhub/accounts/config"
	"github.com/taskhub/accounts/internal/mailer"
	"github.com/taskhub/accounts/internal/mq"
	"github.com/taskhub/accounts/internal/services"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the account-events mail worker",
	Long: `Consumes account lifecycle events from the configured broker and sends
the welcome / cancellation emails. Usage:

	accounts worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := newMQBackend(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect broker: %w", err)
		}
		broker := mq.New(backend)
		defer func() {
			_ = broker.Close()
		}()

		m := mailer.New(cfg.SMTP, logger)
		logger.Info("worker started", "channel", services.AccountEventsChannel)

		err = broker.Subscribe(ctx, services.AccountEventsChannel, m.Handle)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func newMQBackend(ctx context.Context, cfg config.Config) (mq.Backend, error) {
	switch cfg.MQ.Backend {
	case "rabbitmq":
		return mq.NewRabbitMQClient(cfg.MQ.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubClient(ctx, cfg.MQ.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
