package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/example/inventory-control/internal/config"
	"github.com/example/inventory-control/internal/email"
	"github.com/example/inventory-control/internal/infrastructure/kafka"
	"github.com/example/inventory-control/internal/logger"
	"github.com/example/inventory-control/internal/notification"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Alerter] invalid configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{
		Development: cfg.IsDevelopment(),
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("[Alerter] failed to build logger: %v", err)
	}
	defer appLogger.Sync()

	var mailer notification.Mailer
	if cfg.SMTP.Enabled() {
		mailer = email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Recipients)
		appLogger.Info("low stock alerts are mailed",
			zap.String("smtp", cfg.SMTP.Host+":"+cfg.SMTP.Port),
			zap.Strings("to", cfg.SMTP.Recipients),
		)
	}
	handler := notification.NewHandler(appLogger, mailer)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, appLogger)
	defer consumer.Close()

	appLogger.Info("starting low stock alerter",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID),
	)
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("consumer stopped", zap.Error(err))
		return
	}
	appLogger.Info("shutting down", zap.Int("alerts_raised", len(handler.Alerts())))
}
