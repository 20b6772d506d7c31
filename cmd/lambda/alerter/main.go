package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/inventory-control/internal/config"
	"github.com/example/inventory-control/internal/email"
	"github.com/example/inventory-control/internal/infrastructure/kinesis"
	"github.com/example/inventory-control/internal/logger"
	"github.com/example/inventory-control/internal/notification"
	"go.uber.org/zap"
)

// streamHandler raises low-stock alerts from the items table's DynamoDB
// stream delivered through Kinesis.
type streamHandler struct {
	alerts *notification.Handler
	logger *zap.Logger
}

func (h *streamHandler) handle(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	h.logger.Debug("received records", zap.Int("count", len(kinesisEvent.Records)))

	var batchItemFailures []events.KinesisBatchItemFailure

	for _, record := range kinesisEvent.Records {
		event, err := kinesis.ConvertFromKinesisRecord(record)
		if err != nil {
			h.logger.Error("failed to convert record", zap.String("record", record.EventID), zap.Error(err))
			batchItemFailures = append(batchItemFailures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
			continue
		}

		// Skip removals
		if event == nil {
			continue
		}

		if err := h.alerts.Handle(ctx, *event); err != nil {
			h.logger.Error("failed to handle item change",
				zap.String("record", record.EventID),
				zap.String("sku", event.SKU),
				zap.Error(err),
			)
			batchItemFailures = append(batchItemFailures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
		}
	}

	h.logger.Info("processed records",
		zap.Int("ok", len(kinesisEvent.Records)-len(batchItemFailures)),
		zap.Int("total", len(kinesisEvent.Records)),
	)

	return events.KinesisEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

func main() {
	cfg := config.Load()
	appLogger, err := logger.New(logger.Config{Level: cfg.Logger.Level, Encoding: "json"})
	if err != nil {
		log.Fatalf("[Lambda Alerter] failed to build logger: %v", err)
	}

	var mailer notification.Mailer
	if cfg.SMTP.Enabled() {
		mailer = email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Recipients)
	}

	h := &streamHandler{
		alerts: notification.NewHandler(appLogger, mailer),
		logger: appLogger,
	}
	lambda.Start(h.handle)
}
