package notification

import (
	"context"
	"sync"

	"github.com/example/inventory-control/internal/domain/inventory"
	"github.com/example/inventory-control/internal/email"
	"github.com/example/inventory-control/internal/infrastructure/kafka"
	"go.uber.org/zap"
)

// Mailer delivers a low-stock alert. *email.Service implements it.
type Mailer interface {
	SendLowStockAlert(alert email.LowStockAlert) error
}

// Handler turns inventory events into low-stock alerts. An SKU alerts once
// when it becomes low and again only after it has recovered.
type Handler struct {
	logger *zap.Logger
	mailer Mailer

	mu     sync.Mutex
	low    map[string]bool
	alerts []email.LowStockAlert
}

// NewHandler creates a new notification handler. mailer may be nil.
func NewHandler(logger *zap.Logger, mailer Mailer) *Handler {
	return &Handler{
		logger: logger,
		mailer: mailer,
		low:    make(map[string]bool),
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeEvent(value)
	if err != nil {
		h.logger.Error("failed to decode inventory event", zap.String("key", string(key)), zap.Error(err))
		return err
	}
	return h.Handle(ctx, event)
}

// Handle raises an alert when event reports the SKU low and it was not low
// before. A failed delivery leaves the SKU unmarked so a redelivered event
// alerts again.
func (h *Handler) Handle(ctx context.Context, event inventory.Event) error {
	h.mu.Lock()
	wasLow := h.low[event.SKU]
	h.low[event.SKU] = event.LowStock
	h.mu.Unlock()

	if !event.LowStock {
		if wasLow {
			h.logger.Info("stock recovered",
				zap.String("sku", event.SKU),
				zap.Int("available", event.Available),
				zap.Int("min_qty", event.MinQty),
			)
		}
		return nil
	}
	if wasLow {
		return nil
	}

	alert := email.LowStockAlert{
		SKU:       event.SKU,
		OnHand:    event.OnHand,
		Reserved:  event.Reserved,
		Available: event.Available,
		MinQty:    event.MinQty,
		UOM:       event.UOM,
		At:        event.OccurredAt,
	}

	h.logger.Warn("low stock",
		zap.String("sku", event.SKU),
		zap.String("event_type", event.Type),
		zap.Int("on_hand", event.OnHand),
		zap.Int("reserved", event.Reserved),
		zap.Int("available", event.Available),
		zap.Int("min_qty", event.MinQty),
	)

	if h.mailer != nil {
		if err := h.mailer.SendLowStockAlert(alert); err != nil {
			h.logger.Error("failed to send low stock email", zap.String("sku", event.SKU), zap.Error(err))
			h.mu.Lock()
			delete(h.low, event.SKU)
			h.mu.Unlock()
			return err
		}
	}

	h.mu.Lock()
	h.alerts = append(h.alerts, alert)
	h.mu.Unlock()
	return nil
}

// Alerts returns the alerts delivered so far.
func (h *Handler) Alerts() []email.LowStockAlert {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]email.LowStockAlert, len(h.alerts))
	copy(out, h.alerts)
	return out
}
