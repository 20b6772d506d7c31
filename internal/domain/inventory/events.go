package inventory

import (
	"time"

	"github.com/google/uuid"
)

const AggregateType = "InventoryItem"

const (
	EventItemCreated         = "ItemCreated"
	EventStockIncreased      = "StockIncreased"
	EventStockDecreased      = "StockDecreased"
	EventStockReserved       = "StockReserved"
	EventReservationReleased = "ReservationReleased"
	EventStockAdjusted       = "StockAdjusted"
	EventThresholdChanged    = "ThresholdChanged"
)

// Event is a notification of a committed change. It carries the item's
// levels after the change so consumers need not load the item.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"event_type"`
	AggregateType string    `json:"aggregate_type"`
	ItemID        string    `json:"item_id"`
	SKU           string    `json:"sku"`
	OrderID       string    `json:"order_id,omitempty"`
	ReservationID string    `json:"reservation_id,omitempty"`
	Quantity      int       `json:"quantity"`
	Delta         int       `json:"delta,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OnHand        int       `json:"on_hand"`
	Reserved      int       `json:"reserved"`
	Available     int       `json:"available"`
	UOM           string    `json:"uom"`
	MinQty        int       `json:"min_qty"`
	LowStock      bool      `json:"low_stock"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// record appends an event describing the item's current levels.
func (i *Item) record(eventType string, fill func(e *Event)) {
	available := i.Available()
	e := Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		AggregateType: AggregateType,
		ItemID:        i.id,
		SKU:           i.sku.String(),
		OnHand:        i.onHand.Amount(),
		Reserved:      i.reserved.Amount(),
		Available:     available.Amount(),
		UOM:           i.onHand.UOM(),
		MinQty:        i.threshold.MinQty(),
		LowStock:      i.threshold.IsLow(available),
		OccurredAt:    time.Now().UTC(),
	}
	if fill != nil {
		fill(&e)
	}
	i.events = append(i.events, e)
}
