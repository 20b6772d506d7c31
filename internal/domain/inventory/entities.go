package inventory

import (
	"time"

	"github.com/google/uuid"
)

// MoveKind tells which way a stock move went.
type MoveKind string

const (
	MoveIn     MoveKind = "IN"
	MoveOut    MoveKind = "OUT"
	MoveAdjust MoveKind = "ADJUST"
)

// Reservation earmarks stock for an order until it is released.
type Reservation struct {
	ID        string
	OrderID   string
	Qty       Quantity
	CreatedAt time.Time
}

func newReservation(orderID string, qty Quantity) Reservation {
	return Reservation{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Qty:       qty,
		CreatedAt: time.Now().UTC(),
	}
}

// StockMove is one entry of the append-only movement history. Qty is a
// magnitude; the direction comes from Kind.
type StockMove struct {
	ID        string
	Kind      MoveKind
	Qty       Quantity
	Reason    string
	CreatedAt time.Time
}

func newStockMove(kind MoveKind, qty Quantity, reason string) StockMove {
	return StockMove{
		ID:        uuid.New().String(),
		Kind:      kind,
		Qty:       qty,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}
