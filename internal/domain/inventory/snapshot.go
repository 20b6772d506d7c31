package inventory

import (
	"time"
)

// Snapshot is the serializable state of an Item. Repositories persist
// snapshots and rebuild items with Restore.
type Snapshot struct {
	ID           string                `json:"id"`
	SKU          string                `json:"sku"`
	OnHand       int                   `json:"on_hand"`
	Reserved     int                   `json:"reserved"`
	UOM          string                `json:"uom"`
	MinQty       int                   `json:"min_qty"`
	Batch        *Batch                `json:"batch,omitempty"`
	Reservations []ReservationSnapshot `json:"reservations"`
	Moves        []MoveSnapshot        `json:"moves"`
	Version      int                   `json:"version"`
}

type ReservationSnapshot struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Qty       int       `json:"qty"`
	CreatedAt time.Time `json:"created_at"`
}

type MoveSnapshot struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Qty       int       `json:"qty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot captures the item's persistent state. Pending events are not part of it.
func (i *Item) Snapshot() Snapshot {
	s := Snapshot{
		ID:           i.id,
		SKU:          i.sku.String(),
		OnHand:       i.onHand.Amount(),
		Reserved:     i.reserved.Amount(),
		UOM:          i.onHand.UOM(),
		MinQty:       i.threshold.MinQty(),
		Batch:        i.Batch(),
		Reservations: make([]ReservationSnapshot, 0, len(i.reservations)),
		Moves:        make([]MoveSnapshot, 0, len(i.moves)),
		Version:      i.version,
	}
	for _, r := range i.reservations {
		s.Reservations = append(s.Reservations, ReservationSnapshot{
			ID:        r.ID,
			OrderID:   r.OrderID,
			Qty:       r.Qty.Amount(),
			CreatedAt: r.CreatedAt,
		})
	}
	for _, m := range i.moves {
		s.Moves = append(s.Moves, MoveSnapshot{
			ID:        m.ID,
			Kind:      string(m.Kind),
			Qty:       m.Qty.Amount(),
			Reason:    m.Reason,
			CreatedAt: m.CreatedAt,
		})
	}
	return s
}

// Restore rebuilds an item from stored state. Stored state that breaks a
// value-object rule or an invariant is rejected.
func Restore(s Snapshot) (*Item, error) {
	const op = "restore"
	sku, err := NewSKU(s.SKU)
	if err != nil {
		return nil, withOp(op, err)
	}
	if s.OnHand < 0 || s.Reserved < 0 {
		return nil, newError(KindInvariantViolation, op, "stored quantities cannot be negative")
	}
	onHand, err := NewQuantity(s.OnHand, s.UOM)
	if err != nil {
		return nil, withOp(op, err)
	}
	reserved, err := NewQuantity(s.Reserved, s.UOM)
	if err != nil {
		return nil, withOp(op, err)
	}
	threshold, err := NewThreshold(s.MinQty)
	if err != nil {
		return nil, withOp(op, err)
	}
	if err := checkInvariants(op, onHand, reserved); err != nil {
		return nil, err
	}

	item := &Item{
		id:        s.ID,
		sku:       sku,
		onHand:    onHand,
		reserved:  reserved,
		threshold: threshold,
		version:   s.Version,
	}
	item.SetBatch(s.Batch)
	for _, r := range s.Reservations {
		qty, err := NewQuantity(r.Qty, onHand.UOM())
		if err != nil {
			return nil, withOp(op, err)
		}
		item.reservations = append(item.reservations, Reservation{
			ID:        r.ID,
			OrderID:   r.OrderID,
			Qty:       qty,
			CreatedAt: r.CreatedAt,
		})
	}
	for _, m := range s.Moves {
		qty, err := NewQuantity(m.Qty, onHand.UOM())
		if err != nil {
			return nil, withOp(op, err)
		}
		item.moves = append(item.moves, StockMove{
			ID:        m.ID,
			Kind:      MoveKind(m.Kind),
			Qty:       qty,
			Reason:    m.Reason,
			CreatedAt: m.CreatedAt,
		})
	}
	return item, nil
}
