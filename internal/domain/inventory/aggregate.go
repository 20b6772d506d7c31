package inventory

import (
	"slices"

	"github.com/google/uuid"
)

const (
	DefaultIncreaseReason = "INBOUND"
	DefaultDecreaseReason = "CONSUME"
	DefaultAdjustReason   = "ADJUST"
)

// Item is the inventory aggregate root for one SKU. All changes go through
// its methods, and every method either applies fully or not at all.
//
// Invariants after every mutation:
//
//	on_hand >= 0
//	reserved >= 0
//	reserved <= on_hand
type Item struct {
	id           string
	sku          SKU
	onHand       Quantity
	reserved     Quantity
	threshold    Threshold
	batch        *Batch
	reservations []Reservation
	moves        []StockMove
	version      int

	events []Event
}

// NewItem creates an item with a fresh identity, nothing reserved and no history.
func NewItem(sku SKU, onHand Quantity, threshold Threshold) *Item {
	item := &Item{
		id:        uuid.New().String(),
		sku:       sku,
		onHand:    onHand,
		reserved:  Quantity{amount: 0, uom: onHand.UOM()},
		threshold: threshold,
	}
	item.record(EventItemCreated, func(e *Event) {
		e.Quantity = onHand.Amount()
	})
	return item
}

func (i *Item) ID() string           { return i.id }
func (i *Item) SKU() SKU             { return i.sku }
func (i *Item) OnHand() Quantity     { return i.onHand }
func (i *Item) Reserved() Quantity   { return i.reserved }
func (i *Item) Threshold() Threshold { return i.threshold }
func (i *Item) Version() int         { return i.version }

func (i *Item) Batch() *Batch {
	if i.batch == nil {
		return nil
	}
	b := *i.batch
	return &b
}

// SetBatch replaces the lot metadata.
func (i *Item) SetBatch(b *Batch) {
	if b == nil {
		i.batch = nil
		return
	}
	cp := *b
	i.batch = &cp
}

// Available is on-hand minus reserved, computed on every call.
func (i *Item) Available() Quantity {
	return Quantity{amount: i.onHand.amount - i.reserved.amount, uom: i.onHand.UOM()}
}

// IsLowStock reports available < threshold.
func (i *Item) IsLowStock() bool {
	return i.threshold.IsLow(i.Available())
}

func (i *Item) Reservations() []Reservation {
	return slices.Clone(i.reservations)
}

func (i *Item) Moves() []StockMove {
	return slices.Clone(i.moves)
}

// Reservation looks up a reservation by id.
func (i *Item) Reservation(id string) (Reservation, bool) {
	idx := i.reservationIndex(id)
	if idx < 0 {
		return Reservation{}, false
	}
	return i.reservations[idx], true
}

// Events returns the events recorded since the item was loaded or last cleared.
func (i *Item) Events() []Event {
	return slices.Clone(i.events)
}

func (i *Item) ClearEvents() {
	i.events = nil
}

// draft is the mutable part of the aggregate. Operations work on a copy and
// the copy replaces the live state only once the invariants hold.
type draft struct {
	onHand       Quantity
	reserved     Quantity
	reservations []Reservation
	moves        []StockMove
}

func (i *Item) apply(op string, change func(d *draft) error) error {
	d := draft{
		onHand:       i.onHand,
		reserved:     i.reserved,
		reservations: slices.Clone(i.reservations),
		moves:        slices.Clone(i.moves),
	}
	if err := change(&d); err != nil {
		return err
	}
	if err := checkInvariants(op, d.onHand, d.reserved); err != nil {
		return err
	}
	i.onHand = d.onHand
	i.reserved = d.reserved
	i.reservations = d.reservations
	i.moves = d.moves
	return nil
}

func checkInvariants(op string, onHand, reserved Quantity) error {
	switch {
	case onHand.amount < 0:
		return newError(KindInvariantViolation, op, "on hand cannot be negative")
	case reserved.amount < 0:
		return newError(KindInvariantViolation, op, "reserved cannot be negative")
	case reserved.amount > onHand.amount:
		return newError(KindInvariantViolation, op, "reserved cannot exceed on hand")
	}
	return nil
}

// Increase adds physical stock and records an IN move.
func (i *Item) Increase(qty Quantity, reason string) error {
	const op = "increase"
	err := i.apply(op, func(d *draft) error {
		next, err := d.onHand.Add(qty)
		if err != nil {
			return withOp(op, err)
		}
		d.onHand = next
		d.moves = append(d.moves, newStockMove(MoveIn, qty, reason))
		return nil
	})
	if err != nil {
		return err
	}
	i.record(EventStockIncreased, func(e *Event) {
		e.Quantity = qty.Amount()
		e.Reason = reason
	})
	return nil
}

// Decrease removes physical stock that is not reserved and records an OUT move.
func (i *Item) Decrease(qty Quantity, reason string) error {
	const op = "decrease"
	err := i.apply(op, func(d *draft) error {
		if qty.amount > d.onHand.amount-d.reserved.amount {
			return newError(KindInsufficientAvailable, op, "not enough available stock to decrease")
		}
		next, err := d.onHand.Sub(qty)
		if err != nil {
			return withOp(op, err)
		}
		d.onHand = next
		d.moves = append(d.moves, newStockMove(MoveOut, qty, reason))
		return nil
	})
	if err != nil {
		return err
	}
	i.record(EventStockDecreased, func(e *Event) {
		e.Quantity = qty.Amount()
		e.Reason = reason
	})
	return nil
}

// Reserve earmarks available stock for an order. No move is recorded.
func (i *Item) Reserve(orderID string, qty Quantity) (Reservation, error) {
	const op = "reserve"
	var created Reservation
	err := i.apply(op, func(d *draft) error {
		if qty.amount > d.onHand.amount-d.reserved.amount {
			return newError(KindInsufficientAvailable, op, "not enough available stock to reserve")
		}
		next, err := d.reserved.Add(qty)
		if err != nil {
			return withOp(op, err)
		}
		d.reserved = next
		created = newReservation(orderID, qty)
		d.reservations = append(d.reservations, created)
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	i.record(EventStockReserved, func(e *Event) {
		e.OrderID = orderID
		e.ReservationID = created.ID
		e.Quantity = qty.Amount()
	})
	return created, nil
}

// Release drops a reservation and returns its quantity to available stock.
func (i *Item) Release(reservationID string) error {
	const op = "release"
	var released Reservation
	err := i.apply(op, func(d *draft) error {
		idx := slices.IndexFunc(d.reservations, func(r Reservation) bool { return r.ID == reservationID })
		if idx < 0 {
			return newError(KindNotFound, op, "reservation not found: "+reservationID)
		}
		released = d.reservations[idx]
		next, err := d.reserved.Sub(released.Qty)
		if err != nil {
			return withOp(op, err)
		}
		d.reserved = next
		d.reservations = slices.Delete(d.reservations, idx, idx+1)
		return nil
	})
	if err != nil {
		return err
	}
	i.record(EventReservationReleased, func(e *Event) {
		e.OrderID = released.OrderID
		e.ReservationID = released.ID
		e.Quantity = released.Qty.Amount()
	})
	return nil
}

// Adjust corrects on-hand stock by a signed delta. A zero delta does nothing.
// A negative delta is bounded by on-hand, not available; if the result would
// leave reserved above on-hand the whole call fails.
func (i *Item) Adjust(delta int, reason string) error {
	const op = "adjust"
	if delta == 0 {
		return nil
	}
	err := i.apply(op, func(d *draft) error {
		magnitude := delta
		if delta < 0 {
			magnitude = -delta
			if magnitude > d.onHand.amount {
				return newError(KindInsufficientOnHand, op, "cannot adjust below zero stock")
			}
		}
		moved := Quantity{amount: magnitude, uom: d.onHand.UOM()}

		var (
			next Quantity
			err  error
		)
		if delta > 0 {
			next, err = d.onHand.Add(moved)
		} else {
			next, err = d.onHand.Sub(moved)
		}
		if err != nil {
			return withOp(op, err)
		}
		d.onHand = next
		d.moves = append(d.moves, newStockMove(MoveAdjust, moved, reason))
		return nil
	})
	if err != nil {
		return err
	}
	i.record(EventStockAdjusted, func(e *Event) {
		e.Delta = delta
		if delta < 0 {
			e.Quantity = -delta
		} else {
			e.Quantity = delta
		}
		e.Reason = reason
	})
	return nil
}

// SetThreshold replaces the low-stock threshold.
func (i *Item) SetThreshold(t Threshold) {
	i.threshold = t
	i.record(EventThresholdChanged, func(e *Event) {
		e.Quantity = t.MinQty()
	})
}

func (i *Item) reservationIndex(id string) int {
	return slices.IndexFunc(i.reservations, func(r Reservation) bool { return r.ID == id })
}

// withOp re-tags a value-object error with the aggregate operation that hit it.
func withOp(op string, err error) error {
	if e, ok := err.(*Error); ok {
		return &Error{Kind: e.Kind, Op: op, Err: e.Err}
	}
	return err
}
