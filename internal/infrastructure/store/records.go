package store

import (
	"database/sql"
	"time"

	"github.com/example/inventory-control/internal/domain/inventory"
)

// itemRow is one row of inventory_items.
type itemRow struct {
	ID             string         `db:"id"`
	SKU            string         `db:"sku"`
	OnHand         int            `db:"on_hand"`
	Reserved       int            `db:"reserved"`
	UOM            string         `db:"uom"`
	MinQty         int            `db:"min_qty"`
	BatchCode      sql.NullString `db:"batch_code"`
	BatchExpiresAt sql.NullTime   `db:"batch_expires_at"`
	Version        int            `db:"version"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// reservationRow is keyed by SKU, the way the reservation set is replaced on save.
type reservationRow struct {
	ID        string    `db:"id"`
	OrderID   string    `db:"order_id"`
	SKU       string    `db:"sku"`
	Qty       int       `db:"qty"`
	CreatedAt time.Time `db:"created_at"`
}

// moveRow is append-only; seq keeps the in-item order.
type moveRow struct {
	ID        string    `db:"id"`
	ItemID    string    `db:"item_id"`
	Seq       int       `db:"seq"`
	Kind      string    `db:"kind"`
	Qty       int       `db:"qty"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

func toItemRow(s inventory.Snapshot, now time.Time) itemRow {
	row := itemRow{
		ID:        s.ID,
		SKU:       s.SKU,
		OnHand:    s.OnHand,
		Reserved:  s.Reserved,
		UOM:       s.UOM,
		MinQty:    s.MinQty,
		Version:   s.Version,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.Batch != nil {
		row.BatchCode = sql.NullString{String: s.Batch.Code, Valid: s.Batch.Code != ""}
		if s.Batch.ExpiresAt != nil {
			row.BatchExpiresAt = sql.NullTime{Time: *s.Batch.ExpiresAt, Valid: true}
		}
	}
	return row
}

func toSnapshot(row itemRow, reservations []reservationRow, moves []moveRow) inventory.Snapshot {
	s := inventory.Snapshot{
		ID:           row.ID,
		SKU:          row.SKU,
		OnHand:       row.OnHand,
		Reserved:     row.Reserved,
		UOM:          row.UOM,
		MinQty:       row.MinQty,
		Version:      row.Version,
		Reservations: make([]inventory.ReservationSnapshot, 0, len(reservations)),
		Moves:        make([]inventory.MoveSnapshot, 0, len(moves)),
	}
	if row.BatchCode.Valid || row.BatchExpiresAt.Valid {
		b := &inventory.Batch{Code: row.BatchCode.String}
		if row.BatchExpiresAt.Valid {
			t := row.BatchExpiresAt.Time
			b.ExpiresAt = &t
		}
		s.Batch = b
	}
	for _, r := range reservations {
		s.Reservations = append(s.Reservations, inventory.ReservationSnapshot{
			ID:        r.ID,
			OrderID:   r.OrderID,
			Qty:       r.Qty,
			CreatedAt: r.CreatedAt,
		})
	}
	for _, m := range moves {
		s.Moves = append(s.Moves, inventory.MoveSnapshot{
			ID:        m.ID,
			Kind:      m.Kind,
			Qty:       m.Qty,
			Reason:    m.Reason,
			CreatedAt: m.CreatedAt,
		})
	}
	return s
}
