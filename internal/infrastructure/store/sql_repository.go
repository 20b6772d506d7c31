package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/inventory-control/internal/domain/inventory"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Dialect names a supported SQL backend. It doubles as the database/sql driver name.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// SQLRepository stores items in PostgreSQL or MySQL. Queries are written
// with ? placeholders and rebound for the connected driver.
type SQLRepository struct {
	db *sqlx.DB
}

func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Connect opens and pings a database and configures the connection pool.
// MySQL DSNs need parseTime=true.
func Connect(ctx context.Context, dialect Dialect, dsn string) (*sqlx.DB, error) {
	switch dialect {
	case DialectPostgres, DialectMySQL:
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	db, err := sqlx.ConnectContext(ctx, string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

const itemColumns = `id, sku, on_hand, reserved, uom, min_qty, batch_code, batch_expires_at, version, created_at, updated_at`

func (r *SQLRepository) ListAll(ctx context.Context) ([]*inventory.Item, error) {
	var rows []itemRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+itemColumns+` FROM inventory_items ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if len(rows) == 0 {
		return []*inventory.Item{}, nil
	}

	skus := make([]string, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		skus = append(skus, row.SKU)
		ids = append(ids, row.ID)
	}

	query, args, err := sqlx.In(`SELECT id, order_id, sku, qty, created_at FROM reservations WHERE sku IN (?) ORDER BY created_at ASC, id ASC`, skus)
	if err != nil {
		return nil, err
	}
	var reservations []reservationRow
	if err := r.db.SelectContext(ctx, &reservations, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	query, args, err = sqlx.In(`SELECT id, item_id, seq, kind, qty, reason, created_at FROM stock_moves WHERE item_id IN (?) ORDER BY seq ASC`, ids)
	if err != nil {
		return nil, err
	}
	var moves []moveRow
	if err := r.db.SelectContext(ctx, &moves, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}

	resBySKU := make(map[string][]reservationRow)
	for _, res := range reservations {
		resBySKU[res.SKU] = append(resBySKU[res.SKU], res)
	}
	movesByItem := make(map[string][]moveRow)
	for _, m := range moves {
		movesByItem[m.ItemID] = append(movesByItem[m.ItemID], m)
	}

	items := make([]*inventory.Item, 0, len(rows))
	for _, row := range rows {
		item, err := inventory.Restore(toSnapshot(row, resBySKU[row.SKU], movesByItem[row.ID]))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*inventory.Item, error) {
	return r.getOne(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id)
}

func (r *SQLRepository) GetBySKU(ctx context.Context, sku inventory.SKU) (*inventory.Item, error) {
	return r.getOne(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE sku = ?`, sku.String())
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg string) (*inventory.Item, error) {
	var row itemRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}

	var reservations []reservationRow
	err = r.db.SelectContext(ctx, &reservations,
		r.db.Rebind(`SELECT id, order_id, sku, qty, created_at FROM reservations WHERE sku = ? ORDER BY created_at ASC, id ASC`),
		row.SKU,
	)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}

	var moves []moveRow
	err = r.db.SelectContext(ctx, &moves,
		r.db.Rebind(`SELECT id, item_id, seq, kind, qty, reason, created_at FROM stock_moves WHERE item_id = ? ORDER BY seq ASC`),
		row.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query moves: %w", err)
	}

	return inventory.Restore(toSnapshot(row, reservations, moves))
}

// Save upserts the item under its version, replaces the SKU's reservations
// and appends moves not yet stored, all in one transaction.
func (r *SQLRepository) Save(ctx context.Context, item *inventory.Item) (*inventory.Item, error) {
	snap := item.Snapshot()
	now := time.Now().UTC()
	row := toItemRow(snap, now)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if snap.Version == 0 {
		if err := r.insertItem(ctx, tx, row); err != nil {
			return nil, err
		}
	} else {
		if err := r.updateItem(ctx, tx, row); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM reservations WHERE sku = ?`), snap.SKU); err != nil {
		return nil, fmt.Errorf("delete reservations: %w", err)
	}
	for _, res := range snap.Reservations {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO reservations (id, order_id, sku, qty, created_at) VALUES (:id, :order_id, :sku, :qty, :created_at)`,
			reservationRow{ID: res.ID, OrderID: res.OrderID, SKU: snap.SKU, Qty: res.Qty, CreatedAt: res.CreatedAt},
		)
		if err != nil {
			return nil, fmt.Errorf("insert reservation: %w", err)
		}
	}

	var stored int
	if err := tx.GetContext(ctx, &stored, tx.Rebind(`SELECT COUNT(*) FROM stock_moves WHERE item_id = ?`), snap.ID); err != nil {
		return nil, fmt.Errorf("count moves: %w", err)
	}
	for seq := stored; seq < len(snap.Moves); seq++ {
		m := snap.Moves[seq]
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO stock_moves (id, item_id, seq, kind, qty, reason, created_at) VALUES (:id, :item_id, :seq, :kind, :qty, :reason, :created_at)`,
			moveRow{ID: m.ID, ItemID: snap.ID, Seq: seq, Kind: m.Kind, Qty: m.Qty, Reason: m.Reason, CreatedAt: m.CreatedAt},
		)
		if err != nil {
			return nil, fmt.Errorf("insert move: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	snap.Version++
	return inventory.Restore(snap)
}

func (r *SQLRepository) insertItem(ctx context.Context, tx *sqlx.Tx, row itemRow) error {
	var owner string
	err := tx.GetContext(ctx, &owner, tx.Rebind(`SELECT id FROM inventory_items WHERE sku = ?`), row.SKU)
	switch {
	case err == nil:
		return &inventory.Error{
			Kind: inventory.KindAlreadyExists,
			Op:   "save",
			Err:  fmt.Errorf("sku %s belongs to item %s", row.SKU, owner),
		}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check sku: %w", err)
	}

	row.Version = 1
	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO inventory_items (`+itemColumns+`)
		 VALUES (:id, :sku, :on_hand, :reserved, :uom, :min_qty, :batch_code, :batch_expires_at, :version, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &inventory.Error{Kind: inventory.KindConflict, Op: "save", Err: err}
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *SQLRepository) updateItem(ctx context.Context, tx *sqlx.Tx, row itemRow) error {
	result, err := tx.NamedExecContext(ctx, `
		UPDATE inventory_items
		SET sku = :sku, on_hand = :on_hand, reserved = :reserved, uom = :uom, min_qty = :min_qty,
		    batch_code = :batch_code, batch_expires_at = :batch_expires_at,
		    version = version + 1, updated_at = :updated_at
		WHERE id = :id AND version = :version`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &inventory.Error{Kind: inventory.KindAlreadyExists, Op: "save", Err: err}
		}
		return fmt.Errorf("update item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if rows == 0 {
		return &inventory.Error{
			Kind: inventory.KindConflict,
			Op:   "save",
			Err:  fmt.Errorf("item %s changed since version %d", row.ID, row.Version),
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}
