package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id               VARCHAR(36) PRIMARY KEY,
		sku              VARCHAR(128) NOT NULL UNIQUE,
		on_hand          INTEGER NOT NULL CHECK (on_hand >= 0),
		reserved         INTEGER NOT NULL CHECK (reserved >= 0),
		uom              VARCHAR(32) NOT NULL,
		min_qty          INTEGER NOT NULL DEFAULT 0,
		batch_code       VARCHAR(128),
		batch_expires_at TIMESTAMPTZ,
		version          INTEGER NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id         VARCHAR(36) PRIMARY KEY,
		order_id   VARCHAR(128) NOT NULL,
		sku        VARCHAR(128) NOT NULL,
		qty        INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_sku ON reservations (sku)`,
	`CREATE TABLE IF NOT EXISTS stock_moves (
		id         VARCHAR(36) PRIMARY KEY,
		item_id    VARCHAR(36) NOT NULL REFERENCES inventory_items (id),
		seq        INTEGER NOT NULL,
		kind       VARCHAR(16) NOT NULL,
		qty        INTEGER NOT NULL,
		reason     VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (item_id, seq)
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id               VARCHAR(36) PRIMARY KEY,
		sku              VARCHAR(128) NOT NULL UNIQUE,
		on_hand          INT NOT NULL,
		reserved         INT NOT NULL,
		uom              VARCHAR(32) NOT NULL,
		min_qty          INT NOT NULL DEFAULT 0,
		batch_code       VARCHAR(128) NULL,
		batch_expires_at DATETIME(6) NULL,
		version          INT NOT NULL,
		created_at       DATETIME(6) NOT NULL,
		updated_at       DATETIME(6) NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id         VARCHAR(36) PRIMARY KEY,
		order_id   VARCHAR(128) NOT NULL,
		sku        VARCHAR(128) NOT NULL,
		qty        INT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_reservations_sku (sku)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS stock_moves (
		id         VARCHAR(36) PRIMARY KEY,
		item_id    VARCHAR(36) NOT NULL,
		seq        INT NOT NULL,
		kind       VARCHAR(16) NOT NULL,
		qty        INT NOT NULL,
		reason     VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_stock_moves_item_seq (item_id, seq),
		CONSTRAINT fk_stock_moves_item FOREIGN KEY (item_id) REFERENCES inventory_items (id)
	) ENGINE=InnoDB`,
}

// Migrate creates the inventory tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB, dialect Dialect) error {
	var statements []string
	switch dialect {
	case DialectPostgres:
		statements = postgresSchema
	case DialectMySQL:
		statements = mysqlSchema
	default:
		return fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
