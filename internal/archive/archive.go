// Package archive persists extracted orders in a local SQLite database so
// reports can be rebuilt without re-scanning the mailbox.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/arda-labs/reorder-cli/internal/model"
)

// Archive stores extracted orders using modernc.org/sqlite.
type Archive struct {
	db *sql.DB
}

// Open opens a SQLite database at the given path and configures WAL mode.
func Open(dsn string) (*Archive, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "archive: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "archive: exec %s", pragma)
		}
	}
	return &Archive{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS orders (
	id                TEXT PRIMARY KEY,
	original_email_id TEXT NOT NULL UNIQUE,
	supplier          TEXT NOT NULL,
	order_date        DATETIME NOT NULL,
	total_amount      REAL,
	confidence        REAL NOT NULL,
	items             TEXT NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_orders_supplier ON orders(supplier);
CREATE INDEX IF NOT EXISTS idx_orders_order_date ON orders(order_date);
`

func (a *Archive) Migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "archive: migrate")
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveOrders inserts orders, skipping any whose source email was archived
// before. Re-running a scan over an already-processed mailbox window is
// therefore safe. Returns the number of newly inserted orders.
func (a *Archive) SaveOrders(ctx context.Context, orders []model.ExtractedOrder) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "archive: begin tx")
	}
	defer tx.Rollback()

	inserted := 0
	for _, o := range orders {
		itemsJSON, err := json.Marshal(o.Items)
		if err != nil {
			return 0, eris.Wrapf(err, "archive: marshal items for order %s", o.ID)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO orders (id, original_email_id, supplier, order_date, total_amount, confidence, items)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.OriginalEmailID, o.Supplier, o.OrderDate.UTC(), o.TotalAmount, o.Confidence, string(itemsJSON),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "archive: insert order %s", o.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "archive: rows affected")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "archive: commit")
	}

	if inserted < len(orders) {
		zap.L().Debug("skipped already archived orders",
			zap.Int("submitted", len(orders)),
			zap.Int("inserted", inserted),
		)
	}
	return inserted, nil
}

// LoadAll returns every archived order, oldest first.
func (a *Archive) LoadAll(ctx context.Context) ([]model.ExtractedOrder, error) {
	return a.load(ctx,
		`SELECT id, original_email_id, supplier, order_date, total_amount, confidence, items
		 FROM orders ORDER BY order_date ASC, id ASC`)
}

// LoadSince returns archived orders placed on or after the cutoff, oldest
// first.
func (a *Archive) LoadSince(ctx context.Context, cutoff time.Time) ([]model.ExtractedOrder, error) {
	return a.load(ctx,
		`SELECT id, original_email_id, supplier, order_date, total_amount, confidence, items
		 FROM orders WHERE order_date >= ? ORDER BY order_date ASC, id ASC`,
		cutoff.UTC())
}

func (a *Archive) load(ctx context.Context, query string, args ...any) ([]model.ExtractedOrder, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "archive: query orders")
	}
	defer rows.Close()

	var orders []model.ExtractedOrder
	for rows.Next() {
		var (
			o         model.ExtractedOrder
			total     sql.NullFloat64
			itemsJSON string
		)
		if err := rows.Scan(&o.ID, &o.OriginalEmailID, &o.Supplier, &o.OrderDate, &total, &o.Confidence, &itemsJSON); err != nil {
			return nil, eris.Wrap(err, "archive: scan order")
		}
		if total.Valid {
			v := total.Float64
			o.TotalAmount = &v
		}
		if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
			return nil, eris.Wrapf(err, "archive: unmarshal items for order %s", o.ID)
		}
		orders = append(orders, o)
	}
	return orders, eris.Wrap(rows.Err(), "archive: iterate orders")
}

// Count returns the number of archived orders.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n)
	return n, eris.Wrap(err, "archive: count orders")
}
