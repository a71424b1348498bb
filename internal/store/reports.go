package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// SalesDay aggregates invoicing for one calendar day.
type SalesDay struct {
	Day       time.Time
	Invoices  int64
	Revenue   decimal.Decimal
	Discounts decimal.Decimal
}

// TopItem aggregates sold quantity and revenue for one catalog item.
type TopItem struct {
	ItemID   pgtype.UUID
	ItemKind string
	Name     string
	Qty      int64
	Revenue  decimal.Decimal
}

// GetSalesDailyRange returns per-day invoice counts and totals for the
// half-open range [from, to).
func (q *Queries) GetSalesDailyRange(ctx context.Context, from, to time.Time) ([]SalesDay, error) {
	rows, err := q.db.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day,
			count(*) AS invoices,
			COALESCE(sum(grand_total), 0) AS revenue,
			COALESCE(sum(discounts_total), 0) AS discounts
		FROM invoices
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SalesDay, error) {
		var d SalesDay
		err := row.Scan(&d.Day, &d.Invoices, &d.Revenue, &d.Discounts)
		return d, err
	})
}

// ListTopItems returns the best-selling items by quantity for the half-open
// range [from, to).
func (q *Queries) ListTopItems(ctx context.Context, from, to time.Time, limit int32) ([]TopItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT l.item_id, l.item_kind, l.name,
			sum(l.qty) AS qty,
			COALESCE(sum(l.line_total), 0) AS revenue
		FROM invoice_lines l
		JOIN invoices i ON i.id = l.invoice_id
		WHERE i.created_at >= $1 AND i.created_at < $2
		GROUP BY l.item_id, l.item_kind, l.name
		ORDER BY qty DESC
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TopItem, error) {
		var t TopItem
		err := row.Scan(&t.ItemID, &t.ItemKind, &t.Name, &t.Qty, &t.Revenue)
		return t, err
	})
}
