package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Invoice is a persisted, numbered sale document.
type Invoice struct {
	ID              pgtype.UUID
	PointOfSale     int32
	Number          int64
	InvoiceType     string
	CustomerID      pgtype.UUID
	CustomerName    pgtype.Text
	FiscalCondition pgtype.Text
	Currency        string
	Subtotal        decimal.Decimal
	ItemDiscounts   decimal.Decimal
	GeneralDiscount decimal.Decimal
	DiscountsTotal  decimal.Decimal
	VatRate         decimal.Decimal
	VatAmount       decimal.Decimal
	GrandTotal      decimal.Decimal
	CreatedAt       pgtype.Timestamptz
}

// InvoiceLine is one priced item on an invoice.
type InvoiceLine struct {
	ID             pgtype.UUID
	InvoiceID      pgtype.UUID
	ItemID         pgtype.UUID
	ItemKind       string
	Name           string
	Qty            int32
	UnitPrice      decimal.Decimal
	AutoDiscount   decimal.Decimal
	ManualDiscount decimal.Decimal
	LineTotal      decimal.Decimal
}

// InvoiceDiscount itemises one promotion's contribution to one line so the
// printed document can list discounts without re-deriving them.
type InvoiceDiscount struct {
	ID          pgtype.UUID
	InvoiceID   pgtype.UUID
	LineID      pgtype.UUID
	PromotionID pgtype.UUID
	Name        string
	Amount      decimal.Decimal
}

// NextInvoiceNumber advances and returns the sequential counter for a point
// of sale and invoice type. Must run inside the invoice transaction.
func (q *Queries) NextInvoiceNumber(ctx context.Context, pointOfSale int32, invoiceType string) (int64, error) {
	var number int64
	err := q.db.QueryRow(ctx, `
		INSERT INTO invoice_counters (point_of_sale, invoice_type, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (point_of_sale, invoice_type)
		DO UPDATE SET last_number = invoice_counters.last_number + 1
		RETURNING last_number`, pointOfSale, invoiceType).Scan(&number)
	return number, err
}

const invoiceColumns = `id, point_of_sale, number, invoice_type, customer_id, customer_name, fiscal_condition, currency, subtotal, item_discounts, general_discount, discounts_total, vat_rate, vat_amount, grand_total, created_at`

func scanInvoice(row pgx.CollectableRow) (Invoice, error) {
	var i Invoice
	err := row.Scan(&i.ID, &i.PointOfSale, &i.Number, &i.InvoiceType, &i.CustomerID, &i.CustomerName, &i.FiscalCondition, &i.Currency, &i.Subtotal, &i.ItemDiscounts, &i.GeneralDiscount, &i.DiscountsTotal, &i.VatRate, &i.VatAmount, &i.GrandTotal, &i.CreatedAt)
	return i, err
}

// CreateInvoiceParams groups insert values for an invoice header.
type CreateInvoiceParams struct {
	PointOfSale     int32
	Number          int64
	InvoiceType     string
	CustomerID      pgtype.UUID
	CustomerName    pgtype.Text
	FiscalCondition pgtype.Text
	Currency        string
	Subtotal        decimal.Decimal
	ItemDiscounts   decimal.Decimal
	GeneralDiscount decimal.Decimal
	DiscountsTotal  decimal.Decimal
	VatRate         decimal.Decimal
	VatAmount       decimal.Decimal
	GrandTotal      decimal.Decimal
}

// CreateInvoice inserts an invoice header and returns the stored row.
func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO invoices (point_of_sale, number, invoice_type, customer_id, customer_name, fiscal_condition, currency,
			subtotal, item_discounts, general_discount, discounts_total, vat_rate, vat_amount, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+invoiceColumns,
		arg.PointOfSale, arg.Number, arg.InvoiceType, arg.CustomerID, arg.CustomerName, arg.FiscalCondition, arg.Currency,
		arg.Subtotal, arg.ItemDiscounts, arg.GeneralDiscount, arg.DiscountsTotal, arg.VatRate, arg.VatAmount, arg.GrandTotal)
	if err != nil {
		return Invoice{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanInvoice)
}

// CreateInvoiceLineParams groups insert values for an invoice line.
type CreateInvoiceLineParams struct {
	InvoiceID      pgtype.UUID
	ItemID         pgtype.UUID
	ItemKind       string
	Name           string
	Qty            int32
	UnitPrice      decimal.Decimal
	AutoDiscount   decimal.Decimal
	ManualDiscount decimal.Decimal
	LineTotal      decimal.Decimal
}

// CreateInvoiceLine inserts an invoice line and returns its id.
func (q *Queries) CreateInvoiceLine(ctx context.Context, arg CreateInvoiceLineParams) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx, `
		INSERT INTO invoice_lines (invoice_id, item_id, item_kind, name, qty, unit_price, auto_discount, manual_discount, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		arg.InvoiceID, arg.ItemID, arg.ItemKind, arg.Name, arg.Qty, arg.UnitPrice, arg.AutoDiscount, arg.ManualDiscount, arg.LineTotal).Scan(&id)
	return id, err
}

// CreateInvoiceDiscountParams groups insert values for a discount entry.
type CreateInvoiceDiscountParams struct {
	InvoiceID   pgtype.UUID
	LineID      pgtype.UUID
	PromotionID pgtype.UUID
	Name        string
	Amount      decimal.Decimal
}

// CreateInvoiceDiscount records one promotion's contribution to a line.
func (q *Queries) CreateInvoiceDiscount(ctx context.Context, arg CreateInvoiceDiscountParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO invoice_discounts (invoice_id, line_id, promotion_id, name, amount)
		VALUES ($1, $2, $3, $4, $5)`,
		arg.InvoiceID, arg.LineID, arg.PromotionID, arg.Name, arg.Amount)
	return err
}

// GetInvoice loads an invoice header by id.
func (q *Queries) GetInvoice(ctx context.Context, id pgtype.UUID) (Invoice, error) {
	rows, err := q.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	if err != nil {
		return Invoice{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanInvoice)
}

// ListInvoices returns a page of invoices, newest first.
func (q *Queries) ListInvoices(ctx context.Context, limit, offset int32) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanInvoice)
}

// CountInvoices returns the total number of invoices.
func (q *Queries) CountInvoices(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM invoices`).Scan(&count)
	return count, err
}

// ListInvoiceLines returns the lines of an invoice.
func (q *Queries) ListInvoiceLines(ctx context.Context, invoiceID pgtype.UUID) ([]InvoiceLine, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, invoice_id, item_id, item_kind, name, qty, unit_price, auto_discount, manual_discount, line_total
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (InvoiceLine, error) {
		var l InvoiceLine
		err := row.Scan(&l.ID, &l.InvoiceID, &l.ItemID, &l.ItemKind, &l.Name, &l.Qty, &l.UnitPrice, &l.AutoDiscount, &l.ManualDiscount, &l.LineTotal)
		return l, err
	})
}

// ListInvoiceDiscounts returns the discount breakdown of an invoice.
func (q *Queries) ListInvoiceDiscounts(ctx context.Context, invoiceID pgtype.UUID) ([]InvoiceDiscount, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, invoice_id, line_id, promotion_id, name, amount
		FROM invoice_discounts WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (InvoiceDiscount, error) {
		var d InvoiceDiscount
		err := row.Scan(&d.ID, &d.InvoiceID, &d.LineID, &d.PromotionID, &d.Name, &d.Amount)
		return d, err
	})
}

// GetProductStockForUpdate locks a product row and returns its stock. Must
// run inside the invoice transaction.
func (q *Queries) GetProductStockForUpdate(ctx context.Context, id pgtype.UUID) (int32, error) {
	var stock int32
	err := q.db.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&stock)
	return stock, err
}

// DecrementProductStock subtracts sold units from a product's stock.
func (q *Queries) DecrementProductStock(ctx context.Context, id pgtype.UUID, qty int32) error {
	_, err := q.db.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1`, id, qty)
	return err
}
