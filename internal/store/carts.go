package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Cart is a working invoice-editing session.
type Cart struct {
	ID                  pgtype.UUID
	CustomerID          pgtype.UUID
	GeneralDiscount     decimal.Decimal
	GeneralDiscountType string
	ExpiresAt           pgtype.Timestamptz
	CreatedAt           pgtype.Timestamptz
	UpdatedAt           pgtype.Timestamptz
}

// CartLine is one entry in a cart. Category and subcategory are catalog
// snapshots taken when the line was added; the promotion engine matches
// against them.
type CartLine struct {
	ID                 pgtype.UUID
	CartID             pgtype.UUID
	ItemID             pgtype.UUID
	ItemKind           string
	Name               string
	CategoryID         pgtype.UUID
	SubcategoryID      pgtype.UUID
	Qty                int32
	UnitPrice          decimal.Decimal
	ManualDiscount     decimal.Decimal
	ManualDiscountType string
	CreatedAt          pgtype.Timestamptz
}

const cartColumns = `id, customer_id, general_discount, general_discount_type, expires_at, created_at, updated_at`

func scanCart(row pgx.CollectableRow) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.CustomerID, &c.GeneralDiscount, &c.GeneralDiscountType, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateCart opens a new editing session expiring at the given instant.
func (q *Queries) CreateCart(ctx context.Context, customerID pgtype.UUID, expiresAt pgtype.Timestamptz) (Cart, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO carts (customer_id, expires_at) VALUES ($1, $2)
		RETURNING `+cartColumns, customerID, expiresAt)
	if err != nil {
		return Cart{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCart)
}

// GetCart loads a cart by id.
func (q *Queries) GetCart(ctx context.Context, id pgtype.UUID) (Cart, error) {
	rows, err := q.db.Query(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	if err != nil {
		return Cart{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCart)
}

// TouchCart extends the cart's expiry.
func (q *Queries) TouchCart(ctx context.Context, id pgtype.UUID, expiresAt pgtype.Timestamptz) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`, id, expiresAt)
	return err
}

// UpdateCartCustomer attaches or detaches the customer the invoice is for.
func (q *Queries) UpdateCartCustomer(ctx context.Context, id pgtype.UUID, customerID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET customer_id = $2, updated_at = now() WHERE id = $1`, id, customerID)
	return err
}

// UpdateCartGeneralDiscount sets the order-level discount.
func (q *Queries) UpdateCartGeneralDiscount(ctx context.Context, id pgtype.UUID, value decimal.Decimal, discountType string) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET general_discount = $2, general_discount_type = $3, updated_at = now() WHERE id = $1`, id, value, discountType)
	return err
}

// DeleteCart discards a cart together with its lines.
func (q *Queries) DeleteCart(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	return err
}

const cartLineColumns = `id, cart_id, item_id, item_kind, name, category_id, subcategory_id, qty, unit_price, manual_discount, manual_discount_type, created_at`

func scanCartLine(row pgx.CollectableRow) (CartLine, error) {
	var l CartLine
	err := row.Scan(&l.ID, &l.CartID, &l.ItemID, &l.ItemKind, &l.Name, &l.CategoryID, &l.SubcategoryID, &l.Qty, &l.UnitPrice, &l.ManualDiscount, &l.ManualDiscountType, &l.CreatedAt)
	return l, err
}

// CreateCartLineParams groups insert values for a cart line.
type CreateCartLineParams struct {
	CartID             pgtype.UUID
	ItemID             pgtype.UUID
	ItemKind           string
	Name               string
	CategoryID         pgtype.UUID
	SubcategoryID      pgtype.UUID
	Qty                int32
	UnitPrice          decimal.Decimal
	ManualDiscount     decimal.Decimal
	ManualDiscountType string
}

// CreateCartLine inserts a line and returns the stored row.
func (q *Queries) CreateCartLine(ctx context.Context, arg CreateCartLineParams) (CartLine, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO cart_lines (cart_id, item_id, item_kind, name, category_id, subcategory_id, qty, unit_price, manual_discount, manual_discount_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+cartLineColumns,
		arg.CartID, arg.ItemID, arg.ItemKind, arg.Name, arg.CategoryID, arg.SubcategoryID, arg.Qty, arg.UnitPrice, arg.ManualDiscount, arg.ManualDiscountType)
	if err != nil {
		return CartLine{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCartLine)
}

// FindCartLineByItem locates an existing line for the item within a cart.
func (q *Queries) FindCartLineByItem(ctx context.Context, cartID, itemID pgtype.UUID, itemKind string) (CartLine, error) {
	rows, err := q.db.Query(ctx, `SELECT `+cartLineColumns+` FROM cart_lines WHERE cart_id = $1 AND item_id = $2 AND item_kind = $3`, cartID, itemID, itemKind)
	if err != nil {
		return CartLine{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCartLine)
}

// GetCartLine loads a line by id.
func (q *Queries) GetCartLine(ctx context.Context, id pgtype.UUID) (CartLine, error) {
	rows, err := q.db.Query(ctx, `SELECT `+cartLineColumns+` FROM cart_lines WHERE id = $1`, id)
	if err != nil {
		return CartLine{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCartLine)
}

// UpdateCartLineQty replaces the quantity of a line.
func (q *Queries) UpdateCartLineQty(ctx context.Context, id pgtype.UUID, qty int32) (CartLine, error) {
	rows, err := q.db.Query(ctx, `UPDATE cart_lines SET qty = $2 WHERE id = $1 RETURNING `+cartLineColumns, id, qty)
	if err != nil {
		return CartLine{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCartLine)
}

// UpdateCartLineDiscount replaces the manual discount of a line.
func (q *Queries) UpdateCartLineDiscount(ctx context.Context, id pgtype.UUID, value decimal.Decimal, discountType string) (CartLine, error) {
	rows, err := q.db.Query(ctx, `UPDATE cart_lines SET manual_discount = $2, manual_discount_type = $3 WHERE id = $1 RETURNING `+cartLineColumns, id, value, discountType)
	if err != nil {
		return CartLine{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCartLine)
}

// DeleteCartLine removes a line from its cart.
func (q *Queries) DeleteCartLine(ctx context.Context, id, cartID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND cart_id = $2`, id, cartID)
	return err
}

// ListCartLines returns the lines of a cart in insertion order.
func (q *Queries) ListCartLines(ctx context.Context, cartID pgtype.UUID) ([]CartLine, error) {
	rows, err := q.db.Query(ctx, `SELECT `+cartLineColumns+` FROM cart_lines WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanCartLine)
}
