package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Customer is a client record. FiscalCondition drives the invoice type and
// the applicable VAT regime.
type Customer struct {
	ID              pgtype.UUID
	Name            string
	DocNumber       pgtype.Text
	Email           pgtype.Text
	Phone           pgtype.Text
	Address         pgtype.Text
	FiscalCondition string
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

const customerColumns = `id, name, doc_number, email, phone, address, fiscal_condition, created_at, updated_at`

func scanCustomer(row pgx.CollectableRow) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.DocNumber, &c.Email, &c.Phone, &c.Address, &c.FiscalCondition, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListCustomers returns a page of customers ordered by name.
func (q *Queries) ListCustomers(ctx context.Context, limit, offset int32) ([]Customer, error) {
	rows, err := q.db.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanCustomer)
}

// CountCustomers returns the total number of customers.
func (q *Queries) CountCustomers(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&count)
	return count, err
}

// GetCustomer loads a single customer by id.
func (q *Queries) GetCustomer(ctx context.Context, id pgtype.UUID) (Customer, error) {
	rows, err := q.db.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	if err != nil {
		return Customer{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCustomer)
}

// CreateCustomerParams groups insert values for a customer.
type CreateCustomerParams struct {
	Name            string
	DocNumber       pgtype.Text
	Email           pgtype.Text
	Phone           pgtype.Text
	Address         pgtype.Text
	FiscalCondition string
}

// CreateCustomer inserts a customer and returns the stored row.
func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO customers (name, doc_number, email, phone, address, fiscal_condition)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+customerColumns,
		arg.Name, arg.DocNumber, arg.Email, arg.Phone, arg.Address, arg.FiscalCondition)
	if err != nil {
		return Customer{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCustomer)
}

// UpdateCustomerParams groups update values for a customer.
type UpdateCustomerParams struct {
	ID              pgtype.UUID
	Name            string
	DocNumber       pgtype.Text
	Email           pgtype.Text
	Phone           pgtype.Text
	Address         pgtype.Text
	FiscalCondition string
}

// UpdateCustomer overwrites a customer and returns the stored row.
func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE customers
		SET name = $2, doc_number = $3, email = $4, phone = $5, address = $6,
			fiscal_condition = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+customerColumns,
		arg.ID, arg.Name, arg.DocNumber, arg.Email, arg.Phone, arg.Address, arg.FiscalCondition)
	if err != nil {
		return Customer{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCustomer)
}

// DeleteCustomer removes a customer.
func (q *Queries) DeleteCustomer(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	return err
}
