package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Product is a stock-tracked sellable item.
type Product struct {
	ID            pgtype.UUID
	SKU           string
	Name          string
	CategoryID    pgtype.UUID
	SubcategoryID pgtype.UUID
	UnitID        pgtype.UUID
	Price         decimal.Decimal
	Stock         int32
	Active        bool
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

// Service is a sellable service; services carry no stock.
type Service struct {
	ID         pgtype.UUID
	Name       string
	CategoryID pgtype.UUID
	Price      decimal.Decimal
	Active     bool
	CreatedAt  pgtype.Timestamptz
	UpdatedAt  pgtype.Timestamptz
}

// RefEntry is a generic reference-table row (categories, units).
type RefEntry struct {
	ID       pgtype.UUID
	ParentID pgtype.UUID
	Name     string
	Code     pgtype.Text
}

const productColumns = `id, sku, name, category_id, subcategory_id, unit_id, price, stock, active, created_at, updated_at`

func scanProduct(row pgx.CollectableRow) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.CategoryID, &p.SubcategoryID, &p.UnitID, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListProducts returns a page of products ordered by name.
func (q *Queries) ListProducts(ctx context.Context, limit, offset int32) ([]Product, error) {
	rows, err := q.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProduct)
}

// CountProducts returns the total number of products.
func (q *Queries) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&count)
	return count, err
}

// GetProduct loads a single product by id.
func (q *Queries) GetProduct(ctx context.Context, id pgtype.UUID) (Product, error) {
	rows, err := q.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		return Product{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanProduct)
}

// CreateProductParams groups insert values for a product.
type CreateProductParams struct {
	SKU           string
	Name          string
	CategoryID    pgtype.UUID
	SubcategoryID pgtype.UUID
	UnitID        pgtype.UUID
	Price         decimal.Decimal
	Stock         int32
	Active        bool
}

// CreateProduct inserts a product and returns the stored row.
func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO products (sku, name, category_id, subcategory_id, unit_id, price, stock, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		arg.SKU, arg.Name, arg.CategoryID, arg.SubcategoryID, arg.UnitID, arg.Price, arg.Stock, arg.Active)
	if err != nil {
		return Product{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanProduct)
}

// UpdateProductParams groups update values for a product.
type UpdateProductParams struct {
	ID            pgtype.UUID
	SKU           string
	Name          string
	CategoryID    pgtype.UUID
	SubcategoryID pgtype.UUID
	UnitID        pgtype.UUID
	Price         decimal.Decimal
	Stock         int32
	Active        bool
}

// UpdateProduct overwrites a product and returns the stored row.
func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE products
		SET sku = $2, name = $3, category_id = $4, subcategory_id = $5, unit_id = $6,
			price = $7, stock = $8, active = $9, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		arg.ID, arg.SKU, arg.Name, arg.CategoryID, arg.SubcategoryID, arg.UnitID, arg.Price, arg.Stock, arg.Active)
	if err != nil {
		return Product{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanProduct)
}

// DeleteProduct removes a product.
func (q *Queries) DeleteProduct(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

const serviceColumns = `id, name, category_id, price, active, created_at, updated_at`

func scanService(row pgx.CollectableRow) (Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.Name, &s.CategoryID, &s.Price, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// ListServices returns a page of services ordered by name.
func (q *Queries) ListServices(ctx context.Context, limit, offset int32) ([]Service, error) {
	rows, err := q.db.Query(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanService)
}

// CountServices returns the total number of services.
func (q *Queries) CountServices(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM services`).Scan(&count)
	return count, err
}

// GetService loads a single service by id.
func (q *Queries) GetService(ctx context.Context, id pgtype.UUID) (Service, error) {
	rows, err := q.db.Query(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	if err != nil {
		return Service{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanService)
}

// CreateServiceParams groups insert values for a service.
type CreateServiceParams struct {
	Name       string
	CategoryID pgtype.UUID
	Price      decimal.Decimal
	Active     bool
}

// CreateService inserts a service and returns the stored row.
func (q *Queries) CreateService(ctx context.Context, arg CreateServiceParams) (Service, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO services (name, category_id, price, active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+serviceColumns,
		arg.Name, arg.CategoryID, arg.Price, arg.Active)
	if err != nil {
		return Service{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanService)
}

// UpdateServiceParams groups update values for a service.
type UpdateServiceParams struct {
	ID         pgtype.UUID
	Name       string
	CategoryID pgtype.UUID
	Price      decimal.Decimal
	Active     bool
}

// UpdateService overwrites a service and returns the stored row.
func (q *Queries) UpdateService(ctx context.Context, arg UpdateServiceParams) (Service, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE services
		SET name = $2, category_id = $3, price = $4, active = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+serviceColumns,
		arg.ID, arg.Name, arg.CategoryID, arg.Price, arg.Active)
	if err != nil {
		return Service{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanService)
}

// DeleteService removes a service.
func (q *Queries) DeleteService(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	return err
}

func scanRefEntry(row pgx.CollectableRow) (RefEntry, error) {
	var e RefEntry
	err := row.Scan(&e.ID, &e.ParentID, &e.Name, &e.Code)
	return e, err
}

// ListProductCategories returns every product category.
func (q *Queries) ListProductCategories(ctx context.Context) ([]RefEntry, error) {
	rows, err := q.db.Query(ctx, `SELECT id, NULL::uuid, name, NULL::text FROM product_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRefEntry)
}

// CreateProductCategory inserts a product category.
func (q *Queries) CreateProductCategory(ctx context.Context, name string) (RefEntry, error) {
	rows, err := q.db.Query(ctx, `INSERT INTO product_categories (name) VALUES ($1) RETURNING id, NULL::uuid, name, NULL::text`, name)
	if err != nil {
		return RefEntry{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanRefEntry)
}

// DeleteProductCategory removes a product category.
func (q *Queries) DeleteProductCategory(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM product_categories WHERE id = $1`, id)
	return err
}

// ListProductSubcategories returns every product subcategory with its parent.
func (q *Queries) ListProductSubcategories(ctx context.Context) ([]RefEntry, error) {
	rows, err := q.db.Query(ctx, `SELECT id, category_id, name, NULL::text FROM product_subcategories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRefEntry)
}

// CreateProductSubcategory inserts a subcategory under a category.
func (q *Queries) CreateProductSubcategory(ctx context.Context, categoryID pgtype.UUID, name string) (RefEntry, error) {
	rows, err := q.db.Query(ctx, `INSERT INTO product_subcategories (category_id, name) VALUES ($1, $2) RETURNING id, category_id, name, NULL::text`, categoryID, name)
	if err != nil {
		return RefEntry{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanRefEntry)
}

// DeleteProductSubcategory removes a product subcategory.
func (q *Queries) DeleteProductSubcategory(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM product_subcategories WHERE id = $1`, id)
	return err
}

// ListServiceCategories returns every service category.
func (q *Queries) ListServiceCategories(ctx context.Context) ([]RefEntry, error) {
	rows, err := q.db.Query(ctx, `SELECT id, NULL::uuid, name, NULL::text FROM service_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRefEntry)
}

// CreateServiceCategory inserts a service category.
func (q *Queries) CreateServiceCategory(ctx context.Context, name string) (RefEntry, error) {
	rows, err := q.db.Query(ctx, `INSERT INTO service_categories (name) VALUES ($1) RETURNING id, NULL::uuid, name, NULL::text`, name)
	if err != nil {
		return RefEntry{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanRefEntry)
}

// DeleteServiceCategory removes a service category.
func (q *Queries) DeleteServiceCategory(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM service_categories WHERE id = $1`, id)
	return err
}

// ListUnits returns every unit of sale.
func (q *Queries) ListUnits(ctx context.Context) ([]RefEntry, error) {
	rows, err := q.db.Query(ctx, `SELECT id, NULL::uuid, name, abbrev FROM units ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRefEntry)
}

// CreateUnit inserts a unit of sale.
func (q *Queries) CreateUnit(ctx context.Context, name string, abbrev pgtype.Text) (RefEntry, error) {
	rows, err := q.db.Query(ctx, `INSERT INTO units (name, abbrev) VALUES ($1, $2) RETURNING id, NULL::uuid, name, abbrev`, name, abbrev)
	if err != nil {
		return RefEntry{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanRefEntry)
}

// DeleteUnit removes a unit of sale.
func (q *Queries) DeleteUnit(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM units WHERE id = $1`, id)
	return err
}
