package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Promotion is a stored promotion rule. Tiers holds the progressive-discount
// tier list as JSON; ScopeIds is interpreted according to Scope.
type Promotion struct {
	ID         pgtype.UUID
	Name       string
	Active     bool
	Mechanism  string
	TakeQty    pgtype.Int4
	PayQty     pgtype.Int4
	Tiers      []byte
	Scope      string
	ScopeIds   []pgtype.UUID
	Combinable bool
	ValidFrom  pgtype.Timestamptz
	ValidTo    pgtype.Timestamptz
	CustomTag  pgtype.Text
	CreatedAt  pgtype.Timestamptz
	UpdatedAt  pgtype.Timestamptz
}

const promotionColumns = `id, name, active, mechanism, take_qty, pay_qty, tiers, scope, scope_ids, combinable, valid_from, valid_to, custom_tag, created_at, updated_at`

func scanPromotion(row pgx.CollectableRow) (Promotion, error) {
	var p Promotion
	err := row.Scan(&p.ID, &p.Name, &p.Active, &p.Mechanism, &p.TakeQty, &p.PayQty, &p.Tiers, &p.Scope, &p.ScopeIds, &p.Combinable, &p.ValidFrom, &p.ValidTo, &p.CustomTag, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListPromotions returns every promotion ordered by creation time.
func (q *Queries) ListPromotions(ctx context.Context) ([]Promotion, error) {
	rows, err := q.db.Query(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// ListActivePromotions returns promotions flagged active. Window filtering is
// left to the engine, which also receives rules whose window has lapsed.
func (q *Queries) ListActivePromotions(ctx context.Context) ([]Promotion, error) {
	rows, err := q.db.Query(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// GetPromotion loads a single promotion by id.
func (q *Queries) GetPromotion(ctx context.Context, id pgtype.UUID) (Promotion, error) {
	rows, err := q.db.Query(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id)
	if err != nil {
		return Promotion{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanPromotion)
}

// CreatePromotionParams groups insert values for a promotion.
type CreatePromotionParams struct {
	Name       string
	Active     bool
	Mechanism  string
	TakeQty    pgtype.Int4
	PayQty     pgtype.Int4
	Tiers      []byte
	Scope      string
	ScopeIds   []pgtype.UUID
	Combinable bool
	ValidFrom  pgtype.Timestamptz
	ValidTo    pgtype.Timestamptz
	CustomTag  pgtype.Text
}

// CreatePromotion inserts a promotion and returns the stored row.
func (q *Queries) CreatePromotion(ctx context.Context, arg CreatePromotionParams) (Promotion, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO promotions (name, active, mechanism, take_qty, pay_qty, tiers, scope, scope_ids, combinable, valid_from, valid_to, custom_tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+promotionColumns,
		arg.Name, arg.Active, arg.Mechanism, arg.TakeQty, arg.PayQty, arg.Tiers, arg.Scope, arg.ScopeIds, arg.Combinable, arg.ValidFrom, arg.ValidTo, arg.CustomTag)
	if err != nil {
		return Promotion{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanPromotion)
}

// UpdatePromotionParams groups update values for a promotion.
type UpdatePromotionParams struct {
	ID         pgtype.UUID
	Name       string
	Active     bool
	Mechanism  string
	TakeQty    pgtype.Int4
	PayQty     pgtype.Int4
	Tiers      []byte
	Scope      string
	ScopeIds   []pgtype.UUID
	Combinable bool
	ValidFrom  pgtype.Timestamptz
	ValidTo    pgtype.Timestamptz
	CustomTag  pgtype.Text
}

// UpdatePromotion overwrites a promotion and returns the stored row.
func (q *Queries) UpdatePromotion(ctx context.Context, arg UpdatePromotionParams) (Promotion, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE promotions
		SET name = $2, active = $3, mechanism = $4, take_qty = $5, pay_qty = $6, tiers = $7,
			scope = $8, scope_ids = $9, combinable = $10, valid_from = $11, valid_to = $12,
			custom_tag = $13, updated_at = now()
		WHERE id = $1
		RETURNING `+promotionColumns,
		arg.ID, arg.Name, arg.Active, arg.Mechanism, arg.TakeQty, arg.PayQty, arg.Tiers, arg.Scope, arg.ScopeIds, arg.Combinable, arg.ValidFrom, arg.ValidTo, arg.CustomTag)
	if err != nil {
		return Promotion{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanPromotion)
}

// SetPromotionActive toggles the active flag.
func (q *Queries) SetPromotionActive(ctx context.Context, id pgtype.UUID, active bool) error {
	_, err := q.db.Exec(ctx, `UPDATE promotions SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	return err
}

// DeletePromotion removes a promotion.
func (q *Queries) DeletePromotion(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	return err
}
