package promo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Prjsupa/vivero-api/internal/common"
	"github.com/Prjsupa/vivero-api/internal/promo"
	"github.com/Prjsupa/vivero-api/internal/store"
)

type stubQueries struct {
	rows map[uuid.UUID]store.Promotion
}

func newStubQueries() *stubQueries {
	return &stubQueries{rows: map[uuid.UUID]store.Promotion{}}
}

func (s *stubQueries) ListPromotions(context.Context) ([]store.Promotion, error) {
	out := make([]store.Promotion, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubQueries) ListActivePromotions(ctx context.Context) ([]store.Promotion, error) {
	out := make([]store.Promotion, 0, len(s.rows))
	for _, p := range s.rows {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubQueries) GetPromotion(_ context.Context, id pgtype.UUID) (store.Promotion, error) {
	p, ok := s.rows[uuid.UUID(id.Bytes)]
	if !ok {
		return store.Promotion{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *stubQueries) CreatePromotion(_ context.Context, arg store.CreatePromotionParams) (store.Promotion, error) {
	id := uuid.New()
	p := store.Promotion{
		ID:         pgtype.UUID{Bytes: id, Valid: true},
		Name:       arg.Name,
		Active:     arg.Active,
		Mechanism:  arg.Mechanism,
		TakeQty:    arg.TakeQty,
		PayQty:     arg.PayQty,
		Tiers:      arg.Tiers,
		Scope:      arg.Scope,
		ScopeIds:   arg.ScopeIds,
		Combinable: arg.Combinable,
		ValidFrom:  arg.ValidFrom,
		ValidTo:    arg.ValidTo,
		CustomTag:  arg.CustomTag,
	}
	s.rows[id] = p
	return p, nil
}

func (s *stubQueries) UpdatePromotion(_ context.Context, arg store.UpdatePromotionParams) (store.Promotion, error) {
	id := uuid.UUID(arg.ID.Bytes)
	if _, ok := s.rows[id]; !ok {
		return store.Promotion{}, pgx.ErrNoRows
	}
	p := store.Promotion{
		ID:         arg.ID,
		Name:       arg.Name,
		Active:     arg.Active,
		Mechanism:  arg.Mechanism,
		TakeQty:    arg.TakeQty,
		PayQty:     arg.PayQty,
		Tiers:      arg.Tiers,
		Scope:      arg.Scope,
		ScopeIds:   arg.ScopeIds,
		Combinable: arg.Combinable,
		ValidFrom:  arg.ValidFrom,
		ValidTo:    arg.ValidTo,
		CustomTag:  arg.CustomTag,
	}
	s.rows[id] = p
	return p, nil
}

func (s *stubQueries) SetPromotionActive(_ context.Context, id pgtype.UUID, active bool) error {
	p, ok := s.rows[uuid.UUID(id.Bytes)]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Active = active
	s.rows[uuid.UUID(id.Bytes)] = p
	return nil
}

func (s *stubQueries) DeletePromotion(_ context.Context, id pgtype.UUID) error {
	delete(s.rows, uuid.UUID(id.Bytes))
	return nil
}

func intPtr(v int) *int { return &v }

func TestRuleFromModelParsesTiers(t *testing.T) {
	id := uuid.New()
	model := store.Promotion{
		ID:        pgtype.UUID{Bytes: id, Valid: true},
		Name:      "Descuento por cantidad",
		Active:    true,
		Mechanism: "progressive_discount",
		Tiers:     []byte(`[{"quantity":2,"percentage":"10"},{"quantity":5,"percentage":"20"}]`),
		Scope:     "all_products",
	}
	rule := promo.RuleFromModel(model, zerolog.Nop())
	require.Equal(t, id, rule.ID)
	require.Len(t, rule.Tiers, 2)
	require.Equal(t, 5, rule.Tiers[1].Quantity)
}

func TestRuleFromModelMalformedTiersInert(t *testing.T) {
	model := store.Promotion{
		ID:        pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Name:      "rota",
		Active:    true,
		Mechanism: "progressive_discount",
		Tiers:     []byte(`{"not":"an array"`),
		Scope:     "all_store",
	}
	rule := promo.RuleFromModel(model, zerolog.Nop())
	require.Empty(t, rule.Tiers)
}

func TestCreateValidatesMechanism(t *testing.T) {
	svc := &promo.Service{Q: newStubQueries(), Log: zerolog.Nop()}

	_, err := svc.Create(context.Background(), promo.Input{
		Name:      "3x2 rosales",
		Mechanism: "x_for_y",
		TakeQty:   intPtr(3),
		PayQty:    intPtr(3),
		Scope:     "all_products",
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeValidation, appErr.Code)

	dto, err := svc.Create(context.Background(), promo.Input{
		Name:      "3x2 rosales",
		Mechanism: "x_for_y",
		TakeQty:   intPtr(3),
		PayQty:    intPtr(2),
		Scope:     "all_products",
	})
	require.NoError(t, err)
	require.True(t, dto.Active)
	require.Equal(t, "x_for_y", dto.Mechanism)
}

func TestCreateRejectsDuplicateTierThresholds(t *testing.T) {
	svc := &promo.Service{Q: newStubQueries(), Log: zerolog.Nop()}

	_, err := svc.Create(context.Background(), promo.Input{
		Name:      "volumen sustratos",
		Mechanism: "progressive_discount",
		Scope:     "all_products",
		Tiers: []promo.Tier{
			{Quantity: 5, Percentage: decimal.NewFromInt(10)},
			{Quantity: 5, Percentage: decimal.NewFromInt(20)},
		},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeValidation, appErr.Code)

	dto, err := svc.Create(context.Background(), promo.Input{
		Name:      "volumen sustratos",
		Mechanism: "progressive_discount",
		Scope:     "all_products",
		Tiers: []promo.Tier{
			{Quantity: 5, Percentage: decimal.NewFromInt(10)},
			{Quantity: 10, Percentage: decimal.NewFromInt(20)},
		},
	})
	require.NoError(t, err)
	require.Len(t, dto.Tiers, 2)
}

func TestPreviewAppliesActiveRules(t *testing.T) {
	q := newStubQueries()
	svc := &promo.Service{Q: q, Log: zerolog.Nop()}

	_, err := svc.Create(context.Background(), promo.Input{
		Name:      "3x2 en todo",
		Mechanism: "x_for_y",
		TakeQty:   intPtr(3),
		PayQty:    intPtr(2),
		Scope:     "all_store",
	})
	require.NoError(t, err)

	results, err := svc.Preview(context.Background(), []promo.PreviewLine{
		{ItemID: uuid.NewString(), Kind: "product", Qty: 3, UnitPrice: "100"},
	}, time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "100", results[0].Discount)
	require.Len(t, results[0].Applied, 1)
}
