package promo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Prjsupa/vivero-api/internal/common"
	"github.com/Prjsupa/vivero-api/internal/store"
)

// Querier is the subset of store queries the promotion module needs.
type Querier interface {
	ListPromotions(ctx context.Context) ([]store.Promotion, error)
	ListActivePromotions(ctx context.Context) ([]store.Promotion, error)
	GetPromotion(ctx context.Context, id pgtype.UUID) (store.Promotion, error)
	CreatePromotion(ctx context.Context, arg store.CreatePromotionParams) (store.Promotion, error)
	UpdatePromotion(ctx context.Context, arg store.UpdatePromotionParams) (store.Promotion, error)
	SetPromotionActive(ctx context.Context, id pgtype.UUID, active bool) error
	DeletePromotion(ctx context.Context, id pgtype.UUID) error
}

// Service manages promotion definitions and hands evaluable rules to the
// pricing path.
type Service struct {
	Q   Querier
	Log zerolog.Logger
}

// RuleFromModel converts a stored promotion into an evaluable rule. Malformed
// tier JSON yields a rule with no tiers, which the engine treats as inert.
func RuleFromModel(p store.Promotion, log zerolog.Logger) Rule {
	rule := Rule{
		ID:         uuid.UUID(p.ID.Bytes),
		Name:       p.Name,
		Active:     p.Active,
		Mechanism:  MechanismKind(p.Mechanism),
		Scope:      ScopeKind(p.Scope),
		Combinable: p.Combinable,
	}
	if p.TakeQty.Valid {
		rule.Take = int(p.TakeQty.Int32)
	}
	if p.PayQty.Valid {
		rule.Pay = int(p.PayQty.Int32)
	}
	if len(p.Tiers) > 0 {
		if err := json.Unmarshal(p.Tiers, &rule.Tiers); err != nil {
			log.Debug().Str("promotion", p.Name).Err(err).Msg("unparseable tiers, promotion inert")
			rule.Tiers = nil
		}
	}
	if len(p.ScopeIds) > 0 {
		rule.ScopeIDs = make([]uuid.UUID, 0, len(p.ScopeIds))
		for _, id := range p.ScopeIds {
			if id.Valid {
				rule.ScopeIDs = append(rule.ScopeIDs, uuid.UUID(id.Bytes))
			}
		}
	}
	if p.ValidFrom.Valid {
		from := p.ValidFrom.Time
		rule.ValidFrom = &from
	}
	if p.ValidTo.Valid {
		to := p.ValidTo.Time
		rule.ValidTo = &to
	}
	if p.CustomTag.Valid {
		tag := p.CustomTag.String
		rule.CustomTag = &tag
	}
	return rule
}

// ActiveRules loads every active promotion as evaluable rules.
func (s *Service) ActiveRules(ctx context.Context) ([]Rule, error) {
	rows, err := s.Q.ListActivePromotions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}
	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, RuleFromModel(row, s.Log))
	}
	return rules, nil
}

// DTO is the API representation of a promotion.
type DTO struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Active     bool       `json:"active"`
	Mechanism  string     `json:"mechanism"`
	TakeQty    *int       `json:"takeQty,omitempty"`
	PayQty     *int       `json:"payQty,omitempty"`
	Tiers      []Tier     `json:"tiers,omitempty"`
	Scope      string     `json:"scope"`
	ScopeIDs   []string   `json:"scopeIds,omitempty"`
	Combinable bool       `json:"combinable"`
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidTo    *time.Time `json:"validTo,omitempty"`
	CustomTag  *string    `json:"customTag,omitempty"`
}

// Input is the admin create/update payload for a promotion.
type Input struct {
	Name       string     `json:"name" validate:"required"`
	Active     *bool      `json:"active"`
	Mechanism  string     `json:"mechanism" validate:"required,oneof=x_for_y progressive_discount"`
	TakeQty    *int       `json:"takeQty" validate:"omitempty,gt=0"`
	PayQty     *int       `json:"payQty" validate:"omitempty,gt=0"`
	Tiers      []Tier     `json:"tiers" validate:"omitempty,dive"`
	Scope      string     `json:"scope" validate:"required"`
	ScopeIDs   []string   `json:"scopeIds" validate:"omitempty,dive,uuid"`
	Combinable bool       `json:"combinable"`
	ValidFrom  *time.Time `json:"validFrom"`
	ValidTo    *time.Time `json:"validTo"`
	CustomTag  *string    `json:"customTag"`
}

// List returns every promotion.
func (s *Service) List(ctx context.Context) ([]DTO, error) {
	rows, err := s.Q.ListPromotions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	out := make([]DTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.toDTO(row))
	}
	return out, nil
}

// Get returns one promotion by id.
func (s *Service) Get(ctx context.Context, id string) (DTO, error) {
	pgID, err := parseID(id)
	if err != nil {
		return DTO{}, err
	}
	row, err := s.Q.GetPromotion(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DTO{}, common.NewAppError(common.CodeNotFound, "promotion not found", http.StatusNotFound, err)
		}
		return DTO{}, fmt.Errorf("get promotion: %w", err)
	}
	return s.toDTO(row), nil
}

// Create inserts a promotion.
func (s *Service) Create(ctx context.Context, in Input) (DTO, error) {
	params, err := createParams(in)
	if err != nil {
		return DTO{}, err
	}
	row, err := s.Q.CreatePromotion(ctx, params)
	if err != nil {
		return DTO{}, fmt.Errorf("create promotion: %w", err)
	}
	return s.toDTO(row), nil
}

// Update overwrites a promotion.
func (s *Service) Update(ctx context.Context, id string, in Input) (DTO, error) {
	pgID, err := parseID(id)
	if err != nil {
		return DTO{}, err
	}
	params, err := createParams(in)
	if err != nil {
		return DTO{}, err
	}
	row, err := s.Q.UpdatePromotion(ctx, store.UpdatePromotionParams{
		ID:         pgID,
		Name:       params.Name,
		Active:     params.Active,
		Mechanism:  params.Mechanism,
		TakeQty:    params.TakeQty,
		PayQty:     params.PayQty,
		Tiers:      params.Tiers,
		Scope:      params.Scope,
		ScopeIds:   params.ScopeIds,
		Combinable: params.Combinable,
		ValidFrom:  params.ValidFrom,
		ValidTo:    params.ValidTo,
		CustomTag:  params.CustomTag,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DTO{}, common.NewAppError(common.CodeNotFound, "promotion not found", http.StatusNotFound, err)
		}
		return DTO{}, fmt.Errorf("update promotion: %w", err)
	}
	return s.toDTO(row), nil
}

// SetActive toggles a promotion without touching its definition.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	pgID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.Q.SetPromotionActive(ctx, pgID, active); err != nil {
		return fmt.Errorf("set promotion active: %w", err)
	}
	return nil
}

// Delete removes a promotion.
func (s *Service) Delete(ctx context.Context, id string) error {
	pgID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.Q.DeletePromotion(ctx, pgID); err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	return nil
}

// PreviewLine is one hypothetical cart line for promotion preview.
type PreviewLine struct {
	ItemID        string  `json:"itemId" validate:"required,uuid"`
	Kind          string  `json:"kind" validate:"required,oneof=product service"`
	CategoryID    *string `json:"categoryId" validate:"omitempty,uuid"`
	SubcategoryID *string `json:"subcategoryId" validate:"omitempty,uuid"`
	Qty           int     `json:"qty" validate:"gt=0"`
	UnitPrice     string  `json:"unitPrice" validate:"required"`
}

// PreviewResult reports the engine outcome for one line.
type PreviewResult struct {
	ItemID   string    `json:"itemId"`
	Discount string    `json:"discount"`
	Applied  []Applied `json:"applied"`
}

// Preview evaluates the active rule set against hypothetical lines without
// touching any cart.
func (s *Service) Preview(ctx context.Context, lines []PreviewLine, asOf time.Time) ([]PreviewResult, error) {
	rules, err := s.ActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]PreviewResult, 0, len(lines))
	for _, pl := range lines {
		line, err := pl.context()
		if err != nil {
			return nil, err
		}
		discount, applied := Evaluate(rules, line, asOf)
		results = append(results, PreviewResult{
			ItemID:   pl.ItemID,
			Discount: discount.String(),
			Applied:  applied,
		})
	}
	return results, nil
}

func (pl PreviewLine) context() (LineContext, error) {
	itemID, err := uuid.Parse(pl.ItemID)
	if err != nil {
		return LineContext{}, common.NewAppError(common.CodeValidation, "itemId must be a valid UUID", http.StatusBadRequest, err)
	}
	price, err := decimal.NewFromString(pl.UnitPrice)
	if err != nil {
		return LineContext{}, common.NewAppError(common.CodeValidation, "unitPrice must be a decimal number", http.StatusBadRequest, err)
	}
	line := LineContext{
		ItemID:    itemID,
		Kind:      ItemKind(pl.Kind),
		Qty:       pl.Qty,
		UnitPrice: price,
	}
	if pl.CategoryID != nil {
		if cat, err := uuid.Parse(*pl.CategoryID); err == nil {
			line.CategoryID = &cat
		}
	}
	if pl.SubcategoryID != nil {
		if sub, err := uuid.Parse(*pl.SubcategoryID); err == nil {
			line.SubcategoryID = &sub
		}
	}
	return line, nil
}

func createParams(in Input) (store.CreatePromotionParams, error) {
	mech := MechanismKind(strings.TrimSpace(in.Mechanism))
	scope := ScopeKind(strings.TrimSpace(in.Scope))
	if !scope.Valid() {
		return store.CreatePromotionParams{}, common.NewAppError(common.CodeValidation, "unknown promotion scope", http.StatusBadRequest, nil)
	}
	switch mech {
	case MechanismXForY:
		if in.TakeQty == nil || in.PayQty == nil || *in.PayQty >= *in.TakeQty {
			return store.CreatePromotionParams{}, common.NewAppError(common.CodeValidation, "x_for_y requires takeQty and payQty with payQty < takeQty", http.StatusBadRequest, nil)
		}
	case MechanismProgressive:
		if len(in.Tiers) == 0 {
			return store.CreatePromotionParams{}, common.NewAppError(common.CodeValidation, "progressive_discount requires at least one tier", http.StatusBadRequest, nil)
		}
		seen := make(map[int]struct{}, len(in.Tiers))
		for _, t := range in.Tiers {
			if t.Quantity <= 0 {
				return store.CreatePromotionParams{}, common.NewAppError(common.CodeValidation, "progressive_discount tiers require a positive quantity", http.StatusBadRequest, nil)
			}
			if _, dup := seen[t.Quantity]; dup {
				return store.CreatePromotionParams{}, common.NewAppError(common.CodeValidation, "progressive_discount tiers must use distinct quantity thresholds", http.StatusBadRequest, nil)
			}
			seen[t.Quantity] = struct{}{}
		}
	default:
		return store.CreatePromotionParams{}, common.NewAppError(common.CodeValidation, "unknown promotion mechanism", http.StatusBadRequest, nil)
	}

	params := store.CreatePromotionParams{
		Name:       strings.TrimSpace(in.Name),
		Active:     in.Active == nil || *in.Active,
		Mechanism:  string(mech),
		Scope:      string(scope),
		Combinable: in.Combinable,
	}
	if in.TakeQty != nil {
		params.TakeQty = pgtype.Int4{Int32: int32(*in.TakeQty), Valid: true}
	}
	if in.PayQty != nil {
		params.PayQty = pgtype.Int4{Int32: int32(*in.PayQty), Valid: true}
	}
	if len(in.Tiers) > 0 {
		raw, err := json.Marshal(in.Tiers)
		if err != nil {
			return store.CreatePromotionParams{}, fmt.Errorf("marshal tiers: %w", err)
		}
		params.Tiers = raw
	}
	if len(in.ScopeIDs) > 0 {
		params.ScopeIds = make([]pgtype.UUID, 0, len(in.ScopeIDs))
		for _, raw := range in.ScopeIDs {
			u, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				return store.CreatePromotionParams{}, common.NewAppError(common.CodeValidation, "scopeIds must be valid UUIDs", http.StatusBadRequest, err)
			}
			params.ScopeIds = append(params.ScopeIds, pgtype.UUID{Bytes: u, Valid: true})
		}
	}
	if in.ValidFrom != nil {
		params.ValidFrom = pgtype.Timestamptz{Time: *in.ValidFrom, Valid: true}
	}
	if in.ValidTo != nil {
		params.ValidTo = pgtype.Timestamptz{Time: *in.ValidTo, Valid: true}
	}
	if in.CustomTag != nil && strings.TrimSpace(*in.CustomTag) != "" {
		params.CustomTag = pgtype.Text{String: strings.TrimSpace(*in.CustomTag), Valid: true}
	}
	return params, nil
}

func (s *Service) toDTO(p store.Promotion) DTO {
	rule := RuleFromModel(p, s.Log)
	dto := DTO{
		ID:         rule.ID.String(),
		Name:       rule.Name,
		Active:     rule.Active,
		Mechanism:  string(rule.Mechanism),
		Tiers:      rule.Tiers,
		Scope:      string(rule.Scope),
		Combinable: rule.Combinable,
		ValidFrom:  rule.ValidFrom,
		ValidTo:    rule.ValidTo,
		CustomTag:  rule.CustomTag,
	}
	if p.TakeQty.Valid {
		take := int(p.TakeQty.Int32)
		dto.TakeQty = &take
	}
	if p.PayQty.Valid {
		pay := int(p.PayQty.Int32)
		dto.PayQty = &pay
	}
	if len(rule.ScopeIDs) > 0 {
		dto.ScopeIDs = make([]string, 0, len(rule.ScopeIDs))
		for _, id := range rule.ScopeIDs {
			dto.ScopeIDs = append(dto.ScopeIDs, id.String())
		}
	}
	return dto
}

func parseID(raw string) (pgtype.UUID, error) {
	u, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pgtype.UUID{}, common.NewAppError(common.CodeValidation, "id must be a valid UUID", http.StatusBadRequest, err)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}
