package cart

import (
	"context"
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
	"github.com/Prjsupa/vivero-api/internal/fiscal"
	"github.com/Prjsupa/vivero-api/internal/obs"
	"github.com/Prjsupa/vivero-api/internal/pricing"
	"github.com/Prjsupa/vivero-api/internal/promo"
	"github.com/Prjsupa/vivero-api/internal/store"
)

// Querier is the subset of store queries the cart module needs.
type Querier interface {
	CreateCart(ctx context.Context, customerID pgtype.UUID, expiresAt pgtype.Timestamptz) (store.Cart, error)
	GetCart(ctx context.Context, id pgtype.UUID) (store.Cart, error)
	TouchCart(ctx context.Context, id pgtype.UUID, expiresAt pgtype.Timestamptz) error
	UpdateCartCustomer(ctx context.Context, id pgtype.UUID, customerID pgtype.UUID) error
	UpdateCartGeneralDiscount(ctx context.Context, id pgtype.UUID, value decimal.Decimal, discountType string) error
	DeleteCart(ctx context.Context, id pgtype.UUID) error
	CreateCartLine(ctx context.Context, arg store.CreateCartLineParams) (store.CartLine, error)
	FindCartLineByItem(ctx context.Context, cartID, itemID pgtype.UUID, itemKind string) (store.CartLine, error)
	GetCartLine(ctx context.Context, id pgtype.UUID) (store.CartLine, error)
	UpdateCartLineQty(ctx context.Context, id pgtype.UUID, qty int32) (store.CartLine, error)
	UpdateCartLineDiscount(ctx context.Context, id pgtype.UUID, value decimal.Decimal, discountType string) (store.CartLine, error)
	DeleteCartLine(ctx context.Context, id, cartID pgtype.UUID) error
	ListCartLines(ctx context.Context, cartID pgtype.UUID) ([]store.CartLine, error)
	GetProduct(ctx context.Context, id pgtype.UUID) (store.Product, error)
	GetService(ctx context.Context, id pgtype.UUID) (store.Service, error)
	GetCustomer(ctx context.Context, id pgtype.UUID) (store.Customer, error)
}

// RuleSource provides the active promotion rules for quoting.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]promo.Rule, error)
}

// Service manages invoice-editing sessions and their pricing.
type Service struct {
	Q       Querier
	Rules   RuleSource
	TTL     time.Duration
	VATRate decimal.Decimal
	Now     func() time.Time
	Log     zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) expiry() pgtype.Timestamptz {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return pgtype.Timestamptz{Time: s.now().Add(ttl), Valid: true}
}

// DTO is the API representation of a cart session.
type DTO struct {
	ID                  string          `json:"id"`
	CustomerID          *string         `json:"customerId,omitempty"`
	GeneralDiscount     decimal.Decimal `json:"generalDiscount"`
	GeneralDiscountType string          `json:"generalDiscountType"`
	ExpiresAt           time.Time       `json:"expiresAt"`
	Lines               []LineDTO       `json:"lines"`
}

// LineDTO is the API representation of a cart line.
type LineDTO struct {
	ID                 string          `json:"id"`
	ItemID             string          `json:"itemId"`
	ItemKind           string          `json:"itemKind"`
	Name               string          `json:"name"`
	Qty                int             `json:"qty"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	ManualDiscount     decimal.Decimal `json:"manualDiscount"`
	ManualDiscountType string          `json:"manualDiscountType"`
	StockClamped       bool            `json:"stockClamped,omitempty"`
}

// Create opens a new cart, optionally linked to a customer.
func (s *Service) Create(ctx context.Context, customerID *string) (DTO, error) {
	var custID pgtype.UUID
	if customerID != nil {
		parsed, err := parseID(*customerID)
		if err != nil {
			return DTO{}, err
		}
		if _, err := s.Q.GetCustomer(ctx, parsed); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return DTO{}, common.NewAppError(common.CodeNotFound, "customer not found", http.StatusNotFound, err)
			}
			return DTO{}, fmt.Errorf("get customer: %w", err)
		}
		custID = parsed
	}
	row, err := s.Q.CreateCart(ctx, custID, s.expiry())
	if err != nil {
		return DTO{}, fmt.Errorf("create cart: %w", err)
	}
	return s.toDTO(row, nil), nil
}

// Get loads a cart with its lines. Expired carts read as missing.
func (s *Service) Get(ctx context.Context, id string) (DTO, error) {
	cart, lines, err := s.load(ctx, id)
	if err != nil {
		return DTO{}, err
	}
	return s.toDTO(cart, lines), nil
}

// AddLineInput is the payload to add an item to a cart.
type AddLineInput struct {
	ItemID   string `json:"itemId" validate:"required,uuid"`
	ItemKind string `json:"itemKind" validate:"required,oneof=product service"`
	Qty      int    `json:"qty" validate:"gt=0"`
}

// AddLine adds an item to a cart, snapshotting its catalog state. Product
// quantities are clamped to available stock; the returned line reports the
// clamp so the UI can surface it.
func (s *Service) AddLine(ctx context.Context, cartID string, in AddLineInput) (LineDTO, error) {
	cart, _, err := s.load(ctx, cartID)
	if err != nil {
		return LineDTO{}, err
	}
	itemID, err := parseID(in.ItemID)
	if err != nil {
		return LineDTO{}, err
	}

	var (
		params  store.CreateCartLineParams
		stock   int32
		clamped bool
	)
	qty := int32(in.Qty)
	switch in.ItemKind {
	case "product":
		product, err := s.Q.GetProduct(ctx, itemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return LineDTO{}, common.NewAppError(common.CodeNotFound, "product not found", http.StatusNotFound, err)
			}
			return LineDTO{}, fmt.Errorf("get product: %w", err)
		}
		if !product.Active {
			return LineDTO{}, common.NewAppError(common.CodeValidation, "product is inactive", http.StatusBadRequest, nil)
		}
		stock = product.Stock
		params = store.CreateCartLineParams{
			CartID:        cart.ID,
			ItemID:        product.ID,
			ItemKind:      "product",
			Name:          product.Name,
			CategoryID:    product.CategoryID,
			SubcategoryID: product.SubcategoryID,
			UnitPrice:     product.Price,
		}
	case "service":
		svc, err := s.Q.GetService(ctx, itemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return LineDTO{}, common.NewAppError(common.CodeNotFound, "service not found", http.StatusNotFound, err)
			}
			return LineDTO{}, fmt.Errorf("get service: %w", err)
		}
		if !svc.Active {
			return LineDTO{}, common.NewAppError(common.CodeValidation, "service is inactive", http.StatusBadRequest, nil)
		}
		params = store.CreateCartLineParams{
			CartID:     cart.ID,
			ItemID:     svc.ID,
			ItemKind:   "service",
			Name:       svc.Name,
			CategoryID: svc.CategoryID,
			UnitPrice:  svc.Price,
		}
	default:
		return LineDTO{}, common.NewAppError(common.CodeValidation, "itemKind must be product or service", http.StatusBadRequest, nil)
	}

	existing, err := s.Q.FindCartLineByItem(ctx, cart.ID, itemID, in.ItemKind)
	switch {
	case err == nil:
		qty += existing.Qty
		if in.ItemKind == "product" {
			qty, clamped = clampToStock(qty, stock)
		}
		line, err := s.Q.UpdateCartLineQty(ctx, existing.ID, qty)
		if err != nil {
			return LineDTO{}, fmt.Errorf("update cart line qty: %w", err)
		}
		return s.lineDTO(line, clamped), s.touch(ctx, cart.ID)
	case errors.Is(err, pgx.ErrNoRows):
		if in.ItemKind == "product" {
			qty, clamped = clampToStock(qty, stock)
		}
		if qty <= 0 {
			return LineDTO{}, common.NewAppError(common.CodeValidation, "product is out of stock", http.StatusBadRequest, nil)
		}
		params.Qty = qty
		params.ManualDiscountType = string(pricing.DiscountAmount)
		line, err := s.Q.CreateCartLine(ctx, params)
		if err != nil {
			return LineDTO{}, fmt.Errorf("create cart line: %w", err)
		}
		return s.lineDTO(line, clamped), s.touch(ctx, cart.ID)
	default:
		return LineDTO{}, fmt.Errorf("find cart line: %w", err)
	}
}

// UpdateQty changes a line's quantity, clamping products to stock. A zero or
// negative quantity removes the line.
func (s *Service) UpdateQty(ctx context.Context, cartID, lineID string, qty int) (LineDTO, bool, error) {
	cart, _, err := s.load(ctx, cartID)
	if err != nil {
		return LineDTO{}, false, err
	}
	lid, err := parseID(lineID)
	if err != nil {
		return LineDTO{}, false, err
	}
	if qty <= 0 {
		if err := s.Q.DeleteCartLine(ctx, lid, cart.ID); err != nil {
			return LineDTO{}, false, fmt.Errorf("delete cart line: %w", err)
		}
		return LineDTO{}, true, s.touch(ctx, cart.ID)
	}
	existing, err := s.Q.GetCartLine(ctx, lid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LineDTO{}, false, common.NewAppError(common.CodeNotFound, "cart line not found", http.StatusNotFound, err)
		}
		return LineDTO{}, false, fmt.Errorf("get cart line: %w", err)
	}
	newQty := int32(qty)
	clamped := false
	if existing.ItemKind == "product" {
		product, err := s.Q.GetProduct(ctx, existing.ItemID)
		if err == nil {
			newQty, clamped = clampToStock(newQty, product.Stock)
		}
	}
	line, err := s.Q.UpdateCartLineQty(ctx, lid, newQty)
	if err != nil {
		return LineDTO{}, false, fmt.Errorf("update cart line qty: %w", err)
	}
	return s.lineDTO(line, clamped), false, s.touch(ctx, cart.ID)
}

// DiscountInput is a manual discount payload.
type DiscountInput struct {
	Value decimal.Decimal `json:"value"`
	Type  string          `json:"type" validate:"required,oneof=amount percentage"`
}

// SetLineDiscount attaches a manual discount to a line.
func (s *Service) SetLineDiscount(ctx context.Context, cartID, lineID string, in DiscountInput) (LineDTO, error) {
	cart, _, err := s.load(ctx, cartID)
	if err != nil {
		return LineDTO{}, err
	}
	lid, err := parseID(lineID)
	if err != nil {
		return LineDTO{}, err
	}
	line, err := s.Q.UpdateCartLineDiscount(ctx, lid, in.Value, in.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LineDTO{}, common.NewAppError(common.CodeNotFound, "cart line not found", http.StatusNotFound, err)
		}
		return LineDTO{}, fmt.Errorf("update cart line discount: %w", err)
	}
	return s.lineDTO(line, false), s.touch(ctx, cart.ID)
}

// SetGeneralDiscount attaches an order-level discount to the cart.
func (s *Service) SetGeneralDiscount(ctx context.Context, cartID string, in DiscountInput) error {
	cart, _, err := s.load(ctx, cartID)
	if err != nil {
		return err
	}
	if err := s.Q.UpdateCartGeneralDiscount(ctx, cart.ID, in.Value, in.Type); err != nil {
		return fmt.Errorf("update general discount: %w", err)
	}
	return s.touch(ctx, cart.ID)
}

// SetCustomer links or clears the cart's customer.
func (s *Service) SetCustomer(ctx context.Context, cartID string, customerID *string) error {
	cart, _, err := s.load(ctx, cartID)
	if err != nil {
		return err
	}
	var custID pgtype.UUID
	if customerID != nil && strings.TrimSpace(*customerID) != "" {
		parsed, err := parseID(*customerID)
		if err != nil {
			return err
		}
		if _, err := s.Q.GetCustomer(ctx, parsed); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewAppError(common.CodeNotFound, "customer not found", http.StatusNotFound, err)
			}
			return fmt.Errorf("get customer: %w", err)
		}
		custID = parsed
	}
	if err := s.Q.UpdateCartCustomer(ctx, cart.ID, custID); err != nil {
		return fmt.Errorf("update cart customer: %w", err)
	}
	return s.touch(ctx, cart.ID)
}

// RemoveLine deletes a line from the cart.
func (s *Service) RemoveLine(ctx context.Context, cartID, lineID string) error {
	cart, _, err := s.load(ctx, cartID)
	if err != nil {
		return err
	}
	lid, err := parseID(lineID)
	if err != nil {
		return err
	}
	if err := s.Q.DeleteCartLine(ctx, lid, cart.ID); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return s.touch(ctx, cart.ID)
}

// Delete discards the whole cart.
func (s *Service) Delete(ctx context.Context, cartID string) error {
	cart, _, err := s.load(ctx, cartID)
	if err != nil {
		return err
	}
	if err := s.Q.DeleteCart(ctx, cart.ID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// Quote prices the cart through the shared invoice computation. The same
// totals are produced when the cart is finally invoiced.
func (s *Service) Quote(ctx context.Context, cartID string) (pricing.Totals, fiscal.InvoiceType, error) {
	start := time.Now()
	cart, lines, err := s.load(ctx, cartID)
	if err != nil {
		if obs.QuoteTotal != nil {
			obs.QuoteTotal.WithLabelValues("error").Inc()
		}
		return pricing.Totals{}, "", err
	}
	totals, invoiceType, err := s.quote(ctx, cart, lines)
	if obs.QuoteTotal != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		obs.QuoteTotal.WithLabelValues(result).Inc()
	}
	if obs.QuoteDuration != nil {
		obs.QuoteDuration.Observe(float64(time.Since(start).Milliseconds()))
	}
	return totals, invoiceType, err
}

// QuoteCart prices an already-loaded cart. Invoice persistence reuses it
// inside its transaction.
func (s *Service) QuoteCart(ctx context.Context, cart store.Cart, lines []store.CartLine) (pricing.Totals, fiscal.InvoiceType, error) {
	return s.quote(ctx, cart, lines)
}

func (s *Service) quote(ctx context.Context, cart store.Cart, lines []store.CartLine) (pricing.Totals, fiscal.InvoiceType, error) {
	rules, err := s.Rules.ActiveRules(ctx)
	if err != nil {
		return pricing.Totals{}, "", err
	}

	condition := fiscal.ConsumidorFinal
	if cart.CustomerID.Valid {
		customer, err := s.Q.GetCustomer(ctx, cart.CustomerID)
		if err == nil && fiscal.Condition(customer.FiscalCondition).Valid() {
			condition = fiscal.Condition(customer.FiscalCondition)
		}
	}
	invoiceType := fiscal.InvoiceTypeFor(condition)
	rate := fiscal.VATRate(invoiceType, condition, s.VATRate)

	priced := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		priced = append(priced, pricingLine(l))
	}
	totals := pricing.ComputeInvoice(priced, rules, pricing.GeneralDiscount{
		Value: cart.GeneralDiscount,
		Type:  pricing.DiscountType(cart.GeneralDiscountType),
	}, pricing.TaxConfig{VATRate: rate}, s.now())
	return totals, invoiceType, nil
}

// Load fetches a live cart row and its lines for external callers that need
// the raw store types, such as invoice persistence.
func (s *Service) Load(ctx context.Context, cartID string) (store.Cart, []store.CartLine, error) {
	return s.load(ctx, cartID)
}

func (s *Service) load(ctx context.Context, cartID string) (store.Cart, []store.CartLine, error) {
	id, err := parseID(cartID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	cart, err := s.Q.GetCart(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Cart{}, nil, common.NewAppError(common.CodeNotFound, "cart not found", http.StatusNotFound, err)
		}
		return store.Cart{}, nil, fmt.Errorf("get cart: %w", err)
	}
	if cart.ExpiresAt.Valid && cart.ExpiresAt.Time.Before(s.now()) {
		return store.Cart{}, nil, common.NewAppError(common.CodeNotFound, "cart expired", http.StatusNotFound, nil)
	}
	lines, err := s.Q.ListCartLines(ctx, cart.ID)
	if err != nil {
		return store.Cart{}, nil, fmt.Errorf("list cart lines: %w", err)
	}
	return cart, lines, nil
}

func (s *Service) touch(ctx context.Context, id pgtype.UUID) error {
	if err := s.Q.TouchCart(ctx, id, s.expiry()); err != nil {
		s.Log.Warn().Err(err).Msg("touch cart")
	}
	return nil
}

func (s *Service) toDTO(cart store.Cart, lines []store.CartLine) DTO {
	dto := DTO{
		ID:                  uuid.UUID(cart.ID.Bytes).String(),
		GeneralDiscount:     cart.GeneralDiscount,
		GeneralDiscountType: cart.GeneralDiscountType,
		ExpiresAt:           cart.ExpiresAt.Time,
		Lines:               make([]LineDTO, 0, len(lines)),
	}
	if cart.CustomerID.Valid {
		id := uuid.UUID(cart.CustomerID.Bytes).String()
		dto.CustomerID = &id
	}
	for _, l := range lines {
		dto.Lines = append(dto.Lines, s.lineDTO(l, false))
	}
	return dto
}

func (s *Service) lineDTO(l store.CartLine, clamped bool) LineDTO {
	return LineDTO{
		ID:                 uuid.UUID(l.ID.Bytes).String(),
		ItemID:             uuid.UUID(l.ItemID.Bytes).String(),
		ItemKind:           l.ItemKind,
		Name:               l.Name,
		Qty:                int(l.Qty),
		UnitPrice:          l.UnitPrice,
		ManualDiscount:     l.ManualDiscount,
		ManualDiscountType: l.ManualDiscountType,
		StockClamped:       clamped,
	}
}

func pricingLine(l store.CartLine) pricing.Line {
	line := pricing.Line{
		ItemID:             uuid.UUID(l.ItemID.Bytes),
		Kind:               promo.ItemKind(l.ItemKind),
		Name:               l.Name,
		Qty:                int(l.Qty),
		UnitPrice:          l.UnitPrice,
		ManualDiscount:     l.ManualDiscount,
		ManualDiscountType: pricing.DiscountType(l.ManualDiscountType),
	}
	if l.CategoryID.Valid {
		cat := uuid.UUID(l.CategoryID.Bytes)
		line.CategoryID = &cat
	}
	if l.SubcategoryID.Valid {
		sub := uuid.UUID(l.SubcategoryID.Bytes)
		line.SubcategoryID = &sub
	}
	return line
}

func clampToStock(qty, stock int32) (int32, bool) {
	if stock < 0 {
		stock = 0
	}
	if qty > stock {
		return stock, true
	}
	return qty, false
}

func parseID(raw string) (pgtype.UUID, error) {
	u, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pgtype.UUID{}, common.NewAppError(common.CodeValidation, "id must be a valid UUID", http.StatusBadRequest, err)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}
