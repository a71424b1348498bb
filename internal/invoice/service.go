package invoice

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

	"github.com/Prjsupa/vivero-api/internal/cart"
	"github.com/Prjsupa/vivero-api/internal/common"
	"github.com/Prjsupa/vivero-api/internal/events"
	"github.com/Prjsupa/vivero-api/internal/obs"
	"github.com/Prjsupa/vivero-api/internal/promo"
	"github.com/Prjsupa/vivero-api/internal/store"
)

// Querier is the subset of store queries invoice persistence needs.
type Querier interface {
	NextInvoiceNumber(ctx context.Context, pointOfSale int32, invoiceType string) (int64, error)
	CreateInvoice(ctx context.Context, arg store.CreateInvoiceParams) (store.Invoice, error)
	CreateInvoiceLine(ctx context.Context, arg store.CreateInvoiceLineParams) (pgtype.UUID, error)
	CreateInvoiceDiscount(ctx context.Context, arg store.CreateInvoiceDiscountParams) error
	GetInvoice(ctx context.Context, id pgtype.UUID) (store.Invoice, error)
	ListInvoices(ctx context.Context, limit, offset int32) ([]store.Invoice, error)
	CountInvoices(ctx context.Context) (int64, error)
	ListInvoiceLines(ctx context.Context, invoiceID pgtype.UUID) ([]store.InvoiceLine, error)
	ListInvoiceDiscounts(ctx context.Context, invoiceID pgtype.UUID) ([]store.InvoiceDiscount, error)
	GetProductStockForUpdate(ctx context.Context, id pgtype.UUID) (int32, error)
	DecrementProductStock(ctx context.Context, id pgtype.UUID, qty int32) error
	GetCustomer(ctx context.Context, id pgtype.UUID) (store.Customer, error)
	DeleteCart(ctx context.Context, id pgtype.UUID) error
}

// TxStarter begins the transaction an invoice is persisted in. Satisfied by
// *pgxpool.Pool.
type TxStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Service turns carts into numbered invoices and serves the archive.
type Service struct {
	Q           Querier
	Pool        TxStarter
	Cart        *cart.Service
	Events      *events.Bus
	PointOfSale int32
	Currency    string
	Log         zerolog.Logger
}

// DTO is the API representation of an invoice header.
type DTO struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	PointOfSale     int             `json:"pointOfSale"`
	Sequence        int64           `json:"sequence"`
	InvoiceType     string          `json:"invoiceType"`
	CustomerID      *string         `json:"customerId,omitempty"`
	CustomerName    *string         `json:"customerName,omitempty"`
	FiscalCondition *string         `json:"fiscalCondition,omitempty"`
	Currency        string          `json:"currency"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ItemDiscounts   decimal.Decimal `json:"itemDiscounts"`
	GeneralDiscount decimal.Decimal `json:"generalDiscount"`
	DiscountsTotal  decimal.Decimal `json:"discountsTotal"`
	VATRate         decimal.Decimal `json:"vatRate"`
	VATAmount       decimal.Decimal `json:"vatAmount"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
	CreatedAt       time.Time       `json:"createdAt"`
	Lines           []LineDTO       `json:"lines,omitempty"`
	Discounts       []DiscountDTO   `json:"discounts,omitempty"`
}

// LineDTO is one priced item on an invoice.
type LineDTO struct {
	ID             string          `json:"id"`
	ItemID         string          `json:"itemId"`
	ItemKind       string          `json:"itemKind"`
	Name           string          `json:"name"`
	Qty            int             `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	AutoDiscount   decimal.Decimal `json:"autoDiscount"`
	ManualDiscount decimal.Decimal `json:"manualDiscount"`
	LineTotal      decimal.Decimal `json:"lineTotal"`
}

// DiscountDTO itemises one promotion's contribution to one line.
type DiscountDTO struct {
	ID          string          `json:"id"`
	LineID      *string         `json:"lineId,omitempty"`
	PromotionID *string         `json:"promotionId,omitempty"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
}

// Create prices the cart one final time and persists it as a numbered invoice
// in a single transaction: product stock rows are locked and re-checked, the
// point-of-sale counter is advanced, header, lines and the discount breakdown
// are inserted, stock is decremented and the cart is deleted. Insufficient
// stock aborts the whole invoice with a stock conflict.
func (s *Service) Create(ctx context.Context, cartID string) (DTO, error) {
	cartRow, lines, err := s.Cart.Load(ctx, cartID)
	if err != nil {
		return DTO{}, err
	}
	if len(lines) == 0 {
		return DTO{}, common.NewAppError(common.CodeValidation, "cart is empty", http.StatusBadRequest, nil)
	}
	totals, invoiceType, err := s.Cart.QuoteCart(ctx, cartRow, lines)
	if err != nil {
		return DTO{}, fmt.Errorf("price cart: %w", err)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return DTO{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.txQueries(tx)

	var depleted []store.CartLine
	for _, l := range lines {
		if l.ItemKind != "product" {
			continue
		}
		stock, err := qtx.GetProductStockForUpdate(ctx, l.ItemID)
		if err != nil {
			return DTO{}, fmt.Errorf("lock stock: %w", err)
		}
		if stock == l.Qty {
			depleted = append(depleted, l)
		}
		if stock < l.Qty {
			if obs.StockConflictTotal != nil {
				obs.StockConflictTotal.Inc()
			}
			appErr := common.NewAppError(common.CodeStockConflict, "insufficient stock for "+l.Name, http.StatusConflict, nil)
			appErr.Details = map[string]any{
				"itemId":    uuid.UUID(l.ItemID.Bytes).String(),
				"requested": l.Qty,
				"available": stock,
			}
			return DTO{}, appErr
		}
	}

	var (
		customerName    pgtype.Text
		fiscalCondition pgtype.Text
	)
	if cartRow.CustomerID.Valid {
		customer, err := qtx.GetCustomer(ctx, cartRow.CustomerID)
		if err != nil {
			return DTO{}, fmt.Errorf("get customer: %w", err)
		}
		customerName = pgtype.Text{String: customer.Name, Valid: true}
		fiscalCondition = pgtype.Text{String: customer.FiscalCondition, Valid: true}
	}

	number, err := qtx.NextInvoiceNumber(ctx, s.PointOfSale, string(invoiceType))
	if err != nil {
		return DTO{}, fmt.Errorf("next invoice number: %w", err)
	}

	header, err := qtx.CreateInvoice(ctx, store.CreateInvoiceParams{
		PointOfSale:     s.PointOfSale,
		Number:          number,
		InvoiceType:     string(invoiceType),
		CustomerID:      cartRow.CustomerID,
		CustomerName:    customerName,
		FiscalCondition: fiscalCondition,
		Currency:        s.Currency,
		Subtotal:        totals.Subtotal,
		ItemDiscounts:   totals.ItemDiscounts,
		GeneralDiscount: totals.GeneralDiscount,
		DiscountsTotal:  totals.DiscountsTotal,
		VatRate:         totals.VATRate,
		VatAmount:       totals.VATAmount,
		GrandTotal:      totals.GrandTotal,
	})
	if err != nil {
		return DTO{}, fmt.Errorf("create invoice: %w", err)
	}

	for _, priced := range totals.Lines {
		itemID := pgtype.UUID{Bytes: priced.ItemID, Valid: true}
		lineID, err := qtx.CreateInvoiceLine(ctx, store.CreateInvoiceLineParams{
			InvoiceID:      header.ID,
			ItemID:         itemID,
			ItemKind:       string(priced.Kind),
			Name:           priced.Name,
			Qty:            int32(priced.Qty),
			UnitPrice:      priced.UnitPrice,
			AutoDiscount:   priced.AutoDiscount,
			ManualDiscount: priced.ManualAmount,
			LineTotal:      priced.Total,
		})
		if err != nil {
			return DTO{}, fmt.Errorf("create invoice line: %w", err)
		}
		for _, applied := range priced.Applied {
			if err := qtx.CreateInvoiceDiscount(ctx, store.CreateInvoiceDiscountParams{
				InvoiceID:   header.ID,
				LineID:      lineID,
				PromotionID: pgtype.UUID{Bytes: applied.RuleID, Valid: true},
				Name:        applied.Name,
				Amount:      applied.Amount,
			}); err != nil {
				return DTO{}, fmt.Errorf("create invoice discount: %w", err)
			}
			if obs.PromotionAppliedTotal != nil {
				obs.PromotionAppliedTotal.WithLabelValues(string(applied.Mechanism)).Inc()
			}
		}
		if priced.Kind == promo.ItemProduct {
			if err := qtx.DecrementProductStock(ctx, itemID, int32(priced.Qty)); err != nil {
				return DTO{}, fmt.Errorf("decrement stock: %w", err)
			}
		}
	}

	if err := qtx.DeleteCart(ctx, cartRow.ID); err != nil {
		return DTO{}, fmt.Errorf("delete cart: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return DTO{}, fmt.Errorf("commit invoice: %w", err)
	}

	if obs.InvoiceIssuedTotal != nil {
		obs.InvoiceIssuedTotal.WithLabelValues(string(invoiceType)).Inc()
	}
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicInvoiceIssued, header.ID, map[string]any{
			"invoiceId":  uuid.UUID(header.ID.Bytes).String(),
			"number":     formatNumber(header.PointOfSale, header.Number),
			"type":       header.InvoiceType,
			"grandTotal": header.GrandTotal,
		})
		for _, l := range depleted {
			_, _ = s.Events.Emit(ctx, events.TopicStockDepleted, l.ItemID, map[string]any{
				"itemId": uuid.UUID(l.ItemID.Bytes).String(),
				"name":   l.Name,
			})
		}
	}
	s.Log.Info().
		Str("invoice_id", uuid.UUID(header.ID.Bytes).String()).
		Str("number", formatNumber(header.PointOfSale, header.Number)).
		Str("type", header.InvoiceType).
		Str("grand_total", header.GrandTotal.String()).
		Msg("invoice issued")

	dto := s.toDTO(header, nil, nil)
	dto.Lines = make([]LineDTO, 0, len(totals.Lines))
	for _, priced := range totals.Lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ItemID:         priced.ItemID.String(),
			ItemKind:       string(priced.Kind),
			Name:           priced.Name,
			Qty:            priced.Qty,
			UnitPrice:      priced.UnitPrice,
			AutoDiscount:   priced.AutoDiscount,
			ManualDiscount: priced.ManualAmount,
			LineTotal:      priced.Total,
		})
	}
	return dto, nil
}

// List returns a page of invoice headers, newest first, plus the total count.
func (s *Service) List(ctx context.Context, page, perPage int) ([]DTO, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	rows, err := s.Q.ListInvoices(ctx, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	total, err := s.Q.CountInvoices(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	out := make([]DTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.toDTO(row, nil, nil))
	}
	return out, total, nil
}

// Get loads an invoice with its lines and discount breakdown.
func (s *Service) Get(ctx context.Context, id string) (DTO, error) {
	invID, err := parseID(id)
	if err != nil {
		return DTO{}, err
	}
	header, err := s.Q.GetInvoice(ctx, invID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DTO{}, common.NewAppError(common.CodeNotFound, "invoice not found", http.StatusNotFound, err)
		}
		return DTO{}, fmt.Errorf("get invoice: %w", err)
	}
	lines, err := s.Q.ListInvoiceLines(ctx, header.ID)
	if err != nil {
		return DTO{}, fmt.Errorf("list invoice lines: %w", err)
	}
	discounts, err := s.Q.ListInvoiceDiscounts(ctx, header.ID)
	if err != nil {
		return DTO{}, fmt.Errorf("list invoice discounts: %w", err)
	}
	return s.toDTO(header, lines, discounts), nil
}

// txQueries binds the query set to the transaction. Stubs used in tests are
// returned as-is.
func (s *Service) txQueries(tx pgx.Tx) Querier {
	if q, ok := s.Q.(*store.Queries); ok {
		return q.WithTx(tx)
	}
	return s.Q
}

func (s *Service) toDTO(inv store.Invoice, lines []store.InvoiceLine, discounts []store.InvoiceDiscount) DTO {
	dto := DTO{
		ID:              uuid.UUID(inv.ID.Bytes).String(),
		Number:          formatNumber(inv.PointOfSale, inv.Number),
		PointOfSale:     int(inv.PointOfSale),
		Sequence:        inv.Number,
		InvoiceType:     inv.InvoiceType,
		Currency:        inv.Currency,
		Subtotal:        inv.Subtotal,
		ItemDiscounts:   inv.ItemDiscounts,
		GeneralDiscount: inv.GeneralDiscount,
		DiscountsTotal:  inv.DiscountsTotal,
		VATRate:         inv.VatRate,
		VATAmount:       inv.VatAmount,
		GrandTotal:      inv.GrandTotal,
		CreatedAt:       inv.CreatedAt.Time,
	}
	if inv.CustomerID.Valid {
		id := uuid.UUID(inv.CustomerID.Bytes).String()
		dto.CustomerID = &id
	}
	if inv.CustomerName.Valid {
		name := inv.CustomerName.String
		dto.CustomerName = &name
	}
	if inv.FiscalCondition.Valid {
		cond := inv.FiscalCondition.String
		dto.FiscalCondition = &cond
	}
	for _, l := range lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ID:             uuid.UUID(l.ID.Bytes).String(),
			ItemID:         uuid.UUID(l.ItemID.Bytes).String(),
			ItemKind:       l.ItemKind,
			Name:           l.Name,
			Qty:            int(l.Qty),
			UnitPrice:      l.UnitPrice,
			AutoDiscount:   l.AutoDiscount,
			ManualDiscount: l.ManualDiscount,
			LineTotal:      l.LineTotal,
		})
	}
	for _, d := range discounts {
		entry := DiscountDTO{
			ID:     uuid.UUID(d.ID.Bytes).String(),
			Name:   d.Name,
			Amount: d.Amount,
		}
		if d.LineID.Valid {
			id := uuid.UUID(d.LineID.Bytes).String()
			entry.LineID = &id
		}
		if d.PromotionID.Valid {
			id := uuid.UUID(d.PromotionID.Bytes).String()
			entry.PromotionID = &id
		}
		dto.Discounts = append(dto.Discounts, entry)
	}
	return dto
}

// formatNumber renders the fiscal document number, point of sale first.
func formatNumber(pointOfSale int32, number int64) string {
	return fmt.Sprintf("%04d-%08d", pointOfSale, number)
}

func parseID(raw string) (pgtype.UUID, error) {
	u, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pgtype.UUID{}, common.NewAppError(common.CodeValidation, "id must be a valid UUID", http.StatusBadRequest, err)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}
