package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Prjsupa/vivero-api/internal/promo"
)

// DiscountType tags a manual or general discount value.
type DiscountType string

const (
	DiscountAmount     DiscountType = "amount"
	DiscountPercentage DiscountType = "percentage"
)

// Line is one cart entry as priced by the engine. Category context is a
// catalog snapshot used for promotion scope matching.
type Line struct {
	ItemID             uuid.UUID
	Kind               promo.ItemKind
	Name               string
	CategoryID         *uuid.UUID
	SubcategoryID      *uuid.UUID
	Qty                int
	UnitPrice          decimal.Decimal
	ManualDiscount     decimal.Decimal
	ManualDiscountType DiscountType
}

// GeneralDiscount is the order-level discount applied over the pre-discount
// subtotal.
type GeneralDiscount struct {
	Value decimal.Decimal
	Type  DiscountType
}

// TaxConfig carries the already-resolved VAT rate percentage. The engine only
// multiplies; deciding the rate belongs to the fiscal package.
type TaxConfig struct {
	VATRate decimal.Decimal
}

// LineTotals is the priced form of a Line.
type LineTotals struct {
	Line
	Subtotal     decimal.Decimal `json:"subtotal"`
	AutoDiscount decimal.Decimal `json:"autoDiscount"`
	ManualAmount decimal.Decimal `json:"manualDiscountAmount"`
	Total        decimal.Decimal `json:"total"`
	Applied      []promo.Applied `json:"appliedPromotions,omitempty"`
}

// Totals aggregates the invoice computation. Subtotal, ItemDiscounts and
// GeneralDiscount stay unrounded; only VATAmount and GrandTotal are rounded
// to currency precision.
type Totals struct {
	Lines           []LineTotals    `json:"lines"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ItemDiscounts   decimal.Decimal `json:"itemDiscounts"`
	GeneralDiscount decimal.Decimal `json:"generalDiscount"`
	DiscountsTotal  decimal.Decimal `json:"discountsTotal"`
	VATRate         decimal.Decimal `json:"vatRate"`
	VATAmount       decimal.Decimal `json:"vatAmount"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
}

var hundred = decimal.NewFromInt(100)

// ComputeInvoice prices a cart. It is the single entry point shared by the
// interactive quote and invoice persistence so both always agree: per-line
// automatic discounts via the promotion engine, manual per-line discounts,
// the order-level general discount over the pre-discount subtotal, then VAT
// over the discounted base. Line totals clamp at zero but discount accounting
// is left unclamped to preserve the auditable "discounts given" figure.
func ComputeInvoice(lines []Line, rules []promo.Rule, general GeneralDiscount, tax TaxConfig, asOf time.Time) Totals {
	out := Totals{
		Lines:           make([]LineTotals, 0, len(lines)),
		Subtotal:        decimal.Zero,
		ItemDiscounts:   decimal.Zero,
		GeneralDiscount: decimal.Zero,
		DiscountsTotal:  decimal.Zero,
		VATRate:         decimal.Zero,
		VATAmount:       decimal.Zero,
		GrandTotal:      decimal.Zero,
	}

	for _, line := range lines {
		priced := priceLine(line, rules, asOf)
		out.Lines = append(out.Lines, priced)
		out.Subtotal = out.Subtotal.Add(priced.Subtotal)
		out.ItemDiscounts = out.ItemDiscounts.Add(priced.AutoDiscount).Add(priced.ManualAmount)
	}

	out.GeneralDiscount = generalAmount(general, out.Subtotal)
	out.DiscountsTotal = out.ItemDiscounts.Add(out.GeneralDiscount)

	if tax.VATRate.Sign() > 0 {
		out.VATRate = tax.VATRate
	}
	taxable := out.Subtotal.Sub(out.DiscountsTotal)
	if taxable.Sign() < 0 {
		taxable = decimal.Zero
	}
	out.VATAmount = taxable.Mul(out.VATRate).Div(hundred).Round(2)

	grand := out.Subtotal.Sub(out.DiscountsTotal).Add(out.VATAmount).Round(2)
	if grand.Sign() < 0 {
		grand = decimal.Zero
	}
	out.GrandTotal = grand
	return out
}

func priceLine(line Line, rules []promo.Rule, asOf time.Time) LineTotals {
	qty := line.Qty
	if qty < 0 {
		qty = 0
	}
	line.Qty = qty

	ctx := promo.LineContext{
		ItemID:        line.ItemID,
		Kind:          line.Kind,
		CategoryID:    line.CategoryID,
		SubcategoryID: line.SubcategoryID,
		Qty:           qty,
		UnitPrice:     line.UnitPrice,
	}
	subtotal := ctx.Subtotal()
	auto, applied := promo.Evaluate(rules, ctx, asOf)
	manual := manualAmount(line, subtotal)

	total := subtotal.Sub(auto).Sub(manual)
	if total.Sign() < 0 {
		total = decimal.Zero
	}
	return LineTotals{
		Line:         line,
		Subtotal:     subtotal,
		AutoDiscount: auto,
		ManualAmount: manual,
		Total:        total,
		Applied:      applied,
	}
}

// manualAmount resolves the per-line manual discount. Non-positive values
// contribute nothing.
func manualAmount(line Line, subtotal decimal.Decimal) decimal.Decimal {
	if line.ManualDiscount.Sign() <= 0 {
		return decimal.Zero
	}
	switch line.ManualDiscountType {
	case DiscountPercentage:
		return subtotal.Mul(line.ManualDiscount).Div(hundred)
	case DiscountAmount:
		return line.ManualDiscount
	}
	return decimal.Zero
}

func generalAmount(general GeneralDiscount, subtotal decimal.Decimal) decimal.Decimal {
	if general.Value.Sign() <= 0 {
		return decimal.Zero
	}
	switch general.Type {
	case DiscountPercentage:
		return subtotal.Mul(general.Value).Div(hundred)
	case DiscountAmount:
		return general.Value
	}
	return decimal.Zero
}
