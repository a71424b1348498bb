package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Prjsupa/vivero-api/internal/promo"
)

func d(value string) decimal.Decimal {
	out, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return out
}

func line(qty int, unitPrice string) Line {
	return Line{
		ItemID:    uuid.New(),
		Kind:      promo.ItemProduct,
		Qty:       qty,
		UnitPrice: d(unitPrice),
	}
}

func requireEq(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(d(want)), "expected %s, got %s", want, got)
}

func TestComputeInvoiceDeterministic(t *testing.T) {
	lines := []Line{line(7, "100"), line(2, "49.99")}
	rules := []promo.Rule{
		{ID: uuid.New(), Name: "3x2", Active: true, Mechanism: promo.MechanismXForY, Take: 3, Pay: 2, Scope: promo.ScopeAllProducts},
	}
	general := GeneralDiscount{Value: d("5"), Type: DiscountPercentage}
	tax := TaxConfig{VATRate: d("21")}
	asOf := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	first := ComputeInvoice(lines, rules, general, tax, asOf)
	for i := 0; i < 10; i++ {
		again := ComputeInvoice(lines, rules, general, tax, asOf)
		require.True(t, first.GrandTotal.Equal(again.GrandTotal))
		require.True(t, first.DiscountsTotal.Equal(again.DiscountsTotal))
		require.True(t, first.VATAmount.Equal(again.VATAmount))
	}
}

func TestXForYLineTotal(t *testing.T) {
	rules := []promo.Rule{
		{ID: uuid.New(), Name: "3x2", Active: true, Mechanism: promo.MechanismXForY, Take: 3, Pay: 2, Scope: promo.ScopeAllProducts},
	}
	totals := ComputeInvoice([]Line{line(7, "100")}, rules, GeneralDiscount{}, TaxConfig{}, time.Now())

	require.Len(t, totals.Lines, 1)
	requireEq(t, "200", totals.Lines[0].AutoDiscount)
	requireEq(t, "500", totals.Lines[0].Total)
}

func TestProgressiveLineTotals(t *testing.T) {
	rules := []promo.Rule{
		{ID: uuid.New(), Name: "volumen", Active: true, Mechanism: promo.MechanismProgressive, Scope: promo.ScopeAllProducts,
			Tiers: []promo.Tier{{Quantity: 2, Percentage: d("10")}, {Quantity: 5, Percentage: d("20")}}},
	}

	totals := ComputeInvoice([]Line{line(4, "50")}, rules, GeneralDiscount{}, TaxConfig{}, time.Now())
	requireEq(t, "20", totals.Lines[0].AutoDiscount)
	requireEq(t, "180", totals.Lines[0].Total)

	totals = ComputeInvoice([]Line{line(5, "50")}, rules, GeneralDiscount{}, TaxConfig{}, time.Now())
	requireEq(t, "50", totals.Lines[0].AutoDiscount)
	requireEq(t, "200", totals.Lines[0].Total)
}

func TestManualDiscounts(t *testing.T) {
	l := line(2, "100")
	l.ManualDiscount = d("10")
	l.ManualDiscountType = DiscountPercentage
	totals := ComputeInvoice([]Line{l}, nil, GeneralDiscount{}, TaxConfig{}, time.Now())
	requireEq(t, "20", totals.Lines[0].ManualAmount)
	requireEq(t, "180", totals.Lines[0].Total)

	l.ManualDiscount = d("30")
	l.ManualDiscountType = DiscountAmount
	totals = ComputeInvoice([]Line{l}, nil, GeneralDiscount{}, TaxConfig{}, time.Now())
	requireEq(t, "30", totals.Lines[0].ManualAmount)
	requireEq(t, "170", totals.Lines[0].Total)

	// negative manual input contributes nothing
	l.ManualDiscount = d("-50")
	totals = ComputeInvoice([]Line{l}, nil, GeneralDiscount{}, TaxConfig{}, time.Now())
	require.True(t, totals.Lines[0].ManualAmount.IsZero())
	requireEq(t, "200", totals.Lines[0].Total)
}

func TestLineTotalClampsAtZeroButDiscountAccountingDoesNot(t *testing.T) {
	l := line(1, "100")
	l.ManualDiscount = d("150")
	l.ManualDiscountType = DiscountAmount

	totals := ComputeInvoice([]Line{l}, nil, GeneralDiscount{}, TaxConfig{}, time.Now())
	require.True(t, totals.Lines[0].Total.IsZero())
	// the discounts-given figure stays auditable even past the line's value
	requireEq(t, "150", totals.ItemDiscounts)
}

func TestGeneralDiscountOverPreDiscountSubtotal(t *testing.T) {
	l := line(10, "100") // subtotal 1000
	l.ManualDiscount = d("100")
	l.ManualDiscountType = DiscountAmount

	totals := ComputeInvoice([]Line{l}, nil, GeneralDiscount{Value: d("10"), Type: DiscountPercentage}, TaxConfig{}, time.Now())
	requireEq(t, "1000", totals.Subtotal)
	requireEq(t, "100", totals.ItemDiscounts)
	// 10% of the 1000 subtotal, not of the 900 already-discounted base
	requireEq(t, "100", totals.GeneralDiscount)
	requireEq(t, "200", totals.DiscountsTotal)
}

func TestVATBaseExcludesDiscounts(t *testing.T) {
	l := line(10, "100")
	l.ManualDiscount = d("200")
	l.ManualDiscountType = DiscountAmount

	totals := ComputeInvoice([]Line{l}, nil, GeneralDiscount{}, TaxConfig{VATRate: d("21")}, time.Now())
	requireEq(t, "1000", totals.Subtotal)
	requireEq(t, "200", totals.DiscountsTotal)
	requireEq(t, "168", totals.VATAmount)
	requireEq(t, "968", totals.GrandTotal)
}

func TestRoundingAppliedOnce(t *testing.T) {
	// three lines at 33.333 each: intermediate sums stay unrounded, only the
	// VAT amount and grand total land on 2 decimals.
	lines := []Line{line(1, "33.333"), line(1, "33.333"), line(1, "33.333")}
	totals := ComputeInvoice(lines, nil, GeneralDiscount{}, TaxConfig{VATRate: d("21")}, time.Now())

	requireEq(t, "99.999", totals.Subtotal)
	requireEq(t, "21", totals.VATAmount)     // round2(99.999 * 0.21 = 20.99979)
	requireEq(t, "121", totals.GrandTotal)   // round2(99.999 + 21.00 = 120.999)
	require.True(t, totals.VATAmount.Exponent() >= -2)
	require.True(t, totals.GrandTotal.Exponent() >= -2)
}

func TestNonNegativity(t *testing.T) {
	l := line(1, "100")
	l.ManualDiscount = d("500")
	l.ManualDiscountType = DiscountAmount

	totals := ComputeInvoice([]Line{l}, nil, GeneralDiscount{Value: d("100"), Type: DiscountAmount}, TaxConfig{VATRate: d("21")}, time.Now())
	require.True(t, totals.Lines[0].Total.Sign() >= 0)
	require.True(t, totals.Subtotal.Sign() >= 0)
	require.True(t, totals.DiscountsTotal.Sign() >= 0)
	require.True(t, totals.VATAmount.Sign() >= 0)
	require.True(t, totals.GrandTotal.Sign() >= 0)
}

func TestMissingConfigurationsDefaultToZero(t *testing.T) {
	totals := ComputeInvoice([]Line{line(2, "100")}, nil, GeneralDiscount{}, TaxConfig{}, time.Now())
	requireEq(t, "200", totals.Subtotal)
	require.True(t, totals.DiscountsTotal.IsZero())
	require.True(t, totals.VATAmount.IsZero())
	requireEq(t, "200", totals.GrandTotal)
}

func TestServiceLinesUnaffectedByProductPromotions(t *testing.T) {
	svc := Line{ItemID: uuid.New(), Kind: promo.ItemService, Qty: 1, UnitPrice: d("300")}
	rules := []promo.Rule{
		{ID: uuid.New(), Name: "3x2", Active: true, Mechanism: promo.MechanismXForY, Take: 3, Pay: 2, Scope: promo.ScopeAllProducts},
	}
	totals := ComputeInvoice([]Line{svc}, rules, GeneralDiscount{}, TaxConfig{}, time.Now())
	require.True(t, totals.Lines[0].AutoDiscount.IsZero())
	requireEq(t, "300", totals.Lines[0].Total)
}

func TestAppliedBreakdownCarriesRuleNames(t *testing.T) {
	ruleID := uuid.New()
	rules := []promo.Rule{
		{ID: ruleID, Name: "3x2 macetas", Active: true, Mechanism: promo.MechanismXForY, Take: 3, Pay: 2, Scope: promo.ScopeAllProducts},
	}
	totals := ComputeInvoice([]Line{line(3, "100")}, rules, GeneralDiscount{}, TaxConfig{}, time.Now())

	require.Len(t, totals.Lines[0].Applied, 1)
	require.Equal(t, ruleID, totals.Lines[0].Applied[0].RuleID)
	require.Equal(t, "3x2 macetas", totals.Lines[0].Applied[0].Name)
	requireEq(t, "100", totals.Lines[0].Applied[0].Amount)
}
