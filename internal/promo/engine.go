package promo

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MechanismKind identifies how a promotion computes its discount.
type MechanismKind string

const (
	// MechanismXForY charges only Pay units out of every Take units.
	MechanismXForY MechanismKind = "x_for_y"
	// MechanismProgressive applies a percentage that grows with quantity tiers.
	MechanismProgressive MechanismKind = "progressive_discount"
	// MechanismFixedAmount is reserved for a future flat-amount mechanism. Rules
	// carrying it are currently inert and never produce a discount.
	MechanismFixedAmount MechanismKind = "fixed_amount"
	// MechanismPercentage is reserved for a future flat-percentage mechanism.
	MechanismPercentage MechanismKind = "percentage"
)

// ScopeKind identifies which items a promotion can affect.
type ScopeKind string

const (
	ScopeAllStore             ScopeKind = "all_store"
	ScopeAllProducts          ScopeKind = "all_products"
	ScopeAllServices          ScopeKind = "all_services"
	ScopeProductCategories    ScopeKind = "product_categories"
	ScopeProductSubcategories ScopeKind = "product_subcategories"
	ScopeServiceCategories    ScopeKind = "service_categories"
	ScopeProducts             ScopeKind = "products"
	ScopeServices             ScopeKind = "services"
)

// Valid reports whether the scope is one the engine knows how to match.
func (s ScopeKind) Valid() bool {
	switch s {
	case ScopeAllStore, ScopeAllProducts, ScopeAllServices,
		ScopeProductCategories, ScopeProductSubcategories, ScopeServiceCategories,
		ScopeProducts, ScopeServices:
		return true
	}
	return false
}

// ItemKind distinguishes sellable products from services.
type ItemKind string

const (
	ItemProduct ItemKind = "product"
	ItemService ItemKind = "service"
)

// Tier is one step of a progressive discount. Quantity is the minimum number
// of units required for Percentage to apply.
type Tier struct {
	Quantity   int             `json:"quantity"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Rule captures an active promotion as evaluated against a single cart line.
type Rule struct {
	ID         uuid.UUID
	Name       string
	Active     bool
	Mechanism  MechanismKind
	Take       int
	Pay        int
	Tiers      []Tier
	Scope      ScopeKind
	ScopeIDs   []uuid.UUID
	Combinable bool
	ValidFrom  *time.Time
	ValidTo    *time.Time
	CustomTag  *string
}

// LineContext is the slice of a cart line the engine needs to match and price
// a promotion. Category and subcategory are snapshots taken from the catalog.
type LineContext struct {
	ItemID        uuid.UUID
	Kind          ItemKind
	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
	Qty           int
	UnitPrice     decimal.Decimal
}

// Applied records one promotion's contribution to a line for the invoice
// discount breakdown.
type Applied struct {
	RuleID    uuid.UUID       `json:"ruleId"`
	Name      string          `json:"name"`
	Mechanism MechanismKind   `json:"mechanism"`
	Amount    decimal.Decimal `json:"amount"`
}

// Subtotal returns the line's pre-discount amount.
func (l LineContext) Subtotal() decimal.Decimal {
	if l.Qty <= 0 {
		return decimal.Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// InWindow reports whether the rule's validity window covers the instant.
// Rules without a window are unlimited and always pass.
func (r Rule) InWindow(asOf time.Time) bool {
	if r.ValidFrom != nil && asOf.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && asOf.After(*r.ValidTo) {
		return false
	}
	return true
}

// Matches reports whether the rule's scope covers the line's item.
func (r Rule) Matches(line LineContext) bool {
	switch r.Scope {
	case ScopeAllStore:
		return true
	case ScopeAllProducts:
		return line.Kind == ItemProduct
	case ScopeAllServices:
		return line.Kind == ItemService
	case ScopeProductCategories:
		return line.Kind == ItemProduct && idListed(r.ScopeIDs, line.CategoryID)
	case ScopeProductSubcategories:
		return line.Kind == ItemProduct && idListed(r.ScopeIDs, line.SubcategoryID)
	case ScopeServiceCategories:
		return line.Kind == ItemService && idListed(r.ScopeIDs, line.CategoryID)
	case ScopeProducts:
		return line.Kind == ItemProduct && idListed(r.ScopeIDs, &line.ItemID)
	case ScopeServices:
		return line.Kind == ItemService && idListed(r.ScopeIDs, &line.ItemID)
	}
	return false
}

// Match filters rules down to those that are active, inside their validity
// window and whose scope covers the line.
func Match(rules []Rule, line LineContext, asOf time.Time) []Rule {
	var out []Rule
	for _, r := range rules {
		if !r.Active || !r.InWindow(asOf) {
			continue
		}
		if r.Matches(line) {
			out = append(out, r)
		}
	}
	return out
}

// Discount computes the rule's discount amount for the line. Malformed rules
// (non-positive take/pay, empty tiers, unknown mechanisms) yield zero rather
// than an error so a bad row can never break invoice calculation. The result
// never exceeds the line's pre-discount subtotal.
func (r Rule) Discount(line LineContext) decimal.Decimal {
	if line.Qty <= 0 || line.UnitPrice.Sign() < 0 {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch r.Mechanism {
	case MechanismXForY:
		amount = xForY(r.Take, r.Pay, line)
	case MechanismProgressive:
		amount = progressive(r.Tiers, line)
	default:
		return decimal.Zero
	}
	if amount.Sign() < 0 {
		return decimal.Zero
	}
	if subtotal := line.Subtotal(); amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// xForY charges pay units out of every take units; the remainder is charged
// in full. take=3 pay=2 qty=7 leaves 5 chargeable units.
func xForY(take, pay int, line LineContext) decimal.Decimal {
	if take <= 0 || pay <= 0 || pay >= take {
		return decimal.Zero
	}
	groups := line.Qty / take
	remainder := line.Qty % take
	chargeable := groups*pay + remainder
	free := line.Qty - chargeable
	if free <= 0 {
		return decimal.Zero
	}
	return line.UnitPrice.Mul(decimal.NewFromInt(int64(free)))
}

// progressive selects the highest tier whose quantity threshold the line
// meets. Source order of tiers is not assumed.
func progressive(tiers []Tier, line LineContext) decimal.Decimal {
	best := -1
	for i, t := range tiers {
		if t.Quantity <= 0 || t.Quantity > line.Qty {
			continue
		}
		if t.Percentage.Sign() <= 0 {
			continue
		}
		if best < 0 || t.Quantity > tiers[best].Quantity {
			best = i
		}
	}
	if best < 0 {
		return decimal.Zero
	}
	return line.Subtotal().Mul(tiers[best].Percentage).Div(decimal.NewFromInt(100))
}

// Evaluate applies the combination policy over all matching rules for a line:
// if any matching rule is non-combinable only the single best (largest
// discount) rule applies; when every match is combinable their discounts are
// summed and clamped at the line's pre-discount subtotal. A non-combinable
// match blocks stacking even while its own discount is zero, e.g. an x_for_y
// rule whose take threshold the line has not reached yet. It returns the
// total automatic discount and the per-rule breakdown.
func Evaluate(rules []Rule, line LineContext, asOf time.Time) (decimal.Decimal, []Applied) {
	matched := Match(rules, line, asOf)
	if len(matched) == 0 {
		return decimal.Zero, nil
	}

	exclusive := false
	for _, r := range matched {
		if !r.Combinable {
			exclusive = true
			break
		}
	}

	type candidate struct {
		rule   Rule
		amount decimal.Decimal
	}
	var candidates []candidate
	for _, r := range matched {
		amount := r.Discount(line)
		if amount.Sign() <= 0 {
			continue
		}
		candidates = append(candidates, candidate{rule: r, amount: amount})
	}
	if len(candidates) == 0 {
		return decimal.Zero, nil
	}

	if exclusive && len(candidates) > 1 {
		best := candidates[0]
		for _, c := range candidates[1:] {
			switch c.amount.Cmp(best.amount) {
			case 1:
				best = c
			case 0:
				if precedes(c.rule, best.rule) {
					best = c
				}
			}
		}
		candidates = []candidate{best}
	}

	total := decimal.Zero
	applied := make([]Applied, 0, len(candidates))
	for _, c := range candidates {
		total = total.Add(c.amount)
		applied = append(applied, Applied{RuleID: c.rule.ID, Name: c.rule.Name, Mechanism: c.rule.Mechanism, Amount: c.amount})
	}
	if subtotal := line.Subtotal(); total.GreaterThan(subtotal) {
		total = subtotal
	}
	return total, applied
}

// precedes orders rules that discount the same amount: the earlier validity
// start wins, then the smaller ID. A rule without a start counts as earliest.
func precedes(a, b Rule) bool {
	as, bs := startOf(a), startOf(b)
	if !as.Equal(bs) {
		return as.Before(bs)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func startOf(r Rule) time.Time {
	if r.ValidFrom == nil {
		return time.Time{}
	}
	return *r.ValidFrom
}

func idListed(list []uuid.UUID, id *uuid.UUID) bool {
	if id == nil {
		return false
	}
	for _, el := range list {
		if el == *id {
			return true
		}
	}
	return false
}
