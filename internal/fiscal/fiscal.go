package fiscal

import "github.com/shopspring/decimal"

// Condition is the tax regime classification of a customer.
type Condition string

const (
	ConsumidorFinal      Condition = "consumidor_final"
	ResponsableInscripto Condition = "responsable_inscripto"
	Monotributo          Condition = "monotributo"
	Exento               Condition = "exento"
)

// InvoiceType is the fiscal document class issued for a sale.
type InvoiceType string

const (
	InvoiceA InvoiceType = "A"
	InvoiceB InvoiceType = "B"
	InvoiceC InvoiceType = "C"
)

// Valid reports whether the condition is a known fiscal condition.
func (c Condition) Valid() bool {
	switch c {
	case ConsumidorFinal, ResponsableInscripto, Monotributo, Exento:
		return true
	}
	return false
}

// InvoiceTypeFor resolves the invoice type issued to a customer with the
// given fiscal condition. Registered taxpayers receive discriminated type A
// invoices; everyone else, including walk-in customers, gets type B.
func InvoiceTypeFor(c Condition) InvoiceType {
	if c == ResponsableInscripto {
		return InvoiceA
	}
	return InvoiceB
}

// VATRate resolves the VAT percentage for an invoice. Final consumers on
// type B/C documents see tax-included prices, so the rate is zero; a missing
// or negative configured rate also resolves to zero so an invoice can always
// be priced.
func VATRate(t InvoiceType, c Condition, configured decimal.Decimal) decimal.Decimal {
	if configured.Sign() <= 0 {
		return decimal.Zero
	}
	if c == ConsumidorFinal && (t == InvoiceB || t == InvoiceC) {
		return decimal.Zero
	}
	return configured
}
