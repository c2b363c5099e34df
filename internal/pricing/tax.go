package pricing

import (
	"github.com/shopspring/decimal"
)

// TaxCategory is the VAT bracket a product is sold under.
type TaxCategory string

const (
	TaxGeneral  TaxCategory = "GENERAL"
	TaxFrontier TaxCategory = "FRONTIER"
	TaxZero     TaxCategory = "ZERO"
	TaxExempt   TaxCategory = "EXEMPT"
)

var (
	hundred = decimal.NewFromInt(100)

	taxRates = map[TaxCategory]decimal.Decimal{
		TaxGeneral:  decimal.NewFromInt(16),
		TaxFrontier: decimal.NewFromInt(8),
		TaxZero:     decimal.Zero,
		TaxExempt:   decimal.Zero,
	}
)

func (c TaxCategory) Valid() bool {
	_, ok := taxRates[c]
	return ok
}

// Rate returns the percentage applied on top of a tax-exclusive price.
func (c TaxCategory) Rate() decimal.Decimal {
	return taxRates[c]
}

// FinalPrice derives the tax-inclusive unit price. It is the only place the
// tax-inclusive price is computed and it rounds exactly once.
func FinalPrice(base decimal.Decimal, category TaxCategory) decimal.Decimal {
	if category == TaxExempt {
		return base.Round(2)
	}
	return base.Add(base.Mul(category.Rate()).Div(hundred)).Round(2)
}

// TaxOn returns the tax owed on a tax-exclusive amount, rounded once.
func TaxOn(amount decimal.Decimal, category TaxCategory) decimal.Decimal {
	if category == TaxExempt {
		return decimal.Zero
	}
	return amount.Mul(category.Rate()).Div(hundred).Round(2)
}

// ApplyPercentOff scales amount by (1 - percent/100) and rounds to cents.
func ApplyPercentOff(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(hundred.Sub(percent)).Div(hundred).Round(2)
}
