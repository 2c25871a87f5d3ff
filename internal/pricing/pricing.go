// Package pricing holds the money and tax arithmetic shared by the cart
// mirror and the sale engine. Both sides must round identically, so all
// rounding happens here: once per line and once per aggregate, never at
// per-unit steps.
package pricing

import (
	"github.com/shopspring/decimal"

	"qahwa-pos/internal/database/models"
)

// VATRate is the fixed VAT rate applied uniformly to all products. Catalog
// prices are tax-inclusive; tax-exclusive amounts are derived by division.
var VATRate = decimal.NewFromFloat(0.15)

var vatDivisor = decimal.NewFromInt(1).Add(VATRate)

// feeRates maps each payment method to the merchant-borne processing fee
// rate. Fees are charged on the tax-exclusive subtotal and never added to
// the amount the customer pays.
var feeRates = map[models.PaymentMethod]decimal.Decimal{
	models.PaymentCash:       decimal.Zero,
	models.PaymentMada:       decimal.NewFromFloat(0.00695),
	models.PaymentVisaMaster: decimal.NewFromFloat(0.0225),
}

// Line is the priced form of one order line. Base is rounded to 2 decimals
// and VAT is the exact remainder, so Base + VAT == Gross always holds.
type Line struct {
	Gross decimal.Decimal
	Base  decimal.Decimal
	VAT   decimal.Decimal
}

// SplitLine prices quantity units at the given tax-inclusive unit price.
func SplitLine(unitPrice decimal.Decimal, quantity int) Line {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	base := gross.Div(vatDivisor).Round(2)
	return Line{
		Gross: gross,
		Base:  base,
		VAT:   gross.Sub(base),
	}
}

// Totals aggregates priced lines. Total = Subtotal + VAT exactly, because
// each line already reconstructs its gross from base and vat.
type Totals struct {
	Subtotal decimal.Decimal
	VAT      decimal.Decimal
	Total    decimal.Decimal
}

func Accumulate(lines []Line) Totals {
	t := Totals{
		Subtotal: decimal.Zero,
		VAT:      decimal.Zero,
		Total:    decimal.Zero,
	}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Base)
		t.VAT = t.VAT.Add(l.VAT)
		t.Total = t.Total.Add(l.Gross)
	}
	return t
}

// feeRate returns the processing fee rate for a payment method. The second
// return value is false for unknown methods.
func feeRate(method models.PaymentMethod) (decimal.Decimal, bool) {
	rate, ok := feeRates[method]
	return rate, ok
}

// Fee computes the merchant fee on a tax-exclusive subtotal, rounded to 2
// decimals. Unknown methods cost nothing; callers validate the method first.
func Fee(subtotal decimal.Decimal, method models.PaymentMethod) decimal.Decimal {
	rate, ok := feeRate(method)
	if !ok {
		return decimal.Zero
	}
	return subtotal.Mul(rate).Round(2)
}
